//go:build !sqlite_cgo && !ncruces
// +build !sqlite_cgo,!ncruces

package storage

// Default build: pure Go SQLite.
//
//   go build ./...
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the database/sql driver both stores open
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
