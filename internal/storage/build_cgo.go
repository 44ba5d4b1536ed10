//go:build sqlite_cgo
// +build sqlite_cgo

package storage

// Compiled with the sqlite_cgo tag.
//
//   go build -tags "sqlite_cgo" ./...
//
// Driver used: github.com/mattn/go-sqlite3

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the database/sql driver both stores open
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
