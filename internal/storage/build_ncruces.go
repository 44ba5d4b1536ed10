//go:build ncruces && !sqlite_cgo
// +build ncruces,!sqlite_cgo

package storage

// Compiled with the ncruces tag. SQLite runs as an embedded wasm module
// under wazero.
//
//   go build -tags "ncruces" ./...
//
// Driver used: github.com/ncruces/go-sqlite3

import (
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const (
	// DriverName is the database/sql driver both stores open
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration
	BuildMode = "wasm"
)
