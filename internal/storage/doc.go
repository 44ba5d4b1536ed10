// Package storage is the structured half of the index: a SQLite database of
// extracted elements and the edges between them.
//
// # Database Schema
//
// Tables:
//   - elements: one row per element and project root (kind, name, bounded
//     content, location, language, complexity, JSON metadata). Ids are
//     relative to the project, so the key is (project_root, id).
//   - dependencies: typed edges from an element to a target id or name,
//     unique per (project_root, source_id, target_id, dependency_type)
//   - schema_version: applied migrations
//
// Migrations are versioned with semantic versions and applied in order on
// open. The vector collection reuses Open and Migrate with its own list.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage(filepath.Join(dataDir, "contextbrain.db"))
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	// All elements of a run are written in one transaction
//	if err := store.StoreElements(ctx, root, elements); err != nil {
//	    return err
//	}
//
//	hits, err := store.SearchStructural(ctx, storage.StructuralQuery{
//	    Kind:        types.KindClass,
//	    NamePattern: "*Handler",
//	})
//
// # Transactions
//
// Use BeginTx to group several calls:
//
//	tx, err := store.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	n, _ := tx.ClearProject(ctx, root)
//	_ = tx.StoreElements(ctx, root, elements)
//
//	if err := tx.Commit(); err != nil {
//	    return err
//	}
//
// The pool holds one connection, so code running inside a transaction must
// go through the Tx and never through the store it came from.
//
// # Build Tags
//
// Default build: modernc.org/sqlite, pure Go.
//
//	go build ./...
//
// sqlite_cgo: github.com/mattn/go-sqlite3, linked through cgo.
//
//	go build -tags "sqlite_cgo" ./...
//
// ncruces: github.com/ncruces/go-sqlite3, SQLite compiled to wasm.
//
//	go build -tags "ncruces" ./...
package storage
