package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1.2.0"
)

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// AllMigrations contains all structured-store migrations in order
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up,
		Down:    migrationV1Down,
	},
	{
		Version: "1.1.0",
		Up:      migrationV11Up,
		Down:    migrationV11Down,
	},
	{
		Version: "1.2.0",
		Up:      migrationV12Up,
		Down:    migrationV12Down,
	},
}

const migrationV1Up = `
CREATE TABLE IF NOT EXISTS elements (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    name TEXT NOT NULL,
    content TEXT,
    file_path TEXT NOT NULL,
    line_start INTEGER,
    line_end INTEGER,
    language TEXT,
    complexity INTEGER,
    lines_of_code INTEGER,
    author TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_elements_kind ON elements(kind);
CREATE INDEX IF NOT EXISTS idx_elements_name ON elements(name);
CREATE INDEX IF NOT EXISTS idx_elements_file_path ON elements(file_path);
CREATE INDEX IF NOT EXISTS idx_elements_language ON elements(language);

CREATE TABLE IF NOT EXISTS dependencies (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source_id TEXT NOT NULL,
    target_id TEXT NOT NULL,
    dependency_type TEXT NOT NULL,
    FOREIGN KEY (source_id) REFERENCES elements(id) ON DELETE CASCADE,
    UNIQUE(source_id, target_id, dependency_type)
);

CREATE INDEX IF NOT EXISTS idx_dependencies_source ON dependencies(source_id);
CREATE INDEX IF NOT EXISTS idx_dependencies_target ON dependencies(target_id);
`

const migrationV1Down = `
DROP TABLE IF EXISTS dependencies;
DROP TABLE IF EXISTS elements;
`

// 1.1.0 scopes rows to the indexed project root and keeps the remaining
// element metadata (docstring, parameters, columns...) as JSON.
const migrationV11Up = `
ALTER TABLE elements ADD COLUMN project_root TEXT NOT NULL DEFAULT '';
ALTER TABLE elements ADD COLUMN metadata TEXT;
ALTER TABLE dependencies ADD COLUMN weight REAL NOT NULL DEFAULT 1.0;

CREATE INDEX IF NOT EXISTS idx_elements_project_root ON elements(project_root);
`

const migrationV11Down = `
DROP INDEX IF EXISTS idx_elements_project_root;
ALTER TABLE dependencies DROP COLUMN weight;
ALTER TABLE elements DROP COLUMN metadata;
ALTER TABLE elements DROP COLUMN project_root;
`

// 1.2.0 keys elements and edges by (project_root, id): ids are relative to
// their project, so two projects may hold the same id.
const migrationV12Up = `
CREATE TABLE elements_v11 AS SELECT * FROM elements;
CREATE TABLE dependencies_v11 AS
    SELECT d.source_id, d.target_id, d.dependency_type, d.weight,
           COALESCE((SELECT e.project_root FROM elements e WHERE e.id = d.source_id), '') AS project_root
    FROM dependencies d;

DROP TABLE dependencies;
DROP TABLE elements;

CREATE TABLE elements (
    id TEXT NOT NULL,
    project_root TEXT NOT NULL DEFAULT '',
    kind TEXT NOT NULL,
    name TEXT NOT NULL,
    content TEXT,
    file_path TEXT NOT NULL,
    line_start INTEGER,
    line_end INTEGER,
    language TEXT,
    complexity INTEGER,
    lines_of_code INTEGER,
    author TEXT,
    metadata TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (project_root, id)
);

CREATE TABLE dependencies (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    project_root TEXT NOT NULL DEFAULT '',
    source_id TEXT NOT NULL,
    target_id TEXT NOT NULL,
    dependency_type TEXT NOT NULL,
    weight REAL NOT NULL DEFAULT 1.0,
    FOREIGN KEY (project_root, source_id) REFERENCES elements(project_root, id) ON DELETE CASCADE,
    UNIQUE(project_root, source_id, target_id, dependency_type)
);

INSERT INTO elements (id, project_root, kind, name, content, file_path, line_start, line_end,
    language, complexity, lines_of_code, author, metadata, created_at, updated_at)
SELECT id, project_root, kind, name, content, file_path, line_start, line_end,
    language, complexity, lines_of_code, author, metadata, created_at, updated_at
FROM elements_v11;

INSERT INTO dependencies (project_root, source_id, target_id, dependency_type, weight)
SELECT project_root, source_id, target_id, dependency_type, weight FROM dependencies_v11;

DROP TABLE dependencies_v11;
DROP TABLE elements_v11;

CREATE INDEX IF NOT EXISTS idx_elements_id ON elements(id);
CREATE INDEX IF NOT EXISTS idx_elements_kind ON elements(kind);
CREATE INDEX IF NOT EXISTS idx_elements_name ON elements(name);
CREATE INDEX IF NOT EXISTS idx_elements_file_path ON elements(file_path);
CREATE INDEX IF NOT EXISTS idx_elements_language ON elements(language);
CREATE INDEX IF NOT EXISTS idx_elements_project_root ON elements(project_root);
CREATE INDEX IF NOT EXISTS idx_dependencies_source ON dependencies(project_root, source_id);
CREATE INDEX IF NOT EXISTS idx_dependencies_target ON dependencies(target_id);
`

// Going back to a single-column key keeps one row per id
const migrationV12Down = `
CREATE TABLE elements_v12 AS SELECT * FROM elements;
CREATE TABLE dependencies_v12 AS SELECT * FROM dependencies;

DROP TABLE dependencies;
DROP TABLE elements;

CREATE TABLE elements (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    name TEXT NOT NULL,
    content TEXT,
    file_path TEXT NOT NULL,
    line_start INTEGER,
    line_end INTEGER,
    language TEXT,
    complexity INTEGER,
    lines_of_code INTEGER,
    author TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    project_root TEXT NOT NULL DEFAULT '',
    metadata TEXT
);

CREATE TABLE dependencies (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source_id TEXT NOT NULL,
    target_id TEXT NOT NULL,
    dependency_type TEXT NOT NULL,
    weight REAL NOT NULL DEFAULT 1.0,
    FOREIGN KEY (source_id) REFERENCES elements(id) ON DELETE CASCADE,
    UNIQUE(source_id, target_id, dependency_type)
);

INSERT OR REPLACE INTO elements (id, kind, name, content, file_path, line_start, line_end,
    language, complexity, lines_of_code, author, created_at, updated_at, project_root, metadata)
SELECT id, kind, name, content, file_path, line_start, line_end,
    language, complexity, lines_of_code, author, created_at, updated_at, project_root, metadata
FROM elements_v12 ORDER BY updated_at;

INSERT OR IGNORE INTO dependencies (source_id, target_id, dependency_type, weight)
SELECT source_id, target_id, dependency_type, weight FROM dependencies_v12
WHERE source_id IN (SELECT id FROM elements);

DROP TABLE dependencies_v12;
DROP TABLE elements_v12;

CREATE INDEX IF NOT EXISTS idx_elements_kind ON elements(kind);
CREATE INDEX IF NOT EXISTS idx_elements_name ON elements(name);
CREATE INDEX IF NOT EXISTS idx_elements_file_path ON elements(file_path);
CREATE INDEX IF NOT EXISTS idx_elements_language ON elements(language);
CREATE INDEX IF NOT EXISTS idx_elements_project_root ON elements(project_root);
CREATE INDEX IF NOT EXISTS idx_dependencies_source ON dependencies(source_id);
CREATE INDEX IF NOT EXISTS idx_dependencies_target ON dependencies(target_id);
`

const schemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`

// ApplyMigrations brings the structured store up to CurrentSchemaVersion
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	return Migrate(ctx, db, AllMigrations)
}

// Migrate applies every migration newer than the version recorded in the
// schema_version table. It is shared by both stores, each with its own list.
func Migrate(ctx context.Context, db *sql.DB, migrations []Migration) error {
	if _, err := db.ExecContext(ctx, schemaVersionTable); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	currentVersion, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}

		if !currentVersion.LessThan(migrationVersion) {
			continue
		}

		if err := applyOne(ctx, db, migration); err != nil {
			return err
		}
		currentVersion = migrationVersion
	}

	return nil
}

// applyOne runs a migration and records it in one transaction
func applyOne(ctx context.Context, db *sql.DB, migration Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, migration.Up); err != nil {
		return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
	}
	return tx.Commit()
}

// schemaVersion returns the highest recorded version, 0.0.0 on a fresh database
func schemaVersion(ctx context.Context, db *sql.DB) (*semver.Version, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_version")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}
	defer func() { _ = rows.Close() }()

	current := semver.MustParse("0.0.0")
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		v, err := semver.NewVersion(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid current schema version %s: %w", raw, err)
		}
		if v.GreaterThan(current) {
			current = v
		}
	}
	return current, rows.Err()
}

// SchemaVersion reports the applied schema version of db
func SchemaVersion(ctx context.Context, db *sql.DB) (string, error) {
	v, err := schemaVersion(ctx, db)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// RollbackMigration rolls back the most recent migration in migrations
func RollbackMigration(ctx context.Context, db *sql.DB, migrations []Migration) error {
	current, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}

	var migration *Migration
	for i := range migrations {
		v, err := semver.NewVersion(migrations[i].Version)
		if err == nil && v.Equal(current) {
			migration = &migrations[i]
			break
		}
	}

	if migration == nil {
		return fmt.Errorf("migration %s not found", current)
	}

	if _, err := db.ExecContext(ctx, migration.Down); err != nil {
		return fmt.Errorf("failed to rollback migration %s: %w", migration.Version, err)
	}

	if _, err := db.ExecContext(ctx, "DELETE FROM schema_version WHERE version = ?", migration.Version); err != nil {
		return fmt.Errorf("failed to remove migration record %s: %w", migration.Version, err)
	}

	return nil
}
