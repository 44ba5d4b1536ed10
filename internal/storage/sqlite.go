package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RealFaceCode/ContextBrain/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrNestedTx is returned by BeginTx on a transaction
	ErrNestedTx = errors.New("nested transactions not supported")
)

// AllProjects selects every row regardless of the project it was indexed from
const AllProjects = ""

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// Open opens a SQLite database with the settings both stores rely on:
// WAL journaling, foreign keys and a single connection.
func Open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// One connection: a single writer, and ":memory:" databases stay shared
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens the structured store at dbPath and migrates it
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// inTx runs fn inside a new transaction, committing when it returns nil
func (s *SQLiteStorage) inTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Element operations

const elementColumns = `id, kind, name, content, file_path, line_start, line_end,
	language, complexity, lines_of_code, author, metadata`

// elementMetadata is the JSON form of the element fields without a column
type elementMetadata struct {
	Docstring     string   `json:"docstring,omitempty"`
	BaseClasses   []string `json:"base_classes,omitempty"`
	Parameters    []string `json:"parameters,omitempty"`
	ImportedNames []string `json:"imported_names,omitempty"`
	IsAsync       bool     `json:"is_async,omitempty"`
	HeadingLevel  int      `json:"heading_level,omitempty"`
	ColStart      int      `json:"col_start,omitempty"`
	ColEnd        int      `json:"col_end,omitempty"`
}

func encodeMetadata(e *types.Element) (string, error) {
	raw, err := json.Marshal(elementMetadata{
		Docstring:     e.Metadata.Docstring,
		BaseClasses:   e.Metadata.BaseClasses,
		Parameters:    e.Metadata.Parameters,
		ImportedNames: e.Metadata.ImportedNames,
		IsAsync:       e.Metadata.IsAsync,
		HeadingLevel:  e.Metadata.HeadingLevel,
		ColStart:      e.Location.ColStart,
		ColEnd:        e.Location.ColEnd,
	})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func scanElement(row rowScanner) (types.Element, error) {
	var (
		e          types.Element
		kind       string
		content    sql.NullString
		language   sql.NullString
		complexity sql.NullInt64
		loc        sql.NullInt64
		author     sql.NullString
		metadata   sql.NullString
	)
	err := row.Scan(
		&e.ID, &kind, &e.Name, &content, &e.FilePath,
		&e.Location.LineStart, &e.Location.LineEnd,
		&language, &complexity, &loc, &author, &metadata,
	)
	if err != nil {
		return e, err
	}

	e.Kind = types.ElementKind(kind)
	e.Content = content.String
	e.Metadata.Language = language.String
	e.Metadata.LinesOfCode = int(loc.Int64)
	e.Metadata.Author = author.String
	if complexity.Valid {
		c := int(complexity.Int64)
		e.Metadata.Complexity = &c
	}

	if metadata.Valid && metadata.String != "" {
		var m elementMetadata
		if err := json.Unmarshal([]byte(metadata.String), &m); err != nil {
			return e, fmt.Errorf("failed to decode metadata of %s: %w", e.ID, err)
		}
		e.Metadata.Docstring = m.Docstring
		e.Metadata.BaseClasses = m.BaseClasses
		e.Metadata.Parameters = m.Parameters
		e.Metadata.ImportedNames = m.ImportedNames
		e.Metadata.IsAsync = m.IsAsync
		e.Metadata.HeadingLevel = m.HeadingLevel
		e.Location.ColStart = m.ColStart
		e.Location.ColEnd = m.ColEnd
	}
	return e, nil
}

func collectElements(rows *sql.Rows) ([]types.Element, error) {
	defer func() { _ = rows.Close() }()

	elements := make([]types.Element, 0)
	for rows.Next() {
		e, err := scanElement(rows)
		if err != nil {
			return nil, err
		}
		elements = append(elements, e)
	}
	return elements, rows.Err()
}

// upsertElementWithQuerier writes one element and replaces its outgoing edges
func (s *SQLiteStorage) upsertElementWithQuerier(ctx context.Context, q querier, projectRoot string, e *types.Element, now time.Time) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid element %q: %w", e.ID, err)
	}

	metadata, err := encodeMetadata(e)
	if err != nil {
		return fmt.Errorf("failed to encode metadata of %s: %w", e.ID, err)
	}

	var complexity sql.NullInt64
	if e.Metadata.Complexity != nil {
		complexity = sql.NullInt64{Int64: int64(*e.Metadata.Complexity), Valid: true}
	}

	// ON CONFLICT keeps the row, so created_at survives a re-index and the
	// dependency rows are not cascaded away. Ids are relative to their
	// project, so the conflict target includes project_root.
	query := `
		INSERT INTO elements (
			id, kind, name, content, file_path, line_start, line_end,
			language, complexity, lines_of_code, author, project_root, metadata,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_root, id) DO UPDATE SET
			kind = excluded.kind,
			name = excluded.name,
			content = excluded.content,
			file_path = excluded.file_path,
			line_start = excluded.line_start,
			line_end = excluded.line_end,
			language = excluded.language,
			complexity = excluded.complexity,
			lines_of_code = excluded.lines_of_code,
			author = excluded.author,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`
	_, err = q.ExecContext(ctx, query,
		e.ID, string(e.Kind), e.Name, types.Truncate(e.Content, types.MaxContentLength), e.FilePath,
		e.Location.LineStart, e.Location.LineEnd,
		e.Metadata.Language, complexity, e.Metadata.LinesOfCode, e.Metadata.Author,
		projectRoot, metadata, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert element %s: %w", e.ID, err)
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM dependencies WHERE project_root = ? AND source_id = ?`, projectRoot, e.ID); err != nil {
		return fmt.Errorf("failed to reset dependencies of %s: %w", e.ID, err)
	}

	edges := make([]Dependency, 0, len(e.Dependencies)+len(e.Relationships))
	for _, target := range e.Dependencies {
		edges = append(edges, Dependency{SourceID: e.ID, TargetID: target, Type: DependencyParent, Weight: 1})
	}
	for _, r := range e.Relationships {
		edges = append(edges, Dependency{SourceID: e.ID, TargetID: r.Target, Type: string(r.Type), Weight: r.Weight})
	}
	for _, d := range edges {
		_, err := q.ExecContext(ctx, `
			INSERT INTO dependencies (project_root, source_id, target_id, dependency_type, weight)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(project_root, source_id, target_id, dependency_type) DO UPDATE SET weight = excluded.weight
		`, projectRoot, d.SourceID, d.TargetID, d.Type, d.Weight)
		if err != nil {
			return fmt.Errorf("failed to store dependency %s -> %s: %w", d.SourceID, d.TargetID, err)
		}
	}
	return nil
}

func (s *SQLiteStorage) storeElementsWithQuerier(ctx context.Context, q querier, projectRoot string, elements []types.Element) error {
	now := time.Now().UTC()
	for i := range elements {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.upsertElementWithQuerier(ctx, q, projectRoot, &elements[i], now); err != nil {
			return err
		}
	}
	return nil
}

// StoreElements upserts all elements and their dependency edges in one
// transaction. Re-storing an identical element leaves a single row.
func (s *SQLiteStorage) StoreElements(ctx context.Context, projectRoot string, elements []types.Element) error {
	if len(elements) == 0 {
		return nil
	}
	return s.inTx(ctx, func(q querier) error {
		return s.storeElementsWithQuerier(ctx, q, projectRoot, elements)
	})
}

func (s *SQLiteStorage) getElementWithQuerier(ctx context.Context, q querier, projectRoot, id string) (*types.Element, error) {
	root := projectRoot
	if root == AllProjects {
		err := q.QueryRowContext(ctx, `SELECT project_root FROM elements WHERE id = ? ORDER BY project_root LIMIT 1`, id).Scan(&root)
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
	}

	row := q.QueryRowContext(ctx, `SELECT `+elementColumns+` FROM elements WHERE project_root = ? AND id = ?`, root, id)
	e, err := scanElement(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	deps, err := s.dependenciesWithQuerier(ctx, q, root, id)
	if err != nil {
		return nil, err
	}
	for _, d := range deps {
		if d.Type == DependencyParent {
			e.AddDependency(d.TargetID)
			continue
		}
		e.AddRelationship(types.RelationshipType(d.Type), d.TargetID, d.Weight)
	}
	return &e, nil
}

// GetElement returns one element of a project with its dependencies and
// relationships. With AllProjects the first project holding id wins.
func (s *SQLiteStorage) GetElement(ctx context.Context, projectRoot, id string) (*types.Element, error) {
	return s.getElementWithQuerier(ctx, s.querier(), projectRoot, id)
}

func (s *SQLiteStorage) elementsByFileWithQuerier(ctx context.Context, q querier, filePath string) ([]types.Element, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+elementColumns+` FROM elements
		WHERE file_path = ?
		ORDER BY line_start, id
	`, types.NormalizePath(filePath))
	if err != nil {
		return nil, err
	}
	return collectElements(rows)
}

// ElementsByFile returns the elements of one file ordered by position
func (s *SQLiteStorage) ElementsByFile(ctx context.Context, filePath string) ([]types.Element, error) {
	return s.elementsByFileWithQuerier(ctx, s.querier(), filePath)
}

func (s *SQLiteStorage) elementsByKindWithQuerier(ctx context.Context, q querier, kind types.ElementKind) ([]types.Element, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+elementColumns+` FROM elements
		WHERE kind = ?
		ORDER BY file_path, line_start, id
	`, string(kind))
	if err != nil {
		return nil, err
	}
	return collectElements(rows)
}

// ElementsByKind returns every element of a kind ordered by file and position
func (s *SQLiteStorage) ElementsByKind(ctx context.Context, kind types.ElementKind) ([]types.Element, error) {
	return s.elementsByKindWithQuerier(ctx, s.querier(), kind)
}

func (s *SQLiteStorage) listFilesWithQuerier(ctx context.Context, q querier, kind types.ElementKind) ([]string, error) {
	query := `SELECT DISTINCT file_path FROM elements`
	var args []interface{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY file_path`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectStrings(rows)
}

// ListFiles returns the distinct indexed file paths, optionally only those
// holding an element of kind
func (s *SQLiteStorage) ListFiles(ctx context.Context, kind types.ElementKind) ([]string, error) {
	return s.listFilesWithQuerier(ctx, s.querier(), kind)
}

func collectStrings(rows *sql.Rows) ([]string, error) {
	defer func() { _ = rows.Close() }()

	out := make([]string, 0)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Dependency operations

func (s *SQLiteStorage) dependenciesWithQuerier(ctx context.Context, q querier, projectRoot, sourceID string) ([]Dependency, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT source_id, target_id, dependency_type, weight
		FROM dependencies
		WHERE project_root = ? AND source_id = ?
		ORDER BY id
	`, projectRoot, sourceID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	deps := make([]Dependency, 0)
	for rows.Next() {
		var d Dependency
		if err := rows.Scan(&d.SourceID, &d.TargetID, &d.Type, &d.Weight); err != nil {
			return nil, err
		}
		deps = append(deps, d)
	}
	return deps, rows.Err()
}

// Dependencies returns the outgoing edges of a project's element in insertion order
func (s *SQLiteStorage) Dependencies(ctx context.Context, projectRoot, sourceID string) ([]Dependency, error) {
	return s.dependenciesWithQuerier(ctx, s.querier(), projectRoot, sourceID)
}

// Search operations

// LikePattern turns a wildcard name pattern into a LIKE pattern: "*" and
// "?" map to "%" and "_", and a pattern without wildcards matches as a substring.
func LikePattern(pattern string) string {
	if pattern == "" {
		return "%"
	}
	if !strings.ContainsAny(pattern, "*?") {
		return "%" + pattern + "%"
	}
	return strings.NewReplacer("*", "%", "?", "_").Replace(pattern)
}

// kindsFor expands the umbrella heading kind to every heading level
func kindsFor(kind types.ElementKind) []string {
	if kind == types.KindDocumentHeading {
		return []string{
			string(types.KindDocumentHeading),
			string(types.KindH1), string(types.KindH2), string(types.KindH3),
			string(types.KindH4), string(types.KindH5), string(types.KindH6),
		}
	}
	return []string{string(kind)}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func (s *SQLiteStorage) searchStructuralWithQuerier(ctx context.Context, q querier, sq StructuralQuery) ([]types.Element, error) {
	limit := sq.Limit
	if limit <= 0 {
		limit = MaxStructuralResults
	}

	kinds := kindsFor(sq.Kind)
	query := `SELECT ` + elementColumns + ` FROM elements WHERE kind IN (` + placeholders(len(kinds)) + `) AND name LIKE ?`
	args := make([]interface{}, 0, len(kinds)+3)
	for _, k := range kinds {
		args = append(args, k)
	}
	args = append(args, LikePattern(sq.NamePattern))

	if scope := types.NormalizePath(sq.Scope); scope != "" {
		query += ` AND file_path LIKE ?`
		args = append(args, "%"+scope+"%")
	}
	query += ` ORDER BY LENGTH(file_path) DESC, name LIMIT ?`
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute structural search: %w", err)
	}
	elements, err := collectElements(rows)
	if err != nil {
		return nil, err
	}
	return dedupe(elements), nil
}

// SearchStructural finds elements by kind and wildcard name, longest paths
// first, dropping repeats of the same name, kind and content
func (s *SQLiteStorage) SearchStructural(ctx context.Context, query StructuralQuery) ([]types.Element, error) {
	return s.searchStructuralWithQuerier(ctx, s.querier(), query)
}

type dedupeKey struct {
	name string
	kind types.ElementKind
	hash [32]byte
}

// dedupe keeps the first element per (name, kind, content hash)
func dedupe(elements []types.Element) []types.Element {
	seen := make(map[dedupeKey]struct{}, len(elements))
	out := elements[:0]
	for _, e := range elements {
		key := dedupeKey{name: e.Name, kind: e.Kind, hash: sha256.Sum256([]byte(e.Content))}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}

func (s *SQLiteStorage) findDependentsWithQuerier(ctx context.Context, q querier, target string, patterns []string) ([]string, error) {
	var conds []string
	var args []interface{}
	for _, p := range patterns {
		if p == "" {
			continue
		}
		conds = append(conds, `name LIKE ?`, `content LIKE ?`)
		args = append(args, "%"+p+"%", "%"+p+"%")
	}
	if len(conds) == 0 {
		return []string{}, nil
	}

	query := `
		SELECT DISTINCT file_path FROM elements
		WHERE kind = ? AND (` + strings.Join(conds, " OR ") + `) AND file_path != ?
		ORDER BY file_path
	`
	args = append([]interface{}{string(types.KindImport)}, args...)
	args = append(args, types.NormalizePath(target))

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find dependents: %w", err)
	}
	return collectStrings(rows)
}

// FindDependents lists the other files holding an import whose name or
// content contains any of patterns
func (s *SQLiteStorage) FindDependents(ctx context.Context, target string, patterns []string) ([]string, error) {
	return s.findDependentsWithQuerier(ctx, s.querier(), target, patterns)
}

// Clear operations

func projectFilter(projectRoot string) (string, []interface{}) {
	if projectRoot == AllProjects {
		return "", nil
	}
	return ` WHERE project_root = ?`, []interface{}{projectRoot}
}

func (s *SQLiteStorage) clearProjectWithQuerier(ctx context.Context, q querier, projectRoot string) (int, error) {
	where, args := projectFilter(projectRoot)

	_, err := q.ExecContext(ctx, `DELETE FROM dependencies`+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to clear dependencies: %w", err)
	}

	result, err := q.ExecContext(ctx, `DELETE FROM elements`+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to clear elements: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// ClearProject deletes the elements and edges indexed from projectRoot, or
// everything for AllProjects, and returns the number of elements removed
func (s *SQLiteStorage) ClearProject(ctx context.Context, projectRoot string) (int, error) {
	var n int
	err := s.inTx(ctx, func(q querier) error {
		var err error
		n, err = s.clearProjectWithQuerier(ctx, q, projectRoot)
		return err
	})
	return n, err
}

func (s *SQLiteStorage) countProjectWithQuerier(ctx context.Context, q querier, projectRoot string) (int, error) {
	where, args := projectFilter(projectRoot)
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM elements`+where, args...).Scan(&n)
	return n, err
}

// CountProject reports how many elements ClearProject would remove
func (s *SQLiteStorage) CountProject(ctx context.Context, projectRoot string) (int, error) {
	return s.countProjectWithQuerier(ctx, s.querier(), projectRoot)
}

// Status operations

func (s *SQLiteStorage) statsWithQuerier(ctx context.Context, q querier) (*Stats, error) {
	stats := &Stats{
		ByKind:     make(map[string]int),
		ByLanguage: make(map[string]int),
	}

	err := q.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(DISTINCT file_path) FROM elements`).
		Scan(&stats.TotalElements, &stats.TotalFiles)
	if err != nil {
		return nil, err
	}

	if err := groupCount(ctx, q, `SELECT kind, COUNT(*) FROM elements GROUP BY kind`, stats.ByKind); err != nil {
		return nil, err
	}
	if err := groupCount(ctx, q, `SELECT COALESCE(NULLIF(language, ''), 'unknown'), COUNT(*) FROM elements GROUP BY 1`, stats.ByLanguage); err != nil {
		return nil, err
	}

	var version string
	if err := q.QueryRowContext(ctx, `SELECT version FROM schema_version ORDER BY applied_at DESC, version DESC LIMIT 1`).Scan(&version); err == nil {
		stats.SchemaVersion = version
	}

	var pageCount, pageSize int
	if err := q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		stats.SizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	return stats, nil
}

func groupCount(ctx context.Context, q querier, query string, into map[string]int) error {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		into[key] += n
	}
	return rows.Err()
}

// Stats reports element totals by kind and language
func (s *SQLiteStorage) Stats(ctx context.Context) (*Stats, error) {
	return s.statsWithQuerier(ctx, s.querier())
}

// Transaction implementations use the transaction querier throughout: the
// pool holds a single connection, so reaching for s.db here would block.

func (t *sqliteTx) StoreElements(ctx context.Context, projectRoot string, elements []types.Element) error {
	return t.storage.storeElementsWithQuerier(ctx, t.querier(), projectRoot, elements)
}

func (t *sqliteTx) GetElement(ctx context.Context, projectRoot, id string) (*types.Element, error) {
	return t.storage.getElementWithQuerier(ctx, t.querier(), projectRoot, id)
}

func (t *sqliteTx) ElementsByFile(ctx context.Context, filePath string) ([]types.Element, error) {
	return t.storage.elementsByFileWithQuerier(ctx, t.querier(), filePath)
}

func (t *sqliteTx) ElementsByKind(ctx context.Context, kind types.ElementKind) ([]types.Element, error) {
	return t.storage.elementsByKindWithQuerier(ctx, t.querier(), kind)
}

func (t *sqliteTx) ListFiles(ctx context.Context, kind types.ElementKind) ([]string, error) {
	return t.storage.listFilesWithQuerier(ctx, t.querier(), kind)
}

func (t *sqliteTx) Dependencies(ctx context.Context, projectRoot, sourceID string) ([]Dependency, error) {
	return t.storage.dependenciesWithQuerier(ctx, t.querier(), projectRoot, sourceID)
}

func (t *sqliteTx) SearchStructural(ctx context.Context, query StructuralQuery) ([]types.Element, error) {
	return t.storage.searchStructuralWithQuerier(ctx, t.querier(), query)
}

func (t *sqliteTx) FindDependents(ctx context.Context, target string, patterns []string) ([]string, error) {
	return t.storage.findDependentsWithQuerier(ctx, t.querier(), target, patterns)
}

func (t *sqliteTx) ClearProject(ctx context.Context, projectRoot string) (int, error) {
	return t.storage.clearProjectWithQuerier(ctx, t.querier(), projectRoot)
}

func (t *sqliteTx) CountProject(ctx context.Context, projectRoot string) (int, error) {
	return t.storage.countProjectWithQuerier(ctx, t.querier(), projectRoot)
}

func (t *sqliteTx) Stats(ctx context.Context) (*Stats, error) {
	return t.storage.statsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, ErrNestedTx
}
