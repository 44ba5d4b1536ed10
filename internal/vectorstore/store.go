package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RealFaceCode/ContextBrain/internal/storage"
)

const (
	// FileName is the collection database inside the vector directory
	FileName = "collection.db"

	// UpsertBatchSize is the number of documents written per transaction
	UpsertBatchSize = 100

	// DeleteBatchSize bounds the ids bound into one DELETE statement
	DeleteBatchSize = 500
)

var (
	// ErrDimensionMismatch is returned when a vector's length differs from the collection's
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrNoEmbedder is returned by Query when no embed function was configured
	ErrNoEmbedder = errors.New("no embed function configured")
	// ErrEmptyEmbedding is returned when upserting a document without a vector
	ErrEmptyEmbedding = errors.New("document has no embedding")
)

// EmbedFunc turns query text into a vector
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// Document is one entry of the collection
type Document struct {
	ID        string
	Project   string // Project root the document was indexed from
	Embedding []float32
	Text      string // Stored document text returned with hits
	Metadata  map[string]string
}

// Hit is one query result, nearest first
type Hit struct {
	ID       string
	Project  string
	Distance float64 // Cosine distance
	Score    float64 // Similarity clamped to [0,1]
	Metadata map[string]string
	Document string
}

// Collection is a persistent vector collection stored in SQLite. Similarity
// is computed in Go, so any of the storage drivers can back it.
type Collection struct {
	db     *sql.DB
	embed  EmbedFunc
	logger *slog.Logger
}

// Option configures a Collection
type Option func(*Collection)

// WithEmbedFunc sets the function Query uses to embed text
func WithEmbedFunc(fn EmbedFunc) Option {
	return func(c *Collection) { c.embed = fn }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collection) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Open opens the collection at path, creating parent directories as needed.
// Use ":memory:" for a throwaway collection.
func Open(path string, opts ...Option) (*Collection, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create vector directory: %w", err)
		}
	}

	db, err := storage.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector collection: %w", err)
	}

	if err := storage.Migrate(context.Background(), db, Migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply vector migrations: %w", err)
	}

	c := &Collection{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close closes the collection database
func (c *Collection) Close() error {
	return c.db.Close()
}

// Dimension returns the vector length of the collection, 0 when empty
func (c *Collection) Dimension(ctx context.Context) (int, error) {
	var dim int
	err := c.db.QueryRowContext(ctx, `SELECT dimension FROM documents LIMIT 1`).Scan(&dim)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return dim, err
}

// Upsert inserts or replaces documents in transactions of UpsertBatchSize.
// Documents are keyed by project and id. Every vector must match the
// collection's dimension.
func (c *Collection) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	dim, err := c.Dimension(ctx)
	if err != nil {
		return err
	}
	if dim == 0 {
		dim = len(docs[0].Embedding)
	}
	for _, d := range docs {
		if len(d.Embedding) == 0 {
			return fmt.Errorf("%w: %s", ErrEmptyEmbedding, d.ID)
		}
		if len(d.Embedding) != dim {
			return fmt.Errorf("%w: %s has %d, collection has %d", ErrDimensionMismatch, d.ID, len(d.Embedding), dim)
		}
	}

	for start := 0; start < len(docs); start += UpsertBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+UpsertBatchSize, len(docs))
		if err := c.upsertBatch(ctx, docs[start:end]); err != nil {
			return fmt.Errorf("upserting documents %d-%d: %w", start, end, err)
		}
	}
	return nil
}

func (c *Collection) upsertBatch(ctx context.Context, docs []Document) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for _, d := range docs {
		meta, err := json.Marshal(d.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata of %s: %w", d.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO documents (id, project, document, metadata, embedding, dimension, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(project, id) DO UPDATE SET
				document = excluded.document,
				metadata = excluded.metadata,
				embedding = excluded.embedding,
				dimension = excluded.dimension,
				updated_at = excluded.updated_at
		`, d.ID, d.Project, d.Text, string(meta), serializeVector(d.Embedding), len(d.Embedding), now, now)
		if err != nil {
			return fmt.Errorf("failed to upsert document %s: %w", d.ID, err)
		}
	}
	return tx.Commit()
}

// Query embeds text and returns the topK nearest documents
func (c *Collection) Query(ctx context.Context, text string, topK int) ([]Hit, error) {
	if c.embed == nil {
		return nil, ErrNoEmbedder
	}
	vector, err := c.embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return c.QueryVector(ctx, vector, topK)
}

// QueryVector returns the topK documents nearest to vector by cosine
// distance. An empty collection yields no hits.
func (c *Collection) QueryVector(ctx context.Context, vector []float32, topK int) ([]Hit, error) {
	if topK <= 0 {
		return []Hit{}, nil
	}

	dim, err := c.Dimension(ctx)
	if err != nil {
		return nil, err
	}
	if dim == 0 {
		return []Hit{}, nil
	}
	if len(vector) != dim {
		return nil, fmt.Errorf("%w: query has %d, collection has %d", ErrDimensionMismatch, len(vector), dim)
	}

	rows, err := c.db.QueryContext(ctx, `SELECT id, project, document, metadata, embedding FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hits := make([]Hit, 0)
	for rows.Next() {
		var (
			h    Hit
			doc  sql.NullString
			meta sql.NullString
			blob []byte
		)
		if err := rows.Scan(&h.ID, &h.Project, &doc, &meta, &blob); err != nil {
			return nil, err
		}
		h.Document = doc.String
		if meta.Valid && meta.String != "" && meta.String != "null" {
			if err := json.Unmarshal([]byte(meta.String), &h.Metadata); err != nil {
				c.logger.Warn("skipping document metadata", "id", h.ID, "error", err)
			}
		}
		h.Distance = CosineDistance(vector, deserializeVector(blob))
		h.Score = Score(h.Distance)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortHits(hits)
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Delete removes a project's documents by id in batches of DeleteBatchSize.
// An empty project matches the ids in every project.
func (c *Collection) Delete(ctx context.Context, project string, ids []string) (int, error) {
	deleted := 0
	for start := 0; start < len(ids); start += DeleteBatchSize {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		batch := ids[start:min(start+DeleteBatchSize, len(ids))]

		args := make([]interface{}, 0, len(batch)+1)
		for _, id := range batch {
			args = append(args, id)
		}
		query := `DELETE FROM documents WHERE id IN (` + strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",") + `)`
		if project != "" {
			query += ` AND project = ?`
			args = append(args, project)
		}
		result, err := c.db.ExecContext(ctx, query, args...)
		if err != nil {
			return deleted, fmt.Errorf("failed to delete documents: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return deleted, err
		}
		deleted += int(n)
	}
	return deleted, nil
}

// Count returns the number of documents
func (c *Collection) Count(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

// IDs returns every distinct document id in id order
func (c *Collection) IDs(ctx context.Context) ([]string, error) {
	return c.ids(ctx, `SELECT DISTINCT id FROM documents ORDER BY id`)
}

// ProjectIDs returns the ids of documents indexed from project
func (c *Collection) ProjectIDs(ctx context.Context, project string) ([]string, error) {
	return c.ids(ctx, `SELECT id FROM documents WHERE project = ? ORDER BY id`, project)
}

func (c *Collection) ids(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Reset drops and recreates the collection
func (c *Collection) Reset(ctx context.Context) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS documents; DELETE FROM schema_version;`); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if err := storage.Migrate(ctx, c.db, Migrations); err != nil {
		return fmt.Errorf("failed to recreate collection: %w", err)
	}
	c.logger.Info("vector collection reset")
	return nil
}
