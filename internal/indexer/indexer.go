package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RealFaceCode/ContextBrain/internal/embedder"
	"github.com/RealFaceCode/ContextBrain/internal/extractor"
	"github.com/RealFaceCode/ContextBrain/internal/storage"
	"github.com/RealFaceCode/ContextBrain/internal/vectorstore"
	"github.com/RealFaceCode/ContextBrain/pkg/types"
)

const (
	// DefaultClearBatchSize is the number of vector documents deleted per call
	DefaultClearBatchSize = 1000
	// DefaultVectorBatchSize is the number of documents upserted per call
	DefaultVectorBatchSize = vectorstore.UpsertBatchSize
)

// VectorStore is the part of the vector collection the indexer writes
type VectorStore interface {
	Upsert(ctx context.Context, docs []vectorstore.Document) error
	Delete(ctx context.Context, project string, ids []string) (int, error)
	IDs(ctx context.Context) ([]string, error)
	ProjectIDs(ctx context.Context, project string) ([]string, error)
	Reset(ctx context.Context) error
}

// Config contains configuration for the indexer
type Config struct {
	EmbedBatchSize  int           // Elements per embedding request (default: 32)
	VectorBatchSize int           // Documents per vector upsert (default: 100)
	ClearBatchSize  int           // Documents per vector delete (default: 1000)
	Timeout         time.Duration // Run deadline, zero for none
	Logger          *slog.Logger
}

// IndexOptions tunes a single run
type IndexOptions struct {
	ExcludePatterns []string      // Added to the coordinator's patterns
	SkipClear       bool          // Keep previously indexed data
	Timeout         time.Duration // Overrides Config.Timeout when set
	Sink            ProgressSink  // Receives this run's events besides the registered sinks
}

// Indexer runs the indexing pipeline and the clear protocol over both stores
type Indexer struct {
	coordinator *extractor.Coordinator
	embedder    *embedder.Lazy
	store       storage.Storage
	vectors     VectorStore
	cfg         Config
	logger      *slog.Logger

	events broadcaster
	locks  projectLocks

	hooksMu sync.RWMutex
	onIndex []func()
}

// New creates an Indexer. The embedder is created on the first run.
func New(store storage.Storage, vectors VectorStore, coordinator *extractor.Coordinator, emb *embedder.Lazy, cfg Config) *Indexer {
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = embedder.DefaultStageBatchSize
	}
	if cfg.VectorBatchSize <= 0 {
		cfg.VectorBatchSize = DefaultVectorBatchSize
	}
	if cfg.ClearBatchSize <= 0 {
		cfg.ClearBatchSize = DefaultClearBatchSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if coordinator == nil {
		coordinator = extractor.New(nil, extractor.Config{}, logger)
	}

	return &Indexer{
		coordinator: coordinator,
		embedder:    emb,
		store:       store,
		vectors:     vectors,
		cfg:         cfg,
		logger:      logger,
		events:      broadcaster{logger: logger},
	}
}

// AddSink registers a progress observer for all later runs
func (idx *Indexer) AddSink(s ProgressSink) {
	idx.events.add(s)
}

// OnIndexChanged registers fn to run after any run or clear that may have
// changed the stored index, such as purging a search cache
func (idx *Indexer) OnIndexChanged(fn func()) {
	idx.hooksMu.Lock()
	idx.onIndex = append(idx.onIndex, fn)
	idx.hooksMu.Unlock()
}

func (idx *Indexer) indexChanged() {
	idx.hooksMu.RLock()
	hooks := idx.onIndex
	idx.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn()
	}
}

// ProjectKey returns the absolute, cleaned form of a project root that both
// stores are scoped by
func ProjectKey(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// run carries the state of one IndexProject call
type run struct {
	id      string
	project string
	state   State
	start   time.Time
	sink    ProgressSink

	files    []extractor.File
	elements []types.Element
}

// IndexProject rebuilds the index of the project at root. Unless SkipClear is
// set, the project's previous data is removed from both stores first.
//
// A failed run returns a *types.RunError naming the state it failed in.
// Writes committed before the failure remain; for every failure past
// configuration checks the partial ProjectIndex is returned with the error.
func (idx *Indexer) IndexProject(ctx context.Context, root string, opts IndexOptions) (*types.ProjectIndex, error) {
	project, err := ProjectKey(root)
	if err != nil {
		return nil, &types.RunError{Kind: types.KindConfiguration, State: string(StateClearing), Err: err}
	}

	lock, ok := idx.locks.tryAcquire(project)
	if !ok {
		return nil, types.ErrIndexingInProgress
	}
	defer lock.Release()

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = idx.cfg.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	r := &run{id: uuid.NewString(), project: project, start: time.Now(), sink: opts.Sink}
	logger := idx.logger.With("run", r.id, "project", project)

	// Configuration checks come before any mutation
	if err := extractor.CheckRoot(project); err != nil {
		return nil, idx.fail(r, types.KindConfiguration, err)
	}
	if idx.embedder == nil {
		return nil, idx.fail(r, types.KindConfiguration, embedder.ErrNoProviderEnabled)
	}
	emb, err := idx.embedder.Get(ctx)
	if err != nil {
		return nil, idx.fail(r, types.KindConfiguration, fmt.Errorf("failed to initialize embedder: %w", err))
	}

	mutated := false
	defer func() {
		if mutated {
			idx.indexChanged()
		}
	}()

	if !opts.SkipClear {
		idx.enter(r, StateClearing, "removing previous index data", 0, 0)
		mutated = true
		removed, vecRemoved, err := idx.clear(ctx, project)
		if err != nil {
			return idx.partial(r), idx.fail(r, classify(ctx, types.KindStore), err)
		}
		logger.Info("cleared previous index", "elements", removed, "vectors", vecRemoved)
	}

	idx.enter(r, StateDiscovering, "discovering files", 0, 0)
	r.files, err = idx.coordinator.WithExcludes(opts.ExcludePatterns).Discover(project)
	if err != nil {
		return idx.partial(r), idx.fail(r, classify(ctx, types.KindPartial), err)
	}

	idx.enter(r, StateExtracting, fmt.Sprintf("extracting %d files", len(r.files)), 0, len(r.files))
	r.elements, _, err = idx.coordinator.Extract(ctx, r.files)
	if err != nil {
		return idx.partial(r), idx.fail(r, classify(ctx, types.KindPartial), err)
	}

	if len(r.elements) > 0 {
		idx.enter(r, StateEmbedding, fmt.Sprintf("embedding %d elements", len(r.elements)), 0, len(r.elements))
		err = embedder.EmbedElements(ctx, emb, r.elements, idx.cfg.EmbedBatchSize, func(done, total int) {
			idx.publish(r, "embedded batch", done, total)
		})
		if err != nil {
			return idx.partial(r), idx.fail(r, classify(ctx, types.KindPartial), err)
		}

		idx.enter(r, StateWritingStructured, "writing structured index", 0, len(r.elements))
		mutated = true
		if err := idx.writeStructured(ctx, project, r.elements); err != nil {
			return idx.partial(r), idx.fail(r, classify(ctx, types.KindStore), err)
		}

		idx.enter(r, StateWritingVector, "writing vector index", 0, len(r.elements))
		written, err := idx.writeVectors(ctx, r)
		if err != nil {
			return idx.partial(r), idx.fail(r, classify(ctx, types.KindStore), err)
		}
		logger.Info("vector index written", "documents", written)
	}

	idx.enter(r, StateSummarizing, "summarizing", 0, 0)
	result := idx.summary(r, types.OutcomeComplete)

	idx.enter(r, StateDone, "indexing complete", result.Statistics.TotalElements, result.Statistics.TotalElements)
	logger.Info("indexing complete",
		"files", result.Statistics.TotalFiles,
		"elements", result.Statistics.TotalElements,
		"languages", result.Statistics.Languages,
		"duration", result.Statistics.ProcessingTime)
	return result, nil
}

// writeStructured stores every element and its edges in one transaction
func (idx *Indexer) writeStructured(ctx context.Context, project string, elements []types.Element) error {
	tx, err := idx.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.StoreElements(ctx, project, elements); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// writeVectors upserts the embedded elements in sub-batches and returns the
// number of documents written
func (idx *Indexer) writeVectors(ctx context.Context, r *run) (int, error) {
	docs := make([]vectorstore.Document, 0, len(r.elements))
	for i := range r.elements {
		e := &r.elements[i]
		if len(e.Embedding) == 0 {
			idx.logger.Warn("element has no embedding, skipping", "id", e.ID, "path", e.FilePath)
			continue
		}
		docs = append(docs, Document(r.project, e))
	}

	for start := 0; start < len(docs); start += idx.cfg.VectorBatchSize {
		if err := ctx.Err(); err != nil {
			return start, err
		}
		end := min(start+idx.cfg.VectorBatchSize, len(docs))
		if err := idx.vectors.Upsert(ctx, docs[start:end]); err != nil {
			return start, fmt.Errorf("vector upsert %d-%d: %w", start, end, err)
		}
		idx.publish(r, "upserted batch", end, len(docs))
	}
	return len(docs), nil
}

// Document converts an embedded element to its vector document
func Document(project string, e *types.Element) vectorstore.Document {
	return vectorstore.Document{
		ID:        e.ID,
		Project:   project,
		Embedding: e.Embedding,
		Text:      e.Content,
		Metadata: map[string]string{
			"name":       e.Name,
			"type":       string(e.Kind),
			"file_path":  e.FilePath,
			"line_start": strconv.Itoa(e.Location.LineStart),
			"line_end":   strconv.Itoa(e.Location.LineEnd),
			"language":   e.Metadata.Language,
		},
	}
}

// summary builds the ProjectIndex of what the run has produced so far
func (idx *Indexer) summary(r *run, outcome types.Outcome) *types.ProjectIndex {
	now := time.Now()
	return &types.ProjectIndex{
		RunID:       r.id,
		ProjectPath: r.project,
		Statistics: types.ProjectStatistics{
			TotalFiles:     len(r.files),
			TotalElements:  len(r.elements),
			Languages:      types.Languages(r.elements),
			ProcessingTime: now.Sub(r.start),
		},
		Outcome:   outcome,
		CreatedAt: r.start,
		UpdatedAt: now,
	}
}

func (idx *Indexer) partial(r *run) *types.ProjectIndex {
	return idx.summary(r, types.OutcomePartial)
}

func (idx *Indexer) enter(r *run, s State, msg string, done, total int) {
	r.state = s
	idx.publish(r, msg, done, total)
}

func (idx *Indexer) publish(r *run, msg string, done, total int) {
	idx.events.publish(Event{RunID: r.id, State: r.state, Message: msg, Done: done, Total: total}, r.sink)
}

// fail reports the failure of r in its current state
func (idx *Indexer) fail(r *run, kind types.ErrorKind, err error) error {
	state := r.state
	if state == "" {
		state = StateClearing
	}
	runErr := &types.RunError{Kind: kind, State: string(state), Err: err}

	idx.logger.Error("indexing failed", "run", r.id, "project", r.project, "state", state, "kind", kind, "error", err)
	r.state = StateError
	idx.publish(r, runErr.Error(), 0, 0)
	return runErr
}

// classify reports a timeout when the run's deadline has passed
func classify(ctx context.Context, kind types.ErrorKind) types.ErrorKind {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return types.KindTimeout
	}
	return kind
}

// clear removes the project's structured rows and vector documents. An
// empty project clears both stores entirely.
func (idx *Indexer) clear(ctx context.Context, project string) (int, int, error) {
	removed, err := idx.store.ClearProject(ctx, project)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to clear structured index: %w", err)
	}

	vecRemoved, err := idx.clearVectors(ctx, project)
	if err == nil {
		return removed, vecRemoved, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return removed, vecRemoved, ctxErr
	}

	idx.logger.Warn("batched vector delete failed, resetting collection", "project", project, "error", err)
	if err := idx.vectors.Reset(ctx); err != nil {
		return removed, vecRemoved, fmt.Errorf("failed to reset vector collection: %w", err)
	}
	return removed, vecRemoved, nil
}

func (idx *Indexer) clearVectors(ctx context.Context, project string) (int, error) {
	ids, err := idx.vectorIDs(ctx, project)
	if err != nil {
		return 0, err
	}

	removed := 0
	for start := 0; start < len(ids); start += idx.cfg.ClearBatchSize {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		end := min(start+idx.cfg.ClearBatchSize, len(ids))
		n, err := idx.vectors.Delete(ctx, project, ids[start:end])
		if err != nil {
			return removed, err
		}
		removed += n
		runtime.Gosched()
	}
	return removed, nil
}

func (idx *Indexer) vectorIDs(ctx context.Context, project string) ([]string, error) {
	if project == storage.AllProjects {
		return idx.vectors.IDs(ctx)
	}
	return idx.vectors.ProjectIDs(ctx, project)
}
