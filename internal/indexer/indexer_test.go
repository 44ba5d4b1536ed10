package indexer

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RealFaceCode/ContextBrain/internal/embedder"
	"github.com/RealFaceCode/ContextBrain/internal/extractor"
	"github.com/RealFaceCode/ContextBrain/internal/searcher"
	"github.com/RealFaceCode/ContextBrain/internal/storage"
	"github.com/RealFaceCode/ContextBrain/internal/vectorstore"
	"github.com/RealFaceCode/ContextBrain/pkg/types"
)

// mockEmbedder implements embedder.Embedder for testing
type mockEmbedder struct {
	dimension int
	batchErr  error
	callCount int
	mu        sync.Mutex

	// When block is set, GenerateBatch signals started and waits for block
	// to close or the context to end
	block   chan struct{}
	started chan struct{}
	once    sync.Once
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{dimension: 8}
}

func (m *mockEmbedder) vector(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	sum := h.Sum64()
	v := make([]float32, m.dimension)
	for i := range v {
		v[i] = float32((sum>>(i*8))&0xff) + 1
	}
	return v
}

func (m *mockEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vs, err := m.GenerateBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func (m *mockEmbedder) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if m.block != nil {
		m.once.Do(func() { close(m.started) })
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.batchErr != nil {
		return nil, m.batchErr
	}
	m.callCount += len(texts)

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vector(t)
	}
	return out, nil
}

func (m *mockEmbedder) Dimension() int   { return m.dimension }
func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Model() string    { return "test-v1" }
func (m *mockEmbedder) Close() error     { return nil }

func (m *mockEmbedder) getCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

type testEnv struct {
	idx     *Indexer
	store   *storage.SQLiteStorage
	vectors *vectorstore.Collection
	emb     *mockEmbedder
}

func setupIndexer(t *testing.T, emb *mockEmbedder, cfg Config) *testEnv {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err, "Failed to create test storage")
	t.Cleanup(func() { _ = store.Close() })

	vectors, err := vectorstore.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = vectors.Close() })

	lazy := embedder.NewLazy(func() (embedder.Embedder, error) { return emb, nil })
	idx := New(store, vectors, extractor.New(nil, extractor.Config{}, nil), lazy, cfg)
	return &testEnv{idx: idx, store: store, vectors: vectors, emb: emb}
}

// createTestFile creates a file under dir, making parent directories
func createTestFile(t testing.TB, dir, name, content string) string {
	t.Helper()

	filePath := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0755))
	require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))
	return filePath
}

func createTwoFileProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	createTestFile(t, dir, "a.py", "def helper():\n    return 1\n")
	createTestFile(t, dir, "b.py", "from a import helper\n\n\ndef run():\n    return helper()\n")
	return dir
}

func vectorCount(t *testing.T, env *testEnv) int {
	t.Helper()
	n, err := env.vectors.Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestIndexProject_TwoFileScenario(t *testing.T) {
	env := setupIndexer(t, newMockEmbedder(), Config{})
	dir := createTwoFileProject(t)
	ctx := context.Background()

	result, err := env.idx.IndexProject(ctx, dir, IndexOptions{})
	require.NoError(t, err)

	project, err := ProjectKey(dir)
	require.NoError(t, err)
	assert.Equal(t, project, result.ProjectPath)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, types.OutcomeComplete, result.Outcome)
	assert.Equal(t, 2, result.Statistics.TotalFiles)
	assert.Equal(t, []string{"python"}, result.Statistics.Languages)
	assert.Positive(t, result.Statistics.TotalElements)

	// Every element reaches both stores
	n, err := env.store.CountProject(ctx, project)
	require.NoError(t, err)
	assert.Equal(t, result.Statistics.TotalElements, n)
	assert.Equal(t, n, vectorCount(t, env))
	assert.Equal(t, n, env.emb.getCallCount())

	s := searcher.NewSearcher(env.store, env.vectors, searcher.Options{})

	deps, err := s.AnalyzeDependencies(ctx, "b.py", 2, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, deps.Dependencies)

	dependents, err := s.AnalyzeDependencies(ctx, "a.py", 2, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.py"}, dependents.Dependents)

	funcs, err := s.Structural(ctx, types.KindFunction, "helper", "")
	require.NoError(t, err)
	require.Len(t, funcs, 1)
	assert.Equal(t, "a.py", funcs[0].FilePath)
	assert.Equal(t, 1, funcs[0].Location.LineStart)
}

func TestIndexProject_AddCalcScenario(t *testing.T) {
	env := setupIndexer(t, newMockEmbedder(), Config{})
	dir := t.TempDir()
	createTestFile(t, dir, "a.py", "def add(a,b): return a+b\n\nclass Calc:\n    def add(self, a, b): return a + b\n")
	createTestFile(t, dir, "b.py", "import a\n")
	ctx := context.Background()

	result, err := env.idx.IndexProject(ctx, dir, IndexOptions{})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.Statistics.TotalElements, 4)

	kinds := map[types.ElementKind]bool{}
	for _, file := range []string{"a.py", "b.py"} {
		elements, err := env.store.ElementsByFile(ctx, file)
		require.NoError(t, err)
		for _, e := range elements {
			kinds[e.Kind] = true
		}
	}
	for _, k := range []types.ElementKind{types.KindFunction, types.KindClass, types.KindMethod, types.KindImport} {
		assert.True(t, kinds[k], "missing %s element", k)
	}

	s := searcher.NewSearcher(env.store, env.vectors, searcher.Options{})

	deps, err := s.AnalyzeDependencies(ctx, "b.py", 2, false)
	require.NoError(t, err)
	assert.Contains(t, deps.Dependencies, "a")

	funcs, err := s.Structural(ctx, types.KindFunction, "add", "")
	require.NoError(t, err)
	require.NotEmpty(t, funcs)
	assert.Equal(t, "function_a.py_add_1", funcs[0].ID)
	assert.Equal(t, 1, funcs[0].Location.LineStart)

	methods, err := s.Structural(ctx, types.KindMethod, "add", "")
	require.NoError(t, err)
	require.Len(t, methods, 1)
	assert.Equal(t, "method_a.py_Calc_add_4", methods[0].ID)
}

func TestIndexProject_MarkupOnlyHeadingDoesNotFailRun(t *testing.T) {
	env := setupIndexer(t, newMockEmbedder(), Config{})
	dir := t.TempDir()
	createTestFile(t, dir, "a.py", "def add(a, b):\n    return a + b\n")
	createTestFile(t, dir, "README.md", "# Project\n\nIntro.\n\n## _ _\n\nBody.\n")
	ctx := context.Background()

	result, err := env.idx.IndexProject(ctx, dir, IndexOptions{})
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeComplete, result.Outcome)

	headings, err := env.store.ElementsByFile(ctx, "README.md")
	require.NoError(t, err)
	assert.Len(t, headings, 2)

	funcs, err := env.store.ElementsByFile(ctx, "a.py")
	require.NoError(t, err)
	assert.NotEmpty(t, funcs)
}

func TestIndexProject_ProjectsWithSamePathsStaySeparate(t *testing.T) {
	env := setupIndexer(t, newMockEmbedder(), Config{})
	ctx := context.Background()

	dirA, dirB := t.TempDir(), t.TempDir()
	for _, dir := range []string{dirA, dirB} {
		createTestFile(t, dir, "a.py", "def add(a, b):\n    return a + b\n")
	}
	projectA, err := ProjectKey(dirA)
	require.NoError(t, err)
	projectB, err := ProjectKey(dirB)
	require.NoError(t, err)

	first, err := env.idx.IndexProject(ctx, dirA, IndexOptions{})
	require.NoError(t, err)
	second, err := env.idx.IndexProject(ctx, dirB, IndexOptions{})
	require.NoError(t, err)

	countA, err := env.store.CountProject(ctx, projectA)
	require.NoError(t, err)
	assert.Equal(t, first.Statistics.TotalElements, countA)
	countB, err := env.store.CountProject(ctx, projectB)
	require.NoError(t, err)
	assert.Equal(t, second.Statistics.TotalElements, countB)
	assert.Equal(t, countA+countB, vectorCount(t, env))

	_, err = env.idx.ClearProject(ctx, dirB, true, false)
	require.NoError(t, err)

	countA, err = env.store.CountProject(ctx, projectA)
	require.NoError(t, err)
	assert.Equal(t, first.Statistics.TotalElements, countA)
	vecA, err := env.vectors.ProjectIDs(ctx, projectA)
	require.NoError(t, err)
	assert.Len(t, vecA, countA)
	assert.Equal(t, countA, vectorCount(t, env))
}

func TestIndexProject_ReindexIsIdempotent(t *testing.T) {
	env := setupIndexer(t, newMockEmbedder(), Config{})
	dir := createTwoFileProject(t)
	ctx := context.Background()

	first, err := env.idx.IndexProject(ctx, dir, IndexOptions{})
	require.NoError(t, err)
	firstStats, err := env.store.Stats(ctx)
	require.NoError(t, err)

	second, err := env.idx.IndexProject(ctx, dir, IndexOptions{})
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.Statistics.TotalElements, second.Statistics.TotalElements)

	secondStats, err := env.store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, firstStats.TotalElements, secondStats.TotalElements)
	assert.Equal(t, firstStats.ByKind, secondStats.ByKind)

	// Upserts keep ids stable even without clearing
	_, err = env.idx.IndexProject(ctx, dir, IndexOptions{SkipClear: true})
	require.NoError(t, err)
	assert.Equal(t, firstStats.TotalElements, vectorCount(t, env))
}

func TestIndexProject_ClearsRemovedFiles(t *testing.T) {
	env := setupIndexer(t, newMockEmbedder(), Config{})
	dir := createTwoFileProject(t)
	ctx := context.Background()

	_, err := env.idx.IndexProject(ctx, dir, IndexOptions{})
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "b.py")))
	result, err := env.idx.IndexProject(ctx, dir, IndexOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Statistics.TotalFiles)

	files, err := env.store.ListFiles(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.py"}, files)
	assert.Equal(t, result.Statistics.TotalElements, vectorCount(t, env))
}

func TestIndexProject_ExcludePatterns(t *testing.T) {
	env := setupIndexer(t, newMockEmbedder(), Config{})
	dir := createTwoFileProject(t)
	createTestFile(t, dir, "generated/schema.py", "X = 1\n")
	createTestFile(t, dir, "node_modules/lib/index.js", "function f() {}\n")

	result, err := env.idx.IndexProject(context.Background(), dir, IndexOptions{ExcludePatterns: []string{"generated"}})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Statistics.TotalFiles)
}

func TestIndexProject_EmptyProject(t *testing.T) {
	env := setupIndexer(t, newMockEmbedder(), Config{})

	var mu sync.Mutex
	var states []State
	env.idx.AddSink(SinkFunc(func(e Event) {
		mu.Lock()
		states = append(states, e.State)
		mu.Unlock()
	}))

	result, err := env.idx.IndexProject(context.Background(), t.TempDir(), IndexOptions{})
	require.NoError(t, err)
	assert.Zero(t, result.Statistics.TotalElements)
	assert.Empty(t, result.Statistics.Languages)
	assert.Equal(t, types.OutcomeComplete, result.Outcome)
	assert.Zero(t, env.emb.getCallCount())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateClearing, StateDiscovering, StateExtracting, StateSummarizing, StateDone}, states)
}

func TestIndexProject_ProgressEvents(t *testing.T) {
	env := setupIndexer(t, newMockEmbedder(), Config{EmbedBatchSize: 1})
	dir := createTwoFileProject(t)

	var mu sync.Mutex
	var events []Event
	env.idx.AddSink(SinkFunc(func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}))
	env.idx.AddSink(SinkFunc(func(Event) { panic("bad sink") }))

	full := make(chan Event, 1)
	env.idx.AddSink(ChannelSink(full))

	result, err := env.idx.IndexProject(context.Background(), dir, IndexOptions{})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()

	var order []State
	embedded := 0
	for _, e := range events {
		assert.Equal(t, result.RunID, e.RunID)
		assert.False(t, e.Time.IsZero())
		if len(order) == 0 || order[len(order)-1] != e.State {
			order = append(order, e.State)
		}
		if e.State == StateEmbedding && e.Done > 0 {
			embedded++
		}
	}
	assert.Equal(t, []State{
		StateClearing, StateDiscovering, StateExtracting, StateEmbedding,
		StateWritingStructured, StateWritingVector, StateSummarizing, StateDone,
	}, order)
	assert.Equal(t, result.Statistics.TotalElements, embedded)

	// The channel sink kept the first event and dropped the rest
	assert.Len(t, full, 1)
	assert.Equal(t, StateClearing, (<-full).State)
}

func TestIndexProject_RunSink(t *testing.T) {
	env := setupIndexer(t, newMockEmbedder(), Config{})
	dir := createTwoFileProject(t)

	var mu sync.Mutex
	var states []State
	sink := SinkFunc(func(e Event) {
		mu.Lock()
		states = append(states, e.State)
		mu.Unlock()
	})

	_, err := env.idx.IndexProject(context.Background(), dir, IndexOptions{Sink: sink})
	require.NoError(t, err)
	mu.Lock()
	seen := len(states)
	last := states[seen-1]
	mu.Unlock()
	assert.Equal(t, StateDone, last)

	// The sink is not kept for later runs
	_, err = env.idx.IndexProject(context.Background(), dir, IndexOptions{})
	require.NoError(t, err)
	mu.Lock()
	assert.Len(t, states, seen)
	mu.Unlock()
}

func TestIndexProject_ConcurrentCalls(t *testing.T) {
	emb := newMockEmbedder()
	emb.block = make(chan struct{})
	emb.started = make(chan struct{})
	env := setupIndexer(t, emb, Config{})
	dir := createTwoFileProject(t)

	done := make(chan error, 1)
	go func() {
		_, err := env.idx.IndexProject(context.Background(), dir, IndexOptions{})
		done <- err
	}()

	select {
	case <-emb.started:
	case <-time.After(10 * time.Second):
		t.Fatal("first run never reached embedding")
	}

	_, err := env.idx.IndexProject(context.Background(), dir, IndexOptions{})
	assert.ErrorIs(t, err, types.ErrIndexingInProgress)

	_, err = env.idx.ClearProject(context.Background(), dir, true, false)
	assert.ErrorIs(t, err, types.ErrIndexingInProgress)

	_, err = env.idx.ClearProject(context.Background(), ".", true, false)
	assert.ErrorIs(t, err, types.ErrIndexingInProgress, "clearing every project is refused while one is indexing")

	// Another project is not blocked
	other := t.TempDir()
	_, err = env.idx.IndexProject(context.Background(), other, IndexOptions{})
	require.NoError(t, err)

	close(emb.block)
	require.NoError(t, <-done)
}

func TestIndexProject_Timeout(t *testing.T) {
	emb := newMockEmbedder()
	emb.block = make(chan struct{})
	emb.started = make(chan struct{})
	env := setupIndexer(t, emb, Config{})
	dir := createTwoFileProject(t)

	result, err := env.idx.IndexProject(context.Background(), dir, IndexOptions{Timeout: 50 * time.Millisecond})
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindTimeout))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var runErr *types.RunError
	require.True(t, errors.As(err, &runErr))
	assert.Equal(t, string(StateEmbedding), runErr.State)
	assert.True(t, runErr.Partial())

	require.NotNil(t, result)
	assert.Equal(t, types.OutcomePartial, result.Outcome)
	assert.Equal(t, 2, result.Statistics.TotalFiles)
	assert.Positive(t, result.Statistics.TotalElements)
	assert.Zero(t, vectorCount(t, env))
}

func TestIndexProject_ConfigurationErrors(t *testing.T) {
	t.Run("missing root", func(t *testing.T) {
		env := setupIndexer(t, newMockEmbedder(), Config{})
		result, err := env.idx.IndexProject(context.Background(), filepath.Join(t.TempDir(), "missing"), IndexOptions{})
		assert.Nil(t, result)
		assert.True(t, types.IsKind(err, types.KindConfiguration))
		assert.ErrorIs(t, err, types.ErrProjectRoot)
	})

	t.Run("bad root leaves existing data", func(t *testing.T) {
		env := setupIndexer(t, newMockEmbedder(), Config{})
		dir := createTwoFileProject(t)
		ctx := context.Background()
		indexed, err := env.idx.IndexProject(ctx, dir, IndexOptions{})
		require.NoError(t, err)

		// A file is not a project root
		_, err = env.idx.IndexProject(ctx, filepath.Join(dir, "a.py"), IndexOptions{})
		assert.True(t, types.IsKind(err, types.KindConfiguration))

		stats, err := env.store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, indexed.Statistics.TotalElements, stats.TotalElements)
	})

	t.Run("embedder init failure", func(t *testing.T) {
		store, err := storage.NewSQLiteStorage(":memory:")
		require.NoError(t, err)
		defer store.Close()
		vectors, err := vectorstore.Open(":memory:")
		require.NoError(t, err)
		defer vectors.Close()

		lazy := embedder.NewLazy(func() (embedder.Embedder, error) { return nil, errors.New("no key") })
		idx := New(store, vectors, nil, lazy, Config{})

		_, err = idx.IndexProject(context.Background(), t.TempDir(), IndexOptions{})
		assert.True(t, types.IsKind(err, types.KindConfiguration))
		assert.ErrorContains(t, err, "no key")
	})
}

func TestIndexProject_EmbeddingFailure(t *testing.T) {
	emb := newMockEmbedder()
	emb.batchErr = fmt.Errorf("%w: quota exceeded", embedder.ErrProviderFailed)
	env := setupIndexer(t, emb, Config{})

	result, err := env.idx.IndexProject(context.Background(), createTwoFileProject(t), IndexOptions{})
	assert.True(t, types.IsKind(err, types.KindPartial))
	assert.ErrorIs(t, err, embedder.ErrProviderFailed)
	require.NotNil(t, result)
	assert.Equal(t, types.OutcomePartial, result.Outcome)
}

func TestIndexProject_CallsIndexChangedHooks(t *testing.T) {
	env := setupIndexer(t, newMockEmbedder(), Config{})
	s := searcher.NewSearcher(env.store, env.vectors, searcher.Options{})
	env.idx.OnIndexChanged(s.InvalidateCache)

	calls := 0
	env.idx.OnIndexChanged(func() { calls++ })

	_, err := env.idx.IndexProject(context.Background(), createTwoFileProject(t), IndexOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	_, err = env.idx.ClearProject(context.Background(), ".", true, false)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDocument(t *testing.T) {
	e := types.Element{
		ID:        "function_a.py_helper_1",
		Kind:      types.KindFunction,
		Name:      "helper",
		Content:   "def helper(): pass",
		FilePath:  "a.py",
		Location:  types.Location{LineStart: 1, LineEnd: 2},
		Metadata:  types.Metadata{Language: "python"},
		Embedding: []float32{1, 2},
	}

	doc := Document("/proj", &e)
	assert.Equal(t, e.ID, doc.ID)
	assert.Equal(t, "/proj", doc.Project)
	assert.Equal(t, e.Content, doc.Text)
	assert.Equal(t, map[string]string{
		"name":       "helper",
		"type":       "function",
		"file_path":  "a.py",
		"line_start": "1",
		"line_end":   "2",
		"language":   "python",
	}, doc.Metadata)
}

// TestIndexLock_ConcurrentAcquisition verifies that exactly one of many
// goroutines acquires the lock
func TestIndexLock_ConcurrentAcquisition(t *testing.T) {
	var lock IndexLock
	const numGoroutines = 100

	acquired := make([]bool, numGoroutines)
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(idx int) {
			defer wg.Done()
			acquired[idx] = lock.TryAcquire()
		}(i)
	}
	wg.Wait()

	successCount := 0
	for _, success := range acquired {
		if success {
			successCount++
		}
	}
	assert.Equal(t, 1, successCount, "Exactly one goroutine should acquire the lock")

	lock.Release()
	assert.True(t, lock.TryAcquire(), "Lock should be available after Release")
}

func TestProjectLocks(t *testing.T) {
	var locks projectLocks

	a, ok := locks.tryAcquire("/a")
	require.True(t, ok)
	_, ok = locks.tryAcquire("/a")
	assert.False(t, ok, "same project is exclusive")

	b, ok := locks.tryAcquire("/b")
	require.True(t, ok, "other projects are independent")
	assert.NotSame(t, a, b)
	b.Release()

	_, ok = locks.tryAcquire(storage.AllProjects)
	assert.False(t, ok, "all projects is refused while a project is locked")

	a.Release()
	all, ok := locks.tryAcquire(storage.AllProjects)
	require.True(t, ok)

	_, ok = locks.tryAcquire("/a")
	assert.False(t, ok, "no project may start while all projects are locked")

	all.Release()
	a, ok = locks.tryAcquire("/a")
	require.True(t, ok)
	a.Release()
}
