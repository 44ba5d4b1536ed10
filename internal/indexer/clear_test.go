package indexer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RealFaceCode/ContextBrain/internal/embedder"
	"github.com/RealFaceCode/ContextBrain/internal/extractor"
	"github.com/RealFaceCode/ContextBrain/internal/storage"
	"github.com/RealFaceCode/ContextBrain/internal/vectorstore"
)

func TestClearProject(t *testing.T) {
	env := setupIndexer(t, newMockEmbedder(), Config{})
	ctx := context.Background()

	one := createTwoFileProject(t)
	two := t.TempDir()
	createTestFile(t, two, "c.py", "class Cache:\n    pass\n")
	createTestFile(t, two, "docs/README.md", "# Title\n\nSome text.\n")
	first, err := env.idx.IndexProject(ctx, one, IndexOptions{})
	require.NoError(t, err)
	second, err := env.idx.IndexProject(ctx, two, IndexOptions{})
	require.NoError(t, err)
	total := first.Statistics.TotalElements + second.Statistics.TotalElements

	t.Run("not confirmed", func(t *testing.T) {
		stats, err := env.idx.ClearProject(ctx, one, false, false)
		assert.ErrorIs(t, err, ErrCleanupNotConfirmed)
		require.NotNil(t, stats)
		assert.Zero(t, stats.StructuredElements)
		assert.Equal(t, total, vectorCount(t, env))
	})

	t.Run("dry run counts without deleting", func(t *testing.T) {
		stats, err := env.idx.ClearProject(ctx, one, false, true)
		require.NoError(t, err)
		assert.True(t, stats.DryRun)
		assert.Equal(t, ActionPreview, stats.Action)
		assert.Equal(t, first.Statistics.TotalElements, stats.StructuredElements)
		assert.Equal(t, first.Statistics.TotalElements, stats.VectorDocuments)
		assert.Equal(t, total, vectorCount(t, env))
	})

	t.Run("confirmed clears one project", func(t *testing.T) {
		stats, err := env.idx.ClearProject(ctx, one, true, false)
		require.NoError(t, err)
		assert.Equal(t, ActionCompleted, stats.Action)
		assert.Equal(t, first.ProjectPath, stats.ProjectPath)
		assert.Equal(t, first.Statistics.TotalElements, stats.StructuredElements)
		assert.Equal(t, first.Statistics.TotalElements, stats.VectorDocuments)

		assert.Equal(t, second.Statistics.TotalElements, vectorCount(t, env))
		n, err := env.store.CountProject(ctx, second.ProjectPath)
		require.NoError(t, err)
		assert.Equal(t, second.Statistics.TotalElements, n)
	})

	t.Run("dot clears everything", func(t *testing.T) {
		stats, err := env.idx.ClearProject(ctx, ".", true, false)
		require.NoError(t, err)
		assert.Equal(t, storage.AllProjects, stats.ProjectPath)
		assert.Equal(t, second.Statistics.TotalElements, stats.StructuredElements)
		assert.Zero(t, vectorCount(t, env))

		n, err := env.store.CountProject(ctx, storage.AllProjects)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

// failingDeletes wraps a collection whose batched deletes always fail
type failingDeletes struct {
	*vectorstore.Collection
	resets int
}

func (f *failingDeletes) Delete(context.Context, string, []string) (int, error) {
	return 0, errors.New("delete failed")
}

func (f *failingDeletes) Reset(ctx context.Context) error {
	f.resets++
	return f.Collection.Reset(ctx)
}

func TestClear_FallsBackToReset(t *testing.T) {
	env := setupIndexer(t, newMockEmbedder(), Config{})
	ctx := context.Background()
	dir := createTwoFileProject(t)

	_, err := env.idx.IndexProject(ctx, dir, IndexOptions{})
	require.NoError(t, err)
	require.Positive(t, vectorCount(t, env))

	wrapped := &failingDeletes{Collection: env.vectors}
	lazy := embedder.NewLazy(func() (embedder.Embedder, error) { return env.emb, nil })
	idx := New(env.store, wrapped, extractor.New(nil, extractor.Config{}, nil), lazy, Config{})

	_, err = idx.ClearProject(ctx, dir, true, false)
	require.NoError(t, err)
	assert.Equal(t, 1, wrapped.resets)
	assert.Zero(t, vectorCount(t, env))
}

func TestClearVectors_Batches(t *testing.T) {
	env := setupIndexer(t, newMockEmbedder(), Config{ClearBatchSize: 2})
	ctx := context.Background()

	docs := make([]vectorstore.Document, 0, 5)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		docs = append(docs, vectorstore.Document{ID: id, Project: "/p", Embedding: []float32{1, 0}})
	}
	require.NoError(t, env.vectors.Upsert(ctx, docs))

	n, err := env.idx.clearVectors(ctx, "/p")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Zero(t, vectorCount(t, env))
}
