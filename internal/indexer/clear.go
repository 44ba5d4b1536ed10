package indexer

import (
	"context"
	"errors"
	"fmt"

	"github.com/RealFaceCode/ContextBrain/internal/storage"
	"github.com/RealFaceCode/ContextBrain/pkg/types"
)

// ErrCleanupNotConfirmed is returned by a clear that is neither a dry run nor confirmed
var ErrCleanupNotConfirmed = errors.New("cleanup_not_confirmed")

// Actions reported in ClearStats
const (
	ActionPreview   = "preview_only"
	ActionCompleted = "cleanup_completed"
)

// ClearScope maps a project path to the scope both stores are cleared by.
// "" and "." select every project.
func ClearScope(path string) (string, error) {
	if path == "" || path == "." {
		return storage.AllProjects, nil
	}
	return ProjectKey(path)
}

// ClearProject removes a project's data from both stores. A dry run only
// counts what would be removed; otherwise confirm must be set. Clearing
// takes the project's indexing lock; clearing every project fails with
// ErrIndexingInProgress while any project is being indexed.
func (idx *Indexer) ClearProject(ctx context.Context, path string, confirm, dryRun bool) (*types.ClearStats, error) {
	scope, err := ClearScope(path)
	if err != nil {
		return nil, err
	}

	stats := &types.ClearStats{
		ProjectPath: scope,
		DryRun:      dryRun,
		Confirmed:   confirm,
	}
	if !confirm && !dryRun {
		return stats, ErrCleanupNotConfirmed
	}

	if dryRun {
		stats.StructuredElements, err = idx.store.CountProject(ctx, scope)
		if err != nil {
			return nil, err
		}
		ids, err := idx.vectorIDs(ctx, scope)
		if err != nil {
			return nil, fmt.Errorf("failed to list vector documents: %w", err)
		}
		stats.VectorDocuments = len(ids)
		stats.Action = ActionPreview
		return stats, nil
	}

	lock, ok := idx.locks.tryAcquire(scope)
	if !ok {
		return nil, types.ErrIndexingInProgress
	}
	defer lock.Release()

	stats.StructuredElements, stats.VectorDocuments, err = idx.clear(ctx, scope)
	idx.indexChanged()
	if err != nil {
		return nil, err
	}
	stats.Action = ActionCompleted
	idx.logger.Info("project cleared", "project", scope,
		"elements", stats.StructuredElements, "vectors", stats.VectorDocuments)
	return stats, nil
}
