// Package watcher re-indexes a project when its files change.
//
// Every directory under the project root that the extraction coordinator
// does not exclude is watched with fsnotify. Changes to supported files,
// removals, renames and new directories reset a debounce timer; when the
// timer fires the whole project is re-indexed through a ReindexFunc.
//
//	w, err := watcher.New(root, coordinator, 2*time.Second, func(ctx context.Context) error {
//	    _, err := idx.IndexProject(ctx, root, indexer.IndexOptions{})
//	    return err
//	}, logger)
//	if err != nil {
//	    return err
//	}
//	go w.Run(ctx)
package watcher
