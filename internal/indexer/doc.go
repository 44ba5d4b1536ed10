// Package indexer runs the indexing pipeline that fills the structured and
// vector stores from a project directory.
//
// # Basic Usage
//
//	coord := extractor.New(nil, extractor.Config{ExcludePatterns: cfg.ExcludePatterns}, logger)
//	idx := indexer.New(store, collection, coord, embedder.NewLazyFromConfig(embCfg), indexer.Config{
//	    Timeout: 10 * time.Minute,
//	    Logger:  logger,
//	})
//
//	result, err := idx.IndexProject(ctx, "/path/to/project", indexer.IndexOptions{})
//	fmt.Printf("Indexed %d elements from %d files in %v\n",
//	    result.Statistics.TotalElements, result.Statistics.TotalFiles,
//	    result.Statistics.ProcessingTime)
//
// # Pipeline
//
// A run moves through fixed states:
//
//	clearing -> discovering -> extracting -> embedding ->
//	writing-structured -> writing-vector -> summarizing -> done
//
// and enters error from any of them. Clearing removes the project's previous
// rows and vector documents; it is skipped with IndexOptions.SkipClear. An
// empty extraction goes straight to summarizing. Every element is written in
// a single structured transaction, then upserted into the vector collection
// in batches of 100. Elements that failed to get an embedding are logged and
// left out of the vector store.
//
// The project root and the embedder are checked before anything is cleared,
// so a configuration error never leaves a half-deleted index.
//
// # Errors
//
// A failed run returns a *types.RunError carrying the state it failed in and
// one of the kinds timeout, partial-failure, fatal-configuration or
// store-failure. Writes committed before the failure stay, and the partial
// ProjectIndex is returned alongside the error:
//
//	result, err := idx.IndexProject(ctx, root, indexer.IndexOptions{Timeout: time.Minute})
//	if types.IsKind(err, types.KindTimeout) {
//	    log.Printf("timed out after %d elements", result.Statistics.TotalElements)
//	}
//
// A second run for a project that is already being indexed fails fast with
// types.ErrIndexingInProgress.
//
// # Progress
//
// Observers register with AddSink and receive an Event on every state change
// and after every embedding or vector batch. Sinks must not block:
//
//	events := make(chan indexer.Event, 64)
//	idx.AddSink(indexer.ChannelSink(events))
//
// ChannelSink drops events when the channel is full. A sink that panics is
// recovered and logged.
//
// # Clearing
//
// ClearProject removes one project, or every project for "" and ".". It
// refuses to run unless confirm is set, and with dryRun it only counts:
//
//	preview, _ := idx.ClearProject(ctx, root, false, true)
//	fmt.Printf("would remove %d elements and %d vectors\n",
//	    preview.StructuredElements, preview.VectorDocuments)
package indexer
