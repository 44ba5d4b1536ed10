// Package searcher answers queries against an index built by the indexer.
//
// Semantic search embeds the query, asks the vector collection for its
// nearest documents and keeps the hits scoring at least the threshold.
// Responses are cached in an LRU keyed by query, limit and threshold; the
// cache is purged whenever the project is re-indexed.
//
//	s := searcher.NewSearcher(store, collection, searcher.Options{})
//
//	resp, err := s.Search(ctx, searcher.SearchRequest{
//	    Query:     "load configuration from disk",
//	    Limit:     10,
//	    Threshold: 0.3,
//	    UseCache:  true,
//	})
//	for _, r := range resp.Results {
//	    fmt.Printf("%.2f %s %s:%d\n", r.Score, r.Element.Name,
//	        r.Element.FilePath, r.Element.Location.LineStart)
//	}
//
// Structural search, dependency analysis, file context and the
// architecture overview read the structured store only. They are best
// effort: imports are matched by name, not resolved, and a file that is not
// indexed yields an empty answer rather than an error.
package searcher
