// Package vectorstore is the semantic half of the index: a persistent
// collection of element vectors with cosine nearest-neighbour queries.
//
// Documents live in a single SQLite table keyed by (project, id), opened
// through the same driver selection as the structured store. Vectors are stored as little-endian
// float32 blobs and compared in Go, so every build mode supports search.
//
//	coll, err := vectorstore.Open(filepath.Join(dataDir, "vectors", vectorstore.FileName),
//	    vectorstore.WithEmbedFunc(embed))
//	if err != nil {
//	    return err
//	}
//	defer coll.Close()
//
//	hits, err := coll.Query(ctx, "parse configuration file", 10)
//
// A collection has a single dimension, fixed by its first document. Upserts
// and queries with a different vector length fail with ErrDimensionMismatch.
package vectorstore
