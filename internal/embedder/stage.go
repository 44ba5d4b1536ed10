package embedder

import (
	"context"
	"fmt"

	"github.com/RealFaceCode/ContextBrain/pkg/types"
)

// DefaultStageBatchSize is the number of elements embedded per request
const DefaultStageBatchSize = 32

// EmbedElements derives the embedding text of every element, embeds it in
// batches and stores each vector on its element. progress, when non-nil, is
// called after every batch with the number of elements done so far.
func EmbedElements(ctx context.Context, e Embedder, elements []types.Element, batchSize int, progress func(done, total int)) error {
	if batchSize <= 0 {
		batchSize = DefaultStageBatchSize
	}
	texts := Texts(elements)

	for start := 0; start < len(elements); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+batchSize, len(elements))

		vectors, err := e.GenerateBatch(ctx, texts[start:end])
		if err != nil {
			return fmt.Errorf("embedding batch %d-%d: %w", start, end, err)
		}
		if err := checkVectors(vectors, end-start, e.Dimension()); err != nil {
			return err
		}
		for i, v := range vectors {
			elements[start+i].Embedding = v
		}

		if progress != nil {
			progress(end, len(elements))
		}
	}
	return nil
}
