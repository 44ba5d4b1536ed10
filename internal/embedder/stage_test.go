package embedder

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RealFaceCode/ContextBrain/pkg/types"
)

func makeElements(n int) []types.Element {
	out := make([]types.Element, n)
	for i := range out {
		out[i] = element(types.KindFunction, fmt.Sprintf("fn%d", i), "m.py", fmt.Sprintf("def fn%d(x):\n    return x", i))
	}
	return out
}

func TestEmbedElements(t *testing.T) {
	elements := makeElements(70)
	var progress []int

	err := EmbedElements(context.Background(), NewLocalProvider(), elements, 32, func(done, total int) {
		assert.Equal(t, 70, total)
		progress = append(progress, done)
	})
	require.NoError(t, err)

	assert.Equal(t, []int{32, 64, 70}, progress)
	for _, e := range elements {
		assert.Len(t, e.Embedding, LocalDimension, e.Name)
	}
}

func TestEmbedElements_UsesProviderBatches(t *testing.T) {
	inner := &countingEmbedder{dim: 3}
	elements := makeElements(5)

	require.NoError(t, EmbedElements(context.Background(), inner, elements, 0, nil))
	assert.Len(t, inner.seen(), 5)
	assert.Equal(t, Text(&elements[0]), inner.seen()[0])
}

func TestEmbedElements_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	elements := makeElements(3)
	err := EmbedElements(ctx, NewLocalProvider(), elements, 2, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, elements[0].Embedding)
}

func TestEmbedElements_Empty(t *testing.T) {
	assert.NoError(t, EmbedElements(context.Background(), NewLocalProvider(), nil, 8, nil))
}
