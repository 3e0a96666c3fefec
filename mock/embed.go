package mock

import (
	"context"

	"github.com/fwojciec/simpledocs"
)

var (
	_ simpledocs.Embedder  = (*Embedder)(nil)
	_ simpledocs.Tokenizer = (*Tokenizer)(nil)
)

// Embedder is a mock implementation of simpledocs.Embedder.
type Embedder struct {
	EmbedBatchFn func(ctx context.Context, texts []string) ([][]float32, error)
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return e.EmbedBatchFn(ctx, texts)
}

// Tokenizer is a mock implementation of simpledocs.Tokenizer.
type Tokenizer struct {
	EncodeFn func(text string) []int
	DecodeFn func(tokens []int) string
}

func (t *Tokenizer) Encode(text string) []int {
	return t.EncodeFn(text)
}

func (t *Tokenizer) Decode(tokens []int) string {
	return t.DecodeFn(tokens)
}
