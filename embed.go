package simpledocs

import (
	"context"
	"strings"
)

// EmbeddingDimension is the length of every stored embedding vector.
const EmbeddingDimension = 1536

// Embedder turns texts into embedding vectors.
type Embedder interface {
	// EmbedBatch returns one entry per input text, in input order.
	// A nil entry means the service rejected that input.
	// Transient failures return EUNAVAILABLE; malformed input returns EINVALID.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// CleanEmbeddingInput replaces newlines with spaces and trims the text.
// An empty result must not be sent to the embedding service.
func CleanEmbeddingInput(text string) string {
	text = strings.ReplaceAll(text, "\r\n", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	return strings.TrimSpace(text)
}
