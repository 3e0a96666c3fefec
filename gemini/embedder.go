// Package gemini implements simpledocs.Embedder using the Gemini embedding
// models.
package gemini

import (
	"context"
	"errors"
	"net/http"

	"github.com/fwojciec/simpledocs"
	"google.golang.org/genai"
)

// DefaultModel produces vectors that can be truncated to the store's
// dimension.
const DefaultModel = "gemini-embedding-001"

// taskType tunes embeddings of indexed documents for retrieval.
const taskType = "RETRIEVAL_DOCUMENT"

var _ simpledocs.Embedder = (*Embedder)(nil)

// Embedder implements simpledocs.Embedder using Google Gemini.
type Embedder struct {
	client    *genai.Client
	model     string
	dimension int32
}

// NewEmbedder creates a new Embedder returning vectors of the given
// dimension.
func NewEmbedder(client *genai.Client, model string, dimension int) *Embedder {
	if model == "" {
		model = DefaultModel
	}
	return &Embedder{client: client, model: model, dimension: int32(dimension)}
}

// EmbedBatch embeds all non-empty texts in one request. Texts that are
// empty after cleaning get a nil entry without being sent.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var contents []*genai.Content
	var positions []int
	for i, text := range texts {
		cleaned := simpledocs.CleanEmbeddingInput(text)
		if cleaned == "" {
			continue
		}
		contents = append(contents, genai.NewContentFromText(cleaned, genai.RoleUser))
		positions = append(positions, i)
	}
	if len(contents) == 0 {
		return out, nil
	}

	config := &genai.EmbedContentConfig{TaskType: taskType}
	if e.dimension > 0 {
		config.OutputDimensionality = &e.dimension
	}
	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, config)
	if err != nil {
		return nil, apiError(err)
	}
	if result == nil || len(result.Embeddings) != len(contents) {
		got := 0
		if result != nil {
			got = len(result.Embeddings)
		}
		return nil, simpledocs.Errorf(simpledocs.EEMBED, "got %d embeddings for %d inputs", got, len(contents))
	}

	for j, emb := range result.Embeddings {
		if emb != nil && len(emb.Values) > 0 {
			out[positions[j]] = emb.Values
		}
	}
	return out, nil
}

// apiError maps rate limits and server errors to EUNAVAILABLE and other
// API rejections to EINVALID.
func apiError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	code := 0
	msg := err.Error()
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code, msg = apiErr.Code, apiErr.Message
	case errors.As(err, &apiErrPtr):
		code, msg = apiErrPtr.Code, apiErrPtr.Message
	}

	switch {
	case code == 0, code == http.StatusTooManyRequests, code >= 500:
		return simpledocs.Errorf(simpledocs.EUNAVAILABLE, "gemini embed: %s", msg)
	default:
		return simpledocs.Errorf(simpledocs.EINVALID, "gemini embed: %s", msg)
	}
}
