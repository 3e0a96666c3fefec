// Package openai implements simpledocs.Embedder against the OpenAI
// /v1/embeddings API. Any server speaking the same format (vLLM, Ollama,
// LocalAI) works through Endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fwojciec/simpledocs"
)

// Defaults of the hosted OpenAI service.
const (
	DefaultEndpoint = "https://api.openai.com"
	DefaultModel    = "text-embedding-ada-002"
	DefaultTimeout  = 60 * time.Second
)

var _ simpledocs.Embedder = (*Embedder)(nil)

// Embedder calls the embeddings endpoint once per batch.
type Embedder struct {
	Endpoint string
	Model    string
	APIKey   string

	client *http.Client
}

// NewEmbedder returns an Embedder for the hosted service. An empty model
// selects DefaultModel.
func NewEmbedder(apiKey, model string) *Embedder {
	if model == "" {
		model = DefaultModel
	}
	return &Embedder{
		Endpoint: DefaultEndpoint,
		Model:    model,
		APIKey:   apiKey,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// EmbedBatch cleans every text and embeds the non-empty ones in one call.
// Texts that are empty after cleaning get a nil entry without being sent.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var input []string
	var positions []int
	for i, text := range texts {
		cleaned := simpledocs.CleanEmbeddingInput(text)
		if cleaned == "" {
			continue
		}
		input = append(input, cleaned)
		positions = append(positions, i)
	}
	if len(input) == 0 {
		return out, nil
	}

	vecs, err := e.call(ctx, input)
	if err != nil {
		return nil, err
	}
	for j, vec := range vecs {
		out[positions[j]] = vec
	}
	return out, nil
}

func (e *Embedder) call(ctx context.Context, input []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.Model, Input: input})
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(e.Endpoint, "/") + "/v1/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, simpledocs.Errorf(simpledocs.EINVALID, "build embeddings request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.APIKey)
	}

	client := e.client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, simpledocs.Errorf(simpledocs.EUNAVAILABLE, "POST %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, simpledocs.Errorf(simpledocs.EEMBED, "decode embeddings response: %v", err)
	}
	if len(result.Data) != len(input) {
		return nil, simpledocs.Errorf(simpledocs.EEMBED, "got %d embeddings for %d inputs", len(result.Data), len(input))
	}

	// The service may return entries out of order; index is authoritative.
	vecs := make([][]float32, len(input))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, simpledocs.Errorf(simpledocs.EEMBED, "embedding index %d out of range", d.Index)
		}
		if len(d.Embedding) > 0 {
			vecs[d.Index] = d.Embedding
		}
	}
	return vecs, nil
}

// statusError maps rate limits and server errors to EUNAVAILABLE and every
// other rejection to EINVALID.
func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(raw))
	var er errorResponse
	if json.Unmarshal(raw, &er) == nil && er.Error.Message != "" {
		msg = er.Error.Message
	}

	code := simpledocs.EINVALID
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		code = simpledocs.EUNAVAILABLE
	}
	return simpledocs.Errorf(code, "embeddings request failed with HTTP %d: %s", resp.StatusCode, msg)
}
