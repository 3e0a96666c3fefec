// Package tiktoken counts and splits text with the cl100k_base vocabulary
// used by OpenAI embedding models.
package tiktoken

import (
	"sync"

	"github.com/fwojciec/simpledocs"
	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// DefaultEncoding is the vocabulary of text-embedding-ada-002.
const DefaultEncoding = "cl100k_base"

var _ simpledocs.Tokenizer = (*Tokenizer)(nil)

var loaderOnce sync.Once

// Tokenizer implements simpledocs.Tokenizer with a BPE vocabulary that is
// embedded in the binary, so no network access is needed.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTokenizer returns a tokenizer for the named encoding.
func NewTokenizer(encoding string) (*Tokenizer, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, simpledocs.Errorf(simpledocs.EINVALID, "load encoding %s: %v", encoding, err)
	}
	return &Tokenizer{enc: enc}, nil
}

// Encode returns the token IDs of text. Special tokens are encoded as text.
func (t *Tokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

// Decode returns the text of tokens.
func (t *Tokenizer) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

// Count returns the number of tokens in text.
func (t *Tokenizer) Count(text string) int {
	return len(t.Encode(text))
}
