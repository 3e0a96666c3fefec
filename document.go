package simpledocs

import (
	"context"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
)

// DocumentUnit is one embeddable slice of a page.
// A page that fits the token budget yields a single unit whose URL is the
// page URL; larger pages yield several units whose URLs carry a chunk
// suffix while OriginalURL keeps the page identity.
type DocumentUnit struct {
	URL          string `json:"url"`
	OriginalURL  string `json:"originalUrl"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	PreparedText string `json:"preparedText"`
	ParentURL    string `json:"parentUrl,omitempty"`
	ChunkIndex   int    `json:"chunkIndex"`
	TotalChunks  int    `json:"totalChunks"`
}

// Validate returns an error if the unit contains invalid fields.
func (u *DocumentUnit) Validate() error {
	if u.URL == "" {
		return Errorf(EINVALID, "document unit URL required")
	}
	if u.OriginalURL == "" {
		return Errorf(EINVALID, "document unit original URL required")
	}
	if u.TotalChunks < 1 || u.ChunkIndex < 0 || u.ChunkIndex >= u.TotalChunks {
		return Errorf(EINVALID, "chunk index %d out of range for %d chunks", u.ChunkIndex, u.TotalChunks)
	}
	return nil
}

// StoredDocument is a persisted document keyed by URL.
type StoredDocument struct {
	ID          string      `json:"id"`
	URL         string      `json:"url"`
	OriginalURL string      `json:"originalUrl"`
	Title       string      `json:"title"`
	Content     string      `json:"content"`
	ContentHash string      `json:"contentHash"`
	Embedding   []float32   `json:"embedding,omitempty"`
	ParentURL   string      `json:"parentUrl,omitempty"`
	Metadata    DocMetadata `json:"metadata"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// UpsertResult classifies the outcome of a store write.
type UpsertResult struct {
	Success   bool `json:"success"`
	IsNew     bool `json:"isNew"`
	IsUpdated bool `json:"isUpdated"`
}

// Unchanged reports whether the write was skipped because the stored
// content was already identical.
func (r UpsertResult) Unchanged() bool {
	return r.Success && !r.IsNew && !r.IsUpdated
}

// DocumentStore persists documents and answers similarity queries.
type DocumentStore interface {
	// Upsert writes the unit with its embedding unless the stored content
	// for the same URL is byte-equal, in which case the write is skipped.
	// Upserts for the same URL are serialized.
	// Returns ESTORAGE if the write fails.
	Upsert(ctx context.Context, unit *DocumentUnit, embedding []float32) (UpsertResult, error)

	// FindDocumentByURL retrieves a document by URL.
	// Returns ENOTFOUND if the document does not exist.
	FindDocumentByURL(ctx context.Context, url string) (*StoredDocument, error)

	// SimilaritySearch returns documents ordered by descending similarity
	// to the embedding, keeping only scores at or above opts.MinScore.
	SimilaritySearch(ctx context.Context, embedding []float32, opts SearchOptions) ([]*SearchResult, error)

	// Stats aggregates document counts per source domain.
	Stats(ctx context.Context) ([]*SourceStats, error)
}

// UnitPruner is implemented by stores that can drop the units a page no
// longer produces, such as the page-URL record of a page that grew past one
// chunk.
type UnitPruner interface {
	// PruneUnits deletes the documents of page whose URL is not in keep
	// and returns how many were deleted.
	PruneUnits(ctx context.Context, page string, keep []string) (int, error)
}

// Search defaults.
const (
	DefaultSearchLimit = 5
	MaxSearchLimit     = 20
	DefaultMinScore    = 0.5
)

// SearchOptions configures search behavior.
type SearchOptions struct {
	// Filter results to a single source domain.
	Domain string `json:"domain,omitempty"`

	// Maximum number of results to return.
	Limit int `json:"limit,omitempty"`

	// Minimum similarity score (0-1).
	MinScore float64 `json:"minScore,omitempty"`
}

// Normalize applies defaults and clamps out-of-range values.
func (o SearchOptions) Normalize() SearchOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultSearchLimit
	}
	if o.Limit > MaxSearchLimit {
		o.Limit = MaxSearchLimit
	}
	if o.MinScore < 0 {
		o.MinScore = 0
	}
	if o.MinScore > 1 {
		o.MinScore = 1
	}
	return o
}

// SearchResult represents a search match. Chunks of the same page are
// returned as separate results.
type SearchResult struct {
	Document *StoredDocument `json:"document"`
	Score    float64         `json:"score"`
}

// SourceStats summarizes the stored documents of one domain.
type SourceStats struct {
	Domain      string    `json:"domain"`
	Count       int       `json:"count"`
	DocTypes    []string  `json:"docTypes"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// SearchService provides semantic search over stored documents.
type SearchService interface {
	// Search embeds the query and returns the closest documents.
	Search(ctx context.Context, query string, opts SearchOptions) ([]*SearchResult, error)

	// Sources lists per-domain statistics of the indexed documentation.
	Sources(ctx context.Context) ([]*SourceStats, error)
}

// ContentHash returns the hex xxhash of document content.
func ContentHash(content string) string {
	return fmt.Sprintf("%x", xxhash.Sum64String(content))
}
