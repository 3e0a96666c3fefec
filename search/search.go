// Package search answers semantic queries over the indexed documentation.
package search

import (
	"context"
	"strings"

	"github.com/fwojciec/simpledocs"
)

var _ simpledocs.SearchService = (*Service)(nil)

// Service embeds queries and delegates ranking to the document store.
type Service struct {
	embedder simpledocs.Embedder
	store    simpledocs.DocumentStore
}

// NewService creates a new Service.
func NewService(embedder simpledocs.Embedder, store simpledocs.DocumentStore) *Service {
	return &Service{embedder: embedder, store: store}
}

// Search returns the documents closest to query. A zero MinScore selects
// DefaultMinScore; the limit defaults to DefaultSearchLimit and is capped at
// MaxSearchLimit.
func (s *Service) Search(ctx context.Context, query string, opts simpledocs.SearchOptions) ([]*simpledocs.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, simpledocs.Errorf(simpledocs.EINVALID, "search query required")
	}
	if opts.MinScore == 0 {
		opts.MinScore = simpledocs.DefaultMinScore
	}
	opts = opts.Normalize()

	vecs, err := s.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, simpledocs.Errorf(simpledocs.EEMBED, "query could not be embedded")
	}

	results, err := s.store.SimilaritySearch(ctx, vecs[0], opts)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []*simpledocs.SearchResult{}
	}
	return results, nil
}

// Sources lists per-domain statistics of the indexed documentation.
func (s *Service) Sources(ctx context.Context) ([]*simpledocs.SourceStats, error) {
	return s.store.Stats(ctx)
}
