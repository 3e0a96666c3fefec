package mock

import (
	"context"

	"github.com/fwojciec/simpledocs"
)

var (
	_ simpledocs.DocumentStore = (*DocumentStore)(nil)
	_ simpledocs.UnitPruner    = (*PruningDocumentStore)(nil)
	_ simpledocs.SearchService = (*SearchService)(nil)
)

// DocumentStore is a mock implementation of simpledocs.DocumentStore.
type DocumentStore struct {
	UpsertFn            func(ctx context.Context, unit *simpledocs.DocumentUnit, embedding []float32) (simpledocs.UpsertResult, error)
	FindDocumentByURLFn func(ctx context.Context, url string) (*simpledocs.StoredDocument, error)
	SimilaritySearchFn  func(ctx context.Context, embedding []float32, opts simpledocs.SearchOptions) ([]*simpledocs.SearchResult, error)
	StatsFn             func(ctx context.Context) ([]*simpledocs.SourceStats, error)
}

func (s *DocumentStore) Upsert(ctx context.Context, unit *simpledocs.DocumentUnit, embedding []float32) (simpledocs.UpsertResult, error) {
	return s.UpsertFn(ctx, unit, embedding)
}

func (s *DocumentStore) FindDocumentByURL(ctx context.Context, url string) (*simpledocs.StoredDocument, error) {
	return s.FindDocumentByURLFn(ctx, url)
}

func (s *DocumentStore) SimilaritySearch(ctx context.Context, embedding []float32, opts simpledocs.SearchOptions) ([]*simpledocs.SearchResult, error) {
	return s.SimilaritySearchFn(ctx, embedding, opts)
}

func (s *DocumentStore) Stats(ctx context.Context) ([]*simpledocs.SourceStats, error) {
	return s.StatsFn(ctx)
}

// PruningDocumentStore is a mock DocumentStore that also implements
// simpledocs.UnitPruner.
type PruningDocumentStore struct {
	DocumentStore
	PruneUnitsFn func(ctx context.Context, page string, keep []string) (int, error)
}

func (s *PruningDocumentStore) PruneUnits(ctx context.Context, page string, keep []string) (int, error) {
	return s.PruneUnitsFn(ctx, page, keep)
}

// SearchService is a mock implementation of simpledocs.SearchService.
type SearchService struct {
	SearchFn  func(ctx context.Context, query string, opts simpledocs.SearchOptions) ([]*simpledocs.SearchResult, error)
	SourcesFn func(ctx context.Context) ([]*simpledocs.SourceStats, error)
}

func (s *SearchService) Search(ctx context.Context, query string, opts simpledocs.SearchOptions) ([]*simpledocs.SearchResult, error) {
	return s.SearchFn(ctx, query, opts)
}

func (s *SearchService) Sources(ctx context.Context) ([]*simpledocs.SourceStats, error) {
	return s.SourcesFn(ctx)
}
