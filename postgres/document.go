package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/fwojciec/simpledocs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

var (
	_ simpledocs.DocumentStore = (*DocumentStore)(nil)
	_ simpledocs.UnitPruner    = (*DocumentStore)(nil)
)

const documentColumns = `id::text, url, original_url, title, content, content_hash, embedding,
	parent_url, source_domain, doc_type, doc_section, created_at, updated_at`

// DocumentStore implements simpledocs.DocumentStore on Postgres.
type DocumentStore struct {
	pool Pool
	now  func() time.Time
}

// NewDocumentStore returns a store using pool.
func NewDocumentStore(pool Pool) *DocumentStore {
	return &DocumentStore{pool: pool, now: time.Now}
}

// Close releases the underlying pool.
func (s *DocumentStore) Close() {
	s.pool.Close()
}

// Upsert writes the unit unless the stored content for its URL is
// identical. A transaction-scoped advisory lock on the URL serializes
// concurrent upserts of the same document across processes.
func (s *DocumentStore) Upsert(ctx context.Context, unit *simpledocs.DocumentUnit, embedding []float32) (simpledocs.UpsertResult, error) {
	if err := unit.Validate(); err != nil {
		return simpledocs.UpsertResult{}, err
	}
	if len(embedding) == 0 {
		return simpledocs.UpsertResult{}, simpledocs.Errorf(simpledocs.EINVALID, "embedding required for %s", unit.URL)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return simpledocs.UpsertResult{}, simpledocs.Errorf(simpledocs.ESTORAGE, "begin upsert of %s: %v", unit.URL, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, unit.URL); err != nil {
		return simpledocs.UpsertResult{}, simpledocs.Errorf(simpledocs.ESTORAGE, "lock %s: %v", unit.URL, err)
	}

	var id, content string
	err = tx.QueryRow(ctx, `SELECT id::text, content FROM documents WHERE url = $1`, unit.URL).Scan(&id, &content)
	exists := true
	if errors.Is(err, pgx.ErrNoRows) {
		exists = false
	} else if err != nil {
		return simpledocs.UpsertResult{}, simpledocs.Errorf(simpledocs.ESTORAGE, "look up %s: %v", unit.URL, err)
	}

	if exists && content == unit.Content {
		return simpledocs.UpsertResult{Success: true}, nil
	}

	md := simpledocs.ExtractMetadata(unit.OriginalURL)
	now := s.now().UTC()
	hash := simpledocs.ContentHash(unit.Content)
	vec := pgvector.NewVector(embedding)

	if exists {
		_, err = tx.Exec(ctx, `
			UPDATE documents
			SET original_url = $1, title = $2, content = $3, content_hash = $4, embedding = $5::vector,
				parent_url = $6, source_domain = $7, doc_type = $8, doc_section = $9, updated_at = $10
			WHERE url = $11
		`, unit.OriginalURL, unit.Title, unit.Content, hash, vec,
			unit.ParentURL, md.Domain, md.DocType, md.DocSection, now, unit.URL)
	} else {
		_, err = tx.Exec(ctx, `
			INSERT INTO documents (id, url, original_url, title, content, content_hash, embedding,
				parent_url, source_domain, doc_type, doc_section, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7::vector, $8, $9, $10, $11, $12, $12)
		`, uuid.New().String(), unit.URL, unit.OriginalURL, unit.Title, unit.Content, hash, vec,
			unit.ParentURL, md.Domain, md.DocType, md.DocSection, now)
	}
	if err != nil {
		return simpledocs.UpsertResult{}, simpledocs.Errorf(simpledocs.ESTORAGE, "write %s: %v", unit.URL, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return simpledocs.UpsertResult{}, simpledocs.Errorf(simpledocs.ESTORAGE, "commit %s: %v", unit.URL, err)
	}
	committed = true

	return simpledocs.UpsertResult{Success: true, IsNew: !exists, IsUpdated: exists}, nil
}

// PruneUnits deletes the documents of page whose URL is not in keep.
func (s *DocumentStore) PruneUnits(ctx context.Context, page string, keep []string) (int, error) {
	if len(keep) == 0 {
		return 0, simpledocs.Errorf(simpledocs.EINVALID, "prune of %s must keep at least one unit", page)
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE original_url = $1 AND url <> ALL($2)`, page, keep)
	if err != nil {
		return 0, simpledocs.Errorf(simpledocs.ESTORAGE, "prune %s: %v", page, err)
	}
	return int(tag.RowsAffected()), nil
}

// FindDocumentByURL retrieves a document by URL.
func (s *DocumentStore) FindDocumentByURL(ctx context.Context, url string) (*simpledocs.StoredDocument, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE url = $1`, url)
	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, simpledocs.Errorf(simpledocs.ENOTFOUND, "document %q not found", url)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// SimilaritySearch ranks documents by cosine similarity computed by
// pgvector.
func (s *DocumentStore) SimilaritySearch(ctx context.Context, embedding []float32, opts simpledocs.SearchOptions) ([]*simpledocs.SearchResult, error) {
	if len(embedding) == 0 {
		return nil, simpledocs.Errorf(simpledocs.EINVALID, "query embedding required")
	}
	opts = opts.Normalize()

	rows, err := s.pool.Query(ctx, `
		SELECT `+documentColumns+`, 1 - (embedding <=> $1::vector) AS score
		FROM documents
		WHERE ($2 = '' OR source_domain = $2)
			AND 1 - (embedding <=> $1::vector) >= $3
		ORDER BY embedding <=> $1::vector, url
		LIMIT $4
	`, pgvector.NewVector(embedding), opts.Domain, opts.MinScore, opts.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*simpledocs.SearchResult
	for rows.Next() {
		var score float64
		doc, err := scanDocument(rows, &score)
		if err != nil {
			return nil, err
		}
		results = append(results, &simpledocs.SearchResult{Document: doc, Score: score})
	}
	return results, rows.Err()
}

// Stats aggregates document counts per source domain, ordered by domain.
func (s *DocumentStore) Stats(ctx context.Context) ([]*simpledocs.SourceStats, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT source_domain, COUNT(*), array_agg(DISTINCT doc_type ORDER BY doc_type), MAX(updated_at)
		FROM documents
		GROUP BY source_domain
		ORDER BY source_domain
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := []*simpledocs.SourceStats{}
	for rows.Next() {
		var st simpledocs.SourceStats
		var count int64
		if err := rows.Scan(&st.Domain, &count, &st.DocTypes, &st.LastUpdated); err != nil {
			return nil, err
		}
		st.Count = int(count)
		stats = append(stats, &st)
	}
	return stats, rows.Err()
}

func scanDocument(row pgx.Row, extra ...any) (*simpledocs.StoredDocument, error) {
	var doc simpledocs.StoredDocument
	var embedding pgvector.Vector

	dest := []any{&doc.ID, &doc.URL, &doc.OriginalURL, &doc.Title, &doc.Content, &doc.ContentHash,
		&embedding, &doc.ParentURL, &doc.Metadata.Domain, &doc.Metadata.DocType, &doc.Metadata.DocSection,
		&doc.CreatedAt, &doc.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	doc.Embedding = embedding.Slice()
	return &doc, nil
}
