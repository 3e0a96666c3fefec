package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/fwojciec/simpledocs"
	"github.com/google/uuid"
)

// Compile-time interface verification.
var (
	_ simpledocs.DocumentStore = (*DocumentStore)(nil)
	_ simpledocs.UnitPruner    = (*DocumentStore)(nil)
)

const documentColumns = `id, url, original_url, title, content, content_hash, embedding,
	parent_url, source_domain, doc_type, doc_section, created_at, updated_at`

// DocumentStore implements simpledocs.DocumentStore using SQLite.
// Similarity is computed in process over the stored vectors.
type DocumentStore struct {
	db    *DB
	locks *stripedMutex
	now   func() time.Time
}

// NewDocumentStore creates a new DocumentStore.
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db, locks: &stripedMutex{}, now: time.Now}
}

// Upsert writes the unit unless the stored content for its URL is
// identical. Upserts for the same URL are serialized.
func (s *DocumentStore) Upsert(ctx context.Context, unit *simpledocs.DocumentUnit, embedding []float32) (simpledocs.UpsertResult, error) {
	if err := unit.Validate(); err != nil {
		return simpledocs.UpsertResult{}, err
	}
	if len(embedding) == 0 {
		return simpledocs.UpsertResult{}, simpledocs.Errorf(simpledocs.EINVALID, "embedding required for %s", unit.URL)
	}

	unlock := s.locks.Lock(unit.URL)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return simpledocs.UpsertResult{}, simpledocs.Errorf(simpledocs.ESTORAGE, "begin upsert of %s: %v", unit.URL, err)
	}
	defer func() { _ = tx.Rollback() }()

	var id, content string
	err = tx.QueryRowContext(ctx, `SELECT id, content FROM documents WHERE url = ?`, unit.URL).Scan(&id, &content)
	exists := true
	if errors.Is(err, sql.ErrNoRows) {
		exists = false
	} else if err != nil {
		return simpledocs.UpsertResult{}, simpledocs.Errorf(simpledocs.ESTORAGE, "look up %s: %v", unit.URL, err)
	}

	if exists && content == unit.Content {
		return simpledocs.UpsertResult{Success: true}, nil
	}

	md := simpledocs.ExtractMetadata(unit.OriginalURL)
	now := formatTime(s.now())
	hash := simpledocs.ContentHash(unit.Content)

	if exists {
		_, err = tx.ExecContext(ctx, `
			UPDATE documents
			SET original_url = ?, title = ?, content = ?, content_hash = ?, embedding = ?,
				parent_url = ?, source_domain = ?, doc_type = ?, doc_section = ?, updated_at = ?
			WHERE id = ?
		`, unit.OriginalURL, unit.Title, unit.Content, hash, encodeVector(embedding),
			unit.ParentURL, md.Domain, md.DocType, md.DocSection, now, id)
	} else {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO documents (`+documentColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, uuid.New().String(), unit.URL, unit.OriginalURL, unit.Title, unit.Content, hash,
			encodeVector(embedding), unit.ParentURL, md.Domain, md.DocType, md.DocSection, now, now)
	}
	if err != nil {
		return simpledocs.UpsertResult{}, simpledocs.Errorf(simpledocs.ESTORAGE, "write %s: %v", unit.URL, err)
	}
	if err := tx.Commit(); err != nil {
		return simpledocs.UpsertResult{}, simpledocs.Errorf(simpledocs.ESTORAGE, "commit %s: %v", unit.URL, err)
	}

	return simpledocs.UpsertResult{Success: true, IsNew: !exists, IsUpdated: exists}, nil
}

// PruneUnits deletes the documents of page whose URL is not in keep.
func (s *DocumentStore) PruneUnits(ctx context.Context, page string, keep []string) (int, error) {
	if len(keep) == 0 {
		return 0, simpledocs.Errorf(simpledocs.EINVALID, "prune of %s must keep at least one unit", page)
	}

	args := make([]any, 0, len(keep)+1)
	args = append(args, page)
	for _, u := range keep {
		args = append(args, u)
	}
	query := `DELETE FROM documents WHERE original_url = ? AND url NOT IN (?` + strings.Repeat(", ?", len(keep)-1) + `)`

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, simpledocs.Errorf(simpledocs.ESTORAGE, "begin prune of %s: %v", page, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, simpledocs.Errorf(simpledocs.ESTORAGE, "prune %s: %v", page, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, simpledocs.Errorf(simpledocs.ESTORAGE, "prune %s: %v", page, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, simpledocs.Errorf(simpledocs.ESTORAGE, "commit prune of %s: %v", page, err)
	}
	return int(n), nil
}

// FindDocumentByURL retrieves a document by URL.
func (s *DocumentStore) FindDocumentByURL(ctx context.Context, url string) (*simpledocs.StoredDocument, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE url = ?`, url)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, simpledocs.Errorf(simpledocs.ENOTFOUND, "document %q not found", url)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// SimilaritySearch ranks stored documents by cosine similarity to the
// embedding. Documents whose vectors have a different length are skipped.
func (s *DocumentStore) SimilaritySearch(ctx context.Context, embedding []float32, opts simpledocs.SearchOptions) ([]*simpledocs.SearchResult, error) {
	if len(embedding) == 0 {
		return nil, simpledocs.Errorf(simpledocs.EINVALID, "query embedding required")
	}
	opts = opts.Normalize()

	query := `SELECT ` + documentColumns + ` FROM documents`
	var args []any
	if opts.Domain != "" {
		query += ` WHERE source_domain = ?`
		args = append(args, opts.Domain)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*simpledocs.SearchResult
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		if len(doc.Embedding) != len(embedding) {
			continue
		}
		score := cosine(embedding, doc.Embedding)
		if score < opts.MinScore {
			continue
		}
		results = append(results, &simpledocs.SearchResult{Document: doc, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.URL < results[j].Document.URL
	})
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// Stats aggregates document counts per source domain, ordered by domain.
func (s *DocumentStore) Stats(ctx context.Context) ([]*simpledocs.SourceStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_domain, COUNT(*), GROUP_CONCAT(DISTINCT doc_type), MAX(updated_at)
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
		var docTypes, lastUpdated string
		if err := rows.Scan(&st.Domain, &st.Count, &docTypes, &lastUpdated); err != nil {
			return nil, err
		}
		st.DocTypes = splitDocTypes(docTypes)
		if st.LastUpdated, err = parseTime(lastUpdated, "updated_at"); err != nil {
			return nil, err
		}
		stats = append(stats, &st)
	}
	return stats, rows.Err()
}

func splitDocTypes(s string) []string {
	types := []string{}
	for _, t := range strings.Split(s, ",") {
		if t != "" {
			types = append(types, t)
		}
	}
	sort.Strings(types)
	return types
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*simpledocs.StoredDocument, error) {
	var doc simpledocs.StoredDocument
	var embedding []byte
	var createdAt, updatedAt string

	if err := row.Scan(&doc.ID, &doc.URL, &doc.OriginalURL, &doc.Title, &doc.Content, &doc.ContentHash,
		&embedding, &doc.ParentURL, &doc.Metadata.Domain, &doc.Metadata.DocType, &doc.Metadata.DocSection,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	doc.Embedding = decodeVector(embedding)

	var err error
	if doc.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if doc.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return nil, err
	}
	return &doc, nil
}
