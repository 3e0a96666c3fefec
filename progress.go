package simpledocs

import (
	"context"
	"time"
)

// Status is the phase of a crawl run.
type Status string

// Crawl run phases. Complete, Cancelled and Error are terminal. Error
// marks a run that never got past setup.
const (
	StatusIdle      Status = "idle"
	StatusCrawling  Status = "crawling"
	StatusScraping  Status = "scraping"
	StatusEmbedding Status = "embedding"
	StatusComplete  Status = "complete"
	StatusCancelled Status = "cancelled"
	StatusError     Status = "error"
)

// Terminal reports whether no further updates follow this status.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusCancelled || s == StatusError
}

// Default batch sizes of the scrape and embed phases.
const (
	DefaultScrapeBatchSize = 30
	DefaultEmbedBatchSize  = 50
)

// ProgressSnapshot is the full progress record of a crawl.
type ProgressSnapshot struct {
	Status             Status    `json:"status"`
	URLsCrawled        int       `json:"urls_crawled"`
	URLsFullyProcessed int       `json:"urls_fully_processed"`
	URLsDiscovered     int       `json:"urls_discovered"`
	ChunksProcessed    int       `json:"chunks_processed"`
	ChunksTotal        int       `json:"chunks_total"`
	URLsNew            int       `json:"urls_new"`
	URLsUpdated        int       `json:"urls_updated"`
	URLsUnchanged      int       `json:"urls_unchanged"`
	CurrentURL         string    `json:"current_url"`
	URLsList           []string  `json:"urls_list"`
	ScrapeBatchSize    int       `json:"scrape_batch_size"`
	EmbedBatchSize     int       `json:"embed_batch_size"`
	LastUpdated        time.Time `json:"last_updated"`
}

// NewProgressSnapshot returns an idle snapshot with zeroed counters.
func NewProgressSnapshot() ProgressSnapshot {
	return ProgressSnapshot{
		Status:          StatusIdle,
		URLsList:        []string{},
		ScrapeBatchSize: DefaultScrapeBatchSize,
		EmbedBatchSize:  DefaultEmbedBatchSize,
	}
}

// Clone returns a deep copy of the snapshot.
func (s ProgressSnapshot) Clone() ProgressSnapshot {
	s.URLsList = append([]string{}, s.URLsList...)
	return s
}

// ProgressUpdate is a partial snapshot. Nil fields are left unchanged.
type ProgressUpdate struct {
	Status             *Status   `json:"status,omitempty"`
	URLsCrawled        *int      `json:"urls_crawled,omitempty"`
	URLsFullyProcessed *int      `json:"urls_fully_processed,omitempty"`
	URLsDiscovered     *int      `json:"urls_discovered,omitempty"`
	ChunksProcessed    *int      `json:"chunks_processed,omitempty"`
	ChunksTotal        *int      `json:"chunks_total,omitempty"`
	URLsNew            *int      `json:"urls_new,omitempty"`
	URLsUpdated        *int      `json:"urls_updated,omitempty"`
	URLsUnchanged      *int      `json:"urls_unchanged,omitempty"`
	CurrentURL         *string   `json:"current_url,omitempty"`
	URLsList           *[]string `json:"urls_list,omitempty"`
	ScrapeBatchSize    *int      `json:"scrape_batch_size,omitempty"`
	EmbedBatchSize     *int      `json:"embed_batch_size,omitempty"`
}

// StartsRun reports whether the update marks the start of a new run:
// status crawling with a current URL and both crawl counters at zero.
// Absent counters count as zero.
func (u ProgressUpdate) StartsRun() bool {
	if u.Status == nil || *u.Status != StatusCrawling || u.CurrentURL == nil {
		return false
	}
	return valueOrZero(u.URLsCrawled) == 0 && valueOrZero(u.URLsFullyProcessed) == 0
}

// ApplyTo merges the set fields of the update into s.
func (u ProgressUpdate) ApplyTo(s *ProgressSnapshot) {
	if u.Status != nil {
		s.Status = *u.Status
	}
	setInt(&s.URLsCrawled, u.URLsCrawled)
	setInt(&s.URLsFullyProcessed, u.URLsFullyProcessed)
	setInt(&s.URLsDiscovered, u.URLsDiscovered)
	setInt(&s.ChunksProcessed, u.ChunksProcessed)
	setInt(&s.ChunksTotal, u.ChunksTotal)
	setInt(&s.URLsNew, u.URLsNew)
	setInt(&s.URLsUpdated, u.URLsUpdated)
	setInt(&s.URLsUnchanged, u.URLsUnchanged)
	setInt(&s.ScrapeBatchSize, u.ScrapeBatchSize)
	setInt(&s.EmbedBatchSize, u.EmbedBatchSize)
	if u.CurrentURL != nil {
		s.CurrentURL = *u.CurrentURL
	}
	if u.URLsList != nil {
		s.URLsList = append([]string{}, (*u.URLsList)...)
	}
}

// SnapshotUpdate returns an update that sets every field of s.
func SnapshotUpdate(s ProgressSnapshot) ProgressUpdate {
	list := append([]string{}, s.URLsList...)
	return ProgressUpdate{
		Status:             &s.Status,
		URLsCrawled:        &s.URLsCrawled,
		URLsFullyProcessed: &s.URLsFullyProcessed,
		URLsDiscovered:     &s.URLsDiscovered,
		ChunksProcessed:    &s.ChunksProcessed,
		ChunksTotal:        &s.ChunksTotal,
		URLsNew:            &s.URLsNew,
		URLsUpdated:        &s.URLsUpdated,
		URLsUnchanged:      &s.URLsUnchanged,
		CurrentURL:         &s.CurrentURL,
		URLsList:           &list,
		ScrapeBatchSize:    &s.ScrapeBatchSize,
		EmbedBatchSize:     &s.EmbedBatchSize,
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func valueOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

// ProgressFunc receives the full merged snapshot after every update.
type ProgressFunc func(ProgressSnapshot)

// ProgressService is the single synchronized owner of the live snapshot.
type ProgressService interface {
	// Update merges the update, stamps LastUpdated, persists the snapshot
	// and notifies every subscriber with the full result.
	Update(ctx context.Context, upd ProgressUpdate) ProgressSnapshot

	// Snapshot returns a copy of the current snapshot.
	Snapshot() ProgressSnapshot

	// Reset replaces the snapshot with an idle one and notifies subscribers.
	Reset(ctx context.Context) ProgressSnapshot

	// Subscribe registers fn for future snapshots and returns a function
	// that removes the subscription.
	Subscribe(fn ProgressFunc) (unsubscribe func())
}

// ProgressStore persists the last snapshot durably.
type ProgressStore interface {
	// Load returns the persisted snapshot.
	// Returns ENOTFOUND if nothing has been persisted yet.
	Load(ctx context.Context) (*ProgressSnapshot, error)

	Save(ctx context.Context, s *ProgressSnapshot) error
}
