// Package progress implements the process-wide crawl progress broadcaster.
package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fwojciec/simpledocs"
)

var _ simpledocs.ProgressService = (*Broadcaster)(nil)

// Broadcaster owns the live progress snapshot. Every update is merged,
// stamped, persisted and then delivered in full to every subscriber.
//
// Updates are delivered in the order they were applied. Subscribers run
// synchronously and may read Snapshot, but must not call Update or Reset.
type Broadcaster struct {
	store  simpledocs.ProgressStore
	logger *slog.Logger
	now    func() time.Time

	// pub serializes persistence and delivery. It is always taken before mu.
	pub sync.Mutex

	mu     sync.Mutex
	snap   simpledocs.ProgressSnapshot
	subs   []subscriber
	nextID int
}

type subscriber struct {
	id int
	fn simpledocs.ProgressFunc
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithStore persists every snapshot to store.
func WithStore(store simpledocs.ProgressStore) Option {
	return func(b *Broadcaster) {
		b.store = store
	}
}

// WithLogger sets the logger for persistence failures.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Broadcaster) {
		b.logger = logger
	}
}

// WithClock overrides the clock used to stamp LastUpdated.
func WithClock(now func() time.Time) Option {
	return func(b *Broadcaster) {
		b.now = now
	}
}

// NewBroadcaster returns a Broadcaster holding an idle snapshot.
func NewBroadcaster(opts ...Option) *Broadcaster {
	b := &Broadcaster{
		snap:   simpledocs.NewProgressSnapshot(),
		logger: slog.New(slog.DiscardHandler),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Load replaces the snapshot with the persisted one, if any.
func (b *Broadcaster) Load(ctx context.Context) error {
	if b.store == nil {
		return nil
	}
	snap, err := b.store.Load(ctx)
	if simpledocs.ErrorCode(err) == simpledocs.ENOTFOUND {
		return nil
	} else if err != nil {
		return err
	}
	if snap.URLsList == nil {
		snap.URLsList = []string{}
	}

	b.mu.Lock()
	b.snap = snap.Clone()
	b.mu.Unlock()
	return nil
}

// Update merges upd into the snapshot and publishes the result.
// An update that starts a new run clears every counter. Only its status,
// current URL and batch sizes are kept; any counters it carries are
// ignored.
func (b *Broadcaster) Update(ctx context.Context, upd simpledocs.ProgressUpdate) simpledocs.ProgressSnapshot {
	b.pub.Lock()
	defer b.pub.Unlock()

	b.mu.Lock()
	if upd.StartsRun() {
		fresh := simpledocs.NewProgressSnapshot()
		fresh.ScrapeBatchSize = b.snap.ScrapeBatchSize
		fresh.EmbedBatchSize = b.snap.EmbedBatchSize
		b.snap = fresh
		upd = simpledocs.ProgressUpdate{
			Status:          upd.Status,
			CurrentURL:      upd.CurrentURL,
			ScrapeBatchSize: upd.ScrapeBatchSize,
			EmbedBatchSize:  upd.EmbedBatchSize,
		}
	}
	upd.ApplyTo(&b.snap)
	b.snap.LastUpdated = b.now()
	snap, subs := b.snap.Clone(), b.subscribers()
	b.mu.Unlock()

	b.publish(ctx, snap, subs)
	return snap
}

// Snapshot returns a copy of the current snapshot.
func (b *Broadcaster) Snapshot() simpledocs.ProgressSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snap.Clone()
}

// Reset replaces the snapshot with an idle one and publishes it.
func (b *Broadcaster) Reset(ctx context.Context) simpledocs.ProgressSnapshot {
	b.pub.Lock()
	defer b.pub.Unlock()

	b.mu.Lock()
	b.snap = simpledocs.NewProgressSnapshot()
	b.snap.LastUpdated = b.now()
	snap, subs := b.snap.Clone(), b.subscribers()
	b.mu.Unlock()

	b.publish(ctx, snap, subs)
	return snap
}

// Subscribe registers fn for every future snapshot.
func (b *Broadcaster) Subscribe(fn simpledocs.ProgressFunc) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (b *Broadcaster) subscribers() []simpledocs.ProgressFunc {
	fns := make([]simpledocs.ProgressFunc, len(b.subs))
	for i, s := range b.subs {
		fns[i] = s.fn
	}
	return fns
}

func (b *Broadcaster) publish(ctx context.Context, snap simpledocs.ProgressSnapshot, subs []simpledocs.ProgressFunc) {
	if b.store != nil {
		persisted := snap.Clone()
		if err := b.store.Save(ctx, &persisted); err != nil {
			b.logger.Warn("progress persist failed", "status", snap.Status, "err", err)
		}
	}
	for _, fn := range subs {
		fn(snap.Clone())
	}
}
