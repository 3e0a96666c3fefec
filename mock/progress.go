package mock

import (
	"context"

	"github.com/fwojciec/simpledocs"
)

var (
	_ simpledocs.ProgressService = (*ProgressService)(nil)
	_ simpledocs.ProgressStore   = (*ProgressStore)(nil)
)

// ProgressService is a mock implementation of simpledocs.ProgressService.
type ProgressService struct {
	UpdateFn    func(ctx context.Context, upd simpledocs.ProgressUpdate) simpledocs.ProgressSnapshot
	SnapshotFn  func() simpledocs.ProgressSnapshot
	ResetFn     func(ctx context.Context) simpledocs.ProgressSnapshot
	SubscribeFn func(fn simpledocs.ProgressFunc) func()
}

func (s *ProgressService) Update(ctx context.Context, upd simpledocs.ProgressUpdate) simpledocs.ProgressSnapshot {
	return s.UpdateFn(ctx, upd)
}

func (s *ProgressService) Snapshot() simpledocs.ProgressSnapshot {
	return s.SnapshotFn()
}

func (s *ProgressService) Reset(ctx context.Context) simpledocs.ProgressSnapshot {
	return s.ResetFn(ctx)
}

func (s *ProgressService) Subscribe(fn simpledocs.ProgressFunc) func() {
	return s.SubscribeFn(fn)
}

// ProgressStore is a mock implementation of simpledocs.ProgressStore.
type ProgressStore struct {
	LoadFn func(ctx context.Context) (*simpledocs.ProgressSnapshot, error)
	SaveFn func(ctx context.Context, s *simpledocs.ProgressSnapshot) error
}

func (s *ProgressStore) Load(ctx context.Context) (*simpledocs.ProgressSnapshot, error) {
	return s.LoadFn(ctx)
}

func (s *ProgressStore) Save(ctx context.Context, snap *simpledocs.ProgressSnapshot) error {
	return s.SaveFn(ctx, snap)
}
