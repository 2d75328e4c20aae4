package pipeline

import (
	"context"

	"github.com/rstrack/rstrack/internal/rscalc"
	"github.com/rstrack/rstrack/pkg/rediscache"
)

// SnapshotStore reads published result snapshots back out of the cache.
// It lets the API serve the last published scores after a process
// restart, before the first in-process calculation run.
type SnapshotStore struct {
	cache *rediscache.Cache
}

// NewSnapshotStore creates a snapshot store over the cache. A nil or
// disabled cache yields a store that never finds anything.
func NewSnapshotStore(cache *rediscache.Cache) *SnapshotStore {
	return &SnapshotStore{cache: cache}
}

// Latest returns the most recently published result set, if the cache
// holds one.
func (s *SnapshotStore) Latest(ctx context.Context) (*rscalc.ResultSet, bool, error) {
	if s == nil || s.cache == nil || !s.cache.Enabled() {
		return nil, false, nil
	}

	var result rscalc.ResultSet
	found, err := s.cache.Get(ctx, rediscache.SnapshotLatest, &result)
	if err != nil || !found {
		return nil, false, err
	}
	return &result, true, nil
}
