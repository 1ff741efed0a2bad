package jobqueue

import (
	"context"
	"errors"
	"time"

	"github.com/fleetward/fleetward/internal/pkg/cache"
)

const (
	lastRunKey = "reconcile:last_run"
	summaryTTL = 30 * 24 * time.Hour
)

type cacheSummaryStore struct {
	cache *cache.Cache
}

// NewCacheSummaryStore keeps the last run summary in redis.
func NewCacheSummaryStore(c *cache.Cache) SummaryStore {
	return &cacheSummaryStore{cache: c}
}

func (s *cacheSummaryStore) SaveSummary(ctx context.Context, summary RunSummary) error {
	return s.cache.SetJSON(ctx, lastRunKey, summary, summaryTTL)
}

func (s *cacheSummaryStore) LastSummary(ctx context.Context) (*RunSummary, error) {
	var summary RunSummary
	err := s.cache.GetJSON(ctx, lastRunKey, &summary)
	if errors.Is(err, cache.ErrMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &summary, nil
}
