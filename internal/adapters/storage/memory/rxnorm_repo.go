package memory

import (
	"context"
	"sync"
	"time"

	"careline/internal/adapters/rxnorm"
)

type rxnormEntry struct {
	items     []rxnorm.Suggestion
	fetchedAt time.Time
}

type RxNormCache struct {
	mu      sync.RWMutex
	byQuery map[string]rxnormEntry
}

func NewRxNormCache() *RxNormCache {
	return &RxNormCache{
		byQuery: make(map[string]rxnormEntry),
	}
}

func (c *RxNormCache) Get(ctx context.Context, query string, freshSince time.Time) ([]rxnorm.Suggestion, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.byQuery[query]
	if !ok || e.fetchedAt.Before(freshSince) {
		return nil, false, nil
	}

	out := make([]rxnorm.Suggestion, len(e.items))
	copy(out, e.items)
	return out, true, nil
}

func (c *RxNormCache) Put(ctx context.Context, query string, items []rxnorm.Suggestion, fetchedAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := make([]rxnorm.Suggestion, len(items))
	copy(stored, items)
	c.byQuery[query] = rxnormEntry{items: stored, fetchedAt: fetchedAt}
	return nil
}
