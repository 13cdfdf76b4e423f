package memory

import (
	"context"
	"sort"
	"sync"

	"careline/internal/domain/audit"
)

type AuditRepo struct {
	mu      sync.RWMutex
	entries []audit.Entry
}

func NewAuditRepo() *AuditRepo {
	return &AuditRepo{}
}

func (r *AuditRepo) Append(ctx context.Context, e audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, e)
	return nil
}

func (r *AuditRepo) List(ctx context.Context, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]audit.Entry, len(r.entries))
	copy(out, r.entries)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TS.After(out[j].TS)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
