package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"careline/internal/domain/falls"
)

type FallRepo struct {
	mu   sync.RWMutex
	byID map[string]falls.FallEvent
}

func NewFallRepo() *FallRepo {
	return &FallRepo{
		byID: make(map[string]falls.FallEvent),
	}
}

func (r *FallRepo) Create(ctx context.Context, e falls.FallEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(e.ID) == "" {
		return errors.New("fall event id required")
	}
	if _, exists := r.byID[e.ID]; exists {
		return errors.New("fall event already exists")
	}
	r.byID[e.ID] = e
	return nil
}

func (r *FallRepo) ListForPatient(ctx context.Context, patientID string, limit int) ([]falls.FallEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]falls.FallEvent, 0)
	for _, e := range r.byID {
		if e.PatientID == patientID {
			out = append(out, e)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *FallRepo) CountSince(ctx context.Context, patientID string, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, e := range r.byID {
		if e.PatientID == patientID && !e.OccurredAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *FallRepo) DeleteForPatient(ctx context.Context, patientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.byID {
		if e.PatientID == patientID {
			delete(r.byID, id)
		}
	}
	return nil
}
