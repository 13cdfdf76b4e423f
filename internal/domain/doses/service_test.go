package doses

import (
	"context"
	"sort"
	"testing"
	"time"
)

// -------------------------
// Test repo (in-memory)
// -------------------------

type testRepo struct {
	byID map[string]DoseEvent
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]DoseEvent{}}
}

func (r *testRepo) Create(ctx context.Context, e DoseEvent) error {
	r.byID[e.ID] = e
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (DoseEvent, error) {
	e, ok := r.byID[id]
	if !ok {
		return DoseEvent{}, ErrNotFound
	}
	return e, nil
}

func (r *testRepo) LatestForMedication(ctx context.Context, medicationID string) (DoseEvent, error) {
	var (
		latest DoseEvent
		found  bool
	)
	for _, e := range r.byID {
		if e.MedicationID != medicationID {
			continue
		}
		if !found || e.ScheduledAt.After(latest.ScheduledAt) {
			latest = e
			found = true
		}
	}
	if !found {
		return DoseEvent{}, ErrNotFound
	}
	return latest, nil
}

func (r *testRepo) ListForMedication(ctx context.Context, medicationID string, limit int) ([]DoseEvent, error) {
	out := make([]DoseEvent, 0)
	for _, e := range r.byID {
		if e.MedicationID == medicationID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledAt.After(out[j].ScheduledAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *testRepo) SetResolution(ctx context.Context, id string, taken, skipped bool) error {
	e, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	e.Taken = taken
	e.Skipped = skipped
	r.byID[id] = e
	return nil
}

func (r *testRepo) SetNote(ctx context.Context, id, note string) error {
	e, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	e.Note = note
	r.byID[id] = e
	return nil
}

func (r *testRepo) CountUnresolvedFrom(ctx context.Context, medicationID string, from time.Time) (int, error) {
	n := 0
	for _, e := range r.byID {
		if e.MedicationID == medicationID && !e.Resolved() && !e.ScheduledAt.Before(from) {
			n++
		}
	}
	return n, nil
}

func (r *testRepo) DeleteUnresolvedFrom(ctx context.Context, medicationID string, from time.Time) error {
	for id, e := range r.byID {
		if e.MedicationID == medicationID && !e.Resolved() && !e.ScheduledAt.Before(from) {
			delete(r.byID, id)
		}
	}
	return nil
}

func (r *testRepo) DeleteUnresolved(ctx context.Context, medicationID string) error {
	for id, e := range r.byID {
		if e.MedicationID == medicationID && !e.Resolved() {
			delete(r.byID, id)
		}
	}
	return nil
}

func (r *testRepo) DeleteForMedication(ctx context.Context, medicationID string) error {
	for id, e := range r.byID {
		if e.MedicationID == medicationID {
			delete(r.byID, id)
		}
	}
	return nil
}

func (r *testRepo) AdherenceSummary(ctx context.Context, patientID string, start, end, now time.Time) (Summary, error) {
	return Summary{}, nil
}

func (r *testRepo) CountOverdue(ctx context.Context, patientID string, now time.Time) (int, error) {
	return 0, nil
}

func (r *testRepo) ListUpcoming(ctx context.Context, filter UpcomingFilter, now time.Time) ([]EventDetail, error) {
	return nil, nil
}

func (r *testRepo) ListForPatientDay(ctx context.Context, patientID string, dayStart, dayEnd time.Time) ([]EventDetail, error) {
	return nil, nil
}

func (r *testRepo) ListOverduePending(ctx context.Context, patientID string, now time.Time) ([]EventDetail, error) {
	return nil, nil
}

func (r *testRepo) pendingFor(medicationID string) []DoseEvent {
	out := make([]DoseEvent, 0)
	for _, e := range r.byID {
		if e.MedicationID == medicationID && !e.Resolved() {
			out = append(out, e)
		}
	}
	return out
}

type testMeds struct {
	byID map[string]Medication
}

func (m *testMeds) GetByID(ctx context.Context, id string) (Medication, error) {
	med, ok := m.byID[id]
	if !ok {
		return Medication{}, ErrNotFound
	}
	return med, nil
}

func newEngine(med Medication, now time.Time) (*Service, *testRepo) {
	repo := newTestRepo()
	svc := NewService(repo, &testMeds{byID: map[string]Medication{med.ID: med}})
	svc.now = func() time.Time { return now }
	return svc, repo
}

// -------------------------
// Tests
// -------------------------

func TestEnsureNextPending_SeedsAlignedToStartGrid(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	med := Medication{
		ID:             "med-1",
		Active:         true,
		FrequencyHours: 12,
		StartTime:      now.Add(-30 * time.Hour),
	}
	svc, repo := newEngine(med, now)

	if err := svc.EnsureNextPending(context.Background(), "med-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pending := repo.pendingFor("med-1")
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending event, got %d", len(pending))
	}
	// grilla desde start: -30h, -18h, -6h, +6h => primer slot >= now
	want := med.StartTime.Add(36 * time.Hour)
	if !pending[0].ScheduledAt.Equal(want) {
		t.Fatalf("expected event at %s, got %s", want, pending[0].ScheduledAt)
	}
}

func TestEnsureNextPending_QuiescentWithPending(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	med := Medication{ID: "med-1", Active: true, FrequencyHours: 8, StartTime: now.Add(-time.Hour)}
	svc, repo := newEngine(med, now)

	// un pendiente vencido ya existe
	_ = repo.Create(context.Background(), DoseEvent{
		ID:           "ev-1",
		MedicationID: "med-1",
		ScheduledAt:  now.Add(-time.Hour),
	})

	for i := 0; i < 3; i++ {
		if err := svc.EnsureNextPending(context.Background(), "med-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if n := len(repo.pendingFor("med-1")); n != 1 {
		t.Fatalf("expected exactly 1 pending event, got %d", n)
	}
}

func TestEnsureNextPending_InactiveOrMissingIsNoop(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	med := Medication{ID: "med-1", Active: false, FrequencyHours: 8, StartTime: now.Add(-time.Hour)}
	svc, repo := newEngine(med, now)

	if err := svc.EnsureNextPending(context.Background(), "med-1"); err != nil {
		t.Fatalf("unexpected error for inactive: %v", err)
	}
	if err := svc.EnsureNextPending(context.Background(), "no-such-med"); err != nil {
		t.Fatalf("unexpected error for missing med: %v", err)
	}
	if n := len(repo.byID); n != 0 {
		t.Fatalf("expected no events, got %d", n)
	}
}

func TestEnsureNextPending_SkipsMissedCyclesWithoutBackfill(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	med := Medication{ID: "med-1", Active: true, FrequencyHours: 6, StartTime: now.Add(-100 * time.Hour)}
	svc, repo := newEngine(med, now)

	// último evento resuelto hace 4 ciclos
	last := now.Add(-25 * time.Hour)
	_ = repo.Create(context.Background(), DoseEvent{
		ID:           "ev-old",
		MedicationID: "med-1",
		ScheduledAt:  last,
		Taken:        true,
	})

	if err := svc.EnsureNextPending(context.Background(), "med-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pending := repo.pendingFor("med-1")
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending event, got %d", len(pending))
	}
	if pending[0].ScheduledAt.Before(now) {
		t.Fatalf("next event must not be in the past: %s < %s", pending[0].ScheduledAt, now)
	}
	// avanza de a períodos completos desde el último slot
	if diff := pending[0].ScheduledAt.Sub(last) % (6 * time.Hour); diff != 0 {
		t.Fatalf("next event off the grid by %s", diff)
	}
}

func TestEnsureNextPending_RespectsEndTime(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	end := now.Add(-time.Hour)
	med := Medication{
		ID:             "med-1",
		Active:         true,
		FrequencyHours: 12,
		StartTime:      now.Add(-48 * time.Hour),
		EndTime:        &end,
	}
	svc, repo := newEngine(med, now)

	if err := svc.EnsureNextPending(context.Background(), "med-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(repo.byID); n != 0 {
		t.Fatalf("expected no events past end_time, got %d", n)
	}
}

func TestMarkTaken_MaterializesNextAndUndoKeepsInvariant(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	med := Medication{ID: "med-1", Active: true, FrequencyHours: 8, StartTime: now.Add(-time.Hour)}
	svc, repo := newEngine(med, now)

	_ = repo.Create(context.Background(), DoseEvent{
		ID:           "ev-1",
		MedicationID: "med-1",
		ScheduledAt:  now.Add(-time.Hour),
	})

	if err := svc.MarkTaken(context.Background(), "ev-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ev, _ := repo.GetByID(context.Background(), "ev-1")
	if !ev.Taken || ev.Skipped {
		t.Fatalf("expected taken=true skipped=false, got taken=%v skipped=%v", ev.Taken, ev.Skipped)
	}
	if n := len(repo.pendingFor("med-1")); n != 1 {
		t.Fatalf("expected next pending event after take, got %d", n)
	}

	// deshacer vuelve el evento a pendiente pero no duplica la obligación:
	// el pendiente re-expuesto convive con el ya materializado y cada uno se
	// resuelve por separado
	if err := svc.Undo(context.Background(), "ev-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ev, _ = repo.GetByID(context.Background(), "ev-1")
	if ev.Resolved() {
		t.Fatalf("expected event back to pending after undo")
	}

	// nuevas llamadas al motor no agregan más eventos
	if err := svc.EnsureNextPending(context.Background(), "med-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(repo.byID); n != 2 {
		t.Fatalf("expected 2 events total after undo, got %d", n)
	}
}

func TestMarkSkipped_CountsAsResolution(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	med := Medication{ID: "med-1", Active: true, FrequencyHours: 8, StartTime: now.Add(-time.Hour)}
	svc, repo := newEngine(med, now)

	_ = repo.Create(context.Background(), DoseEvent{
		ID:           "ev-1",
		MedicationID: "med-1",
		ScheduledAt:  now.Add(-time.Hour),
	})

	if err := svc.MarkSkipped(context.Background(), "ev-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ev, _ := repo.GetByID(context.Background(), "ev-1")
	if !ev.Skipped || ev.Taken {
		t.Fatalf("expected skipped=true taken=false, got skipped=%v taken=%v", ev.Skipped, ev.Taken)
	}
	if n := len(repo.pendingFor("med-1")); n != 1 {
		t.Fatalf("expected next pending event after skip, got %d", n)
	}
}

func TestResolve_MissingEventIsNoop(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	med := Medication{ID: "med-1", Active: true, FrequencyHours: 8, StartTime: now}
	svc, repo := newEngine(med, now)

	if err := svc.MarkTaken(context.Background(), "no-such-event"); err != nil {
		t.Fatalf("expected noop for missing event, got %v", err)
	}
	if n := len(repo.byID); n != 0 {
		t.Fatalf("expected no events, got %d", n)
	}
}

func TestResetFutureSchedule_NeverTouchesResolved(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	med := Medication{ID: "med-1", Active: true, FrequencyHours: 12, StartTime: now.Add(-48 * time.Hour)}
	svc, repo := newEngine(med, now)

	_ = repo.Create(context.Background(), DoseEvent{
		ID: "ev-taken", MedicationID: "med-1", ScheduledAt: now.Add(-24 * time.Hour), Taken: true,
	})
	_ = repo.Create(context.Background(), DoseEvent{
		ID: "ev-skipped", MedicationID: "med-1", ScheduledAt: now.Add(-12 * time.Hour), Skipped: true,
	})
	_ = repo.Create(context.Background(), DoseEvent{
		ID: "ev-future", MedicationID: "med-1", ScheduledAt: now.Add(6 * time.Hour),
	})

	seed := now.Add(3 * time.Hour)
	if err := svc.ResetFutureSchedule(context.Background(), "med-1", &seed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := repo.GetByID(context.Background(), "ev-taken"); err != nil {
		t.Fatalf("resolved taken event must survive reset")
	}
	if _, err := repo.GetByID(context.Background(), "ev-skipped"); err != nil {
		t.Fatalf("resolved skipped event must survive reset")
	}
	if _, err := repo.GetByID(context.Background(), "ev-future"); err == nil {
		t.Fatalf("future pending event must be replaced by reset")
	}

	pending := repo.pendingFor("med-1")
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending event after reset, got %d", len(pending))
	}
	if !pending[0].ScheduledAt.Equal(seed) {
		t.Fatalf("expected seed at %s, got %s", seed, pending[0].ScheduledAt)
	}
}

func TestResetFutureSchedule_PastSeedClampsToNow(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	med := Medication{ID: "med-1", Active: true, FrequencyHours: 12, StartTime: now.Add(-48 * time.Hour)}
	svc, repo := newEngine(med, now)

	seed := now.Add(-6 * time.Hour)
	if err := svc.ResetFutureSchedule(context.Background(), "med-1", &seed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pending := repo.pendingFor("med-1")
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending event, got %d", len(pending))
	}
	if !pending[0].ScheduledAt.Equal(now) {
		t.Fatalf("expected seed clamped to now %s, got %s", now, pending[0].ScheduledAt)
	}
}

func TestPurgePending_KeepsResolvedHistory(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	med := Medication{ID: "med-1", Active: true, FrequencyHours: 12, StartTime: now.Add(-48 * time.Hour)}
	svc, repo := newEngine(med, now)

	_ = repo.Create(context.Background(), DoseEvent{
		ID: "ev-taken", MedicationID: "med-1", ScheduledAt: now.Add(-24 * time.Hour), Taken: true,
	})
	_ = repo.Create(context.Background(), DoseEvent{
		ID: "ev-overdue", MedicationID: "med-1", ScheduledAt: now.Add(-2 * time.Hour),
	})
	_ = repo.Create(context.Background(), DoseEvent{
		ID: "ev-future", MedicationID: "med-1", ScheduledAt: now.Add(6 * time.Hour),
	})

	if err := svc.PurgePending(context.Background(), "med-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := repo.GetByID(context.Background(), "ev-taken"); err != nil {
		t.Fatalf("resolved event must survive purge")
	}
	if n := len(repo.pendingFor("med-1")); n != 0 {
		t.Fatalf("expected no pending events after purge, got %d", n)
	}
}

func TestSeedInitial_InactiveDoesNothing(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	med := Medication{ID: "med-1", Active: false, FrequencyHours: 12, StartTime: now}
	svc, repo := newEngine(med, now)

	if err := svc.SeedInitial(context.Background(), med); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(repo.byID); n != 0 {
		t.Fatalf("expected no events for inactive medication, got %d", n)
	}
}

func TestSeedInitial_ActiveSeedsAtStart(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	med := Medication{ID: "med-1", Active: true, FrequencyHours: 12, StartTime: now.Add(2 * time.Hour)}
	svc, repo := newEngine(med, now)

	if err := svc.SeedInitial(context.Background(), med); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pending := repo.pendingFor("med-1")
	if len(pending) != 1 {
		t.Fatalf("expected 1 event, got %d", len(pending))
	}
	if !pending[0].ScheduledAt.Equal(med.StartTime) {
		t.Fatalf("expected event at start %s, got %s", med.StartTime, pending[0].ScheduledAt)
	}
}
