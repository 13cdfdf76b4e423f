package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"careline/internal/domain/doses"
)

// DoseEventRepo guarda eventos en memoria. Los "joins" con medicamentos y
// pacientes se resuelven contra los otros repos del mismo adapter.
type DoseEventRepo struct {
	mu   sync.RWMutex
	byID map[string]doses.DoseEvent

	meds     *MedicationRepo
	patients *PatientRepo
}

func NewDoseEventRepo(meds *MedicationRepo, patients *PatientRepo) *DoseEventRepo {
	return &DoseEventRepo{
		byID:     make(map[string]doses.DoseEvent),
		meds:     meds,
		patients: patients,
	}
}

func (r *DoseEventRepo) Create(ctx context.Context, e doses.DoseEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(e.ID) == "" {
		return errors.New("dose event id required")
	}
	if _, exists := r.byID[e.ID]; exists {
		return errors.New("dose event already exists")
	}
	r.byID[e.ID] = e
	return nil
}

func (r *DoseEventRepo) GetByID(ctx context.Context, id string) (doses.DoseEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byID[id]
	if !ok {
		return doses.DoseEvent{}, doses.ErrNotFound
	}
	return e, nil
}

func (r *DoseEventRepo) LatestForMedication(ctx context.Context, medicationID string) (doses.DoseEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		latest doses.DoseEvent
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
		return doses.DoseEvent{}, doses.ErrNotFound
	}
	return latest, nil
}

func (r *DoseEventRepo) ListForMedication(ctx context.Context, medicationID string, limit int) ([]doses.DoseEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]doses.DoseEvent, 0)
	for _, e := range r.byID {
		if e.MedicationID == medicationID {
			out = append(out, e)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledAt.After(out[j].ScheduledAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *DoseEventRepo) SetResolution(ctx context.Context, id string, taken, skipped bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[id]
	if !ok {
		return doses.ErrNotFound
	}
	e.Taken = taken
	e.Skipped = skipped
	r.byID[id] = e
	return nil
}

func (r *DoseEventRepo) SetNote(ctx context.Context, id, note string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[id]
	if !ok {
		return doses.ErrNotFound
	}
	e.Note = note
	r.byID[id] = e
	return nil
}

func (r *DoseEventRepo) CountUnresolvedFrom(ctx context.Context, medicationID string, from time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, e := range r.byID {
		if e.MedicationID == medicationID && !e.Resolved() && !e.ScheduledAt.Before(from) {
			n++
		}
	}
	return n, nil
}

func (r *DoseEventRepo) DeleteUnresolvedFrom(ctx context.Context, medicationID string, from time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.byID {
		if e.MedicationID == medicationID && !e.Resolved() && !e.ScheduledAt.Before(from) {
			delete(r.byID, id)
		}
	}
	return nil
}

func (r *DoseEventRepo) DeleteUnresolved(ctx context.Context, medicationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.byID {
		if e.MedicationID == medicationID && !e.Resolved() {
			delete(r.byID, id)
		}
	}
	return nil
}

func (r *DoseEventRepo) DeleteForMedication(ctx context.Context, medicationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.byID {
		if e.MedicationID == medicationID {
			delete(r.byID, id)
		}
	}
	return nil
}

func (r *DoseEventRepo) AdherenceSummary(ctx context.Context, patientID string, start, end, now time.Time) (doses.Summary, error) {
	events, err := r.eventsForPatient(ctx, patientID, true)
	if err != nil {
		return doses.Summary{}, err
	}

	var s doses.Summary
	for _, e := range events {
		if e.ScheduledAt.Before(start) || !e.ScheduledAt.Before(end) {
			continue
		}
		due := e.ScheduledAt.Before(now)
		switch {
		case e.Taken && due:
			s.TakenDue++
		case e.Skipped && due:
			s.SkippedDue++
		case !e.Resolved() && due:
			s.OverdueDue++
		case !e.Resolved():
			s.PendingFuture++
		}
	}
	return s, nil
}

func (r *DoseEventRepo) CountOverdue(ctx context.Context, patientID string, now time.Time) (int, error) {
	events, err := r.eventsForPatient(ctx, patientID, true)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, e := range events {
		if !e.Resolved() && e.ScheduledAt.Before(now) {
			n++
		}
	}
	return n, nil
}

func (r *DoseEventRepo) ListUpcoming(ctx context.Context, filter doses.UpcomingFilter, now time.Time) ([]doses.EventDetail, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	nameFilter := strings.ToLower(strings.TrimSpace(filter.PatientName))
	from := now.Add(-24 * time.Hour)

	details, err := r.allDetails(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]doses.EventDetail, 0)
	for _, d := range details {
		if d.ScheduledAt.Before(from) {
			continue
		}
		if nameFilter != "" && !strings.Contains(strings.ToLower(d.PatientName), nameFilter) {
			continue
		}
		out = append(out, d)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledAt.Before(out[j].ScheduledAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *DoseEventRepo) ListForPatientDay(ctx context.Context, patientID string, dayStart, dayEnd time.Time) ([]doses.EventDetail, error) {
	details, err := r.allDetails(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]doses.EventDetail, 0)
	for _, d := range details {
		if d.PatientID != patientID {
			continue
		}
		if d.ScheduledAt.Before(dayStart) || !d.ScheduledAt.Before(dayEnd) {
			continue
		}
		out = append(out, d)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledAt.Before(out[j].ScheduledAt)
	})
	return out, nil
}

func (r *DoseEventRepo) ListOverduePending(ctx context.Context, patientID string, now time.Time) ([]doses.EventDetail, error) {
	details, err := r.allDetails(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]doses.EventDetail, 0)
	for _, d := range details {
		if d.PatientID != patientID || !d.MedicationActive {
			continue
		}
		if d.Resolved() || !d.ScheduledAt.Before(now) {
			continue
		}
		out = append(out, d)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledAt.Before(out[j].ScheduledAt)
	})
	return out, nil
}

// eventsForPatient junta los eventos de todos los medicamentos del paciente;
// con activeOnly se limita a pautas activas (igual que las consultas SQL de
// adherencia).
func (r *DoseEventRepo) eventsForPatient(ctx context.Context, patientID string, activeOnly bool) ([]doses.DoseEvent, error) {
	meds, err := r.meds.ListForPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	medIDs := make(map[string]bool, len(meds))
	for _, m := range meds {
		if activeOnly && !m.Active {
			continue
		}
		medIDs[m.ID] = true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]doses.DoseEvent, 0)
	for _, e := range r.byID {
		if medIDs[e.MedicationID] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *DoseEventRepo) allDetails(ctx context.Context) ([]doses.EventDetail, error) {
	r.mu.RLock()
	events := make([]doses.DoseEvent, 0, len(r.byID))
	for _, e := range r.byID {
		events = append(events, e)
	}
	r.mu.RUnlock()

	out := make([]doses.EventDetail, 0, len(events))
	for _, e := range events {
		m, err := r.meds.GetByID(ctx, e.MedicationID)
		if err != nil {
			continue // medicamento borrado en carrera; se omite la fila
		}
		p, err := r.patients.GetByID(ctx, m.PatientID)
		if err != nil {
			continue
		}
		out = append(out, doses.EventDetail{
			DoseEvent: e,

			MedicationName:   m.Name,
			MedicationDose:   m.Dose,
			MedicationActive: m.Active,
			FrequencyHours:   m.FrequencyHours,

			PatientID:   p.ID,
			PatientName: p.Name,
		})
	}
	return out, nil
}
