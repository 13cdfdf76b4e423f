package memory

import (
	"context"
	"testing"
	"time"

	"careline/internal/domain/doses"
	"careline/internal/domain/medications"
	"careline/internal/domain/patients"
)

func seedFixture(t *testing.T, now time.Time) (*DoseEventRepo, string) {
	t.Helper()
	ctx := context.Background()

	patientRepo := NewPatientRepo()
	medRepo := NewMedicationRepo()
	doseRepo := NewDoseEventRepo(medRepo, patientRepo)

	if err := patientRepo.Create(ctx, patients.Patient{ID: "p-1", Name: "Rosa Delgado"}); err != nil {
		t.Fatalf("create patient: %v", err)
	}
	if err := medRepo.Create(ctx, medications.Medication{
		ID: "m-active", PatientID: "p-1", Name: "Enalapril", Dose: "10 mg",
		FrequencyHours: 12, Active: true, StartTime: now.Add(-72 * time.Hour),
	}); err != nil {
		t.Fatalf("create medication: %v", err)
	}
	if err := medRepo.Create(ctx, medications.Medication{
		ID: "m-paused", PatientID: "p-1", Name: "Paracetamol", Dose: "650 mg",
		FrequencyHours: 8, Active: false, StartTime: now.Add(-72 * time.Hour),
	}); err != nil {
		t.Fatalf("create medication: %v", err)
	}

	events := []doses.DoseEvent{
		{ID: "e-taken", MedicationID: "m-active", ScheduledAt: now.Add(-10 * time.Hour), Taken: true},
		{ID: "e-skipped", MedicationID: "m-active", ScheduledAt: now.Add(-6 * time.Hour), Skipped: true},
		{ID: "e-overdue", MedicationID: "m-active", ScheduledAt: now.Add(-2 * time.Hour)},
		{ID: "e-future", MedicationID: "m-active", ScheduledAt: now.Add(4 * time.Hour)},
		// pauta pausada: fuera de adherencia y de vencidos
		{ID: "e-paused", MedicationID: "m-paused", ScheduledAt: now.Add(-3 * time.Hour)},
	}
	for _, e := range events {
		if err := doseRepo.Create(ctx, e); err != nil {
			t.Fatalf("create event %s: %v", e.ID, err)
		}
	}
	return doseRepo, "p-1"
}

func TestAdherenceSummary_CountsOnlyActiveMedications(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	repo, patientID := seedFixture(t, now)

	s, err := repo.AdherenceSummary(context.Background(), patientID, now.Add(-24*time.Hour), now.Add(24*time.Hour), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := doses.Summary{TakenDue: 1, SkippedDue: 1, OverdueDue: 1, PendingFuture: 1}
	if s != want {
		t.Fatalf("expected %+v, got %+v", want, s)
	}
}

func TestAdherenceSummary_WindowBoundsAreHalfOpen(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	repo, patientID := seedFixture(t, now)

	// ventana que deja fuera el evento tomado (-10h) y el futuro (+4h)
	s, err := repo.AdherenceSummary(context.Background(), patientID, now.Add(-8*time.Hour), now, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := doses.Summary{SkippedDue: 1, OverdueDue: 1}
	if s != want {
		t.Fatalf("expected %+v, got %+v", want, s)
	}
}

func TestCountOverdue_IgnoresPausedMedications(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	repo, patientID := seedFixture(t, now)

	n, err := repo.CountOverdue(context.Background(), patientID, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 overdue event, got %d", n)
	}
}

func TestListUpcoming_FiltersByPatientNameAndWindow(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	repo, _ := seedFixture(t, now)

	items, err := repo.ListUpcoming(context.Background(), doses.UpcomingFilter{PatientName: "rosa"}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// la ventana arranca en now-24h: entran los cinco eventos
	if len(items) != 5 {
		t.Fatalf("expected 5 events in window, got %d", len(items))
	}
	for i := 1; i < len(items); i++ {
		if items[i].ScheduledAt.Before(items[i-1].ScheduledAt) {
			t.Fatalf("events not sorted ascending at %d", i)
		}
	}

	none, err := repo.ListUpcoming(context.Background(), doses.UpcomingFilter{PatientName: "no-match"}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no events for unmatched name, got %d", len(none))
	}
}

func TestListForPatientDay_JoinCarriesMedicationData(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	repo, patientID := seedFixture(t, now)

	dayStart := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	items, err := repo.ListForPatientDay(context.Background(), patientID, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) == 0 {
		t.Fatalf("expected events for the day")
	}
	for _, d := range items {
		if d.PatientName != "Rosa Delgado" {
			t.Fatalf("expected patient name in detail, got %q", d.PatientName)
		}
		if d.MedicationName == "" || d.MedicationDose == "" {
			t.Fatalf("expected medication data in detail, got %+v", d)
		}
	}
}
