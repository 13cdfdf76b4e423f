package doses

import (
	"context"
	"math"
	"time"
)

// Summary cuenta eventos de medicamentos activos de un paciente dentro de
// una ventana [start, end). "Due" = hora programada estrictamente antes de
// "now"; PendingFuture es informativo y queda fuera del porcentaje.
type Summary struct {
	TakenDue      int `json:"taken_due"`
	SkippedDue    int `json:"skipped_due"`
	OverdueDue    int `json:"overdue_due"`
	PendingFuture int `json:"pending_future"`
}

// Percent devuelve el porcentaje de adherencia con un decimal, o nil cuando
// todavía no hay dosis vencidas en la ventana: sin datos no es 0% ni 100%.
func (s Summary) Percent() *float64 {
	denom := s.TakenDue + s.SkippedDue + s.OverdueDue
	if denom == 0 {
		return nil
	}
	pct := math.Round(float64(s.TakenDue)*100/float64(denom)*10) / 10
	return &pct
}

// Overview agrupa las tres ventanas estándar de adherencia.
type Overview struct {
	Today  Summary
	Last7d Summary
	Last30 Summary
}

// AdherenceSummary agrega la ventana [start, end) para un paciente.
func (s *Service) AdherenceSummary(ctx context.Context, patientID string, start, end time.Time) (Summary, error) {
	return s.repo.AdherenceSummary(ctx, patientID, start, end, s.now())
}

// AdherenceOverview calcula hoy (medianoche a medianoche), últimos 7 días y
// últimos 30 días respecto del reloj del servicio.
func (s *Service) AdherenceOverview(ctx context.Context, patientID string) (Overview, error) {
	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	today, err := s.repo.AdherenceSummary(ctx, patientID, dayStart, dayEnd, now)
	if err != nil {
		return Overview{}, err
	}
	last7, err := s.repo.AdherenceSummary(ctx, patientID, now.AddDate(0, 0, -7), now, now)
	if err != nil {
		return Overview{}, err
	}
	last30, err := s.repo.AdherenceSummary(ctx, patientID, now.AddDate(0, 0, -30), now, now)
	if err != nil {
		return Overview{}, err
	}

	return Overview{Today: today, Last7d: last7, Last30: last30}, nil
}

// CountOverdue cuenta los eventos pendientes ya vencidos del paciente
// (medicamentos activos, sin ventana).
func (s *Service) CountOverdue(ctx context.Context, patientID string) (int, error) {
	return s.repo.CountOverdue(ctx, patientID, s.now())
}
