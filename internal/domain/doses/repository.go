package doses

import (
	"context"
	"time"
)

// Repository es la tabla durable de eventos de dosis. Las operaciones de
// "unresolved" se refieren siempre a taken = false AND skipped = false.
type Repository interface {
	Create(ctx context.Context, e DoseEvent) error
	GetByID(ctx context.Context, id string) (DoseEvent, error)

	// LatestForMedication devuelve el evento con hora programada más tardía,
	// o ErrNotFound si el medicamento no tiene eventos.
	LatestForMedication(ctx context.Context, medicationID string) (DoseEvent, error)
	ListForMedication(ctx context.Context, medicationID string, limit int) ([]DoseEvent, error)

	SetResolution(ctx context.Context, id string, taken, skipped bool) error
	SetNote(ctx context.Context, id, note string) error

	CountUnresolvedFrom(ctx context.Context, medicationID string, from time.Time) (int, error)
	DeleteUnresolvedFrom(ctx context.Context, medicationID string, from time.Time) error
	DeleteUnresolved(ctx context.Context, medicationID string) error
	DeleteForMedication(ctx context.Context, medicationID string) error

	AdherenceSummary(ctx context.Context, patientID string, start, end, now time.Time) (Summary, error)
	CountOverdue(ctx context.Context, patientID string, now time.Time) (int, error)

	// ListUpcoming devuelve eventos desde now-24h en adelante (con historial
	// muy reciente incluido), join con medicamento y paciente, orden por hora
	// programada ascendente.
	ListUpcoming(ctx context.Context, filter UpcomingFilter, now time.Time) ([]EventDetail, error)
	ListForPatientDay(ctx context.Context, patientID string, dayStart, dayEnd time.Time) ([]EventDetail, error)
	ListOverduePending(ctx context.Context, patientID string, now time.Time) ([]EventDetail, error)
}
