package falls

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, e FallEvent) error
	ListForPatient(ctx context.Context, patientID string, limit int) ([]FallEvent, error)
	CountSince(ctx context.Context, patientID string, since time.Time) (int, error)
	DeleteForPatient(ctx context.Context, patientID string) error
}
