package medications

import "context"

type Repository interface {
	Create(ctx context.Context, m Medication) error
	GetByID(ctx context.Context, id string) (Medication, error)
	ListForPatient(ctx context.Context, patientID string) ([]Medication, error)
	Update(ctx context.Context, m Medication) error
	DeleteForPatient(ctx context.Context, patientID string) error
}
