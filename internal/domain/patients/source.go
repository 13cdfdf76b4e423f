package patients

import (
	"context"
	"errors"

	"careline/internal/domain/doses"
)

// Directory adapta el servicio de pacientes a la vista que consumen el
// tablero y las rutas del módulo de dosis.
type Directory struct {
	svc *Service
}

func NewDirectory(svc *Service) Directory {
	return Directory{svc: svc}
}

func (d Directory) ListPatients(ctx context.Context) ([]doses.PatientRef, error) {
	items, err := d.svc.List(ctx)
	if err != nil {
		return nil, err
	}
	refs := make([]doses.PatientRef, 0, len(items))
	for _, p := range items {
		refs = append(refs, doses.PatientRef{ID: p.ID, Name: p.Name})
	}
	return refs, nil
}

func (d Directory) PatientExists(ctx context.Context, id string) (bool, error) {
	if _, err := d.svc.GetByID(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidInput) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
