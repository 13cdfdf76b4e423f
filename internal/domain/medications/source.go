package medications

import (
	"context"
	"errors"

	"careline/internal/domain/doses"
)

// ScheduleSource adapta el servicio de medicamentos a la vista de pautas que
// consume el motor de dosis.
type ScheduleSource struct {
	svc *Service
}

func NewScheduleSource(svc *Service) ScheduleSource {
	return ScheduleSource{svc: svc}
}

func (s ScheduleSource) GetByID(ctx context.Context, id string) (doses.Medication, error) {
	m, err := s.svc.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidInput) {
			return doses.Medication{}, doses.ErrNotFound
		}
		return doses.Medication{}, err
	}
	return scheduleView(m), nil
}
