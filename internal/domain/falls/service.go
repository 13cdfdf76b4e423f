package falls

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrLocationRequired = errors.New("location is required")
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

type CreateInput struct {
	OccurredAt *time.Time // nil => ahora
	Location   string
	Note       string
}

func (s *Service) Create(ctx context.Context, patientID string, in CreateInput) (FallEvent, error) {
	if strings.TrimSpace(patientID) == "" {
		return FallEvent{}, ErrInvalidInput
	}
	if strings.TrimSpace(in.Location) == "" {
		return FallEvent{}, ErrLocationRequired
	}

	now := s.now()
	occurred := now
	if in.OccurredAt != nil {
		occurred = *in.OccurredAt
	}

	e := FallEvent{
		ID:         uuid.NewString(),
		PatientID:  strings.TrimSpace(patientID),
		OccurredAt: occurred,
		Location:   strings.TrimSpace(in.Location),
		Note:       strings.TrimSpace(in.Note),
		RecordedAt: now,
	}

	if err := s.repo.Create(ctx, e); err != nil {
		return FallEvent{}, err
	}
	return e, nil
}

func (s *Service) ListForPatient(ctx context.Context, patientID string, limit int) ([]FallEvent, error) {
	return s.repo.ListForPatient(ctx, patientID, limit)
}

// CountLast90Days cuenta las caídas de los últimos 90 días, para los
// indicadores de riesgo del listado y el dashboard.
func (s *Service) CountLast90Days(ctx context.Context, patientID string) (int, error) {
	return s.repo.CountSince(ctx, patientID, s.now().AddDate(0, 0, -90))
}

func (s *Service) DeleteForPatient(ctx context.Context, patientID string) error {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return ErrInvalidInput
	}
	return s.repo.DeleteForPatient(ctx, patientID)
}
