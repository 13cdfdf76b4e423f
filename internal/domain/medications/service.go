package medications

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Errores de validación visibles al usuario: son la única validación que la
// UI de cuidadores muestra tal cual.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNameRequired = errors.New("name is required")
	ErrDoseRequired = errors.New("dose is required")
	ErrBadFrequency = errors.New("frequency_hours must be a positive integer")
	ErrNotFound     = errors.New("not found")
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

type UpsertInput struct {
	Name           string
	Dose           string
	FrequencyHours int
	Notes          string
	StartTime      *time.Time // nil => ahora (solo en Create)
	EndTime        *time.Time
	RxNormID       string
	RxNormName     string
}

func (in UpsertInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrNameRequired
	}
	if strings.TrimSpace(in.Dose) == "" {
		return ErrDoseRequired
	}
	if in.FrequencyHours <= 0 {
		return ErrBadFrequency
	}
	return nil
}

func (s *Service) Create(ctx context.Context, patientID string, in UpsertInput) (Medication, error) {
	if strings.TrimSpace(patientID) == "" {
		return Medication{}, ErrInvalidInput
	}
	if err := in.validate(); err != nil {
		return Medication{}, err
	}

	now := s.now()
	start := now
	if in.StartTime != nil {
		start = *in.StartTime
	}

	m := Medication{
		ID:        uuid.NewString(),
		PatientID: strings.TrimSpace(patientID),

		Name: strings.TrimSpace(in.Name),
		Dose: strings.TrimSpace(in.Dose),

		FrequencyHours: in.FrequencyHours,
		Notes:          strings.TrimSpace(in.Notes),

		StartTime: start,
		EndTime:   in.EndTime,
		Active:    true,

		RxNormID:   strings.TrimSpace(in.RxNormID),
		RxNormName: strings.TrimSpace(in.RxNormName),

		CreatedAt: now,
		UpdatedAt: now,
	}
	if m.RxNormName == "" {
		m.RxNormName = m.Name
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return Medication{}, err
	}
	return m, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Medication, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Medication{}, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListForPatient(ctx context.Context, patientID string) ([]Medication, error) {
	return s.repo.ListForPatient(ctx, patientID)
}

// Update edita la pauta. El reset del calendario futuro lo dispara el
// handler vía el motor de dosis, para que el cambio rija de inmediato sin
// tocar el historial.
func (s *Service) Update(ctx context.Context, id string, in UpsertInput) (Medication, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Medication{}, ErrInvalidInput
	}
	if err := in.validate(); err != nil {
		return Medication{}, err
	}

	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Medication{}, err
	}

	m.Name = strings.TrimSpace(in.Name)
	m.Dose = strings.TrimSpace(in.Dose)
	m.FrequencyHours = in.FrequencyHours
	m.Notes = strings.TrimSpace(in.Notes)
	if in.StartTime != nil {
		m.StartTime = *in.StartTime
	}
	m.EndTime = in.EndTime
	m.RxNormID = strings.TrimSpace(in.RxNormID)
	if v := strings.TrimSpace(in.RxNormName); v != "" {
		m.RxNormName = v
	} else {
		m.RxNormName = m.Name
	}
	m.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, m); err != nil {
		return Medication{}, err
	}
	return m, nil
}

// ToggleActive invierte el flag activo y devuelve la pauta actualizada.
// El handler purga pendientes (off) o re-siembra (on) vía el motor de dosis.
func (s *Service) ToggleActive(ctx context.Context, id string) (Medication, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Medication{}, ErrInvalidInput
	}

	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Medication{}, err
	}

	m.Active = !m.Active
	m.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, m); err != nil {
		return Medication{}, err
	}
	return m, nil
}

func (s *Service) DeleteForPatient(ctx context.Context, patientID string) error {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return ErrInvalidInput
	}
	return s.repo.DeleteForPatient(ctx, patientID)
}
