package patients

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
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

// SetClock inyecta la fuente de "ahora" (offset de demo, tests).
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

type UpsertInput struct {
	Name        string
	Notes       string
	DateOfBirth *time.Time
	Diagnosis   string
	Allergies   string

	EmergencyContactName     string
	EmergencyContactPhone    string
	EmergencyContactRelation string
}

func (s *Service) Create(ctx context.Context, in UpsertInput) (Patient, error) {
	if strings.TrimSpace(in.Name) == "" {
		return Patient{}, ErrInvalidInput
	}

	now := s.now()
	p := Patient{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Notes:       strings.TrimSpace(in.Notes),
		DateOfBirth: in.DateOfBirth,
		Diagnosis:   strings.TrimSpace(in.Diagnosis),
		Allergies:   strings.TrimSpace(in.Allergies),

		EmergencyContactName:     strings.TrimSpace(in.EmergencyContactName),
		EmergencyContactPhone:    strings.TrimSpace(in.EmergencyContactPhone),
		EmergencyContactRelation: strings.TrimSpace(in.EmergencyContactRelation),

		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return Patient{}, err
	}
	return p, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Patient, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Patient{}, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Patient, error) {
	return s.repo.List(ctx)
}

func (s *Service) Update(ctx context.Context, id string, in UpsertInput) (Patient, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.TrimSpace(in.Name) == "" {
		return Patient{}, ErrInvalidInput
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Patient{}, err
	}

	p.Name = strings.TrimSpace(in.Name)
	p.Notes = strings.TrimSpace(in.Notes)
	p.DateOfBirth = in.DateOfBirth
	p.Diagnosis = strings.TrimSpace(in.Diagnosis)
	p.Allergies = strings.TrimSpace(in.Allergies)
	p.EmergencyContactName = strings.TrimSpace(in.EmergencyContactName)
	p.EmergencyContactPhone = strings.TrimSpace(in.EmergencyContactPhone)
	p.EmergencyContactRelation = strings.TrimSpace(in.EmergencyContactRelation)
	p.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, p); err != nil {
		return Patient{}, err
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrInvalidInput
	}
	return s.repo.Delete(ctx, id)
}

// AgeOf devuelve la edad del paciente al "ahora" del servicio.
func (s *Service) AgeOf(p Patient) *int {
	return p.Age(s.now())
}
