package doses

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

// MedicationSource resuelve la pauta que respalda un evento. Devuelve
// ErrNotFound cuando la pauta no existe.
type MedicationSource interface {
	GetByID(ctx context.Context, id string) (Medication, error)
}

// Service es el motor de calendario de dosis. Garantiza el invariante de
// "a lo sumo un evento pendiente futuro" por medicamento activo y avanza la
// recurrencia. Las mutaciones sobre entidades inexistentes son no-ops: los
// callers tratan el scheduling como bookkeeping best-effort.
type Service struct {
	repo Repository
	meds MedicationSource
	now  func() time.Time
}

func NewService(repo Repository, meds MedicationSource) *Service {
	return &Service{
		repo: repo,
		meds: meds,
		now:  time.Now,
	}
}

func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// SeedInitial inserta el evento inicial de una pauta recién creada, en su
// hora de inicio. Pautas inactivas no siembran nada.
func (s *Service) SeedInitial(ctx context.Context, med Medication) error {
	if !med.Active {
		return nil
	}
	return s.insert(ctx, med.ID, med.StartTime)
}

// EnsureNextPending materializa, si corresponde, el siguiente evento
// pendiente del medicamento. Idempotente: se invoca tras cada resolución
// (take/skip/undo) y tras reactivar la pauta.
func (s *Service) EnsureNextPending(ctx context.Context, medicationID string) error {
	medicationID = strings.TrimSpace(medicationID)
	if medicationID == "" {
		return nil
	}

	med, err := s.meds.GetByID(ctx, medicationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if !med.Active {
		return nil
	}

	now := s.now()
	freq := time.Duration(med.FrequencyHours) * time.Hour

	latest, err := s.repo.LatestForMedication(ctx, medicationID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		// Sin eventos: sembrar alineado a la grilla de la hora de inicio,
		// avanzando períodos completos hasta alcanzar el presente.
		candidate := med.StartTime
		for candidate.Before(now) {
			candidate = candidate.Add(freq)
		}
		if med.EndTime != nil && candidate.After(*med.EndTime) {
			return nil
		}
		return s.insert(ctx, medicationID, candidate)
	}

	// Ya hay exactamente un pendiente (vencido o no): no generar otro.
	if !latest.Resolved() {
		return nil
	}

	// Re-alinear al presente: se salta los ciclos perdidos en vez de
	// rellenarlos; solo el slot más reciente queda representado.
	next := latest.ScheduledAt.Add(freq)
	for next.Before(now) {
		next = next.Add(freq)
	}
	if med.EndTime != nil && next.After(*med.EndTime) {
		return nil
	}

	// Re-chequeo defensivo contra doble inserción concurrente. Si aún así
	// se cuela un duplicado, se tolera: cada pendiente se resuelve aparte.
	n, err := s.repo.CountUnresolvedFrom(ctx, medicationID, now)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return s.insert(ctx, medicationID, next)
}

// ResetFutureSchedule borra los eventos pendientes con hora >= now y siembra
// uno nuevo en max(seedTime, now), respetando la hora de fin. Los eventos ya
// resueltos nunca se tocan: editar la pauta no altera el historial.
func (s *Service) ResetFutureSchedule(ctx context.Context, medicationID string, seedTime *time.Time) error {
	medicationID = strings.TrimSpace(medicationID)
	if medicationID == "" {
		return nil
	}

	med, err := s.meds.GetByID(ctx, medicationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	now := s.now()
	target := now
	if seedTime != nil && seedTime.After(now) {
		target = *seedTime
	}

	if err := s.repo.DeleteUnresolvedFrom(ctx, medicationID, now); err != nil {
		return err
	}
	if med.EndTime != nil && target.After(*med.EndTime) {
		return nil
	}
	return s.insert(ctx, medicationID, target)
}

// PurgePending borra todos los eventos sin resolver del medicamento, sin
// importar la hora: una pauta pausada no deja obligaciones abiertas.
func (s *Service) PurgePending(ctx context.Context, medicationID string) error {
	medicationID = strings.TrimSpace(medicationID)
	if medicationID == "" {
		return nil
	}
	return s.repo.DeleteUnresolved(ctx, medicationID)
}

// PurgeAll borra todos los eventos del medicamento (cascada de borrado de
// paciente).
func (s *Service) PurgeAll(ctx context.Context, medicationID string) error {
	medicationID = strings.TrimSpace(medicationID)
	if medicationID == "" {
		return nil
	}
	return s.repo.DeleteForMedication(ctx, medicationID)
}

// MarkTaken marca el evento como tomado (y no omitido) y materializa el
// siguiente pendiente. No-op si el evento no existe.
func (s *Service) MarkTaken(ctx context.Context, eventID string) error {
	return s.resolve(ctx, eventID, true, false)
}

// MarkSkipped marca el evento como omitido (y no tomado) y materializa el
// siguiente pendiente. No-op si el evento no existe.
func (s *Service) MarkSkipped(ctx context.Context, eventID string) error {
	return s.resolve(ctx, eventID, false, true)
}

// Undo vuelve el evento a pendiente. También re-dispara EnsureNextPending:
// deshacer puede re-exponer un estado que necesita validar el invariante.
func (s *Service) Undo(ctx context.Context, eventID string) error {
	return s.resolve(ctx, eventID, false, false)
}

func (s *Service) resolve(ctx context.Context, eventID string, taken, skipped bool) error {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil
	}

	ev, err := s.repo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	if err := s.repo.SetResolution(ctx, eventID, taken, skipped); err != nil {
		return err
	}
	return s.EnsureNextPending(ctx, ev.MedicationID)
}

// SaveNote guarda la nota libre del evento sin tocar las banderas.
func (s *Service) SaveNote(ctx context.Context, eventID, note string) error {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil
	}
	if _, err := s.repo.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	return s.repo.SetNote(ctx, eventID, strings.TrimSpace(note))
}

func (s *Service) GetByID(ctx context.Context, id string) (DoseEvent, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return DoseEvent{}, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListForMedication(ctx context.Context, medicationID string, limit int) ([]DoseEvent, error) {
	return s.repo.ListForMedication(ctx, medicationID, limit)
}

// ListUpcoming alimenta la lista de alertas; el handler clasifica y ordena.
func (s *Service) ListUpcoming(ctx context.Context, filter UpcomingFilter) ([]EventDetail, error) {
	return s.repo.ListUpcoming(ctx, filter, s.now())
}

// ListForDay devuelve los eventos del paciente para el día corriente.
func (s *Service) ListForDay(ctx context.Context, patientID string) ([]EventDetail, error) {
	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return s.repo.ListForPatientDay(ctx, patientID, dayStart, dayStart.Add(24*time.Hour))
}

// ListOverduePending lista los pendientes vencidos del paciente (inspección
// en dev).
func (s *Service) ListOverduePending(ctx context.Context, patientID string) ([]EventDetail, error) {
	return s.repo.ListOverduePending(ctx, patientID, s.now())
}

// Now expone el reloj del servicio para que los handlers clasifiquen con el
// mismo "ahora" que usó el motor.
func (s *Service) Now() time.Time {
	return s.now()
}

func (s *Service) insert(ctx context.Context, medicationID string, at time.Time) error {
	return s.repo.Create(ctx, DoseEvent{
		ID:           uuid.NewString(),
		MedicationID: medicationID,
		ScheduledAt:  at,
	})
}
