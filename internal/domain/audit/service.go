package audit

import (
	"context"
	"strings"
	"time"

	"careline/internal/ports/auth"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service escribe el audit trail. Record es best-effort: una falla se loguea
// y no voltea la acción de cuidado que la originó.
type Service struct {
	repo Repository
	log  zerolog.Logger
	now  func() time.Time
}

func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log,
		now:  time.Now,
	}
}

func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) Record(ctx context.Context, action, entityType, entityID string, role auth.Role, meta map[string]any) {
	action = strings.TrimSpace(action)
	if action == "" {
		return
	}

	e := Entry{
		ID:         uuid.NewString(),
		TS:         s.now(),
		Action:     action,
		EntityType: strings.TrimSpace(entityType),
		EntityID:   strings.TrimSpace(entityID),
		ActorRole:  string(role),
		Meta:       meta,
	}

	if err := s.repo.Append(ctx, e); err != nil {
		s.log.Error().Err(err).Str("action", action).Msg("audit append failed")
	}
}

func (s *Service) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.List(ctx, limit)
}
