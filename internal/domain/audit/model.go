package audit

import "time"

// Entry es un registro de auditoría append-only de una acción de cuidado.
type Entry struct {
	ID string
	TS time.Time

	Action     string
	EntityType string
	EntityID   string

	ActorRole string
	Meta      map[string]any
}
