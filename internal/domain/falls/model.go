package falls

import "time"

// FallEvent es un incidente de caída de un paciente. Append-only: una vez
// registrado no se edita; solo desaparece con la cascada de borrado del
// paciente.
type FallEvent struct {
	ID        string
	PatientID string

	OccurredAt time.Time
	Location   string
	Note       string

	RecordedAt time.Time
}
