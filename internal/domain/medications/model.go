package medications

import "time"

// Medication es una pauta de medicación recurrente de un paciente.
// FrequencyHours define el paso de la recurrencia; el motor de dosis
// (internal/domain/doses) materializa los eventos concretos.
type Medication struct {
	ID        string
	PatientID string

	Name string
	Dose string // descripción libre: "10mg", "1 inhalación"

	FrequencyHours int // horas entre dosis, > 0
	Notes          string

	StartTime time.Time
	EndTime   *time.Time
	Active    bool

	// Referencia opcional al vocabulario RxNorm elegido al crear/editar.
	RxNormID   string
	RxNormName string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Ended reporta si la pauta ya terminó respecto de "ahora".
func (m Medication) Ended(now time.Time) bool {
	return m.EndTime != nil && !m.EndTime.After(now)
}
