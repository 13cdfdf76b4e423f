package doses

import "time"

// DoseEvent es una instancia concreta de administración de un medicamento.
// Taken y Skipped son mutuamente excluyentes; con ambos en false el evento
// está pendiente (sin resolver).
type DoseEvent struct {
	ID           string
	MedicationID string

	ScheduledAt time.Time
	Taken       bool
	Skipped     bool

	Note string
}

// Resolved reporta si el evento ya fue tomado u omitido.
func (e DoseEvent) Resolved() bool {
	return e.Taken || e.Skipped
}

// EventDetail es un evento enriquecido con datos del medicamento y del
// paciente para listas de alertas y líneas de tiempo.
type EventDetail struct {
	DoseEvent

	MedicationName   string
	MedicationDose   string
	MedicationActive bool
	FrequencyHours   int

	PatientID   string
	PatientName string
}

// UpcomingFilter filtra la lista de alertas.
type UpcomingFilter struct {
	PatientName string // match parcial, case-insensitive
	Limit       int    // default 50
}

// Medication es la vista del motor sobre una pauta: solo lo que el calendario
// necesita para materializar eventos.
type Medication struct {
	ID             string
	Active         bool
	FrequencyHours int
	StartTime      time.Time
	EndTime        *time.Time
}
