package doses

import "time"

type EventStatus string

const (
	StatusTaken    EventStatus = "TAKEN"
	StatusSkipped  EventStatus = "SKIPPED"
	StatusOverdue  EventStatus = "OVERDUE"
	StatusUpcoming EventStatus = "UPCOMING"
)

// Buckets de orden para render: vencidas primero, luego próximas, resueltas
// al final. Dentro de cada bucket se ordena por hora programada ascendente.
const (
	bucketOverdue  = 0
	bucketUpcoming = 1
	bucketResolved = 2
)

// Classification es la salida del clasificador para la capa de presentación.
type Classification struct {
	Status      EventStatus
	Bucket      int
	ScheduledAt time.Time
	HourLabel   string // "HH:00", para agrupar por hora del día
}

// Classify clasifica un evento respecto de "now". Las banderas de resolución
// dominan sobre la comparación temporal. Si la hora programada viene vacía
// (fila vieja ilegible), se usa "now" solo como clave de orden: el error de
// parseo nunca es fatal.
func Classify(e DoseEvent, now time.Time) Classification {
	sched := e.ScheduledAt
	if sched.IsZero() {
		sched = now
	}

	var (
		status EventStatus
		bucket int
	)
	switch {
	case e.Skipped:
		status = StatusSkipped
		bucket = bucketResolved
	case e.Taken:
		status = StatusTaken
		bucket = bucketResolved
	case sched.Before(now):
		status = StatusOverdue
		bucket = bucketOverdue
	default:
		status = StatusUpcoming
		bucket = bucketUpcoming
	}

	return Classification{
		Status:      status,
		Bucket:      bucket,
		ScheduledAt: sched,
		HourLabel:   sched.Format("15:00"),
	}
}
