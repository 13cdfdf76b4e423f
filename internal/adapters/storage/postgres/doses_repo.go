package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"careline/internal/domain/doses"
)

type DoseEventsRepo struct {
	db *sql.DB
}

func NewDoseEventsRepo(db *sql.DB) *DoseEventsRepo {
	return &DoseEventsRepo{db: db}
}

func (r *DoseEventsRepo) Create(ctx context.Context, e doses.DoseEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dose_events (id, medication_id, scheduled_at, taken, skipped, note)
		VALUES ($1,$2,$3,$4,$5,$6)
	`,
		e.ID,
		e.MedicationID,
		e.ScheduledAt,
		e.Taken,
		e.Skipped,
		e.Note,
	)
	return err
}

func (r *DoseEventsRepo) GetByID(ctx context.Context, id string) (doses.DoseEvent, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return doses.DoseEvent{}, doses.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT id, medication_id, scheduled_at, taken, skipped, note
		FROM dose_events
		WHERE id = $1
	`, id)

	e, err := scanDoseEvent(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return doses.DoseEvent{}, doses.ErrNotFound
		}
		return doses.DoseEvent{}, err
	}
	return e, nil
}

func (r *DoseEventsRepo) LatestForMedication(ctx context.Context, medicationID string) (doses.DoseEvent, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, medication_id, scheduled_at, taken, skipped, note
		FROM dose_events
		WHERE medication_id = $1
		ORDER BY scheduled_at DESC
		LIMIT 1
	`, medicationID)

	e, err := scanDoseEvent(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return doses.DoseEvent{}, doses.ErrNotFound
		}
		return doses.DoseEvent{}, err
	}
	return e, nil
}

func (r *DoseEventsRepo) ListForMedication(ctx context.Context, medicationID string, limit int) ([]doses.DoseEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, medication_id, scheduled_at, taken, skipped, note
		FROM dose_events
		WHERE medication_id = $1
		ORDER BY scheduled_at DESC
		LIMIT $2
	`, medicationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]doses.DoseEvent, 0)
	for rows.Next() {
		e, err := scanDoseEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *DoseEventsRepo) SetResolution(ctx context.Context, id string, taken, skipped bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE dose_events SET taken = $2, skipped = $3 WHERE id = $1
	`, id, taken, skipped)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return doses.ErrNotFound
	}
	return nil
}

func (r *DoseEventsRepo) SetNote(ctx context.Context, id, note string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE dose_events SET note = $2 WHERE id = $1
	`, id, note)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return doses.ErrNotFound
	}
	return nil
}

func (r *DoseEventsRepo) CountUnresolvedFrom(ctx context.Context, medicationID string, from time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM dose_events
		WHERE medication_id = $1 AND NOT taken AND NOT skipped AND scheduled_at >= $2
	`, medicationID, from).Scan(&n)
	return n, err
}

func (r *DoseEventsRepo) DeleteUnresolvedFrom(ctx context.Context, medicationID string, from time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM dose_events
		WHERE medication_id = $1 AND NOT taken AND NOT skipped AND scheduled_at >= $2
	`, medicationID, from)
	return err
}

func (r *DoseEventsRepo) DeleteUnresolved(ctx context.Context, medicationID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM dose_events
		WHERE medication_id = $1 AND NOT taken AND NOT skipped
	`, medicationID)
	return err
}

func (r *DoseEventsRepo) DeleteForMedication(ctx context.Context, medicationID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM dose_events WHERE medication_id = $1
	`, medicationID)
	return err
}

func (r *DoseEventsRepo) AdherenceSummary(ctx context.Context, patientID string, start, end, now time.Time) (doses.Summary, error) {
	var s doses.Summary
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE e.taken AND e.scheduled_at < $4),
			COUNT(*) FILTER (WHERE e.skipped AND e.scheduled_at < $4),
			COUNT(*) FILTER (WHERE NOT e.taken AND NOT e.skipped AND e.scheduled_at < $4),
			COUNT(*) FILTER (WHERE NOT e.taken AND NOT e.skipped AND e.scheduled_at >= $4)
		FROM dose_events e
		JOIN medications m ON m.id = e.medication_id
		WHERE m.patient_id = $1
		  AND m.active
		  AND e.scheduled_at >= $2
		  AND e.scheduled_at < $3
	`, patientID, start, end, now).Scan(
		&s.TakenDue,
		&s.SkippedDue,
		&s.OverdueDue,
		&s.PendingFuture,
	)
	return s, err
}

func (r *DoseEventsRepo) CountOverdue(ctx context.Context, patientID string, now time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM dose_events e
		JOIN medications m ON m.id = e.medication_id
		WHERE m.patient_id = $1
		  AND m.active
		  AND NOT e.taken AND NOT e.skipped
		  AND e.scheduled_at < $2
	`, patientID, now).Scan(&n)
	return n, err
}

const detailColumns = `
	e.id, e.medication_id, e.scheduled_at, e.taken, e.skipped, e.note,
	m.name, m.dose, m.active, m.frequency_hours,
	p.id, p.name
`

func (r *DoseEventsRepo) ListUpcoming(ctx context.Context, filter doses.UpcomingFilter, now time.Time) ([]doses.EventDetail, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	name := "%" + strings.TrimSpace(filter.PatientName) + "%"

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+detailColumns+`
		FROM dose_events e
		JOIN medications m ON m.id = e.medication_id
		JOIN patients p ON p.id = m.patient_id
		WHERE e.scheduled_at >= $1
		  AND p.name ILIKE $2
		ORDER BY e.scheduled_at ASC
		LIMIT $3
	`, now.Add(-24*time.Hour), name, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDetails(rows)
}

func (r *DoseEventsRepo) ListForPatientDay(ctx context.Context, patientID string, dayStart, dayEnd time.Time) ([]doses.EventDetail, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+detailColumns+`
		FROM dose_events e
		JOIN medications m ON m.id = e.medication_id
		JOIN patients p ON p.id = m.patient_id
		WHERE p.id = $1
		  AND e.scheduled_at >= $2
		  AND e.scheduled_at < $3
		ORDER BY e.scheduled_at ASC
	`, patientID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDetails(rows)
}

func (r *DoseEventsRepo) ListOverduePending(ctx context.Context, patientID string, now time.Time) ([]doses.EventDetail, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+detailColumns+`
		FROM dose_events e
		JOIN medications m ON m.id = e.medication_id
		JOIN patients p ON p.id = m.patient_id
		WHERE p.id = $1
		  AND m.active
		  AND NOT e.taken AND NOT e.skipped
		  AND e.scheduled_at < $2
		ORDER BY e.scheduled_at ASC
	`, patientID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDetails(rows)
}

func scanDoseEvent(row rowScanner) (doses.DoseEvent, error) {
	var e doses.DoseEvent
	err := row.Scan(
		&e.ID,
		&e.MedicationID,
		&e.ScheduledAt,
		&e.Taken,
		&e.Skipped,
		&e.Note,
	)
	return e, err
}

func scanDetails(rows *sql.Rows) ([]doses.EventDetail, error) {
	out := make([]doses.EventDetail, 0)
	for rows.Next() {
		var d doses.EventDetail
		if err := rows.Scan(
			&d.ID,
			&d.MedicationID,
			&d.ScheduledAt,
			&d.Taken,
			&d.Skipped,
			&d.Note,
			&d.MedicationName,
			&d.MedicationDose,
			&d.MedicationActive,
			&d.FrequencyHours,
			&d.PatientID,
			&d.PatientName,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
