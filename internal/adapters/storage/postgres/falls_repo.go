package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"careline/internal/domain/falls"
)

type FallsRepo struct {
	db *sql.DB
}

func NewFallsRepo(db *sql.DB) *FallsRepo {
	return &FallsRepo{db: db}
}

func (r *FallsRepo) Create(ctx context.Context, e falls.FallEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO fall_events (id, patient_id, occurred_at, location, note, recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`,
		e.ID,
		e.PatientID,
		e.OccurredAt,
		e.Location,
		e.Note,
		e.RecordedAt,
	)
	return err
}

func (r *FallsRepo) ListForPatient(ctx context.Context, patientID string, limit int) ([]falls.FallEvent, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, patient_id, occurred_at, location, note, recorded_at
		FROM fall_events
		WHERE patient_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`, patientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]falls.FallEvent, 0)
	for rows.Next() {
		var e falls.FallEvent
		if err := rows.Scan(
			&e.ID,
			&e.PatientID,
			&e.OccurredAt,
			&e.Location,
			&e.Note,
			&e.RecordedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *FallsRepo) CountSince(ctx context.Context, patientID string, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM fall_events
		WHERE patient_id = $1 AND occurred_at >= $2
	`, patientID, since).Scan(&n)
	return n, err
}

func (r *FallsRepo) DeleteForPatient(ctx context.Context, patientID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM fall_events WHERE patient_id = $1`, patientID)
	return err
}
