package postgres

import (
	"context"
	"database/sql"
	"strings"

	"careline/internal/domain/medications"
)

type MedicationsRepo struct {
	db *sql.DB
}

func NewMedicationsRepo(db *sql.DB) *MedicationsRepo {
	return &MedicationsRepo{db: db}
}

func (r *MedicationsRepo) Create(ctx context.Context, m medications.Medication) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO medications (
			id, patient_id,
			name, dose, frequency_hours, notes,
			start_time, end_time, active,
			rxnorm_id, rxnorm_name,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		m.ID,
		m.PatientID,
		m.Name,
		m.Dose,
		m.FrequencyHours,
		m.Notes,
		m.StartTime,
		toNullTime(m.EndTime),
		m.Active,
		m.RxNormID,
		m.RxNormName,
		m.CreatedAt,
		m.UpdatedAt,
	)
	return err
}

func (r *MedicationsRepo) GetByID(ctx context.Context, id string) (medications.Medication, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return medications.Medication{}, medications.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT
			id, patient_id,
			name, dose, frequency_hours, notes,
			start_time, end_time, active,
			rxnorm_id, rxnorm_name,
			created_at, updated_at
		FROM medications
		WHERE id = $1
	`, id)

	m, err := scanMedication(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return medications.Medication{}, medications.ErrNotFound
		}
		return medications.Medication{}, err
	}
	return m, nil
}

func (r *MedicationsRepo) ListForPatient(ctx context.Context, patientID string) ([]medications.Medication, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT
			id, patient_id,
			name, dose, frequency_hours, notes,
			start_time, end_time, active,
			rxnorm_id, rxnorm_name,
			created_at, updated_at
		FROM medications
		WHERE patient_id = $1
		ORDER BY created_at ASC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]medications.Medication, 0)
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *MedicationsRepo) Update(ctx context.Context, m medications.Medication) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE medications
		SET
			name = $2,
			dose = $3,
			frequency_hours = $4,
			notes = $5,
			start_time = $6,
			end_time = $7,
			active = $8,
			rxnorm_id = $9,
			rxnorm_name = $10,
			updated_at = $11
		WHERE id = $1
	`,
		m.ID,
		m.Name,
		m.Dose,
		m.FrequencyHours,
		m.Notes,
		m.StartTime,
		toNullTime(m.EndTime),
		m.Active,
		m.RxNormID,
		m.RxNormName,
		m.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return medications.ErrNotFound
	}
	return nil
}

func (r *MedicationsRepo) DeleteForPatient(ctx context.Context, patientID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM medications WHERE patient_id = $1`, patientID)
	return err
}

func scanMedication(row rowScanner) (medications.Medication, error) {
	var (
		m   medications.Medication
		end sql.NullTime
	)
	if err := row.Scan(
		&m.ID,
		&m.PatientID,
		&m.Name,
		&m.Dose,
		&m.FrequencyHours,
		&m.Notes,
		&m.StartTime,
		&end,
		&m.Active,
		&m.RxNormID,
		&m.RxNormName,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return medications.Medication{}, err
	}
	m.EndTime = fromNullTime(end)
	return m, nil
}
