package postgres

import (
	"context"
	"database/sql"
	"strings"

	"careline/internal/domain/patients"
)

type PatientsRepo struct {
	db *sql.DB
}

func NewPatientsRepo(db *sql.DB) *PatientsRepo {
	return &PatientsRepo{db: db}
}

func (r *PatientsRepo) Create(ctx context.Context, p patients.Patient) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO patients (
			id, name, notes,
			date_of_birth, diagnosis, allergies,
			emergency_contact_name, emergency_contact_phone, emergency_contact_relation,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		p.ID,
		p.Name,
		p.Notes,
		toNullTime(p.DateOfBirth),
		p.Diagnosis,
		p.Allergies,
		p.EmergencyContactName,
		p.EmergencyContactPhone,
		p.EmergencyContactRelation,
		p.CreatedAt,
		p.UpdatedAt,
	)
	return err
}

func (r *PatientsRepo) GetByID(ctx context.Context, id string) (patients.Patient, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return patients.Patient{}, patients.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT
			id, name, notes,
			date_of_birth, diagnosis, allergies,
			emergency_contact_name, emergency_contact_phone, emergency_contact_relation,
			created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)

	p, err := scanPatient(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return patients.Patient{}, patients.ErrNotFound
		}
		return patients.Patient{}, err
	}
	return p, nil
}

func (r *PatientsRepo) List(ctx context.Context) ([]patients.Patient, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			id, name, notes,
			date_of_birth, diagnosis, allergies,
			emergency_contact_name, emergency_contact_phone, emergency_contact_relation,
			created_at, updated_at
		FROM patients
		ORDER BY name ASC, created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]patients.Patient, 0)
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PatientsRepo) Update(ctx context.Context, p patients.Patient) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE patients
		SET
			name = $2,
			notes = $3,
			date_of_birth = $4,
			diagnosis = $5,
			allergies = $6,
			emergency_contact_name = $7,
			emergency_contact_phone = $8,
			emergency_contact_relation = $9,
			updated_at = $10
		WHERE id = $1
	`,
		p.ID,
		p.Name,
		p.Notes,
		toNullTime(p.DateOfBirth),
		p.Diagnosis,
		p.Allergies,
		p.EmergencyContactName,
		p.EmergencyContactPhone,
		p.EmergencyContactRelation,
		p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return patients.ErrNotFound
	}
	return nil
}

func (r *PatientsRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return patients.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPatient(row rowScanner) (patients.Patient, error) {
	var (
		p   patients.Patient
		dob sql.NullTime
	)
	if err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Notes,
		&dob,
		&p.Diagnosis,
		&p.Allergies,
		&p.EmergencyContactName,
		&p.EmergencyContactPhone,
		&p.EmergencyContactRelation,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return patients.Patient{}, err
	}
	if dob.Valid {
		t := dob.Time
		p.DateOfBirth = &t
	}
	return p, nil
}
