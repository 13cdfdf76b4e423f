package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// migration es un paso de esquema versionado. Los pasos se aplican en orden
// y cada uno corre dentro de su propia transacción.
type migration struct {
	version int
	name    string
	stmts   []string
}

var migrations = []migration{
	{
		version: 1,
		name:    "base_schema",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS patients (
				id         TEXT PRIMARY KEY,
				name       TEXT NOT NULL,
				notes      TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS medications (
				id              TEXT PRIMARY KEY,
				patient_id      TEXT NOT NULL REFERENCES patients(id) ON DELETE CASCADE,
				name            TEXT NOT NULL,
				dose            TEXT NOT NULL,
				frequency_hours INTEGER NOT NULL,
				notes           TEXT NOT NULL DEFAULT '',
				start_time      TIMESTAMPTZ NOT NULL,
				end_time        TIMESTAMPTZ,
				active          BOOLEAN NOT NULL DEFAULT TRUE,
				created_at      TIMESTAMPTZ NOT NULL,
				updated_at      TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_medications_patient ON medications(patient_id)`,
			`CREATE TABLE IF NOT EXISTS dose_events (
				id            TEXT PRIMARY KEY,
				medication_id TEXT NOT NULL REFERENCES medications(id) ON DELETE CASCADE,
				scheduled_at  TIMESTAMPTZ NOT NULL,
				taken         BOOLEAN NOT NULL DEFAULT FALSE,
				skipped       BOOLEAN NOT NULL DEFAULT FALSE,
				note          TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE INDEX IF NOT EXISTS idx_dose_events_med_sched ON dose_events(medication_id, scheduled_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_dose_events_pending ON dose_events(medication_id, scheduled_at)
				WHERE NOT taken AND NOT skipped`,
		},
	},
	{
		version: 2,
		name:    "falls_and_audit",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS fall_events (
				id          TEXT PRIMARY KEY,
				patient_id  TEXT NOT NULL REFERENCES patients(id) ON DELETE CASCADE,
				occurred_at TIMESTAMPTZ NOT NULL,
				location    TEXT NOT NULL,
				note        TEXT NOT NULL DEFAULT '',
				recorded_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_fall_events_patient ON fall_events(patient_id, occurred_at DESC)`,
			`CREATE TABLE IF NOT EXISTS audit_log (
				id          TEXT PRIMARY KEY,
				ts          TIMESTAMPTZ NOT NULL,
				action      TEXT NOT NULL,
				entity_type TEXT NOT NULL DEFAULT '',
				entity_id   TEXT NOT NULL DEFAULT '',
				actor_role  TEXT NOT NULL DEFAULT '',
				meta        JSONB
			)`,
			`CREATE INDEX IF NOT EXISTS idx_audit_log_ts ON audit_log(ts DESC)`,
		},
	},
	{
		version: 3,
		name:    "patient_profile",
		stmts: []string{
			`ALTER TABLE patients ADD COLUMN IF NOT EXISTS date_of_birth DATE`,
			`ALTER TABLE patients ADD COLUMN IF NOT EXISTS diagnosis TEXT NOT NULL DEFAULT ''`,
			`ALTER TABLE patients ADD COLUMN IF NOT EXISTS allergies TEXT NOT NULL DEFAULT ''`,
			`ALTER TABLE patients ADD COLUMN IF NOT EXISTS emergency_contact_name TEXT NOT NULL DEFAULT ''`,
			`ALTER TABLE patients ADD COLUMN IF NOT EXISTS emergency_contact_phone TEXT NOT NULL DEFAULT ''`,
			`ALTER TABLE patients ADD COLUMN IF NOT EXISTS emergency_contact_relation TEXT NOT NULL DEFAULT ''`,
		},
	},
	{
		version: 4,
		name:    "rxnorm",
		stmts: []string{
			`ALTER TABLE medications ADD COLUMN IF NOT EXISTS rxnorm_id TEXT NOT NULL DEFAULT ''`,
			`ALTER TABLE medications ADD COLUMN IF NOT EXISTS rxnorm_name TEXT NOT NULL DEFAULT ''`,
			`CREATE TABLE IF NOT EXISTS rxnorm_cache (
				query      TEXT PRIMARY KEY,
				payload    JSONB NOT NULL,
				fetched_at TIMESTAMPTZ NOT NULL
			)`,
		},
	},
}

// AppliedMigration es una fila de schema_migrations.
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
}

const createMigrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// Migrate aplica en orden los pasos pendientes.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`,
	).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range m.stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`,
		m.version, m.name,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// Status devuelve las migraciones ya aplicadas y los nombres pendientes.
func Status(ctx context.Context, db *sql.DB) ([]AppliedMigration, []string, error) {
	if _, err := db.ExecContext(ctx, createMigrationsTable); err != nil {
		return nil, nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT version, name, applied_at
		FROM schema_migrations
		ORDER BY version ASC
	`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	applied := make([]AppliedMigration, 0, len(migrations))
	seen := make(map[int]bool)
	for rows.Next() {
		var a AppliedMigration
		if err := rows.Scan(&a.Version, &a.Name, &a.AppliedAt); err != nil {
			return nil, nil, err
		}
		applied = append(applied, a)
		seen[a.Version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var pending []string
	for _, m := range migrations {
		if !seen[m.version] {
			pending = append(pending, fmt.Sprintf("%d_%s", m.version, m.name))
		}
	}
	return applied, pending, nil
}
