package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"careline/internal/domain/audit"
)

type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

func (r *AuditRepo) Append(ctx context.Context, e audit.Entry) error {
	var meta []byte
	if e.Meta != nil {
		raw, err := json.Marshal(e.Meta)
		if err != nil {
			return err
		}
		meta = raw
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, ts, action, entity_type, entity_id, actor_role, meta)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		e.ID,
		e.TS,
		e.Action,
		e.EntityType,
		e.EntityID,
		e.ActorRole,
		meta,
	)
	return err
}

func (r *AuditRepo) List(ctx context.Context, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, ts, action, entity_type, entity_id, actor_role, meta
		FROM audit_log
		ORDER BY ts DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]audit.Entry, 0)
	for rows.Next() {
		var (
			e   audit.Entry
			raw []byte
		)
		if err := rows.Scan(
			&e.ID,
			&e.TS,
			&e.Action,
			&e.EntityType,
			&e.EntityID,
			&e.ActorRole,
			&raw,
		); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &e.Meta); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
