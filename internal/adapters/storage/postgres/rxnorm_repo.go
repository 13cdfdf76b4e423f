package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"careline/internal/adapters/rxnorm"
)

// RxNormCacheRepo persiste las respuestas de RxNav por consulta normalizada.
type RxNormCacheRepo struct {
	db *sql.DB
}

func NewRxNormCacheRepo(db *sql.DB) *RxNormCacheRepo {
	return &RxNormCacheRepo{db: db}
}

func (r *RxNormCacheRepo) Get(ctx context.Context, query string, freshSince time.Time) ([]rxnorm.Suggestion, bool, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT payload
		FROM rxnorm_cache
		WHERE query = $1 AND fetched_at >= $2
	`, query, freshSince).Scan(&raw)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}

	items := make([]rxnorm.Suggestion, 0)
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false, err
	}
	return items, true, nil
}

func (r *RxNormCacheRepo) Put(ctx context.Context, query string, items []rxnorm.Suggestion, fetchedAt time.Time) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO rxnorm_cache (query, payload, fetched_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (query) DO UPDATE
		SET payload = EXCLUDED.payload, fetched_at = EXCLUDED.fetched_at
	`, query, raw, fetchedAt)
	return err
}
