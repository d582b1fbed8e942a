package cart

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"printstore/internal/domain"
	"printstore/internal/storage"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) Read(ctx context.Context, key string) ([]byte, error) {
	saved, err := r.Get(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, storage.ErrSlotEmpty
	}
	if err != nil {
		return nil, err
	}
	return saved.Payload, nil
}

// Write upserts the slot. payload is stored as JSONB, so invalid JSON is
// rejected by the database rather than saved.
func (r *postgresRepo) Write(ctx context.Context, key string, data []byte) error {
	const q = `
INSERT INTO saved_carts (slot_key, payload, updated_at)
VALUES ($1, $2::jsonb, now())
ON CONFLICT (slot_key) DO UPDATE
SET payload = EXCLUDED.payload,
    updated_at = EXCLUDED.updated_at
`
	_, err := r.pool.Exec(ctx, q, key, string(data))
	return err
}

func (r *postgresRepo) Delete(ctx context.Context, key string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM saved_carts WHERE slot_key = $1`, key)
	return err
}

func (r *postgresRepo) Get(ctx context.Context, key string) (*SavedCart, error) {
	const q = `
SELECT slot_key, payload::text, updated_at
FROM saved_carts
WHERE slot_key = $1
`
	var saved SavedCart
	var payload string
	if err := r.pool.QueryRow(ctx, q, key).Scan(&saved.Key, &payload, &saved.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	saved.Payload = []byte(payload)
	return &saved, nil
}

// PurgeOlderThan removes slots not written since cutoff.
func (r *postgresRepo) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM saved_carts WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
