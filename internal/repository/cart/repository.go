package cart

import (
	"context"
	"time"
)

// SavedCart is a row of saved_carts.
type SavedCart struct {
	Key       string
	Payload   []byte
	UpdatedAt time.Time
}

// Repository stores encoded cart slots. It satisfies storage.Backend.
type Repository interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Get(ctx context.Context, key string) (*SavedCart, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
