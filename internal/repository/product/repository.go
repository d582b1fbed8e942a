package product

import (
	"context"

	"printstore/internal/domain"
)

type Repository interface {
	List(ctx context.Context) ([]domain.Product, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetByKey(ctx context.Context, key string) (*domain.Product, error)
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
	PriceInfo(ctx context.Context, ids []string) (map[string]domain.PriceInfo, error)
}
