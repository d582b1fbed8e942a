package product

import (
	"context"
	"strings"

	"printstore/internal/domain"
)

type Service struct {
	repo repository
}

type repository interface {
	List(ctx context.Context) ([]domain.Product, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	PriceInfo(ctx context.Context, ids []string) (map[string]domain.PriceInfo, error)
}

func New(repo repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.NewError(domain.CodeValidation, "product id required")
	}
	return s.repo.GetByID(ctx, id)
}

// GetByID satisfies the cart service's catalog lookup.
func (s *Service) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	return s.Get(ctx, id)
}

// PriceInfo resolves the pricing contract for the given products, skipping
// blank and duplicate ids.
func (s *Service) PriceInfo(ctx context.Context, ids []string) (map[string]domain.PriceInfo, error) {
	seen := make(map[string]struct{}, len(ids))
	clean := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		clean = append(clean, id)
	}
	if len(clean) == 0 {
		return map[string]domain.PriceInfo{}, nil
	}
	return s.repo.PriceInfo(ctx, clean)
}
