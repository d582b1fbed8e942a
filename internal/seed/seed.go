package seed

import (
	"context"
	"fmt"

	"printstore/internal/domain"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// Products is the demo catalog. Prices are in INR.
func Products() []domain.Product {
	return []domain.Product{
		{
			Key:         "classic-tee",
			Name:        "Classic Printed T-Shirt",
			Description: "Soft cotton tee, printed with your design",
			BasePrice:   499,
			Currency:    "INR",
			BulkTiers: []domain.BulkPriceTier{
				{MinQuantity: 1, MaxQuantity: 9, UnitPrice: 499},
				{MinQuantity: 10, MaxQuantity: 49, UnitPrice: 449},
				{MinQuantity: 50, MaxQuantity: 199, UnitPrice: 399},
			},
		},
		{
			Key:         "ceramic-mug",
			Name:        "Ceramic Mug",
			Description: "11oz mug with wrap-around print",
			BasePrice:   100,
			Currency:    "INR",
			BulkTiers: []domain.BulkPriceTier{
				{MinQuantity: 1, MaxQuantity: 9, UnitPrice: 100},
				{MinQuantity: 10, MaxQuantity: 49, UnitPrice: 90},
				{MinQuantity: 50, MaxQuantity: 1000, UnitPrice: 80},
			},
		},
		{
			Key:         "sticker-sheet",
			Name:        "Die-cut Sticker Sheet",
			Description: "Weatherproof vinyl stickers",
			BasePrice:   149,
			Currency:    "INR",
		},
	}
}

// Apply upserts the demo catalog. It is idempotent: products are keyed by Key.
func Apply(ctx context.Context, repo ProductWriter) error {
	for _, p := range Products() {
		if _, err := repo.Upsert(ctx, p); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.Key, err)
		}
	}
	return nil
}
