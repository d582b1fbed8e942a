package domain

import "time"

// Product is the catalog entry mirrored from the product service.
type Product struct {
	ID          string          `json:"id"`
	Key         string          `json:"key"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	BasePrice   float64         `json:"basePrice"`
	Currency    string          `json:"currency"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	BulkTiers   []BulkPriceTier `json:"bulkTiers,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// BulkPriceTier is an inclusive quantity range with its unit price.
type BulkPriceTier struct {
	MinQuantity int     `json:"minQuantity"`
	MaxQuantity int     `json:"maxQuantity"`
	UnitPrice   float64 `json:"unitPrice"`
}

// PriceInfo is the read-only pricing contract the cart consumes per product.
type PriceInfo struct {
	ProductID string          `json:"productId"`
	BasePrice float64         `json:"basePrice"`
	BulkTiers []BulkPriceTier `json:"bulkTiers"`
}

// PriceInfo projects the product onto its pricing contract.
func (p Product) PriceInfo() PriceInfo {
	return PriceInfo{
		ProductID: p.ID,
		BasePrice: p.BasePrice,
		BulkTiers: p.BulkTiers,
	}
}

// Snapshot returns the display fields cached on a cart line.
func (p Product) Snapshot() ProductSnapshot {
	return ProductSnapshot{
		Name:      p.Name,
		BasePrice: p.BasePrice,
		ImageURL:  p.ImageURL,
	}
}
