package httpserver

import (
	"time"

	"printstore/internal/domain"
	"printstore/internal/pricing"
)

type productResponse struct {
	ID                 string         `json:"id"`
	Key                string         `json:"key,omitempty"`
	Name               string         `json:"name"`
	Description        string         `json:"description,omitempty"`
	BasePrice          float64        `json:"basePrice"`
	FormattedBasePrice string         `json:"formattedBasePrice"`
	Currency           string         `json:"currency"`
	ImageURL           string         `json:"imageUrl,omitempty"`
	BulkTiers          []tierResponse `json:"bulkTiers"`
	CreatedAt          time.Time      `json:"createdAt"`
}

type tierResponse struct {
	MinQuantity        int     `json:"minQuantity"`
	MaxQuantity        int     `json:"maxQuantity"`
	UnitPrice          float64 `json:"unitPrice"`
	FormattedUnitPrice string  `json:"formattedUnitPrice"`
}

type cartResponse struct {
	Items         []lineResponse   `json:"items"`
	Discount      discountResponse `json:"discount"`
	Totals        totalsResponse   `json:"totals"`
	TotalQuantity int              `json:"totalQuantity"`
}

type lineResponse struct {
	LineID                 string                    `json:"lineId"`
	ProductID              string                    `json:"productId"`
	Name                   string                    `json:"name"`
	ImageURL               string                    `json:"imageUrl,omitempty"`
	BasePrice              float64                   `json:"basePrice"`
	Quantity               int                       `json:"quantity"`
	SelectedCustomizations map[string]string         `json:"selectedCustomizations"`
	Design                 *domain.DesignReference   `json:"design,omitempty"`
	UserCustomization      *domain.UserCustomization `json:"userCustomization,omitempty"`
	AddedAt                time.Time                 `json:"addedAt"`
}

type discountResponse struct {
	Code               string  `json:"code,omitempty"`
	DiscountPercentage float64 `json:"discountPercentage"`
	IsValid            bool    `json:"isValid"`
}

type totalsResponse struct {
	Subtotal                float64 `json:"subtotal"`
	DiscountAmount          float64 `json:"discountAmount"`
	GrandTotal              float64 `json:"grandTotal"`
	FormattedSubtotal       string  `json:"formattedSubtotal"`
	FormattedDiscountAmount string  `json:"formattedDiscountAmount"`
	FormattedGrandTotal     string  `json:"formattedGrandTotal"`
}

func toProductResponse(p domain.Product) productResponse {
	tiers := make([]tierResponse, 0, len(p.BulkTiers))
	for _, t := range p.BulkTiers {
		tiers = append(tiers, tierResponse{
			MinQuantity:        t.MinQuantity,
			MaxQuantity:        t.MaxQuantity,
			UnitPrice:          t.UnitPrice,
			FormattedUnitPrice: pricing.Format(t.UnitPrice, p.Currency),
		})
	}
	return productResponse{
		ID:                 p.ID,
		Key:                p.Key,
		Name:               p.Name,
		Description:        p.Description,
		BasePrice:          p.BasePrice,
		FormattedBasePrice: pricing.Format(p.BasePrice, p.Currency),
		Currency:           p.Currency,
		ImageURL:           p.ImageURL,
		BulkTiers:          tiers,
		CreatedAt:          p.CreatedAt,
	}
}

// toCartResponse renders a priced cart. Totals are computed values; the
// formatted strings are for display only.
func toCartResponse(snap domain.CartSnapshot, currency string) cartResponse {
	items := make([]lineResponse, 0, len(snap.Items))
	for _, line := range snap.Items {
		name := line.Product.Name
		if name == "" {
			name = line.ProductID
		}
		customizations := line.SelectedCustomizations
		if customizations == nil {
			customizations = map[string]string{}
		}
		items = append(items, lineResponse{
			LineID:                 line.LineID,
			ProductID:              line.ProductID,
			Name:                   name,
			ImageURL:               line.Product.ImageURL,
			BasePrice:              line.Product.BasePrice,
			Quantity:               line.Quantity,
			SelectedCustomizations: customizations,
			Design:                 line.Design,
			UserCustomization:      line.UserCustomization,
			AddedAt:                line.AddedAt,
		})
	}

	discount := discountResponse{IsValid: snap.Discount.IsValid}
	if snap.Discount.IsValid {
		discount.Code = snap.Discount.Code
		discount.DiscountPercentage = snap.Discount.DiscountPercentage
	}

	t := snap.Totals
	return cartResponse{
		Items:    items,
		Discount: discount,
		Totals: totalsResponse{
			Subtotal:                t.Subtotal,
			DiscountAmount:          t.DiscountAmount,
			GrandTotal:              t.GrandTotal,
			FormattedSubtotal:       pricing.Format(t.Subtotal, currency),
			FormattedDiscountAmount: pricing.Format(t.DiscountAmount, currency),
			FormattedGrandTotal:     pricing.Format(t.GrandTotal, currency),
		},
		TotalQuantity: snap.TotalQuantity(),
	}
}
