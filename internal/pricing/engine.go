// Package pricing computes unit prices, line totals and cart totals.
//
// Amounts are float64 throughout and are only rounded by Round/Format at the
// presentation or wire boundary.
package pricing

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"printstore/internal/domain"
)

// ErrPriceInfoMissing means a line item references a product with no price info.
// It is a programmer error: totals must never silently treat it as zero.
var ErrPriceInfoMissing = errors.New("price info missing for product")

// UnitPrice resolves the per-unit price for quantity.
//
// The first tier containing quantity wins. A quantity above every tier uses the
// tier with the greatest max; one inside a gap between tiers uses the nearest
// tier below it. A quantity below every tier uses basePrice.
func UnitPrice(basePrice float64, tiers []domain.BulkPriceTier, quantity int) float64 {
	if len(tiers) == 0 {
		return basePrice
	}

	var below *domain.BulkPriceTier
	for i := range tiers {
		tier := tiers[i]
		if tier.MinQuantity <= quantity && quantity <= tier.MaxQuantity {
			return tier.UnitPrice
		}
		if tier.MaxQuantity < quantity {
			if below == nil || tier.MaxQuantity > below.MaxQuantity {
				below = &tiers[i]
			}
		}
	}
	if below != nil {
		return below.UnitPrice
	}
	return basePrice
}

// LineTotal is the unit price for the line's quantity times that quantity.
func LineTotal(item domain.CartLineItem, info domain.PriceInfo) float64 {
	return UnitPrice(info.BasePrice, info.BulkTiers, item.Quantity) * float64(item.Quantity)
}

// DiscountedTotal applies a valid discount to subtotal, never going below zero.
func DiscountedTotal(subtotal float64, discount domain.DiscountCodeState) float64 {
	if !discount.IsValid {
		return subtotal
	}
	return math.Max(0, subtotal*(1-discount.DiscountPercentage/100))
}

// CartSubtotal sums line totals. Every line must resolve in infos.
func CartSubtotal(items []domain.CartLineItem, infos map[string]domain.PriceInfo) (float64, error) {
	var subtotal float64
	for _, item := range items {
		info, ok := infos[item.ProductID]
		if !ok {
			return 0, fmt.Errorf("%w: %s (line %s)", ErrPriceInfoMissing, item.ProductID, item.LineID)
		}
		subtotal += LineTotal(item, info)
	}
	return subtotal, nil
}

// Totals computes subtotal, discount amount and grand total for a cart.
func Totals(state domain.CartState, infos map[string]domain.PriceInfo) (domain.CartTotals, error) {
	subtotal, err := CartSubtotal(state.Items, infos)
	if err != nil {
		return domain.CartTotals{}, err
	}
	grand := DiscountedTotal(subtotal, state.Discount)
	return domain.CartTotals{
		Subtotal:       subtotal,
		DiscountAmount: subtotal - grand,
		GrandTotal:     grand,
	}, nil
}

// ValidateTiers checks bounds, ordering and overlap of a product's tiers.
func ValidateTiers(tiers []domain.BulkPriceTier) error {
	for i, tier := range tiers {
		if tier.MinQuantity < 1 {
			return fmt.Errorf("tier %d: min quantity must be at least 1", i)
		}
		if tier.MinQuantity > tier.MaxQuantity {
			return fmt.Errorf("tier %d: min quantity %d exceeds max %d", i, tier.MinQuantity, tier.MaxQuantity)
		}
		if tier.UnitPrice < 0 {
			return fmt.Errorf("tier %d: negative unit price", i)
		}
		if i == 0 {
			continue
		}
		prev := tiers[i-1]
		if tier.MinQuantity <= prev.MaxQuantity {
			return fmt.Errorf("tier %d: range %d-%d overlaps or precedes %d-%d", i, tier.MinQuantity, tier.MaxQuantity, prev.MinQuantity, prev.MaxQuantity)
		}
	}
	return nil
}

// SortTiers orders tiers by ascending min quantity in place.
func SortTiers(tiers []domain.BulkPriceTier) {
	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].MinQuantity < tiers[j].MinQuantity
	})
}
