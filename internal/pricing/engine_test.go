package pricing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"printstore/internal/domain"
)

var scenarioTiers = []domain.BulkPriceTier{
	{MinQuantity: 10, MaxQuantity: 49, UnitPrice: 90},
	{MinQuantity: 50, MaxQuantity: 999, UnitPrice: 80},
}

func TestUnitPrice_Scenario(t *testing.T) {
	cases := []struct {
		name string
		qty  int
		want float64
	}{
		{"below lowest tier uses base", 5, 100},
		{"lower tier bound", 10, 90},
		{"inside first tier", 25, 90},
		{"upper bound of first tier", 49, 90},
		{"second tier", 50, 80},
		{"overflow uses highest tier", 1000, 80},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, UnitPrice(100, scenarioTiers, tc.qty))
		})
	}
}

func TestUnitPrice_NoTiers(t *testing.T) {
	assert.Equal(t, 42.5, UnitPrice(42.5, nil, 1))
	assert.Equal(t, 42.5, UnitPrice(42.5, []domain.BulkPriceTier{}, 10000))
}

func TestUnitPrice_InteriorGapUsesNearestLowerTier(t *testing.T) {
	tiers := []domain.BulkPriceTier{
		{MinQuantity: 10, MaxQuantity: 19, UnitPrice: 9},
		{MinQuantity: 50, MaxQuantity: 99, UnitPrice: 7},
	}
	assert.Equal(t, 9.0, UnitPrice(10, tiers, 30))
	assert.Equal(t, 7.0, UnitPrice(10, tiers, 100))
}

func TestUnitPrice_OverflowPicksGreatestMaxRegardlessOfOrder(t *testing.T) {
	tiers := []domain.BulkPriceTier{
		{MinQuantity: 50, MaxQuantity: 999, UnitPrice: 80},
		{MinQuantity: 10, MaxQuantity: 49, UnitPrice: 90},
	}
	assert.Equal(t, 80.0, UnitPrice(100, tiers, 5000))
}

func TestUnitPrice_MonotonicAcrossTiers(t *testing.T) {
	tiers := []domain.BulkPriceTier{
		{MinQuantity: 5, MaxQuantity: 9, UnitPrice: 95},
		{MinQuantity: 10, MaxQuantity: 49, UnitPrice: 90},
		{MinQuantity: 50, MaxQuantity: 199, UnitPrice: 80},
		{MinQuantity: 200, MaxQuantity: 499, UnitPrice: 70},
	}
	prev := UnitPrice(100, tiers, 1)
	for q := 2; q <= 1000; q++ {
		got := UnitPrice(100, tiers, q)
		require.LessOrEqualf(t, got, prev, "unit price rose at quantity %d", q)
		prev = got
	}
}

func TestLineTotal(t *testing.T) {
	info := domain.PriceInfo{ProductID: "p1", BasePrice: 100, BulkTiers: scenarioTiers}
	assert.Equal(t, 2250.0, LineTotal(domain.CartLineItem{ProductID: "p1", Quantity: 25}, info))
	assert.Equal(t, 300.0, LineTotal(domain.CartLineItem{ProductID: "p1", Quantity: 3}, info))
}

func TestDiscountedTotal(t *testing.T) {
	assert.Equal(t, 810.0, DiscountedTotal(900, domain.DiscountCodeState{Code: "SAVE10", DiscountPercentage: 10, IsValid: true}))
	assert.Equal(t, 0.0, DiscountedTotal(900, domain.DiscountCodeState{Code: "ALL", DiscountPercentage: 150, IsValid: true}))
}

func TestDiscountedTotal_InvalidLeavesSubtotal(t *testing.T) {
	for _, pct := range []float64{0, 10, 50, 100, 250, -20} {
		got := DiscountedTotal(123.45, domain.DiscountCodeState{Code: "X", DiscountPercentage: pct, IsValid: false})
		assert.Equalf(t, 123.45, got, "percentage %v", pct)
	}
}

func TestCartSubtotal(t *testing.T) {
	items := []domain.CartLineItem{
		{LineID: "l1", ProductID: "shirt", Quantity: 10},
		{LineID: "l2", ProductID: "mug", Quantity: 2},
	}
	infos := map[string]domain.PriceInfo{
		"shirt": {ProductID: "shirt", BasePrice: 100, BulkTiers: scenarioTiers},
		"mug":   {ProductID: "mug", BasePrice: 12.5},
	}
	got, err := CartSubtotal(items, infos)
	require.NoError(t, err)
	assert.Equal(t, 925.0, got)
}

func TestCartSubtotal_MissingPriceInfoFails(t *testing.T) {
	items := []domain.CartLineItem{{LineID: "l1", ProductID: "gone", Quantity: 1}}
	_, err := CartSubtotal(items, map[string]domain.PriceInfo{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPriceInfoMissing))
}

func TestTotals_Coupon(t *testing.T) {
	state := domain.CartState{
		Items:    []domain.CartLineItem{{LineID: "l1", ProductID: "p1", Quantity: 10}},
		Discount: domain.DiscountCodeState{Code: "SAVE10", DiscountPercentage: 10, IsValid: true},
	}
	infos := map[string]domain.PriceInfo{"p1": {ProductID: "p1", BasePrice: 100, BulkTiers: scenarioTiers}}

	totals, err := Totals(state, infos)
	require.NoError(t, err)
	assert.Equal(t, 900.0, totals.Subtotal)
	assert.Equal(t, 90.0, totals.DiscountAmount)
	assert.Equal(t, 810.0, totals.GrandTotal)
}

func TestValidateTiers(t *testing.T) {
	require.NoError(t, ValidateTiers(nil))
	require.NoError(t, ValidateTiers(scenarioTiers))

	assert.Error(t, ValidateTiers([]domain.BulkPriceTier{{MinQuantity: 0, MaxQuantity: 5, UnitPrice: 1}}))
	assert.Error(t, ValidateTiers([]domain.BulkPriceTier{{MinQuantity: 6, MaxQuantity: 5, UnitPrice: 1}}))
	assert.Error(t, ValidateTiers([]domain.BulkPriceTier{
		{MinQuantity: 1, MaxQuantity: 10, UnitPrice: 2},
		{MinQuantity: 10, MaxQuantity: 20, UnitPrice: 1},
	}))
}

func TestSortTiers(t *testing.T) {
	tiers := []domain.BulkPriceTier{
		{MinQuantity: 50, MaxQuantity: 999, UnitPrice: 80},
		{MinQuantity: 10, MaxQuantity: 49, UnitPrice: 90},
	}
	SortTiers(tiers)
	assert.Equal(t, 10, tiers[0].MinQuantity)
	require.NoError(t, ValidateTiers(tiers))
}

func TestRoundAndFormat(t *testing.T) {
	assert.Equal(t, 0.3, Round(0.1+0.2))
	assert.Equal(t, 2.68, Round(2.675000001))
	assert.Equal(t, "₹810.00", Format(810, "INR"))
	assert.Equal(t, "12.50 CHF", Format(12.5, "chf"))
	assert.Equal(t, "3.00", Format(3, ""))
}
