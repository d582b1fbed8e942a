package domain

import "time"

// CouponValidation is the coupon service's verdict on a code.
type CouponValidation struct {
	Code               string     `json:"code"`
	Valid              bool       `json:"valid"`
	DiscountPercentage float64    `json:"discountPercentage"`
	ValidFrom          *time.Time `json:"validFrom,omitempty"`
	ValidUntil         *time.Time `json:"validUntil,omitempty"`
}

// ActiveAt reports whether now falls inside the optional validity window.
func (c CouponValidation) ActiveAt(now time.Time) bool {
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return false
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return false
	}
	return true
}
