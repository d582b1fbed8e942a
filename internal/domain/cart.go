package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CartStateVersion tags the persisted JSON layout.
const CartStateVersion = 1

// ErrCorruptCartState is returned when persisted cart bytes cannot be decoded.
var ErrCorruptCartState = errors.New("corrupt cart state")

// ProductSnapshot caches the display fields of a product on a line item.
type ProductSnapshot struct {
	Name      string  `json:"name"`
	BasePrice float64 `json:"basePrice"`
	ImageURL  string  `json:"imageUrl,omitempty"`
}

// DesignReference points at a saved custom design artifact.
type DesignReference struct {
	ID         string `json:"id"`
	PreviewURL string `json:"previewUrl,omitempty"`
}

// Kinds of user supplied customization.
const (
	CustomizationText  = "text"
	CustomizationImage = "image"
	CustomizationColor = "color"
)

// UserCustomization is the free-form input a shopper typed, uploaded or picked.
type UserCustomization struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type CartLineItem struct {
	LineID                 string             `json:"lineId"`
	ProductID              string             `json:"productId"`
	Product                ProductSnapshot    `json:"product"`
	Quantity               int                `json:"quantity"`
	SelectedCustomizations map[string]string  `json:"selectedCustomizations,omitempty"`
	Design                 *DesignReference   `json:"design,omitempty"`
	UserCustomization      *UserCustomization `json:"userCustomization,omitempty"`
	AddedAt                time.Time          `json:"addedAt"`
}

// DiscountCodeState holds the applied coupon. Percentage is zero unless IsValid.
type DiscountCodeState struct {
	Code               string  `json:"code"`
	DiscountPercentage float64 `json:"discountPercentage"`
	IsValid            bool    `json:"isValid"`
}

// CartState is the persisted part of a cart.
type CartState struct {
	Items    []CartLineItem    `json:"items"`
	Discount DiscountCodeState `json:"discount"`
}

// CartTotals are derived on every read and never stored.
type CartTotals struct {
	Subtotal       float64 `json:"subtotal"`
	DiscountAmount float64 `json:"discountAmount"`
	GrandTotal     float64 `json:"grandTotal"`
}

// CartSnapshot is the state plus its computed totals.
type CartSnapshot struct {
	CartState
	Totals CartTotals `json:"totals"`
}

// Clone returns a deep copy so callers cannot mutate store-owned memory.
func (s CartState) Clone() CartState {
	out := CartState{Discount: s.Discount}
	if s.Items == nil {
		return out
	}
	out.Items = make([]CartLineItem, len(s.Items))
	for i, item := range s.Items {
		out.Items[i] = item.Clone()
	}
	return out
}

// Clone deep-copies the line item.
func (li CartLineItem) Clone() CartLineItem {
	out := li
	if li.SelectedCustomizations != nil {
		out.SelectedCustomizations = make(map[string]string, len(li.SelectedCustomizations))
		for k, v := range li.SelectedCustomizations {
			out.SelectedCustomizations[k] = v
		}
	}
	if li.Design != nil {
		d := *li.Design
		out.Design = &d
	}
	if li.UserCustomization != nil {
		uc := *li.UserCustomization
		out.UserCustomization = &uc
	}
	return out
}

// TotalQuantity sums quantities across lines.
func (s CartState) TotalQuantity() int {
	total := 0
	for _, item := range s.Items {
		total += item.Quantity
	}
	return total
}

type persistedCart struct {
	Version int       `json:"version"`
	Cart    CartState `json:"cart"`
}

// EncodeCartState serialises the state into the single-slot JSON text.
func EncodeCartState(state CartState) ([]byte, error) {
	return json.Marshal(persistedCart{Version: CartStateVersion, Cart: state})
}

// DecodeCartState parses slot contents. Anything unreadable or violating the
// line item invariants is reported as ErrCorruptCartState.
func DecodeCartState(raw []byte) (CartState, error) {
	var p persistedCart
	if err := json.Unmarshal(raw, &p); err != nil {
		return CartState{}, fmt.Errorf("%w: %v", ErrCorruptCartState, err)
	}
	if p.Version != CartStateVersion {
		return CartState{}, fmt.Errorf("%w: unsupported version %d", ErrCorruptCartState, p.Version)
	}
	seen := make(map[string]struct{}, len(p.Cart.Items))
	for _, item := range p.Cart.Items {
		if item.LineID == "" || item.ProductID == "" {
			return CartState{}, fmt.Errorf("%w: line item missing id", ErrCorruptCartState)
		}
		if item.Quantity < 1 {
			return CartState{}, fmt.Errorf("%w: line %s has quantity %d", ErrCorruptCartState, item.LineID, item.Quantity)
		}
		if _, dup := seen[item.LineID]; dup {
			return CartState{}, fmt.Errorf("%w: duplicate line %s", ErrCorruptCartState, item.LineID)
		}
		seen[item.LineID] = struct{}{}
	}
	if !p.Cart.Discount.IsValid && p.Cart.Discount.DiscountPercentage != 0 {
		return CartState{}, fmt.Errorf("%w: discount percentage set on invalid code", ErrCorruptCartState)
	}
	return p.Cart, nil
}
