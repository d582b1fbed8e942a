package cart

import (
	"printstore/internal/domain"
)

// Event is a cart mutation fed to Reduce.
type Event interface {
	eventName() string
}

// ItemAdded inserts Item, or merges its quantity into the line with the same identity.
// Item.LineID is only used when a new line is created.
type ItemAdded struct {
	Item domain.CartLineItem
}

// QuantityChanged sets a line's quantity; zero or less removes the line.
type QuantityChanged struct {
	LineID   string
	Quantity int
}

// CustomizationsChanged edits a line's configuration. If the edited line now
// matches another line's identity the two are merged.
type CustomizationsChanged struct {
	LineID            string
	Customizations    map[string]string
	Design            *domain.DesignReference
	UserCustomization *domain.UserCustomization
}

// ItemRemoved deletes a line. Unknown ids are a no-op.
type ItemRemoved struct {
	LineID string
}

// DiscountApplied installs a server-confirmed discount.
type DiscountApplied struct {
	Discount domain.DiscountCodeState
}

type DiscountRemoved struct{}

// LineEdited changes a line's quantity and/or configuration as one step:
// either both parts apply or neither does.
type LineEdited struct {
	LineID            string
	Quantity          *int
	Customize         bool
	Customizations    map[string]string
	Design            *domain.DesignReference
	UserCustomization *domain.UserCustomization
}

// OrderSubmitted takes what an order carried out of the cart. Lines that were
// reconfigured after the order was assembled stay, and lines that grew keep
// the difference.
type OrderSubmitted struct {
	Items    []domain.CartLineItem
	Discount domain.DiscountCodeState
}

type CartCleared struct{}

func (ItemAdded) eventName() string             { return "item_added" }
func (QuantityChanged) eventName() string       { return "quantity_changed" }
func (CustomizationsChanged) eventName() string { return "customizations_changed" }
func (ItemRemoved) eventName() string           { return "item_removed" }
func (DiscountApplied) eventName() string       { return "discount_applied" }
func (DiscountRemoved) eventName() string       { return "discount_removed" }
func (CartCleared) eventName() string           { return "cart_cleared" }
func (LineEdited) eventName() string            { return "line_edited" }
func (OrderSubmitted) eventName() string        { return "order_submitted" }

var userCustomizationTypes = map[string]struct{}{
	domain.CustomizationText:  {},
	domain.CustomizationImage: {},
	domain.CustomizationColor: {},
}

// Reduce applies ev to state and returns the resulting state. The input state
// is never modified; on error it is returned unchanged alongside the error.
func Reduce(state domain.CartState, ev Event) (domain.CartState, error) {
	next := state.Clone()

	switch e := ev.(type) {
	case ItemAdded:
		item := e.Item.Clone()
		item.SelectedCustomizations = normalizeCustomizations(item.SelectedCustomizations)
		item.Design = normalizeDesign(item.Design)
		item.UserCustomization = normalizeUserCustomization(item.UserCustomization)
		if err := validateNewItem(item); err != nil {
			return state, err
		}
		key := identityKey(item)
		for i := range next.Items {
			if identityKey(next.Items[i]) == key {
				next.Items[i].Quantity += item.Quantity
				return next, nil
			}
		}
		next.Items = append(next.Items, item)
		return next, nil

	case QuantityChanged:
		idx := indexOf(next.Items, e.LineID)
		if e.Quantity <= 0 {
			if idx >= 0 {
				next.Items = removeAt(next.Items, idx)
			}
			return next, nil
		}
		if idx < 0 {
			return state, domain.Errorf(domain.CodeNotFound, "line item %s not found", e.LineID)
		}
		next.Items[idx].Quantity = e.Quantity
		return next, nil

	case CustomizationsChanged:
		idx := indexOf(next.Items, e.LineID)
		if idx < 0 {
			return state, domain.Errorf(domain.CodeNotFound, "line item %s not found", e.LineID)
		}
		edited := next.Items[idx]
		edited.SelectedCustomizations = normalizeCustomizations(e.Customizations)
		edited.Design = normalizeDesign(e.Design)
		edited.UserCustomization = normalizeUserCustomization(e.UserCustomization)
		if err := validateUserCustomization(edited.UserCustomization); err != nil {
			return state, err
		}
		key := identityKey(edited)
		for i := range next.Items {
			if i != idx && identityKey(next.Items[i]) == key {
				next.Items[i].Quantity += edited.Quantity
				next.Items = removeAt(next.Items, idx)
				return next, nil
			}
		}
		next.Items[idx] = edited
		return next, nil

	case ItemRemoved:
		if idx := indexOf(next.Items, e.LineID); idx >= 0 {
			next.Items = removeAt(next.Items, idx)
		}
		return next, nil

	case DiscountApplied:
		d := e.Discount
		if !d.IsValid || d.Code == "" {
			return state, domain.NewError(domain.CodeValidation, "only a confirmed discount code can be applied")
		}
		if d.DiscountPercentage < 0 || d.DiscountPercentage > 100 {
			return state, domain.Errorf(domain.CodeValidation, "discount percentage %v out of range", d.DiscountPercentage)
		}
		next.Discount = d
		return next, nil

	case DiscountRemoved:
		next.Discount = domain.DiscountCodeState{}
		return next, nil

	case CartCleared:
		return domain.CartState{}, nil

	case LineEdited:
		if e.Quantity == nil && !e.Customize {
			return state, domain.NewError(domain.CodeValidation, "nothing to update")
		}
		if e.Customize && e.Quantity != nil && *e.Quantity < 1 {
			return state, domain.NewError(domain.CodeValidation, "quantity must be at least 1 when changing customizations")
		}
		out := state
		var err error
		if e.Quantity != nil {
			if out, err = Reduce(out, QuantityChanged{LineID: e.LineID, Quantity: *e.Quantity}); err != nil {
				return state, err
			}
		}
		if e.Customize {
			out, err = Reduce(out, CustomizationsChanged{
				LineID:            e.LineID,
				Customizations:    e.Customizations,
				Design:            e.Design,
				UserCustomization: e.UserCustomization,
			})
			if err != nil {
				return state, err
			}
		}
		return out, nil

	case OrderSubmitted:
		for _, ordered := range e.Items {
			idx := indexOf(next.Items, ordered.LineID)
			if idx < 0 || identityKey(next.Items[idx]) != identityKey(ordered) {
				continue
			}
			if next.Items[idx].Quantity <= ordered.Quantity {
				next.Items = removeAt(next.Items, idx)
				continue
			}
			next.Items[idx].Quantity -= ordered.Quantity
		}
		if e.Discount.IsValid && next.Discount == e.Discount {
			next.Discount = domain.DiscountCodeState{}
		}
		return next, nil

	default:
		return state, domain.NewError(domain.CodeInternal, "unknown cart event")
	}
}

func validateNewItem(item domain.CartLineItem) error {
	if item.LineID == "" {
		return domain.NewError(domain.CodeValidation, "line id required")
	}
	if item.ProductID == "" {
		return domain.NewError(domain.CodeValidation, "product id required")
	}
	if item.Quantity < 1 {
		return domain.NewError(domain.CodeValidation, "quantity must be at least 1")
	}
	return validateUserCustomization(item.UserCustomization)
}

func validateUserCustomization(uc *domain.UserCustomization) error {
	if uc == nil {
		return nil
	}
	if _, ok := userCustomizationTypes[uc.Type]; !ok {
		return domain.Errorf(domain.CodeValidation, "unsupported customization type %q", uc.Type)
	}
	return nil
}

func indexOf(items []domain.CartLineItem, lineID string) int {
	for i := range items {
		if items[i].LineID == lineID {
			return i
		}
	}
	return -1
}

func removeAt(items []domain.CartLineItem, idx int) []domain.CartLineItem {
	out := make([]domain.CartLineItem, 0, len(items)-1)
	out = append(out, items[:idx]...)
	return append(out, items[idx+1:]...)
}
