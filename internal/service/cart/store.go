package cart

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"printstore/internal/domain"
	"printstore/internal/logging"
	"printstore/internal/metrics"
	"printstore/internal/pricing"
)

// Persister is the durable slot a single cart is saved to.
// Load returns (nil, nil) when nothing has been saved yet.
type Persister interface {
	Load(ctx context.Context) (*domain.CartState, error)
	Save(ctx context.Context, state domain.CartState) error
}

// CouponValidator asks the coupon service about a code.
type CouponValidator interface {
	Validate(ctx context.Context, code string) (*domain.CouponValidation, error)
}

// PriceSource resolves price info for the products in a cart.
type PriceSource interface {
	PriceInfo(ctx context.Context, productIDs []string) (map[string]domain.PriceInfo, error)
}

// Deps are the collaborators shared by every store.
type Deps struct {
	Coupons CouponValidator
	Prices  PriceSource
	Logger  *logging.Logger
	Metrics *metrics.Storefront
	NewID   func() string
	Now     func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = logging.Nop()
	}
	if d.NewID == nil {
		d.NewID = func() string { return uuid.NewString() }
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// Store is the single source of truth for one shopper's cart. Mutations are
// serialised and each one is saved before it returns.
type Store struct {
	mu        sync.Mutex
	state     domain.CartState
	persister Persister
	deps      Deps
}

// AddItemInput describes a configured product being put in the cart.
type AddItemInput struct {
	ProductID         string
	Product           domain.ProductSnapshot
	Quantity          int
	Customizations    map[string]string
	Design            *domain.DesignReference
	UserCustomization *domain.UserCustomization
}

// Open hydrates a store from persister. Missing or unreadable state yields an
// empty cart.
func Open(ctx context.Context, persister Persister, deps Deps) *Store {
	s := &Store{persister: persister, deps: deps.withDefaults()}
	if persister == nil {
		return s
	}
	loaded, err := persister.Load(ctx)
	switch {
	case err != nil:
		s.deps.Metrics.PersistFailure("load")
		if errors.Is(err, domain.ErrCorruptCartState) {
			s.deps.Logger.Warn(ctx, "discarding corrupt saved cart", err)
		} else {
			s.deps.Logger.Warn(ctx, "saved cart unreadable, starting empty", err)
		}
	case loaded != nil:
		s.state = loaded.Clone()
	}
	return s
}

// State returns a copy of the current cart state.
func (s *Store) State() domain.CartState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Dispatch runs ev through Reduce and persists the result.
func (s *Store) Dispatch(ctx context.Context, ev Event) (domain.CartState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatchLocked(ctx, ev)
}

func (s *Store) dispatchLocked(ctx context.Context, ev Event) (domain.CartState, error) {
	next, err := Reduce(s.state, ev)
	s.deps.Metrics.CartMutation(ev.eventName(), err)
	if err != nil {
		return s.state.Clone(), err
	}
	s.state = next
	s.persistLocked(ctx)
	return s.state.Clone(), nil
}

func (s *Store) persistLocked(ctx context.Context) {
	if s.persister == nil {
		return
	}
	if err := s.persister.Save(ctx, s.state.Clone()); err != nil {
		s.deps.Metrics.PersistFailure("save")
		s.deps.Logger.Warn(ctx, "saving cart failed, keeping in-memory state", err)
	}
}

// AddItem adds a configured product, merging into an identical line if present.
func (s *Store) AddItem(ctx context.Context, in AddItemInput) (domain.CartState, error) {
	item := domain.CartLineItem{
		LineID:                 s.deps.NewID(),
		ProductID:              strings.TrimSpace(in.ProductID),
		Product:                in.Product,
		Quantity:               in.Quantity,
		SelectedCustomizations: in.Customizations,
		Design:                 in.Design,
		UserCustomization:      in.UserCustomization,
		AddedAt:                s.deps.Now().UTC(),
	}
	return s.Dispatch(ctx, ItemAdded{Item: item})
}

// UpdateQuantity replaces a line's quantity; zero or less removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, lineID string, quantity int) (domain.CartState, error) {
	return s.Dispatch(ctx, QuantityChanged{LineID: lineID, Quantity: quantity})
}

// EditLine applies a combined quantity and configuration change atomically.
func (s *Store) EditLine(ctx context.Context, edit LineEdited) (domain.CartState, error) {
	return s.Dispatch(ctx, edit)
}

// RemoveOrdered takes an order's contents out of the cart. ordered is the
// state the order was assembled from; anything changed since then is kept.
func (s *Store) RemoveOrdered(ctx context.Context, ordered domain.CartState) (domain.CartState, error) {
	return s.Dispatch(ctx, OrderSubmitted{Items: ordered.Items, Discount: ordered.Discount})
}

// RemoveItem deletes a line. Removing an unknown line is not an error.
func (s *Store) RemoveItem(ctx context.Context, lineID string) (domain.CartState, error) {
	return s.Dispatch(ctx, ItemRemoved{LineID: lineID})
}

// ClearCart empties the cart and resets the discount.
func (s *Store) ClearCart(ctx context.Context) (domain.CartState, error) {
	return s.Dispatch(ctx, CartCleared{})
}

// RemoveDiscountCode drops the applied discount.
func (s *Store) RemoveDiscountCode(ctx context.Context) (domain.CartState, error) {
	return s.Dispatch(ctx, DiscountRemoved{})
}

// ApplyDiscountCode validates code with the coupon service and applies it when
// confirmed. On any failure the current discount is left untouched.
func (s *Store) ApplyDiscountCode(ctx context.Context, code string) (domain.CartState, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return s.State(), domain.NewError(domain.CodeValidation, "discount code required")
	}
	if s.deps.Coupons == nil {
		return s.State(), domain.NewError(domain.CodeDependency, "coupon validation unavailable")
	}

	res, err := s.deps.Coupons.Validate(ctx, code)
	if err != nil {
		s.deps.Metrics.CouponValidation("error")
		return s.State(), err
	}
	if res == nil || !res.Valid {
		s.deps.Metrics.CouponValidation("invalid")
		return s.State(), domain.Errorf(domain.CodeValidation, "discount code %q is not valid", code)
	}
	if !res.ActiveAt(s.deps.Now()) {
		s.deps.Metrics.CouponValidation("expired")
		return s.State(), domain.Errorf(domain.CodeValidation, "discount code %q is not active", code)
	}
	s.deps.Metrics.CouponValidation("valid")

	return s.Dispatch(ctx, DiscountApplied{Discount: domain.DiscountCodeState{
		Code:               code,
		DiscountPercentage: res.DiscountPercentage,
		IsValid:            true,
	}})
}

// Snapshot returns the current state with totals from the pricing engine.
// A line whose product no longer resolves makes the snapshot fail with
// CodeInternal wrapping pricing.ErrPriceInfoMissing; the returned snapshot
// still carries the items so callers can show them.
func (s *Store) Snapshot(ctx context.Context) (domain.CartSnapshot, error) {
	snap, err := Price(ctx, s.deps.Prices, s.State())
	if errors.Is(err, pricing.ErrPriceInfoMissing) {
		s.deps.Logger.Error(ctx, "cart references a product without price info", err)
	}
	return snap, err
}

// Price computes totals for state using prices.
func Price(ctx context.Context, prices PriceSource, state domain.CartState) (domain.CartSnapshot, error) {
	snap := domain.CartSnapshot{CartState: state}
	if len(state.Items) == 0 {
		return snap, nil
	}
	if prices == nil {
		return snap, domain.NewError(domain.CodeDependency, "price source unavailable")
	}
	infos, err := prices.PriceInfo(ctx, productIDs(state.Items))
	if err != nil {
		return snap, domain.WrapError(domain.CodeDependency, err, "load product prices")
	}
	totals, err := pricing.Totals(state, infos)
	if err != nil {
		return snap, domain.WrapError(domain.CodeInternal, err, "cart contains products that are no longer available")
	}
	snap.Totals = totals
	return snap, nil
}

func productIDs(items []domain.CartLineItem) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}
