package cart

import (
	"context"
	"errors"
	"strings"

	"printstore/internal/domain"
)

// Service exposes cart operations keyed by shopper session.
type Service struct {
	carts    *Registry
	products productRepo
	prices   PriceSource
}

type productRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

func New(carts *Registry, products productRepo, prices PriceSource) *Service {
	return &Service{carts: carts, products: products, prices: prices}
}

type AddItemRequest struct {
	ProductID         string                    `json:"productId" validate:"required"`
	Quantity          int                       `json:"quantity" validate:"required,min=1"`
	Customizations    map[string]string         `json:"selectedCustomizations,omitempty"`
	Design            *domain.DesignReference   `json:"design,omitempty"`
	UserCustomization *domain.UserCustomization `json:"userCustomization,omitempty"`
}

// UpdateItemRequest edits a line. Any customization field being present
// replaces the line's whole configuration.
type UpdateItemRequest struct {
	Quantity          *int                      `json:"quantity"`
	Customizations    map[string]string         `json:"selectedCustomizations"`
	Design            *domain.DesignReference   `json:"design"`
	UserCustomization *domain.UserCustomization `json:"userCustomization"`
}

func (r UpdateItemRequest) customizes() bool {
	return r.Customizations != nil || r.Design != nil || r.UserCustomization != nil
}

type DiscountRequest struct {
	Code string `json:"code" validate:"required"`
}

func (s *Service) Get(ctx context.Context, sessionID string) (domain.CartSnapshot, error) {
	store, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	return s.price(ctx, store.State())
}

func (s *Service) AddItem(ctx context.Context, sessionID string, in AddItemRequest) (domain.CartSnapshot, error) {
	productID := strings.TrimSpace(in.ProductID)
	if productID == "" {
		return domain.CartSnapshot{}, domain.NewError(domain.CodeValidation, "productId required")
	}
	if in.Quantity < 1 {
		return domain.CartSnapshot{}, domain.NewError(domain.CodeValidation, "quantity must be at least 1")
	}
	if s.products == nil {
		return domain.CartSnapshot{}, domain.NewError(domain.CodeDependency, "product catalog unavailable")
	}
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.CartSnapshot{}, domain.Errorf(domain.CodeNotFound, "product %s not found", productID)
		}
		return domain.CartSnapshot{}, err
	}

	store, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	state, err := store.AddItem(ctx, AddItemInput{
		ProductID:         product.ID,
		Product:           product.Snapshot(),
		Quantity:          in.Quantity,
		Customizations:    in.Customizations,
		Design:            in.Design,
		UserCustomization: in.UserCustomization,
	})
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	return s.price(ctx, state)
}

// UpdateItem changes quantity and configuration of a line in one mutation.
func (s *Service) UpdateItem(ctx context.Context, sessionID, lineID string, in UpdateItemRequest) (domain.CartSnapshot, error) {
	store, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	lineID = strings.TrimSpace(lineID)
	var state domain.CartState
	if in.Quantity != nil && !in.customizes() {
		state, err = store.UpdateQuantity(ctx, lineID, *in.Quantity)
	} else {
		state, err = store.EditLine(ctx, LineEdited{
			LineID:            lineID,
			Quantity:          in.Quantity,
			Customize:         in.customizes(),
			Customizations:    in.Customizations,
			Design:            in.Design,
			UserCustomization: in.UserCustomization,
		})
	}
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	return s.price(ctx, state)
}

func (s *Service) RemoveItem(ctx context.Context, sessionID, lineID string) (domain.CartSnapshot, error) {
	store, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	state, err := store.RemoveItem(ctx, strings.TrimSpace(lineID))
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	return s.price(ctx, state)
}

func (s *Service) ApplyDiscount(ctx context.Context, sessionID string, in DiscountRequest) (domain.CartSnapshot, error) {
	store, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	state, err := store.ApplyDiscountCode(ctx, in.Code)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	return s.price(ctx, state)
}

func (s *Service) RemoveDiscount(ctx context.Context, sessionID string) (domain.CartSnapshot, error) {
	store, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	state, err := store.RemoveDiscountCode(ctx)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	return s.price(ctx, state)
}

func (s *Service) Clear(ctx context.Context, sessionID string) (domain.CartSnapshot, error) {
	store, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	state, err := store.ClearCart(ctx)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	return s.price(ctx, state)
}

// Store returns the session's store for callers that drive it directly,
// such as checkout.
func (s *Service) Store(ctx context.Context, sessionID string) (*Store, error) {
	return s.carts.Get(ctx, sessionID)
}

func (s *Service) price(ctx context.Context, state domain.CartState) (domain.CartSnapshot, error) {
	return Price(ctx, s.prices, state)
}
