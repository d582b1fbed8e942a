package checkout

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"printstore/internal/domain"
	"printstore/internal/logging"
	"printstore/internal/metrics"
	"printstore/internal/service/cart"
)

// DefaultTimeout bounds one order submission.
const DefaultTimeout = 30 * time.Second

type cartStores interface {
	Store(ctx context.Context, sessionID string) (*cart.Store, error)
}

// OrderSubmitter places an order with the external order API.
type OrderSubmitter interface {
	Submit(ctx context.Context, order domain.OrderRequest) (*domain.OrderConfirmation, error)
}

type Options struct {
	Timeout        time.Duration
	MaxDesignBytes int64
	Logger         *logging.Logger
	Metrics        *metrics.Storefront
}

type Service struct {
	carts     cartStores
	prices    cart.PriceSource
	orders    OrderSubmitter
	assembler Assembler
	validate  *validator.Validate
	timeout   time.Duration
	logger    *logging.Logger
	metrics   *metrics.Storefront

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func New(carts cartStores, prices cart.PriceSource, orders OrderSubmitter, opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Service{
		carts:     carts,
		prices:    prices,
		orders:    orders,
		assembler: Assembler{MaxDesignBytes: opts.MaxDesignBytes},
		validate:  validator.New(),
		timeout:   opts.Timeout,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		inFlight:  make(map[string]struct{}),
	}
}

type Request struct {
	Shopper domain.Shopper
	Designs []Upload
}

// Checkout submits the session's cart as an order. Only one checkout per
// session runs at a time. On any failure the cart is left as it was; on
// success the ordered lines are taken out of it.
func (s *Service) Checkout(ctx context.Context, sessionID string, req Request) (*domain.OrderConfirmation, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, domain.NewError(domain.CodeValidation, "session required")
	}
	if !s.acquire(sessionID) {
		s.metrics.Checkout("busy", 0)
		return nil, domain.NewError(domain.CodeConflict, "checkout already in progress")
	}
	defer s.release(sessionID)

	conf, err := s.checkout(ctx, sessionID, req)
	if err != nil {
		s.logger.Warn(ctx, "checkout failed", err)
	}
	return conf, err
}

func (s *Service) acquire(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[sessionID]; busy {
		return false
	}
	s.inFlight[sessionID] = struct{}{}
	return true
}

func (s *Service) release(sessionID string) {
	s.mu.Lock()
	delete(s.inFlight, sessionID)
	s.mu.Unlock()
}

func (s *Service) inFlightCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}

func (s *Service) checkout(ctx context.Context, sessionID string, req Request) (*domain.OrderConfirmation, error) {
	if err := s.validate.Struct(req.Shopper); err != nil {
		s.metrics.Checkout("invalid", 0)
		return nil, domain.WrapError(domain.CodeValidation, err, "shopper details are incomplete")
	}

	store, err := s.carts.Store(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	state := store.State()
	if len(state.Items) == 0 {
		s.metrics.Checkout("invalid", 0)
		return nil, domain.NewError(domain.CodeValidation, "cart is empty")
	}

	ids := make([]string, 0, len(state.Items))
	for _, item := range state.Items {
		ids = append(ids, item.ProductID)
	}
	infos, err := s.prices.PriceInfo(ctx, ids)
	if err != nil {
		s.metrics.Checkout("error", 0)
		return nil, domain.WrapError(domain.CodeDependency, err, "load product prices")
	}

	order, err := s.assembler.Assemble(state, infos, req.Shopper, req.Designs)
	if err != nil {
		s.metrics.Checkout("invalid", 0)
		return nil, err
	}

	submitCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	conf, err := s.orders.Submit(submitCtx, order)
	took := time.Since(start)
	if err != nil {
		if errors.Is(submitCtx.Err(), context.DeadlineExceeded) && !domain.IsCode(err, domain.CodeTimeout) {
			err = domain.WrapError(domain.CodeTimeout, err, "order placement timed out")
		}
		s.metrics.Checkout("error", took)
		return nil, err
	}
	s.metrics.Checkout("ok", took)

	if _, err := store.RemoveOrdered(ctx, state); err != nil {
		s.logger.Error(ctx, "order placed but ordered items could not be removed from the cart", err)
	}
	s.logger.Info(s.logger.WithField(ctx, "order_id", conf.OrderID), "order placed")
	return conf, nil
}
