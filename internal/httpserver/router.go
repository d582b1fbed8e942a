package httpserver

import (
	"context"
	"errors"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"printstore/internal/domain"
	"printstore/internal/logging"
	"printstore/internal/service/anonymous"
	"printstore/internal/service/cart"
	"printstore/internal/service/checkout"
)

const (
	sessionHeader   = "X-Session-Token"
	requestIDHeader = "X-Request-ID"

	defaultCurrency       = "INR"
	defaultMaxUploadBytes = 32 << 20
)

type sessionService interface {
	Issue(ctx context.Context) (anonymous.Session, error)
	Lookup(ctx context.Context, token string) (string, error)
}

type productService interface {
	List(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
}

type cartService interface {
	Get(ctx context.Context, sessionID string) (domain.CartSnapshot, error)
	AddItem(ctx context.Context, sessionID string, in cart.AddItemRequest) (domain.CartSnapshot, error)
	UpdateItem(ctx context.Context, sessionID, lineID string, in cart.UpdateItemRequest) (domain.CartSnapshot, error)
	RemoveItem(ctx context.Context, sessionID, lineID string) (domain.CartSnapshot, error)
	ApplyDiscount(ctx context.Context, sessionID string, in cart.DiscountRequest) (domain.CartSnapshot, error)
	RemoveDiscount(ctx context.Context, sessionID string) (domain.CartSnapshot, error)
	Clear(ctx context.Context, sessionID string) (domain.CartSnapshot, error)
}

type checkoutService interface {
	Checkout(ctx context.Context, sessionID string, req checkout.Request) (*domain.OrderConfirmation, error)
}

// Deps are the services the router dispatches to.
type Deps struct {
	DB       Pinger
	Sessions sessionService
	Products productService
	Carts    cartService
	Checkout checkoutService
	Metrics  prometheus.Gatherer

	CORSOrigins    []string
	Currency       string
	MaxUploadBytes int64
}

// buildRouter wires routes for the API.
func buildRouter(logger *logging.Logger, deps Deps) (*gin.Engine, error) {
	if deps.Sessions == nil || deps.Products == nil || deps.Carts == nil || deps.Checkout == nil {
		return nil, errors.New("httpserver: sessions, products, carts and checkout are required")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	if deps.Currency == "" {
		deps.Currency = defaultCurrency
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = defaultMaxUploadBytes
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(requestIDMiddleware(logger), gin.LoggerWithWriter(logger.Writer()), gin.Recovery())
	if len(deps.CORSOrigins) > 0 {
		router.Use(cors.New(corsConfig(deps.CORSOrigins)))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.DB))
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{})))
	}

	h := &handlers{logger: logger, deps: deps}

	router.POST("/sessions", h.createSession)
	router.GET("/products", h.listProducts)
	router.GET("/products/:id", h.getProduct)

	carts := router.Group("/cart", sessionMiddleware(deps.Sessions, logger))
	carts.GET("", h.getCart)
	carts.DELETE("", h.clearCart)
	carts.POST("/items", h.addItem)
	carts.PATCH("/items/:lineId", h.updateItem)
	carts.DELETE("/items/:lineId", h.removeItem)
	carts.PUT("/discount-code", h.applyDiscount)
	carts.DELETE("/discount-code", h.removeDiscount)
	carts.POST("/checkout", h.checkout)

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", sessionHeader, requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
