package httpserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"printstore/internal/domain"
	"printstore/internal/logging"
	"printstore/internal/service/cart"
)

type handlers struct {
	logger *logging.Logger
	deps   Deps
}

func (h *handlers) fail(c *gin.Context, err error) {
	writeError(c, h.logger, err)
}

func (h *handlers) respondCart(c *gin.Context, status int, snap domain.CartSnapshot, err error) {
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(status, toCartResponse(snap, h.deps.Currency))
}

func (h *handlers) createSession(c *gin.Context) {
	session, err := h.deps.Sessions.Issue(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *handlers) listProducts(c *gin.Context) {
	products, err := h.deps.Products.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	c.JSON(http.StatusOK, gin.H{"count": len(out), "results": out})
}

func (h *handlers) getProduct(c *gin.Context) {
	p, err := h.deps.Products.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductResponse(*p))
}

func (h *handlers) getCart(c *gin.Context) {
	snap, err := h.deps.Carts.Get(c.Request.Context(), sessionFrom(c))
	h.respondCart(c, http.StatusOK, snap, err)
}

func (h *handlers) clearCart(c *gin.Context) {
	snap, err := h.deps.Carts.Clear(c.Request.Context(), sessionFrom(c))
	h.respondCart(c, http.StatusOK, snap, err)
}

func (h *handlers) addItem(c *gin.Context) {
	var req cart.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid item payload")
		return
	}
	snap, err := h.deps.Carts.AddItem(c.Request.Context(), sessionFrom(c), req)
	h.respondCart(c, http.StatusCreated, snap, err)
}

// updateItem changes quantity and/or configuration of a line as one mutation.
func (h *handlers) updateItem(c *gin.Context) {
	var req cart.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid item payload")
		return
	}
	snap, err := h.deps.Carts.UpdateItem(c.Request.Context(), sessionFrom(c), strings.TrimSpace(c.Param("lineId")), req)
	h.respondCart(c, http.StatusOK, snap, err)
}

func (h *handlers) removeItem(c *gin.Context) {
	snap, err := h.deps.Carts.RemoveItem(c.Request.Context(), sessionFrom(c), c.Param("lineId"))
	h.respondCart(c, http.StatusOK, snap, err)
}

func (h *handlers) applyDiscount(c *gin.Context) {
	var req cart.DiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "discount code required")
		return
	}
	snap, err := h.deps.Carts.ApplyDiscount(c.Request.Context(), sessionFrom(c), req)
	h.respondCart(c, http.StatusOK, snap, err)
}

func (h *handlers) removeDiscount(c *gin.Context) {
	snap, err := h.deps.Carts.RemoveDiscount(c.Request.Context(), sessionFrom(c))
	h.respondCart(c, http.StatusOK, snap, err)
}
