package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"printstore/internal/domain"
	"printstore/internal/service/anonymous"
	"printstore/internal/service/cart"
	"printstore/internal/service/checkout"
	"printstore/internal/storage"
)

type stubSessions struct {
	sessionID string
	err       error
}

func (s *stubSessions) Issue(_ context.Context) (anonymous.Session, error) {
	return anonymous.Session{Token: "tok", ID: s.sessionID}, s.err
}

func (s *stubSessions) Lookup(_ context.Context, _ string) (string, error) {
	return s.sessionID, s.err
}

func runSessionMiddleware(t *testing.T, sessions sessionService, token string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(sessionMiddleware(sessions, nil))
	router.GET("/cart", func(c *gin.Context) {
		if sessionFrom(c) == "" {
			t.Fatalf("expected session in context")
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	if token != "" {
		req.Header.Set(sessionHeader, token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSessionMiddleware_Success(t *testing.T) {
	rec := runSessionMiddleware(t, &stubSessions{sessionID: "s-1"}, "tok")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}

func TestSessionMiddleware_MissingToken(t *testing.T) {
	rec := runSessionMiddleware(t, &stubSessions{sessionID: "s-1"}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestSessionMiddleware_InvalidToken(t *testing.T) {
	rec := runSessionMiddleware(t, &stubSessions{err: anonymous.ErrInvalidToken}, "stale")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestSessionMiddleware_Error(t *testing.T) {
	rec := runSessionMiddleware(t, &stubSessions{err: errors.New("boom")}, "tok")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
}

type stubCatalog struct{}

var mug = domain.Product{
	ID:        "mug",
	Key:       "ceramic-mug",
	Name:      "Ceramic Mug",
	BasePrice: 100,
	Currency:  "INR",
	BulkTiers: []domain.BulkPriceTier{
		{MinQuantity: 1, MaxQuantity: 9, UnitPrice: 100},
		{MinQuantity: 10, MaxQuantity: 49, UnitPrice: 90},
	},
}

func (stubCatalog) List(_ context.Context) ([]domain.Product, error) {
	return []domain.Product{mug}, nil
}

func (stubCatalog) Get(_ context.Context, id string) (*domain.Product, error) {
	if id != mug.ID {
		return nil, domain.ErrNotFound
	}
	p := mug
	return &p, nil
}

func (c stubCatalog) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	return c.Get(ctx, id)
}

func (stubCatalog) PriceInfo(_ context.Context, ids []string) (map[string]domain.PriceInfo, error) {
	out := map[string]domain.PriceInfo{}
	for _, id := range ids {
		if id == mug.ID {
			out[id] = mug.PriceInfo()
		}
	}
	return out, nil
}

type stubCoupons struct{}

func (stubCoupons) Validate(_ context.Context, code string) (*domain.CouponValidation, error) {
	if code == "SAVE10" {
		return &domain.CouponValidation{Code: code, Valid: true, DiscountPercentage: 10}, nil
	}
	return &domain.CouponValidation{Code: code}, nil
}

type stubCheckout struct {
	got  checkout.Request
	conf *domain.OrderConfirmation
	err  error
}

func (s *stubCheckout) Checkout(_ context.Context, _ string, req checkout.Request) (*domain.OrderConfirmation, error) {
	s.got = req
	return s.conf, s.err
}

type apiHarness struct {
	router   *gin.Engine
	checkout *stubCheckout
	token    string
}

// newAPI wires the real session and cart services over backend, the way
// cmd/api does.
func newAPI(t *testing.T, backend storage.Backend) *apiHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	slots := storage.NewSlots(backend)
	registry := cart.NewRegistry(
		cart.SlotProviderFunc(func(id string) cart.Persister { return slots.Slot(id) }),
		cart.Deps{Coupons: stubCoupons{}, Prices: stubCatalog{}},
	)
	co := &stubCheckout{conf: &domain.OrderConfirmation{OrderID: "ord-1"}}
	router, err := buildRouter(nil, Deps{
		Sessions: anonymous.New(0, anonymous.WithStore(backend)),
		Products: stubCatalog{},
		Carts:    cart.New(registry, stubCatalog{}, stubCatalog{}),
		Checkout: co,
	})
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	return &apiHarness{router: router, checkout: co}
}

func newHarness(t *testing.T) *apiHarness {
	t.Helper()
	h := newAPI(t, storage.NewMemory())
	rec := h.do(t, http.MethodPost, "/sessions", nil, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected session 201, got %d", rec.Code)
	}
	var session anonymous.Session
	decode(t, rec, &session)
	if session.TTLSeconds != int(anonymous.DefaultTTL.Seconds()) {
		t.Fatalf("expected ttlSeconds %d, got %d", int(anonymous.DefaultTTL.Seconds()), session.TTLSeconds)
	}
	h.token = session.Token
	return h
}

func (h *apiHarness) do(t *testing.T, method, path string, body any, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
		contentType = "application/json"
	}
	req := httptest.NewRequest(method, path, reader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if h.token != "" {
		req.Header.Set(sessionHeader, h.token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestCartFlowWithDiscount(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/cart/items", map[string]any{"productId": "mug", "quantity": 10}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var body cartResponse
	decode(t, rec, &body)
	if len(body.Items) != 1 || body.TotalQuantity != 10 {
		t.Fatalf("unexpected cart %+v", body)
	}
	if body.Totals.FormattedSubtotal != "₹900.00" {
		t.Fatalf("expected ₹900.00, got %s", body.Totals.FormattedSubtotal)
	}

	rec = h.do(t, http.MethodPut, "/cart/discount-code", map[string]string{"code": "SAVE10"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	decode(t, rec, &body)
	if !body.Discount.IsValid || body.Totals.FormattedGrandTotal != "₹810.00" || body.Totals.FormattedDiscountAmount != "₹90.00" {
		t.Fatalf("unexpected totals %+v", body.Totals)
	}

	rec = h.do(t, http.MethodPut, "/cart/discount-code", map[string]string{"code": "NOPE"}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid coupon, got %d", rec.Code)
	}

	rec = h.do(t, http.MethodDelete, "/cart/discount-code", nil, "")
	decode(t, rec, &body)
	if body.Discount.IsValid || body.Totals.GrandTotal != 900 {
		t.Fatalf("expected discount removed, got %+v", body)
	}
}

func TestUpdateAndRemoveItem(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/cart/items", map[string]any{"productId": "mug", "quantity": 2}, "")
	var body cartResponse
	decode(t, rec, &body)
	lineID := body.Items[0].LineID

	rec = h.do(t, http.MethodPatch, "/cart/items/"+lineID, map[string]any{"quantity": 12, "selectedCustomizations": map[string]string{"color": "red"}}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	decode(t, rec, &body)
	if body.Items[0].Quantity != 12 || body.Items[0].SelectedCustomizations["color"] != "red" {
		t.Fatalf("unexpected line %+v", body.Items[0])
	}
	if body.Totals.Subtotal != 1080 {
		t.Fatalf("expected subtotal 1080, got %v", body.Totals.Subtotal)
	}

	rec = h.do(t, http.MethodPatch, "/cart/items/"+lineID, map[string]any{}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty patch, got %d", rec.Code)
	}

	rec = h.do(t, http.MethodPatch, "/cart/items/missing", map[string]any{"quantity": 3}, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = h.do(t, http.MethodDelete, "/cart/items/"+lineID, nil, "")
	decode(t, rec, &body)
	if len(body.Items) != 0 || body.Totals.FormattedGrandTotal != "₹0.00" {
		t.Fatalf("expected empty cart, got %+v", body)
	}
}

func TestUpdateItemRejectsMixedPatchAtomically(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/cart/items", map[string]any{"productId": "mug", "quantity": 2, "selectedCustomizations": map[string]string{"color": "red"}}, "")
	var body cartResponse
	decode(t, rec, &body)
	lineID := body.Items[0].LineID

	rec = h.do(t, http.MethodPatch, "/cart/items/"+lineID, map[string]any{
		"quantity":          5,
		"userCustomization": map[string]string{"type": "bogus", "value": "x"},
	}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = h.do(t, http.MethodPatch, "/cart/items/"+lineID, map[string]any{
		"quantity":               0,
		"selectedCustomizations": map[string]string{"color": "blue"},
	}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for quantity 0 with customizations, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = h.do(t, http.MethodGet, "/cart", nil, "")
	decode(t, rec, &body)
	if len(body.Items) != 1 {
		t.Fatalf("line should survive rejected patches, got %+v", body.Items)
	}
	if body.Items[0].Quantity != 2 || body.Items[0].SelectedCustomizations["color"] != "red" {
		t.Fatalf("rejected patches changed the line: %+v", body.Items[0])
	}
}

func TestSessionAndCartSurviveRestart(t *testing.T) {
	backend, err := storage.NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("file backend: %v", err)
	}

	first := newAPI(t, backend)
	rec := first.do(t, http.MethodPost, "/sessions", nil, "")
	var session anonymous.Session
	decode(t, rec, &session)
	first.token = session.Token
	rec = first.do(t, http.MethodPost, "/cart/items", map[string]any{"productId": "mug", "quantity": 3}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	restarted := newAPI(t, backend)
	restarted.token = session.Token
	rec = restarted.do(t, http.MethodGet, "/cart", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("token should resolve after restart, got %d: %s", rec.Code, rec.Body.String())
	}
	var body cartResponse
	decode(t, rec, &body)
	if len(body.Items) != 1 || body.Items[0].Quantity != 3 || body.Items[0].ProductID != "mug" {
		t.Fatalf("expected the saved mug line, got %+v", body.Items)
	}
}

func TestAddItemRejectsBadInput(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/cart/items", []byte("{"), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	rec = h.do(t, http.MethodPost, "/cart/items", map[string]any{"productId": "mug", "quantity": 0}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	rec = h.do(t, http.MethodPost, "/cart/items", map[string]any{"productId": "ghost", "quantity": 1}, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestProducts(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/products/mug", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var p productResponse
	decode(t, rec, &p)
	if p.FormattedBasePrice != "₹100.00" || len(p.BulkTiers) != 2 {
		t.Fatalf("unexpected product %+v", p)
	}

	rec = h.do(t, http.MethodGet, "/products/nope", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCheckoutMultipart(t *testing.T) {
	h := newHarness(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("shopper", `{"name":"Asha","email":"asha@example.com","address":"1 Main St"}`)
	part, _ := w.CreateFormFile("design_line-1", "logo.png")
	_, _ = part.Write([]byte("\x89PNG\r\n\x1a\n"))
	_ = w.Close()

	rec := h.do(t, http.MethodPost, "/cart/checkout", buf.Bytes(), w.FormDataContentType())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "ord-1") {
		t.Fatalf("expected order id in %s", rec.Body.String())
	}
	got := h.checkout.got
	if got.Shopper.Email != "asha@example.com" {
		t.Fatalf("unexpected shopper %+v", got.Shopper)
	}
	if len(got.Designs) != 1 || got.Designs[0].LineID != "line-1" || got.Designs[0].Filename != "logo.png" {
		t.Fatalf("unexpected designs %+v", got.Designs)
	}
}

func TestCheckoutErrorsCarryCode(t *testing.T) {
	h := newHarness(t)
	h.checkout.err = domain.NewError(domain.CodeTimeout, "order placement timed out")

	rec := h.do(t, http.MethodPost, "/cart/checkout", map[string]any{"shopper": map[string]string{"name": "A"}}, "")
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", rec.Code)
	}
	var body errorBody
	decode(t, rec, &body)
	if body.Code != string(domain.CodeTimeout) || !body.Retryable {
		t.Fatalf("unexpected error body %+v", body)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	if rec.Header().Get(requestIDHeader) != "req-42" {
		t.Fatalf("expected request id echoed, got %q", rec.Header().Get(requestIDHeader))
	}
}
