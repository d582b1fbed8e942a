package checkout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"printstore/internal/client/orders"
	"printstore/internal/domain"
	"printstore/internal/service/cart"
	"printstore/internal/storage"
)

type stubPrices struct{}

func (stubPrices) PriceInfo(_ context.Context, ids []string) (map[string]domain.PriceInfo, error) {
	all := mugInfos()
	out := make(map[string]domain.PriceInfo, len(ids))
	for _, id := range ids {
		if info, ok := all[id]; ok {
			out[id] = info
		}
	}
	return out, nil
}

type stubProducts struct{}

func (stubProducts) GetByID(_ context.Context, id string) (*domain.Product, error) {
	return &domain.Product{ID: id, Name: id, BasePrice: 100}, nil
}

type blockingSubmitter struct {
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingSubmitter) Submit(ctx context.Context, _ domain.OrderRequest) (*domain.OrderConfirmation, error) {
	b.calls.Add(1)
	select {
	case <-b.release:
		return &domain.OrderConfirmation{OrderID: "ord-1"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func newCarts(t *testing.T) (*cart.Service, *storage.Slots) {
	t.Helper()
	slots := storage.NewSlots(storage.NewMemory())
	provider := cart.SlotProviderFunc(func(id string) cart.Persister { return slots.Slot(id) })
	return cart.New(cart.NewRegistry(provider, cart.Deps{Prices: stubPrices{}}), stubProducts{}, stubPrices{}), slots
}

func fillCart(t *testing.T, carts *cart.Service, session string) string {
	t.Helper()
	snap, err := carts.AddItem(context.Background(), session, cart.AddItemRequest{ProductID: "mug", Quantity: 10, Customizations: map[string]string{"color": "red"}})
	require.NoError(t, err)
	return snap.Items[0].LineID
}

func TestCheckoutSubmitsAndClearsCart(t *testing.T) {
	carts, slots := newCarts(t)
	lineID := fillCart(t, carts, "s1")

	var received atomic.Int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		var products []domain.OrderProduct
		assert.NoError(t, json.Unmarshal([]byte(r.FormValue("products")), &products))
		assert.Len(t, products, 1)
		assert.Equal(t, "900.00", r.FormValue("total_price"))
		_, header, err := r.FormFile("design_" + lineID)
		if assert.NoError(t, err) {
			assert.Equal(t, "art.png", header.Filename)
		}
		_, _ = w.Write([]byte(`{"orderId":"ord-9"}`))
	}))
	defer api.Close()
	client, err := orders.New(api.URL)
	require.NoError(t, err)
	svc := New(carts, stubPrices{}, client, Options{})

	conf, err := svc.Checkout(context.Background(), "s1", Request{
		Shopper: shopper,
		Designs: []Upload{{LineID: lineID, Filename: "art.png", Data: pngBytes}},
	})
	require.NoError(t, err)
	assert.Equal(t, "ord-9", conf.OrderID)
	assert.EqualValues(t, 1, received.Load())

	snap, err := carts.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, snap.Items)

	saved, err := slots.Slot("s1").Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, saved.Items)
}

func TestCheckoutFailureLeavesCartUntouched(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Payment declined"}`))
	}))
	defer api.Close()

	carts, _ := newCarts(t)
	fillCart(t, carts, "s1")
	client, _ := orders.New(api.URL)
	svc := New(carts, stubPrices{}, client, Options{})

	_, err := svc.Checkout(context.Background(), "s1", Request{Shopper: shopper})
	typed := domain.AsError(err)
	require.NotNil(t, typed)
	assert.Equal(t, "Payment declined", typed.Message())

	snap, err := carts.Get(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 10, snap.Items[0].Quantity)
}

func TestCheckoutEmptyCartMakesNoNetworkCall(t *testing.T) {
	submitter := &blockingSubmitter{release: make(chan struct{})}
	carts, _ := newCarts(t)
	svc := New(carts, stubPrices{}, submitter, Options{})

	_, err := svc.Checkout(context.Background(), "empty", Request{Shopper: shopper})
	assert.True(t, domain.IsCode(err, domain.CodeValidation))
	assert.Zero(t, submitter.calls.Load())
}

func TestCheckoutValidatesShopper(t *testing.T) {
	submitter := &blockingSubmitter{release: make(chan struct{})}
	carts, _ := newCarts(t)
	fillCart(t, carts, "s1")
	svc := New(carts, stubPrices{}, submitter, Options{})

	_, err := svc.Checkout(context.Background(), "s1", Request{Shopper: domain.Shopper{Name: "A", Email: "not-an-email", Address: "x"}})
	assert.True(t, domain.IsCode(err, domain.CodeValidation))
	assert.Zero(t, submitter.calls.Load())
}

func TestCheckoutRejectsConcurrentSubmission(t *testing.T) {
	submitter := &blockingSubmitter{release: make(chan struct{})}
	carts, _ := newCarts(t)
	fillCart(t, carts, "s1")
	svc := New(carts, stubPrices{}, submitter, Options{})

	done := make(chan error, 1)
	go func() {
		_, err := svc.Checkout(context.Background(), "s1", Request{Shopper: shopper})
		done <- err
	}()
	require.Eventually(t, func() bool { return submitter.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	_, err := svc.Checkout(context.Background(), "s1", Request{Shopper: shopper})
	assert.True(t, domain.IsCode(err, domain.CodeConflict), "got %v", err)

	close(submitter.release)
	require.NoError(t, <-done)
	assert.EqualValues(t, 1, submitter.calls.Load())
	assert.Zero(t, svc.inFlightCount())
}

func TestCheckoutKeepsLinesAddedDuringSubmission(t *testing.T) {
	submitter := &blockingSubmitter{release: make(chan struct{})}
	carts, slots := newCarts(t)
	ctx := context.Background()
	fillCart(t, carts, "s1")
	svc := New(carts, stubPrices{}, submitter, Options{})

	done := make(chan error, 1)
	go func() {
		_, err := svc.Checkout(ctx, "s1", Request{Shopper: shopper})
		done <- err
	}()
	require.Eventually(t, func() bool { return submitter.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	_, err := carts.AddItem(ctx, "s1", cart.AddItemRequest{ProductID: "mug", Quantity: 1, Customizations: map[string]string{"color": "blue"}})
	require.NoError(t, err)
	_, err = carts.AddItem(ctx, "s1", cart.AddItemRequest{ProductID: "mug", Quantity: 2, Customizations: map[string]string{"color": "red"}})
	require.NoError(t, err)

	close(submitter.release)
	require.NoError(t, <-done)

	snap, err := carts.Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, snap.Items, 2)
	byColor := map[string]int{}
	for _, item := range snap.Items {
		byColor[item.SelectedCustomizations["color"]] = item.Quantity
	}
	assert.Equal(t, map[string]int{"red": 2, "blue": 1}, byColor)

	saved, err := slots.Slot("s1").Load(ctx)
	require.NoError(t, err)
	assert.Len(t, saved.Items, 2)
	assert.Zero(t, svc.inFlightCount())
}

func TestCheckoutTimesOut(t *testing.T) {
	submitter := &blockingSubmitter{release: make(chan struct{})}
	carts, _ := newCarts(t)
	fillCart(t, carts, "s1")
	svc := New(carts, stubPrices{}, submitter, Options{Timeout: 20 * time.Millisecond})

	_, err := svc.Checkout(context.Background(), "s1", Request{Shopper: shopper})
	assert.True(t, domain.IsCode(err, domain.CodeTimeout), "got %v", err)
	assert.True(t, domain.MetadataFor(domain.CodeTimeout).Retryable)

	snap, _ := carts.Get(context.Background(), "s1")
	assert.Len(t, snap.Items, 1)
}
