package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Storefront records cart, coupon and checkout activity.
// A nil *Storefront is valid and records nothing.
type Storefront struct {
	cartMutations   *prometheus.CounterVec
	persistFailures *prometheus.CounterVec
	couponChecks    *prometheus.CounterVec
	checkouts       *prometheus.CounterVec
	checkoutLatency prometheus.Histogram
}

// NewStorefront registers the storefront metrics on reg.
func NewStorefront(reg prometheus.Registerer) *Storefront {
	if reg == nil {
		return nil
	}
	m := &Storefront{
		cartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cart_mutations_total",
			Help: "Cart mutations by event and outcome.",
		}, []string{"event", "result"}),
		persistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cart_persistence_failures_total",
			Help: "Cart storage load/save failures that were recovered locally.",
		}, []string{"op"}),
		couponChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coupon_validations_total",
			Help: "Discount code validations by outcome.",
		}, []string{"result"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_submissions_total",
			Help: "Checkout submissions by outcome.",
		}, []string{"result"}),
		checkoutLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "checkout_submission_seconds",
			Help:    "Duration of order placement calls.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.cartMutations, m.persistFailures, m.couponChecks, m.checkouts, m.checkoutLatency)
	return m
}

func (m *Storefront) CartMutation(event string, err error) {
	if m == nil {
		return
	}
	m.cartMutations.WithLabelValues(normalizeLabel(event), outcome(err)).Inc()
}

func (m *Storefront) PersistFailure(op string) {
	if m == nil {
		return
	}
	m.persistFailures.WithLabelValues(normalizeLabel(op)).Inc()
}

func (m *Storefront) CouponValidation(result string) {
	if m == nil {
		return
	}
	m.couponChecks.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *Storefront) Checkout(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(result)).Inc()
	if took > 0 {
		m.checkoutLatency.Observe(took.Seconds())
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
