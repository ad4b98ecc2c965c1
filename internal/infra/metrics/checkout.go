package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		checkoutSessionsTotal,
		checkoutOutcomesTotal,
		verifyDuration,
	)
}

var (
	checkoutSessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_sessions_total",
			Help: "Checkout sessions started, by provider path (flutterwave/paystack/manual).",
		},
		[]string{"provider"},
	)

	checkoutOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_outcomes_total",
			Help: "Session outcomes (success/failed/cancelled/manual_fallback).",
		},
		[]string{"outcome"},
	)

	verifyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "payment_verify_duration_seconds",
			Help:    "Latency of backend payment verification calls.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func IncCheckoutSession(provider string) {
	checkoutSessionsTotal.WithLabelValues(provider).Inc()
}

func IncCheckoutOutcome(outcome string) {
	checkoutOutcomesTotal.WithLabelValues(outcome).Inc()
}

func ObserveVerifyDuration(seconds float64) {
	verifyDuration.Observe(seconds)
}
