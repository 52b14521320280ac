package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ReferralEvents counts referral lifecycle transitions (touched, validated).
	ReferralEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_events_total",
			Help: "Referral lifecycle transitions",
		},
		[]string{"event"},
	)

	// ClaimResults counts claim attempts by outcome (granted, denied, error).
	ClaimResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_claims_total",
			Help: "Claim attempts by outcome",
		},
		[]string{"result"},
	)

	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"action"},
	)

	VouchersSigned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relayer_vouchers_signed_total",
			Help: "Vouchers signed by the relayer key",
		},
	)
)

var registry = prometheus.NewRegistry()

func init() {
	registry.MustRegister(
		ReferralEvents,
		ClaimResults,
		RateLimited,
		VouchersSigned,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
