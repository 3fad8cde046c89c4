package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CartQuotesTotal counts cart price quotes by outcome.
	CartQuotesTotal *prometheus.CounterVec
	// CartMutationsTotal counts cart mutations by operation and outcome.
	CartMutationsTotal *prometheus.CounterVec
	// CheckoutTotal counts checkout attempts by outcome.
	CheckoutTotal *prometheus.CounterVec
	// CatalogFetchFailures counts failed catalog reads by operation.
	CatalogFetchFailures *prometheus.CounterVec
	// TrackingWebhookTotal counts inbound courier webhooks by outcome.
	TrackingWebhookTotal *prometheus.CounterVec
	// DeliveryTransitionsTotal counts accepted delivery status transitions.
	DeliveryTransitionsTotal *prometheus.CounterVec
	// DomainEventsTotal counts emitted domain events by topic.
	DomainEventsTotal *prometheus.CounterVec
	// RateLimitedTotal counts requests rejected by a rate limit scope.
	RateLimitedTotal *prometheus.CounterVec
	// CourierRequestLatency records courier provider latency in milliseconds.
	CourierRequestLatency *prometheus.HistogramVec

	// BreakerState is 0 when closed, 1 when open and 2 when half-open.
	BreakerState *prometheus.GaugeVec
	// BreakerTransitionsTotal counts breaker state changes per target.
	BreakerTransitionsTotal *prometheus.CounterVec
	// BreakerOpenedTotal counts how often a target's breaker opened.
	BreakerOpenedTotal *prometheus.CounterVec
	// BreakerIgnoredTotal counts errors passed through without tripping the breaker.
	BreakerIgnoredTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CartQuotesTotal = counterVec(reg, namespace, "cart_quotes_total", "Count of cart quotes by outcome.", "result")
		CartMutationsTotal = counterVec(reg, namespace, "cart_mutations_total", "Count of cart mutations by operation and outcome.", "op", "result")
		CheckoutTotal = counterVec(reg, namespace, "checkout_total", "Count of checkout attempts by outcome.", "result")
		CatalogFetchFailures = counterVec(reg, namespace, "catalog_fetch_failures_total", "Count of failed catalog reads.", "op")
		TrackingWebhookTotal = counterVec(reg, namespace, "tracking_webhook_total", "Count of processed courier webhooks by outcome.", "courier", "result")
		DeliveryTransitionsTotal = counterVec(reg, namespace, "delivery_transitions_total", "Count of accepted delivery transitions.", "source", "status")
		DomainEventsTotal = counterVec(reg, namespace, "domain_events_total", "Count of emitted domain events.", "topic")
		RateLimitedTotal = counterVec(reg, namespace, "rate_limited_total", "Count of requests rejected by rate limiting.", "scope")
		BreakerTransitionsTotal = counterVec(reg, namespace, "breaker_transition_total", "Count of breaker state transitions.", "target", "from", "to")
		BreakerOpenedTotal = counterVec(reg, namespace, "breaker_open_total", "Number of times a breaker opened.", "target")
		BreakerIgnoredTotal = counterVec(reg, namespace, "breaker_ignored_total", "Errors returned to callers without counting against the breaker.", "target")

		BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Current breaker state: 0=closed,1=open,2=half-open.",
		}, []string{"target"})
		mustRegisterCollector(reg, BreakerState, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.GaugeVec); ok {
				BreakerState = v
			}
		})

		CourierRequestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "courier_request_duration_ms",
			Help:      "Latency of courier provider calls in milliseconds.",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"courier", "result"})
		mustRegisterCollector(reg, CourierRequestLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				CourierRequestLatency = v
			}
		})
	})
}

func counterVec(reg prometheus.Registerer, namespace, name, help string, labels ...string) *prometheus.CounterVec {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, labels)
	mustRegisterCollector(reg, vec, func(existing prometheus.Collector) {
		if v, ok := existing.(*prometheus.CounterVec); ok {
			vec = v
		}
	})
	return vec
}

// Inc increments vec when it has been registered. Packages call this so tests
// that skip metric registration do not panic.
func Inc(vec *prometheus.CounterVec, labels ...string) {
	if vec == nil {
		return
	}
	vec.WithLabelValues(labels...).Inc()
}

// SetGauge sets vec when it has been registered.
func SetGauge(vec *prometheus.GaugeVec, value float64, labels ...string) {
	if vec == nil {
		return
	}
	vec.WithLabelValues(labels...).Set(value)
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
