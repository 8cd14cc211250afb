// Package prometheus exports signal and bus activity as Prometheus metrics.
// Attach a hook to a signal (or to every topic of a bus) via signal.WithHook.
package prometheus

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fluxorio/signal/pkg/signal"
)

var (
	// DefaultRegistry is the default Prometheus registry.
	DefaultRegistry = prometheus.NewRegistry()

	// DefaultRegisterer is the default Prometheus registerer.
	DefaultRegisterer = prometheus.WrapRegistererWith(prometheus.Labels{"service": "signal"}, DefaultRegistry)

	metricsOnce sync.Once
	metrics     *Metrics
)

// Metrics holds all Prometheus metrics, labelled by signal name.
type Metrics struct {
	SubscribesTotal     *prometheus.CounterVec
	UnsubscribesTotal   *prometheus.CounterVec
	ActiveSubscriptions *prometheus.GaugeVec
	TriggersTotal       *prometheus.CounterVec
	CallbacksTotal      *prometheus.CounterVec
	SkippedTotal        *prometheus.CounterVec
	PanicsTotal         *prometheus.CounterVec
	PrunedTotal         *prometheus.CounterVec
	TriggerDuration     *prometheus.HistogramVec
}

// GetMetrics returns the global metrics instance registered on
// DefaultRegisterer.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = NewMetrics(DefaultRegisterer)
	})
	return metrics
}

// NewMetrics creates a metrics collection registered on registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = DefaultRegisterer
	}

	return &Metrics{
		SubscribesTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "signal_subscribes_total",
				Help: "Total number of subscriptions registered",
			},
			[]string{"signal"},
		),
		UnsubscribesTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "signal_unsubscribes_total",
				Help: "Total number of subscriptions removed by Unsubscribe or Clear",
			},
			[]string{"signal"},
		),
		ActiveSubscriptions: promauto.With(registerer).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "signal_active_subscriptions",
				Help: "Current number of live subscriptions",
			},
			[]string{"signal"},
		),
		TriggersTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "signal_triggers_total",
				Help: "Total number of trigger dispatch passes",
			},
			[]string{"signal"},
		),
		CallbacksTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "signal_callbacks_invoked_total",
				Help: "Total number of callbacks invoked by triggers",
			},
			[]string{"signal"},
		),
		SkippedTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "signal_callbacks_skipped_total",
				Help: "Total number of snapshot entries skipped because their subscription had expired",
			},
			[]string{"signal"},
		),
		PanicsTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "signal_callback_panics_total",
				Help: "Total number of callback panics recovered during dispatch",
			},
			[]string{"signal"},
		),
		PrunedTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "signal_pruned_registrations_total",
				Help: "Total number of expired registrations removed by pruning",
			},
			[]string{"signal"},
		),
		TriggerDuration: promauto.With(registerer).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signal_trigger_duration_seconds",
				Help:    "Trigger dispatch duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"signal"},
		),
	}
}

// Hook returns a signal.Hook recording activity under the given signal
// name. One Metrics instance can back any number of hooks.
func (m *Metrics) Hook(name string) signal.Hook {
	return &hook{m: m, name: name}
}

// Handler returns an http.Handler serving DefaultRegistry, for mounting on
// a scrape endpoint.
func Handler() http.Handler {
	return promhttp.HandlerFor(DefaultRegistry, promhttp.HandlerOpts{})
}

type hook struct {
	m    *Metrics
	name string
}

func (h *hook) Subscribed(active int) {
	h.m.SubscribesTotal.WithLabelValues(h.name).Inc()
	h.m.ActiveSubscriptions.WithLabelValues(h.name).Set(float64(active))
}

func (h *hook) Unsubscribed(active int) {
	h.m.UnsubscribesTotal.WithLabelValues(h.name).Inc()
	h.m.ActiveSubscriptions.WithLabelValues(h.name).Set(float64(active))
}

func (h *hook) Cleared(removed int) {
	h.m.UnsubscribesTotal.WithLabelValues(h.name).Add(float64(removed))
	h.m.ActiveSubscriptions.WithLabelValues(h.name).Set(0)
}

func (h *hook) Triggered(delivered, skipped int, elapsed time.Duration) {
	h.m.TriggersTotal.WithLabelValues(h.name).Inc()
	h.m.CallbacksTotal.WithLabelValues(h.name).Add(float64(delivered))
	h.m.SkippedTotal.WithLabelValues(h.name).Add(float64(skipped))
	h.m.TriggerDuration.WithLabelValues(h.name).Observe(elapsed.Seconds())
}

func (h *hook) Pruned(removed, remaining int) {
	h.m.PrunedTotal.WithLabelValues(h.name).Add(float64(removed))
	h.m.ActiveSubscriptions.WithLabelValues(h.name).Set(float64(remaining))
}

func (h *hook) HandlerPanicked(any) {
	h.m.PanicsTotal.WithLabelValues(h.name).Inc()
}
