package metrics

import (
	"net/http"

	"github.com/muhammadchandra19/booksync/internal/app/engine"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "booksync"

// Metrics turns engine notifications into Prometheus series. It is an engine.Observer.
type Metrics struct {
	registry *prometheus.Registry

	events        *prometheus.CounterVec
	notifications *prometheus.CounterVec
	synced        *prometheus.GaugeVec
	feedSequence  *prometheus.GaugeVec
	bookSequence  *prometheus.GaugeVec
}

var _ engine.Observer = (*Metrics)(nil)

// NewMetrics creates the collectors and registers them, together with the Go runtime and
// process collectors, on a dedicated registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_events_total",
			Help:      "Feed events consumed by product and type",
		}, []string{"product", "type"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_notifications_total",
			Help:      "Sync lifecycle notifications by product and kind",
		}, []string{"product", "kind"}),
		synced: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "book_synced",
			Help:      "1 while the product's book is synced, 0 while it is loading",
		}, []string{"product"}),
		feedSequence: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_sequence",
			Help:      "Sequence of the last feed event consumed per product",
		}, []string{"product"}),
		bookSequence: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_sequence",
			Help:      "Sequence of the last snapshot loaded per product",
		}, []string{"product"}),
	}

	m.registry.MustRegister(
		m.events,
		m.notifications,
		m.synced,
		m.feedSequence,
		m.bookSequence,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Notify records n.
func (m *Metrics) Notify(n engine.Notification) {
	if n.Kind == engine.KindEvent {
		if n.Event != nil {
			m.events.WithLabelValues(n.ProductID, string(n.Event.Type)).Inc()
		}
		if n.Sequence > 0 {
			m.feedSequence.WithLabelValues(n.ProductID).Set(float64(n.Sequence))
		}
		return
	}

	m.notifications.WithLabelValues(n.ProductID, string(n.Kind)).Inc()

	switch n.Kind {
	case engine.KindLoadStarted:
		m.synced.WithLabelValues(n.ProductID).Set(0)
	case engine.KindLoadSucceeded:
		m.synced.WithLabelValues(n.ProductID).Set(1)
		m.bookSequence.WithLabelValues(n.ProductID).Set(float64(n.Sequence))
	}
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
