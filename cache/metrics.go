package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors shared by every provider. Each
// series is labelled with the provider name.
type Metrics struct {
	Hits      *prometheus.CounterVec
	Misses    *prometheus.CounterVec
	Sets      *prometheus.CounterVec
	Evictions *prometheus.CounterVec
	Faults    *prometheus.CounterVec
}

// NewMetrics registers cache collectors under namespace with reg. A nil reg
// uses the default Prometheus registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Hits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Lookups answered with a live entry",
		}, []string{"provider"}),
		Misses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Lookups that found no live entry",
		}, []string{"provider"}),
		Sets: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "sets_total",
			Help:      "Entries written",
		}, []string{"provider"}),
		Evictions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Expired entries removed on read",
		}, []string{"provider"}),
		Faults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "faults_total",
			Help:      "Backend failures converted into a miss or a dropped write",
		}, []string{"provider", "op"}),
	}
}

func (m *Metrics) hit(provider string) {
	if m != nil {
		m.Hits.WithLabelValues(provider).Inc()
	}
}

func (m *Metrics) miss(provider string) {
	if m != nil {
		m.Misses.WithLabelValues(provider).Inc()
	}
}

func (m *Metrics) set(provider string) {
	if m != nil {
		m.Sets.WithLabelValues(provider).Inc()
	}
}

func (m *Metrics) evict(provider string) {
	if m != nil {
		m.Evictions.WithLabelValues(provider).Inc()
	}
}

func (m *Metrics) fault(provider, op string) {
	if m != nil {
		m.Faults.WithLabelValues(provider, op).Inc()
	}
}
