// Package prometheus exports cache activity as Prometheus metrics.
//
// Caches are per unit of work, so metrics are accumulated rather than scraped live:
// call Observe with the final Stats of each cache, and pass the Metrics as (or inside)
// the cache's Hooks to count store-level events as they happen.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/unkn0wn-root/dbcache"
)

type Metrics struct {
	dbcache.NopHooks

	hits          *prometheus.CounterVec
	misses        *prometheus.CounterVec
	mirroredBytes *prometheus.HistogramVec
	storeErrors   *prometheus.CounterVec
	expired       prometheus.Counter
	flushes       prometheus.Counter
	invalidKeys   *prometheus.CounterVec
	deferrals     prometheus.Counter
}

var _ dbcache.Hooks = (*Metrics)(nil)

// New registers the collectors on reg (prometheus.DefaultRegisterer when nil).
func New(reg prometheus.Registerer, namespace string) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "dbcache"
	}
	f := promauto.With(reg)
	return &Metrics{
		hits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hits_total",
			Help:      "Number of cache hits by group",
		}, []string{"group"}),
		misses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "misses_total",
			Help:      "Number of cache misses by group",
		}, []string{"group"}),
		mirroredBytes: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mirrored_bytes",
			Help:      "Approximate serialized size of a group's mirrored values at the end of a cache lifetime",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		}, []string{"group"}),
		storeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Number of failed durable store calls by operation",
		}, []string{"op"}),
		expired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expired_rows_total",
			Help:      "Number of expired rows removed from the durable store",
		}),
		flushes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushes_total",
			Help:      "Number of cache flushes",
		}),
		invalidKeys: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_keys_total",
			Help:      "Number of calls made with a key that is neither a string nor an integer",
		}, []string{"op"}),
		deferrals: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ready_deferred_total",
			Help:      "Number of readiness attempts deferred by the precondition",
		}),
	}
}

// Observe adds a finished cache's counters.
func (m *Metrics) Observe(s dbcache.Stats) {
	for g, gs := range s.Groups {
		if gs.Hits > 0 {
			m.hits.WithLabelValues(g).Add(float64(gs.Hits))
		}
		if gs.Misses > 0 {
			m.misses.WithLabelValues(g).Add(float64(gs.Misses))
		}
		m.mirroredBytes.WithLabelValues(g).Observe(float64(gs.Size))
	}
}

func (m *Metrics) StoreError(op, _, _ string, _ error) { m.storeErrors.WithLabelValues(op).Inc() }
func (m *Metrics) ExpiredSwept(n int64)                { m.expired.Add(float64(n)) }
func (m *Metrics) Flushed()                            { m.flushes.Inc() }
func (m *Metrics) InvalidKey(op, _ string)             { m.invalidKeys.WithLabelValues(op).Inc() }
func (m *Metrics) ReadyDeferred()                      { m.deferrals.Inc() }
