// Package prom exports cache, sweeper and registry signals to Prometheus.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/typecache/cache"
	"github.com/IvanBrykalov/typecache/registry"
	"github.com/IvanBrykalov/typecache/sweeper"
)

// Adapter implements cache.Metrics, sweeper.Metrics and registry.Metrics.
// One Adapter is typically shared by every scope of a pool, so the cache
// series are totals across scopes.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits     prometheus.Counter
	misses   prometheus.Counter
	evicts   *prometheus.CounterVec
	resident prometheus.Gauge

	sweeps   *prometheus.HistogramVec
	failures *prometheus.CounterVec

	owners  prometheus.Gauge
	created prometheus.Counter
	reaped  prometheus.Counter
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: name, Help: help, ConstLabels: constLabels,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub, Name: name, Help: help, ConstLabels: constLabels,
		})
	}

	a := &Adapter{
		hits:   counter("hits_total", "Resolution cache hits"),
		misses: counter("misses_total", "Resolution cache misses"),
		evicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "evictions_total",
				Help:        "Resolution cache evictions by reason",
				ConstLabels: constLabels,
			},
			[]string{"reason"},
		),
		resident: gauge("resident_entries", "Entries resident across all scopes"),
		sweeps: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "sweep_duration_seconds",
				Help:        "Duration of one maintenance pass by target",
				ConstLabels: constLabels,
				Buckets:     prometheus.ExponentialBuckets(1e-6, 4, 10),
			},
			[]string{"target"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "sweep_failures_total",
				Help:        "Maintenance passes that panicked, by target",
				ConstLabels: constLabels,
			},
			[]string{"target"},
		),
		owners:  gauge("owners", "Live owner scopes"),
		created: counter("scopes_created_total", "Owner scopes created"),
		reaped:  counter("scopes_reaped_total", "Owner scopes reaped after their owner was collected"),
	}
	reg.MustRegister(
		a.hits, a.misses, a.evicts, a.resident,
		a.sweeps, a.failures,
		a.owners, a.created, a.reaped,
	)
	return a
}

// ---- cache.Metrics ----

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Evict increments the eviction counter with a reason label.
func (a *Adapter) Evict(r cache.EvictReason) { a.evicts.WithLabelValues(r.String()).Inc() }

// Resident applies a change to the resident entries gauge.
func (a *Adapter) Resident(delta int) { a.resident.Add(float64(delta)) }

// ---- sweeper.Metrics ----

// Swept observes the duration of a completed pass.
func (a *Adapter) Swept(target string, d time.Duration) {
	a.sweeps.WithLabelValues(target).Observe(d.Seconds())
}

// Failed counts a pass that panicked.
func (a *Adapter) Failed(target string) { a.failures.WithLabelValues(target).Inc() }

// ---- registry.Metrics ----

// Created counts a new scope.
func (a *Adapter) Created() {
	a.created.Inc()
	a.owners.Inc()
}

// Reaped counts a scope removed after its owner was collected.
func (a *Adapter) Reaped() {
	a.reaped.Inc()
	a.owners.Dec()
}

// Compile-time checks.
var (
	_ cache.Metrics    = (*Adapter)(nil)
	_ sweeper.Metrics  = (*Adapter)(nil)
	_ registry.Metrics = (*Adapter)(nil)
)
