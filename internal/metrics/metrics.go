// Package metrics records run statistics in a private Prometheus registry
// and writes them in the text exposition format for the node exporter
// textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cleared-dev/densify/internal/model"
)

// Collector implements engine.Recorder. It is safe for concurrent use.
type Collector struct {
	registry       *prometheus.Registry
	accounts       *prometheus.CounterVec
	accountSeconds *prometheus.HistogramVec
	conflicts      prometheus.Counter
	runs           *prometheus.CounterVec
	maxAdjustment  prometheus.Gauge
}

// NewCollector creates a Collector with its own registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		accounts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "densify_accounts_total",
			Help: "Accounts densified, by behavior",
		}, []string{"behavior"}),
		accountSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "densify_account_seconds",
			Help:    "Time taken to densify one account",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"behavior"}),
		conflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "densify_conflicts_total",
			Help: "Conflicting period constraints reported",
		}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "densify_runs_total",
			Help: "Runs by result",
		}, []string{"result"}),
		maxAdjustment: factory.NewGauge(prometheus.GaugeOpts{
			Name: "densify_balancing_adjustment_abs_max",
			Help: "Largest absolute monthly change made by the balancer in the last run",
		}),
	}
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) AccountDensified(behavior model.Behavior, took time.Duration) {
	c.accounts.WithLabelValues(string(behavior)).Inc()
	c.accountSeconds.WithLabelValues(string(behavior)).Observe(took.Seconds())
}

func (c *Collector) ConflictsFound(n int) {
	c.conflicts.Add(float64(n))
}

func (c *Collector) Balanced(_ model.Balancing, maxAdjustment float64) {
	c.maxAdjustment.Set(maxAdjustment)
}

// RunFinished counts a run as "ok" or "error".
func (c *Collector) RunFinished(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.runs.WithLabelValues(result).Inc()
}

// WriteTextfile writes every metric to path atomically.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}
