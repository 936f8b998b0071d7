// Package metrics exports execution statistics and the block budget to
// Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harshithgowdakt/blockexec/internal/block"
	"github.com/harshithgowdakt/blockexec/internal/exec"
	"github.com/harshithgowdakt/blockexec/internal/executor"
	"github.com/harshithgowdakt/blockexec/internal/types"
)

const namespace = "blockexec"

// Collector is an exec.StatsSink backed by Prometheus metrics.
type Collector struct {
	registry  *prometheus.Registry
	filtered  *prometheus.CounterVec
	fullCount *prometheus.CounterVec
	pulls     *prometheus.CounterVec
	rows      *prometheus.CounterVec
}

var _ exec.StatsSink = (*Collector)(nil)

// NewCollector registers the executor metrics and gauges reading m's
// budget on a fresh registry.
func NewCollector(m *block.Manager) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		filtered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "rows_filtered_total",
			Help: "Rows dropped by filtering executors.",
		}, []string{"kind"}),
		fullCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "rows_full_count_total",
			Help: "Rows counted past limits.",
		}, []string{"kind"}),
		pulls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "pulls_total",
			Help: "Pulls served, by execution state.",
		}, []string{"kind", "state"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "rows_total",
			Help: "Rows delivered by pulls.",
		}, []string{"kind"}),
	}
	mon := m.Monitor()
	c.registry.MustRegister(
		c.filtered, c.fullCount, c.pulls, c.rows,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Name: "block_bytes_in_use",
			Help: "Bytes of item blocks currently handed out.",
		}, func() float64 { return float64(mon.Current()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Name: "block_bytes_peak",
			Help: "Highest number of block bytes handed out at once.",
		}, func() float64 { return float64(mon.Peak()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Name: "block_bytes_limit",
			Help: "Block budget, 0 when unlimited.",
		}, func() float64 { return float64(mon.Limit()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Name: "blocks_requested_total",
			Help: "Item blocks handed out by the manager.",
		}, func() float64 { return float64(m.Stats().Requested) }),
	)
	return c
}

// AddStats implements exec.StatsSink.
func (c *Collector) AddStats(kind string, s executor.Stats) {
	if s.Filtered > 0 {
		c.filtered.WithLabelValues(kind).Add(float64(s.Filtered))
	}
	if s.FullCount > 0 {
		c.fullCount.WithLabelValues(kind).Add(float64(s.FullCount))
	}
}

// ObservePull implements exec.StatsSink.
func (c *Collector) ObservePull(kind string, state types.ExecutionState, rows int) {
	c.pulls.WithLabelValues(kind, state.String()).Inc()
	if rows > 0 {
		c.rows.WithLabelValues(kind).Add(float64(rows))
	}
}

// Registry returns the registry holding the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
