// Package obs is the in-process metrics surface: counters/gauges are
// registered against a private prometheus.Registry and gathered into a
// plain struct for run_summary.json, never exposed over an HTTP
// /metrics endpoint.
package obs

import (
	"fmt"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/marcohefti/releasegate/internal/checkpoint"
)

// Collector wraps a private prometheus registry. One Collector is created
// per run; nothing in
// this package touches a package-level default registry.
type Collector struct {
	registry *prometheus.Registry

	attempts prometheus.CounterVec
	retries  prometheus.CounterVec
	timeouts prometheus.CounterVec
	statuses prometheus.CounterVec
	guard    prometheus.Gauge
}

// New builds a Collector with all series registered. Panics only on a
// duplicate-registration programming error, which prometheus itself would
// also panic on; this mirrors promauto's contract.
func New() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeeper_gate_attempts_total",
		Help: "Gate attempts started, by gate.",
	}, []string{"gate"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeeper_gate_retries_total",
		Help: "Gate retries performed, by gate.",
	}, []string{"gate"})
	timeouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeeper_gate_timeouts_total",
		Help: "Gate attempts that hit their per-attempt timeout, by gate.",
	}, []string{"gate"})
	statuses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeeper_gate_checkpoint_status_total",
		Help: "Terminal checkpoint status recorded per gate attempt.",
	}, []string{"gate", "status"})
	guard := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gatekeeper_runner_guard_state",
		Help: "Runner-guard state as of the last evaluation: 0=closed, 1=half_open, 2=open.",
	})

	c.registry.MustRegister(attempts, retries, timeouts, statuses, guard)
	c.attempts = *attempts
	c.retries = *retries
	c.timeouts = *timeouts
	c.statuses = *statuses
	c.guard = guard
	return c
}

func (c *Collector) ObserveAttempt(gate checkpoint.Gate, attempt int) {
	c.attempts.WithLabelValues(string(gate)).Inc()
	if attempt > 1 {
		c.retries.WithLabelValues(string(gate)).Inc()
	}
}

func (c *Collector) ObserveTimeout(gate checkpoint.Gate) {
	c.timeouts.WithLabelValues(string(gate)).Inc()
}

func (c *Collector) ObserveStatus(gate checkpoint.Gate, status checkpoint.Status) {
	c.statuses.WithLabelValues(string(gate), string(status)).Inc()
}

// guardStateValue maps the three-state model (internal/guard) onto the
// gauge's fixed numeric scale so Gather stays a pure data dump with no
// string comparisons downstream.
func guardStateValue(state string) float64 {
	switch state {
	case "half_open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

func (c *Collector) SetGuardState(state string) {
	c.guard.Set(guardStateValue(state))
}

// Snapshot is the run_summary.json "metrics" block: a flattened,
// deterministically ordered view over the gathered series, independent of
// prometheus' own exposition text format.
type Snapshot struct {
	Counters map[string]float64 `json:"counters"`
	Gauges   map[string]float64 `json:"gauges"`
}

// Gather walks the registry's families and flattens them into Snapshot.
// Label values are folded into the series key (gate="G1" -> "gate=G1")
// since run_summary.json has no tabular concept of label dimensions.
func (c *Collector) Gather() (Snapshot, error) {
	families, err := c.registry.Gather()
	if err != nil {
		return Snapshot{}, fmt.Errorf("obs: gather: %w", err)
	}

	snap := Snapshot{Counters: map[string]float64{}, Gauges: map[string]float64{}}
	for _, fam := range families {
		name := fam.GetName()
		for _, m := range fam.GetMetric() {
			key := seriesKey(name, m)
			switch fam.GetType() {
			case dto.MetricType_COUNTER:
				snap.Counters[key] = m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				snap.Gauges[key] = m.GetGauge().GetValue()
			}
		}
	}
	return snap, nil
}

func seriesKey(name string, m *dto.Metric) string {
	labels := m.GetLabel()
	if len(labels) == 0 {
		return name
	}
	pairs := make([]string, 0, len(labels))
	for _, l := range labels {
		pairs = append(pairs, fmt.Sprintf("%s=%s", l.GetName(), l.GetValue()))
	}
	sort.Strings(pairs)
	key := name
	for _, p := range pairs {
		key += "," + p
	}
	return key
}
