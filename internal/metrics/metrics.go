// Package metrics exposes selector and restore counters for Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sections.ai/internal/sim/sections"
)

type Metrics struct {
	reg *prometheus.Registry

	ops        *prometheus.CounterVec
	restored   prometheus.Counter
	dangling   prometheus.Counter
	collisions prometheus.Counter
	queueDepth prometheus.Gauge
	mirror     *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sections_operations_total",
			Help: "Selector operations and reference restores by kind.",
		}, []string{"op"}),
		restored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sections_references_restored_total",
			Help: "Live references repaired from stored tokens.",
		}),
		dangling: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sections_references_dangling_total",
			Help: "Stored references whose target was not found.",
		}),
		collisions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sections_token_collisions_total",
			Help: "Tokens re-minted because another block already claimed them.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sections_restore_queue_depth",
			Help: "Grids waiting for a reference restore.",
		}),
		mirror: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sections_mirror_uploads_total",
			Help: "Blueprint mirror uploads by result.",
		}, []string{"result"}),
	}
	m.reg.MustRegister(
		m.ops, m.restored, m.dangling, m.collisions, m.queueDepth, m.mirror,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveOp(op sections.Op) {
	m.ops.WithLabelValues(string(op.Kind)).Inc()
	if op.Repaired > 0 {
		m.restored.Add(float64(op.Repaired))
	}
	if op.Dangling > 0 {
		m.dangling.Add(float64(op.Dangling))
	}
	if op.Reminted > 0 {
		m.collisions.Add(float64(op.Reminted))
	}
}

func (m *Metrics) SetRestoreQueueDepth(n int) { m.queueDepth.Set(float64(n)) }

func (m *Metrics) ObserveMirrorUpload(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.mirror.WithLabelValues(result).Inc()
}

// WatchRuntime publishes the runtime's last status as gauges.
func (m *Metrics) WatchRuntime(status func() sections.Status) {
	gauge := func(name, help string, v func(sections.Status) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help},
			func() float64 { return v(status()) })
	}
	m.reg.MustRegister(
		gauge("sections_tick", "Current session tick.", func(s sections.Status) float64 { return float64(s.Tick) }),
		gauge("sections_players", "Players with a selector.", func(s sections.Status) float64 { return float64(s.Players) }),
		gauge("sections_grids", "Live grids in the world.", func(s sections.Status) float64 { return float64(s.World.Grids) }),
		gauge("sections_blocks", "Blocks in the world.", func(s sections.Status) float64 { return float64(s.World.Blocks) }),
		gauge("sections_step_ms", "Duration of the last tick.", func(s sections.Status) float64 { return s.StepMS }),
	)
}
