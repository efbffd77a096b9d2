package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/myorg/scaledclock/internal/clock"
)

const namespace = "scaledclock"

// StateSource is read on every scrape. *clock.ScaledClock satisfies it.
type StateSource interface {
	Snapshot() clock.State
}

// PromCollector exposes clock state as Prometheus metrics. Register it on a
// registry and attach it to the clock as a listener so elapsed events are
// counted.
type PromCollector struct {
	source StateSource

	scaleDesc    *prometheus.Desc
	elapsedDesc  *prometheus.Desc
	intervalDesc *prometheus.Desc
	runningDesc  *prometheus.Desc

	elapsedTotal prometheus.Counter
	lastLag      prometheus.Gauge
}

// NewPromCollector creates a collector reading state from src.
func NewPromCollector(src StateSource) *PromCollector {
	return &PromCollector{
		source: src,
		scaleDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "scale_percent"),
			"Current scale applied to real time, in percent",
			nil, nil,
		),
		elapsedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "accumulated_seconds"),
			"Scaled time accumulated since the last start, reset or notification",
			nil, nil,
		),
		intervalDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "interval_seconds"),
			"Scaled time between notifications",
			nil, nil,
		),
		runningDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "running"),
			"Whether the clock is running (1) or stopped (0)",
			nil, nil,
		),
		elapsedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "elapsed_total",
			Help:      "Number of elapsed notifications fired",
		}),
		lastLag: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_lag_seconds",
			Help:      "Scaled time past the interval at the most recent notification",
		}),
	}
}

// OnElapsed counts a notification.
func (p *PromCollector) OnElapsed(ev clock.ElapsedEvent) {
	p.elapsedTotal.Inc()

	snap := p.source.Snapshot()
	p.lastLag.Set((ev.ScaledElapsed - snap.Interval).Seconds())
}

// Describe implements prometheus.Collector.
func (p *PromCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- p.scaleDesc
	ch <- p.elapsedDesc
	ch <- p.intervalDesc
	ch <- p.runningDesc
	p.elapsedTotal.Describe(ch)
	p.lastLag.Describe(ch)
}

// Collect implements prometheus.Collector.
func (p *PromCollector) Collect(ch chan<- prometheus.Metric) {
	s := p.source.Snapshot()

	running := 0.0
	if s.Running {
		running = 1
	}

	ch <- prometheus.MustNewConstMetric(p.scaleDesc, prometheus.GaugeValue, s.ScalePercent)
	ch <- prometheus.MustNewConstMetric(p.elapsedDesc, prometheus.GaugeValue, s.Elapsed.Seconds())
	ch <- prometheus.MustNewConstMetric(p.intervalDesc, prometheus.GaugeValue, s.Interval.Seconds())
	ch <- prometheus.MustNewConstMetric(p.runningDesc, prometheus.GaugeValue, running)
	p.elapsedTotal.Collect(ch)
	p.lastLag.Collect(ch)
}
