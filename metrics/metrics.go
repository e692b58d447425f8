package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pha/acquisition"
)

const readSuccess = 200

// Monitor exports the loop's progress to Prometheus. It is an
// acquisition.Sink: every snapshot refreshes the gauges and feeds the
// amplitudes accepted since the previous one into the amplitude histogram.
type Monitor struct {
	sync.Mutex
	ServiceName string

	opts     Options
	registry *prometheus.Registry

	LegitGauge     prometheus.Gauge
	IterationGauge prometheus.Gauge
	ProcessedGauge prometheus.Gauge
	ErrorsGauge    *prometheus.GaugeVec
	ProgressGauge  prometheus.Gauge
	DeadtimeGauge  *prometheus.GaugeVec
	DeadtimeLevel  prometheus.Gauge
	Amplitudes     prometheus.Histogram
	Overflow       *prometheus.GaugeVec
	Snapshots      *prometheus.CounterVec

	MemoryUseGauge prometheus.Gauge
	MemoryPercent  prometheus.Gauge
	CPUPercent     prometheus.Gauge
}

func NewMonitor(namespace string, opts ...Option) *Monitor {
	o := Options{
		BucketMin:   DefaultBucketMin,
		BucketMax:   DefaultBucketMax,
		BucketCount: DefaultBucketCount,
	}

	for _, v := range opts {
		v(&o)
	}

	if o.BucketCount < 1 || !(o.BucketMax > o.BucketMin) {
		o.BucketMin, o.BucketMax, o.BucketCount = DefaultBucketMin, DefaultBucketMax, DefaultBucketCount
	}

	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}

	m := &Monitor{
		ServiceName: namespace,
		opts:        o,
		registry:    prometheus.NewRegistry(),

		LegitGauge:     gauge("legit_pulses", "Accepted pulses in the current run."),
		IterationGauge: gauge("iterations", "Loop iterations in the current run."),
		ProcessedGauge: gauge("processed_buffers", "Buffers that reached the detector."),
		ProgressGauge:  gauge("progress_ratio", "Accepted pulses over the target count."),
		DeadtimeLevel:  gauge("deadtime_level", "Deadtime grade: 0 green, 1 yellow, 2 red."),
		MemoryUseGauge: gauge("memory_use_megabytes", "Memory obtained from the OS."),
		MemoryPercent:  gauge("memory_percent", "Host memory in use."),
		CPUPercent:     gauge("cpu_percent", "Host cpu in use."),

		ErrorsGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "errors",
			Help:      "Errors the loop recovered from, by kind.",
		}, []string{"kind"}),

		DeadtimeGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "deadtime",
			Help:      "Deadtime in the configured unit.",
		}, []string{"stat", "unit"}),

		Overflow: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "histogram_outside",
			Help:      "Amplitudes outside the histogram range.",
		}, []string{"side"}),

		Amplitudes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pulse_amplitude",
			Help:      "Accepted pulse amplitudes.",
			Buckets: prometheus.LinearBuckets(o.BucketMin,
				(o.BucketMax-o.BucketMin)/float64(o.BucketCount), o.BucketCount+1),
		}),

		Snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Snapshots received.",
		}, []string{"final"}),
	}

	m.registry.MustRegister(m.LegitGauge, m.IterationGauge, m.ProcessedGauge, m.ErrorsGauge,
		m.ProgressGauge, m.DeadtimeGauge, m.DeadtimeLevel, m.Amplitudes, m.Overflow, m.Snapshots,
		m.MemoryUseGauge, m.MemoryPercent, m.CPUPercent)

	return m
}

func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Monitor) String() string {
	return "metrics"
}

func (m *Monitor) Publish(s *acquisition.Snapshot) error {
	m.Lock()
	defer m.Unlock()

	m.LegitGauge.Set(float64(s.State.LegitCount))
	m.IterationGauge.Set(float64(s.State.Iterations))
	m.ProcessedGauge.Set(float64(s.State.Processed))
	m.ProgressGauge.Set(s.Progress)
	m.ErrorsGauge.WithLabelValues("transient").Set(float64(s.State.TransientErrors))
	m.ErrorsGauge.WithLabelValues("sink").Set(float64(s.State.SinkErrors))
	m.Overflow.WithLabelValues("under").Set(float64(s.Histogram.Underflow))
	m.Overflow.WithLabelValues("over").Set(float64(s.Histogram.Overflow))
	m.Overflow.WithLabelValues("invalid").Set(float64(s.Histogram.Invalid))

	if d := s.Deadtime; d.OK {
		m.DeadtimeGauge.WithLabelValues(d.Kind, d.Unit).Set(d.Value)
		m.DeadtimeGauge.WithLabelValues("last", d.Unit).Set(d.Last)
		m.DeadtimeGauge.WithLabelValues("max", d.Unit).Set(d.Max)
		m.DeadtimeLevel.Set(float64(d.Level))
	}

	for _, a := range s.Amplitudes {
		m.Amplitudes.Observe(a)
	}

	final := "false"
	if s.Final {
		final = "true"
	}

	m.Snapshots.WithLabelValues(final).Inc()

	return nil
}

// Handler serves /metrics from the monitor's registry and /heart for
// liveness probes.
func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/heart", http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(readSuccess)
	}))

	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	return mux
}
