// Package metrics exposes compositor and writer events as Prometheus
// collectors
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/ducksouplab/framemixer/compositor"
	"github.com/ducksouplab/framemixer/recording"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "framemixer"

// Metrics implements compositor.Observer, Writer returns its
// recording.Observer side
type Metrics struct {
	registry *prometheus.Registry
	// writers counted in activeRecordings
	active sync.Map

	composeDuration    *prometheus.HistogramVec
	composeDropped     *prometheus.CounterVec
	sourcesSkipped     *prometheus.CounterVec
	writerStates       *prometheus.CounterVec
	framesAccepted     prometheus.Counter
	framesDropped      *prometheus.CounterVec
	audioDropped       *prometheus.CounterVec
	activeRecordings   prometheus.Gauge
	previewSubscribers prometheus.Gauge
}

var _ compositor.Observer = (*Metrics)(nil)

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		composeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compose_duration_seconds",
			Help:      "Duration of one composition pass",
			Buckets:   []float64{.001, .002, .005, .01, .02, .033, .05, .1},
		}, []string{"worker"}),
		composeDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compose_dropped_total",
			Help:      "Frames not begun because a pass was in flight",
		}, []string{"worker"}),
		sourcesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sources_skipped_total",
			Help:      "Layers skipped because their source had no texture in time",
		}, []string{"worker", "layer"}),
		writerStates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writer_states_total",
			Help:      "Writer state transitions by target state",
		}, []string{"state"}),
		framesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "video_frames_accepted_total",
			Help:      "Video frames appended to a sink",
		}),
		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "video_frames_dropped_total",
			Help:      "Video frames dropped by writers",
		}, []string{"reason"}),
		audioDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_samples_dropped_total",
			Help:      "Audio samples dropped by writers",
		}, []string{"reason"}),
		activeRecordings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_recordings",
			Help:      "Writers started and not yet terminal",
		}),
		previewSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "preview_subscribers",
			Help:      "Clients receiving preview frames",
		}),
	}
	m.registry.MustRegister(
		m.composeDuration,
		m.composeDropped,
		m.sourcesSkipped,
		m.writerStates,
		m.framesAccepted,
		m.framesDropped,
		m.audioDropped,
		m.activeRecordings,
		m.previewSubscribers,
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// compositor.Observer

func (m *Metrics) ComposeDone(worker string, d time.Duration) {
	m.composeDuration.WithLabelValues(worker).Observe(d.Seconds())
}

func (m *Metrics) FrameDropped(worker string) {
	m.composeDropped.WithLabelValues(worker).Inc()
}

func (m *Metrics) SourceSkipped(worker, layer string) {
	m.sourcesSkipped.WithLabelValues(worker, layer).Inc()
}

// recording.Observer, as a separate value since FrameDropped clashes
func (m *Metrics) Writer() recording.Observer {
	return writerObserver{m}
}

type writerObserver struct {
	m *Metrics
}

func (w writerObserver) StateChanged(writer string, s recording.State) {
	w.m.writerStates.WithLabelValues(s.String()).Inc()
	switch {
	case s == recording.Started:
		if _, loaded := w.m.active.LoadOrStore(writer, struct{}{}); !loaded {
			w.m.activeRecordings.Inc()
		}
	case s.Terminal():
		if _, loaded := w.m.active.LoadAndDelete(writer); loaded {
			w.m.activeRecordings.Dec()
		}
	}
}

func (w writerObserver) FrameAccepted(writer string, pts time.Duration) {
	w.m.framesAccepted.Inc()
}

func (w writerObserver) FrameDropped(writer, reason string) {
	w.m.framesDropped.WithLabelValues(reason).Inc()
}

func (w writerObserver) AudioDropped(writer, reason string) {
	w.m.audioDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetPreviewSubscribers(n int) {
	m.previewSubscribers.Set(float64(n))
}
