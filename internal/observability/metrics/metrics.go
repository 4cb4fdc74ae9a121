package metrics

import "github.com/prometheus/client_golang/prometheus"

// OverlayMetrics exposes counters/histograms for overlay rendering.
type OverlayMetrics struct {
	payloadTotal   *prometheus.CounterVec
	primitiveTotal *prometheus.CounterVec
	droppedTotal   *prometheus.CounterVec
	renderLatency  prometheus.Histogram
}

func NewOverlayMetrics(reg prometheus.Registerer) *OverlayMetrics {
	m := &OverlayMetrics{
		payloadTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "annoverlay",
			Subsystem: "render",
			Name:      "payload_total",
			Help:      "Annotation payloads rendered, by stored format",
		}, []string{"format"}),
		primitiveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "annoverlay",
			Subsystem: "render",
			Name:      "primitive_total",
			Help:      "Drawable primitives produced, by kind",
		}, []string{"kind"}),
		droppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "annoverlay",
			Subsystem: "render",
			Name:      "dropped_total",
			Help:      "Annotation records or payloads that produced nothing",
		}, []string{"reason"}),
		renderLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "annoverlay",
			Subsystem: "render",
			Name:      "latency_seconds",
			Help:      "Time spent mapping a payload into primitives",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.payloadTotal, m.primitiveTotal, m.droppedTotal, m.renderLatency)
	return m
}

func (m *OverlayMetrics) ObservePayload(format string) {
	if m == nil {
		return
	}
	m.payloadTotal.WithLabelValues(format).Inc()
}

func (m *OverlayMetrics) ObservePrimitive(kind string) {
	if m == nil {
		return
	}
	m.primitiveTotal.WithLabelValues(kind).Inc()
}

func (m *OverlayMetrics) ObserveDropped(reason string) {
	if m == nil {
		return
	}
	m.droppedTotal.WithLabelValues(reason).Inc()
}

func (m *OverlayMetrics) ObserveRender(seconds float64) {
	if m == nil {
		return
	}
	m.renderLatency.Observe(seconds)
}
