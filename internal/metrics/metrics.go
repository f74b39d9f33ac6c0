package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the dashboard collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	TelemetryPushes  prometheus.Counter
	LinkUp           prometheus.Gauge
	SoilMoisture     prometheus.Gauge
	WaterLevel       prometheus.Gauge
	ImageFetches     *prometheus.CounterVec
	AnalysisRuns     *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram
	PumpCommands     *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		TelemetryPushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "plantcare", Name: "telemetry_pushes_total",
			Help: "Telemetry snapshots received from the store.",
		}),
		LinkUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "plantcare", Name: "store_link_up",
			Help: "1 when the telemetry store link is up.",
		}),
		SoilMoisture: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "plantcare", Name: "soil_moisture_percent",
			Help: "Last reported soil moisture.",
		}),
		WaterLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "plantcare", Name: "water_level_cm",
			Help: "Last reported reservoir level.",
		}),
		ImageFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plantcare", Name: "image_fetches_total",
			Help: "Image origin fetches by result.",
		}, []string{"result"}),
		AnalysisRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plantcare", Name: "analysis_runs_total",
			Help: "Analysis outcomes by state and failure kind.",
		}, []string{"state", "kind"}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "plantcare", Name: "analysis_duration_seconds",
			Help:    "Wall time of completed analyses.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90},
		}),
		PumpCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plantcare", Name: "pump_commands_total",
			Help: "Pump toggles by result (written, write_failed, locked).",
		}, []string{"result"}),
	}
	m.Registry.MustRegister(
		m.TelemetryPushes, m.LinkUp, m.SoilMoisture, m.WaterLevel,
		m.ImageFetches, m.AnalysisRuns, m.AnalysisDuration, m.PumpCommands,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Telemetry(moisture int, waterCm float64) {
	if m == nil {
		return
	}
	m.TelemetryPushes.Inc()
	m.SoilMoisture.Set(float64(moisture))
	m.WaterLevel.Set(waterCm)
}

func (m *Metrics) Link(up bool) {
	if m == nil {
		return
	}
	if up {
		m.LinkUp.Set(1)
	} else {
		m.LinkUp.Set(0)
	}
}

func (m *Metrics) ImageFetch(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.ImageFetches.WithLabelValues("ok").Inc()
	} else {
		m.ImageFetches.WithLabelValues("failed").Inc()
	}
}

func (m *Metrics) Analysis(state, kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.AnalysisRuns.WithLabelValues(state, kind).Inc()
	if d > 0 {
		m.AnalysisDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) Pump(result string) {
	if m == nil {
		return
	}
	m.PumpCommands.WithLabelValues(result).Inc()
}
