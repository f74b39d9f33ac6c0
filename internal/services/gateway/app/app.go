package app

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/LeonardoBeccarini/plantcare/internal/metrics"
	"github.com/LeonardoBeccarini/plantcare/internal/model"
	"github.com/LeonardoBeccarini/plantcare/internal/services/dashboard"
)

// Dashboard is what the HTTP surface needs from the coordinator.
type Dashboard interface {
	View() dashboard.View
	TogglePump(ctx context.Context) (model.PumpCommand, error)
	RequestAnalysis(ctx context.Context) (model.AnalysisResult, error)
	ClearAnalysis(ctx context.Context) (model.AnalysisResult, error)
}

type Config struct {
	RequestTimeout time.Duration

	Metrics *metrics.Metrics
	Health  http.Handler // /healthz
	Ready   http.Handler // /readyz
	Events  http.Handler // /events/recent, nil when the journal is off

	Logger *log.Logger
}

type Gateway struct {
	cfg  Config
	dash Dashboard
}

func NewGateway(cfg Config, dash Dashboard) *Gateway {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 3 * time.Second
	}
	return &Gateway{cfg: cfg, dash: dash}
}

// Router wires every route of the dashboard API.
func (g *Gateway) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/dashboard/data", g.HandleDashboard).Methods(http.MethodGet)
	r.HandleFunc("/pump/toggle", g.HandleTogglePump).Methods(http.MethodPost)
	r.HandleFunc("/analysis", g.HandleGetAnalysis).Methods(http.MethodGet)
	r.HandleFunc("/analysis", g.HandleRequestAnalysis).Methods(http.MethodPost)
	r.HandleFunc("/analysis", g.HandleClearAnalysis).Methods(http.MethodDelete)

	r.Handle("/metrics", g.cfg.Metrics.Handler()).Methods(http.MethodGet)
	if g.cfg.Health != nil {
		r.Handle("/healthz", g.cfg.Health).Methods(http.MethodGet)
	} else {
		r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("ok"))
		}).Methods(http.MethodGet)
	}
	if g.cfg.Ready != nil {
		r.Handle("/readyz", g.cfg.Ready).Methods(http.MethodGet)
	}
	if g.cfg.Events != nil {
		r.Handle("/events/recent", g.cfg.Events).Methods(http.MethodGet)
	}
	return r
}
