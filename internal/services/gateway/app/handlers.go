package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/LeonardoBeccarini/plantcare/internal/services/dashboard"
)

func (g *Gateway) HandleDashboard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toDashboardData(g.dash.View()))
}

// POST /pump/toggle: 202 with the command, the device confirms on its next push.
func (g *Gateway) HandleTogglePump(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), g.cfg.RequestTimeout)
	defer cancel()

	cmd, err := g.dash.TogglePump(ctx)
	if err != nil {
		g.cfg.Logger.Printf("gateway: pump toggle refused: %v", err)
		writeJSON(w, statusFor(err), errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, cmd)
}

func (g *Gateway) HandleGetAnalysis(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, g.dash.View().Analysis)
}

// POST /analysis: 202 while running, 200 when it resolved at once (no image yet).
func (g *Gateway) HandleRequestAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), g.cfg.RequestTimeout)
	defer cancel()

	res, err := g.dash.RequestAnalysis(ctx)
	if err != nil {
		body := errorBody{Error: err.Error()}
		if errors.Is(err, dashboard.ErrAlreadyRunning) {
			body.Analysis = &res
		}
		writeJSON(w, statusFor(err), body)
		return
	}
	code := http.StatusOK
	if res.InFlight() {
		code = http.StatusAccepted
	}
	writeJSON(w, code, res)
}

func (g *Gateway) HandleClearAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), g.cfg.RequestTimeout)
	defer cancel()

	res, err := g.dash.ClearAnalysis(ctx)
	if err != nil {
		writeJSON(w, statusFor(err), errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, dashboard.ErrAlreadyRunning), errors.Is(err, dashboard.ErrNoTelemetry):
		return http.StatusConflict
	case errors.Is(err, dashboard.ErrPumpLocked):
		return http.StatusLocked
	case errors.Is(err, dashboard.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
