package event

import (
	"encoding/json"
	"net/http"
	"time"
)

// LinkChecker reports the telemetry store link; *rabbitmq.Store implements it.
type LinkChecker interface {
	Connected() bool
}

type healthHandler struct {
	link   LinkChecker
	writer *Writer
}

// NewHealthHandler reports ok/degraded/down. w may be nil when the journal
// is disabled.
func NewHealthHandler(link LinkChecker, w *Writer) http.Handler {
	return &healthHandler{link: link, writer: w}
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	type status struct {
		Status          string  `json:"status"`
		StoreConnected  bool    `json:"store_connected"`
		JournalEnabled  bool    `json:"journal_enabled"`
		LastWriteErrorS float64 `json:"last_write_error_age_sec,omitempty"`
	}
	st := status{
		StoreConnected: h.link != nil && h.link.Connected(),
		JournalEnabled: h.writer != nil,
	}
	journalOK := true
	if h.writer != nil {
		st.LastWriteErrorS = h.writer.LastErrorAge().Seconds()
		journalOK = h.writer.LastErrorAge() > 30*time.Second
	}

	switch {
	case st.StoreConnected && journalOK:
		st.Status = "ok"
	case st.StoreConnected || (st.JournalEnabled && journalOK):
		st.Status = "degraded"
	default:
		st.Status = "down"
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

// /readyz: 200 only when the store link is up and the journal is not failing.
type readyHandler struct {
	link     LinkChecker
	writer   *Writer
	minError time.Duration
}

func NewReadyHandler(link LinkChecker, w *Writer, minOkErrorAge time.Duration) http.Handler {
	return &readyHandler{link: link, writer: w, minError: minOkErrorAge}
}

func (h *readyHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	ready := h.link != nil && h.link.Connected()
	if h.writer != nil && h.writer.LastErrorAge() <= h.minError {
		ready = false
	}
	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	type resp struct {
		Ready bool `json:"ready"`
	}
	_ = json.NewEncoder(w).Encode(resp{Ready: ready})
}
