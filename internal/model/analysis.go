package model

import "time"

// AnalysisState is the state of the (single) analysis slot.
type AnalysisState string

const (
	AnalysisIdle      AnalysisState = "idle"
	AnalysisRunning   AnalysisState = "running"
	AnalysisSucceeded AnalysisState = "succeeded"
	AnalysisFailed    AnalysisState = "failed"
)

// AnalysisResult is the outcome of the latest operator-initiated analysis.
// It is not a history: a new request replaces it.
type AnalysisResult struct {
	State       AnalysisState `json:"state"`
	Text        string        `json:"text,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	FailureKind string        `json:"failure_kind,omitempty"`
	RequestID   string        `json:"request_id,omitempty"`
	StartedAt   time.Time     `json:"started_at,omitempty"`
	FinishedAt  time.Time     `json:"finished_at,omitempty"`
}

func (r AnalysisResult) InFlight() bool { return r.State == AnalysisRunning }
