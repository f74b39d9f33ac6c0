package dashboard

import (
	"github.com/LeonardoBeccarini/plantcare/internal/model"
)

// View is a consistent copy of the coordinator state. Pointers in it refer
// to values the coordinator never mutates afterwards.
type View struct {
	// nil until the first push
	Telemetry *model.TelemetrySnapshot `json:"telemetry"`
	Image     model.ImageReference     `json:"image"`
	Analysis  model.AnalysisResult     `json:"analysis"`

	// PumpPending is the optimistic value shown between a toggle and the
	// next push. Decisions never read it.
	PumpPending *bool  `json:"pump_pending,omitempty"`
	PumpError   string `json:"pump_error,omitempty"`

	Connected bool `json:"connected"`
	Closed    bool `json:"closed"`
}

// DisplayPumpOn is what the operator should see for the pump.
func (v View) DisplayPumpOn() bool {
	if v.PumpPending != nil {
		return *v.PumpPending
	}
	return v.Telemetry != nil && v.Telemetry.PumpOn
}
