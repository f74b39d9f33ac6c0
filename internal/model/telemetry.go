package model

import (
	"math"
	"time"
)

const (
	// LowMoistureThreshold: soil moisture strictly below this is "low".
	LowMoistureThreshold = 25
	// BrightLightThreshold: light intensity strictly above this is "Bright".
	BrightLightThreshold = 2000
)

// Alert codes shown by the dashboard.
const (
	AlertLowMoisture = "low_moisture"
	AlertWaterEmpty  = "water_empty"
)

// TelemetrySnapshot is one complete reading of the plant device. It is a
// value: every push from the store produces a new one.
type TelemetrySnapshot struct {
	Temperature     float64   `json:"temperature"`
	WaterLevelCm    float64   `json:"water_level_cm"`
	SoilMoisturePct int       `json:"soil_moisture"`
	LightIntensity  int       `json:"light_intensity"`
	PumpOn          bool      `json:"pump_on"`
	WaterEmpty      bool      `json:"water_empty"`
	ReceivedAt      time.Time `json:"received_at"`
}

// ClampMoisture rounds a raw reading to a percentage in [0,100]. The
// bounds apply before the int conversion, so any finite float is safe.
func ClampMoisture(v float64) int {
	return int(math.Round(math.Max(0, math.Min(100, v))))
}

// LowMoisture reports whether the soil needs water.
func (s TelemetrySnapshot) LowMoisture() bool {
	return s.SoilMoisturePct < LowMoistureThreshold
}

// PumpLocked is the empty-tank safety lock: the pump must not be started.
func (s TelemetrySnapshot) PumpLocked() bool { return s.WaterEmpty }

func (s TelemetrySnapshot) LightLabel() string {
	if s.LightIntensity > BrightLightThreshold {
		return "Bright"
	}
	return "Dim"
}

// Alerts returns the active alert codes, low moisture first.
func (s TelemetrySnapshot) Alerts() []string {
	out := []string{}
	if s.LowMoisture() {
		out = append(out, AlertLowMoisture)
	}
	if s.WaterEmpty {
		out = append(out, AlertWaterEmpty)
	}
	return out
}
