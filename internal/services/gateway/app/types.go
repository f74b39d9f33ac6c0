package app

import (
	"time"

	"github.com/LeonardoBeccarini/plantcare/internal/model"
	"github.com/LeonardoBeccarini/plantcare/internal/services/dashboard"
)

// ---------- payload verso la UI ----------

type SensorsData struct {
	Temperature    float64   `json:"temperature"`
	WaterLevelCm   float64   `json:"water_level_cm"`
	SoilMoisture   int       `json:"soil_moisture"`
	LightIntensity int       `json:"light_intensity"`
	LightLabel     string    `json:"light_label"`
	LowMoisture    bool      `json:"low_moisture"`
	ReceivedAt     time.Time `json:"received_at"`
}

type PumpData struct {
	On         bool   `json:"on"`        // what to display
	Reported   bool   `json:"reported"`  // last value pushed by the device
	Pending    bool   `json:"pending"`   // a toggle is waiting for confirmation
	Locked     bool   `json:"locked"`    // tank empty, cannot switch on
	WaterEmpty bool   `json:"water_empty"`
	LastError  string `json:"last_error,omitempty"`
}

type ImageData struct {
	URL         string    `json:"url"`
	Kind        string    `json:"kind"`
	Placeholder bool      `json:"placeholder"`
	FetchedAt   time.Time `json:"fetched_at,omitempty"`
	Seq         uint64    `json:"seq"`
}

type DashboardData struct {
	Sensors   *SensorsData         `json:"sensors"` // null until the first push
	Pump      PumpData             `json:"pump"`
	Image     ImageData            `json:"image"`
	Analysis  model.AnalysisResult `json:"analysis"`
	Alerts    []string             `json:"alerts"`
	Connected bool                 `json:"connected"`
}

type errorBody struct {
	Error    string                `json:"error"`
	Analysis *model.AnalysisResult `json:"analysis,omitempty"`
}

// toDashboardData derives the UI payload from a coordinator view.
func toDashboardData(v dashboard.View) DashboardData {
	d := DashboardData{
		Image: ImageData{
			URL:         v.Image.URL,
			Kind:        string(v.Image.Kind),
			Placeholder: v.Image.IsPlaceholder(),
			FetchedAt:   v.Image.FetchedAt,
			Seq:         v.Image.Seq,
		},
		Analysis:  v.Analysis,
		Alerts:    []string{},
		Connected: v.Connected,
	}
	d.Pump.On = v.DisplayPumpOn()
	d.Pump.Pending = v.PumpPending != nil
	d.Pump.LastError = v.PumpError

	if s := v.Telemetry; s != nil {
		d.Sensors = &SensorsData{
			Temperature:    s.Temperature,
			WaterLevelCm:   s.WaterLevelCm,
			SoilMoisture:   s.SoilMoisturePct,
			LightIntensity: s.LightIntensity,
			LightLabel:     s.LightLabel(),
			LowMoisture:    s.LowMoisture(),
			ReceivedAt:     s.ReceivedAt,
		}
		d.Pump.Reported = s.PumpOn
		d.Pump.Locked = s.PumpLocked()
		d.Pump.WaterEmpty = s.WaterEmpty
		d.Alerts = s.Alerts()
	}
	return d
}
