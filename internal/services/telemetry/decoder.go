package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/LeonardoBeccarini/plantcare/internal/model"
)

// DecodeSnapshot turns a store payload into a snapshot.
//
// ok is false when the key holds nothing (empty payload or JSON null): that
// is "no snapshot yet" and must not be emitted. Missing fields default to
// zero/false, numbers may arrive as JSON numbers or numeric strings.
func DecodeSnapshot(payload []byte, now time.Time) (snap model.TelemetrySnapshot, ok bool, err error) {
	p := bytes.TrimSpace(payload)
	if len(p) == 0 || bytes.Equal(p, []byte("null")) {
		return model.TelemetrySnapshot{}, false, nil
	}

	var root map[string]any
	if err := json.Unmarshal(p, &root); err != nil {
		return model.TelemetrySnapshot{}, false, fmt.Errorf("decode telemetry: %w", err)
	}
	if root == nil {
		return model.TelemetrySnapshot{}, false, nil
	}

	sensors, _ := root["sensors"].(map[string]any)
	status, _ := root["status"].(map[string]any)

	snap = model.TelemetrySnapshot{
		Temperature:     getFloat(sensors, "temperature"),
		WaterLevelCm:    getFloat(sensors, "water_level_cm"),
		SoilMoisturePct: model.ClampMoisture(getFloat(sensors, "soil_moisture")),
		LightIntensity:  roundClamp(getFloat(sensors, "light_intensity"), 0, math.MaxInt32),
		PumpOn:          getBool(status, "pump_on"),
		WaterEmpty:      getBool(status, "water_empty"),
		ReceivedAt:      now,
	}
	return snap, true, nil
}

// roundClamp bounds f before converting, so huge readings cannot overflow.
func roundClamp(f, lo, hi float64) int {
	return int(math.Round(math.Max(lo, math.Min(hi, f))))
}

// numero o stringa; NaN/Inf e valori non numerici -> 0
func getFloat(m map[string]any, key string) float64 {
	if m == nil {
		return 0
	}
	var f float64
	switch x := m[key].(type) {
	case float64:
		f = x
	case string:
		v, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		f = v
	case bool:
		if x {
			f = 1
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func getBool(m map[string]any, key string) bool {
	if m == nil {
		return false
	}
	switch x := m[key].(type) {
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return err == nil && b
	}
	return false
}
