package messages

// PlantRecord is the record the device keeps at the store root:
// {sensors:{...}, status:{...}}.
type PlantRecord struct {
	Sensors SensorsRecord `json:"sensors"`
	Status  StatusRecord  `json:"status"`
}

type SensorsRecord struct {
	Temperature    float64 `json:"temperature"`
	WaterLevelCm   float64 `json:"water_level_cm"`
	SoilMoisture   int     `json:"soil_moisture"`
	LightIntensity int     `json:"light_intensity"`
}

type StatusRecord struct {
	PumpOn     bool `json:"pump_on"`
	WaterEmpty bool `json:"water_empty"`
}
