package sensor_simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/plantcare/internal/model/messages"
	"github.com/LeonardoBeccarini/plantcare/pkg/upstream"
)

// ====== Tunables ======
const (
	// gainPerMin: +0.6% per minuto di umidità con la pompa accesa (in [0..1]).
	gainPerMin = 0.006

	// drainCmPerMin: quanto scende il serbatoio mentre la pompa gira.
	drainCmPerMin = 0.5

	// emptyBelowCm: sotto questo livello il serbatoio è considerato vuoto.
	emptyBelowCm = 1.0

	// defaultSeed: valore di seed se SoilGrids non è disponibile.
	defaultSeed = 0.30 // 30%

	// defaultTankCm: livello iniziale del serbatoio.
	defaultTankCm = 12.0

	// soilGridsURL: fetch singola all'avvio; NON chiamare ad ogni tick.
	soilGridsURL = "https://rest.isric.org/soilgrids/v2.0/properties/query?lat=%f&lon=%f&property=wv0010"
)

// Fetcher is the HTTP GET the generator uses for its one-off seed.
type Fetcher interface {
	Get(ctx context.Context, url string) (*upstream.Response, error)
}

// DataGenerator mantiene lo stato della pianta simulata e lo fa evolvere nel tempo.
type DataGenerator struct {
	mu          sync.Mutex
	seeded      bool
	last        time.Time
	moisture    float64 // [0..1]
	waterCm     float64
	decayPerMin float64 // es. 0.001 → -0.1%/min a pompa spenta
	rnd         *rand.Rand
	now         func() time.Time
}

// NewDataGenerator crea un generatore con decadimento lineare: decayPerMin
// è la frazione di umidità persa ogni minuto a pompa spenta.
func NewDataGenerator(decayPerMin float64) *DataGenerator {
	return &DataGenerator{
		decayPerMin: math.Max(0, decayPerMin),
		waterCm:     defaultTankCm,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetTank sets the reservoir level, e.g. after a refill.
func (g *DataGenerator) SetTank(cm float64) {
	g.mu.Lock()
	g.waterCm = math.Max(0, cm)
	g.mu.Unlock()
}

// SeedFromSoilGrids does a single SoilGrids lookup at startup and falls back
// to a 30% seed if it fails.
func (g *DataGenerator) SeedFromSoilGrids(ctx context.Context, fetch Fetcher, lat, lon float64) {
	seed := defaultSeed
	if fetch != nil && (lat != 0 || lon != 0) {
		if m, err := g.fetchSoilMoisture(ctx, fetch, lat, lon); err == nil && m >= 0 {
			seed = m
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seeded {
		return
	}
	g.moisture = clamp01(seed)
	g.last = g.now()
	g.seeded = true
}

// Next advances the plant by the time elapsed since the previous call and
// returns the record the device would store. pumpOn is the requested pump
// state; the device refuses to run it on an empty tank.
func (g *DataGenerator) Next(pumpOn bool) messages.PlantRecord {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if !g.seeded {
		g.moisture = defaultSeed
		g.last = now
		g.seeded = true
	}

	dtMin := now.Sub(g.last).Minutes()
	if dtMin < 0 {
		dtMin = 0
	}
	g.last = now

	running := pumpOn && g.waterCm >= emptyBelowCm
	if running {
		g.moisture = clamp01(g.moisture + gainPerMin*dtMin)
		g.waterCm = math.Max(0, g.waterCm-drainCmPerMin*dtMin)
	} else {
		g.moisture = clamp01(g.moisture - g.decayPerMin*dtMin)
	}
	empty := g.waterCm < emptyBelowCm

	hour := float64(now.Hour()) + float64(now.Minute())/60
	daylight := math.Max(0, math.Sin((hour-6)/12*math.Pi))

	return messages.PlantRecord{
		Sensors: messages.SensorsRecord{
			Temperature:    math.Round((18+8*daylight+g.rnd.Float64()-0.5)*10) / 10,
			WaterLevelCm:   math.Round(g.waterCm*10) / 10,
			SoilMoisture:   int(math.Round(g.moisture * 100)), // percentuale 0..100
			LightIntensity: int(3500*daylight) + g.rnd.Intn(50),
		},
		Status: messages.StatusRecord{
			PumpOn:     running && !empty,
			WaterEmpty: empty,
		},
	}
}

// ===== Helpers =====

func (g *DataGenerator) fetchSoilMoisture(ctx context.Context, fetch Fetcher, lat, lon float64) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()

	resp, err := fetch.Get(ctx, fmt.Sprintf(soilGridsURL, lat, lon))
	if err != nil {
		return -1, err
	}
	var parsed any
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return -1, fmt.Errorf("soilgrids: %w", err)
	}
	m := extractMoisture(parsed)
	if m < 0 {
		return -1, fmt.Errorf("soilgrids: moisture field not found")
	}
	return normalizeWV(m), nil
}

// extractMoisture cerca il primo valore numerico in
// {"properties":{"layers":[{"depths":[{"values":{...}}]}]}}, anche dentro "features".
func extractMoisture(v any) float64 {
	m, ok := v.(map[string]any)
	if !ok {
		return -1
	}
	if feats, ok := m["features"].([]any); ok && len(feats) > 0 {
		if x := extractMoisture(feats[0]); x >= 0 {
			return x
		}
	}
	props, ok := m["properties"].(map[string]any)
	if !ok {
		return -1
	}
	vals, ok := dig(props, "layers", "depths")["values"].(map[string]any)
	if !ok {
		return -1
	}
	for _, k := range []string{"Q0.5", "mean", "Q0.95", "Q0.05", "value"} {
		if f, ok := vals[k].(float64); ok {
			return f
		}
	}
	return -1
}

// dig follows the first element of each named array.
func dig(m map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		arr, ok := m[k].([]any)
		if !ok || len(arr) == 0 {
			return nil
		}
		if m, ok = arr[0].(map[string]any); !ok {
			return nil
		}
	}
	return m
}

// normalizeWV porta i valori SoilGrids "wv****" in [0..1]: molti layer
// sono interi in millesimi di m3/m3 (es. 420 => 0.420).
func normalizeWV(x float64) float64 {
	if x > 1.5 {
		x = x / 1000.0
	}
	return clamp01(x)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
