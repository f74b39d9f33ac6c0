package sensor_simulator

import (
	"context"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/plantcare/internal/model"
)

// Store is what the simulated device needs from the shared key/value store.
type Store interface {
	Watch(path string, onValue func(payload []byte), onLink func(up bool)) (func(), error)
	Set(ctx context.Context, path string, value interface{}) error
}

// SensorSimulator plays the plant device: it follows the pump intent written
// by the dashboard and periodically rewrites the whole record at the root.
type SensorSimulator struct {
	mu        sync.Mutex
	pumpOn    bool
	generator *DataGenerator
	store     Store
	logger    *log.Logger
}

func NewSensorSimulator(store Store, gen *DataGenerator, logger *log.Logger) *SensorSimulator {
	if logger == nil {
		logger = log.Default()
	}
	return &SensorSimulator{generator: gen, store: store, logger: logger}
}

// Start watches the pump leaf and publishes a record every interval until
// ctx is cancelled.
func (s *SensorSimulator) Start(ctx context.Context, interval time.Duration) error {
	release, err := s.store.Watch(model.PumpPath, s.handlePump, nil)
	if err != nil {
		return err
	}
	defer release()

	s.publish(ctx)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.publish(ctx)
		}
	}
}

func (s *SensorSimulator) publish(ctx context.Context) {
	s.mu.Lock()
	want := s.pumpOn
	s.mu.Unlock()

	rec := s.generator.Next(want)
	if want && !rec.Status.PumpOn {
		// tank ran dry: the device drops the intent itself
		s.mu.Lock()
		s.pumpOn = false
		s.mu.Unlock()
	}

	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.store.Set(wctx, "", rec); err != nil {
		s.logger.Printf("simulator: publish error: %v", err)
		return
	}
	s.logger.Printf("simulator: pub moisture=%d%% water=%.1fcm pump=%t empty=%t",
		rec.Sensors.SoilMoisture, rec.Sensors.WaterLevelCm, rec.Status.PumpOn, rec.Status.WaterEmpty)
}

func (s *SensorSimulator) handlePump(payload []byte) {
	v := strings.TrimSpace(string(payload))
	if v == "" {
		return
	}
	on, err := strconv.ParseBool(v)
	if err != nil {
		s.logger.Printf("simulator: invalid pump value %q: %v", v, err)
		return
	}
	s.mu.Lock()
	changed := s.pumpOn != on
	s.pumpOn = on
	s.mu.Unlock()
	if changed {
		s.logger.Printf("simulator: pump → %t", on)
	}
}

// PumpOn reports the pump intent the device is following.
func (s *SensorSimulator) PumpOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pumpOn
}
