package event

import (
	"log"
	"sync"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// PointWriter is the part of api.WriteAPI the journal uses.
type PointWriter interface {
	WritePoint(point *write.Point)
	Errors() <-chan error
	Flush()
}

// Writer journals events through a non-blocking Influx WriteAPI and keeps
// the time of the last async write error for /healthz and /readyz.
// A nil *Writer is a disabled journal.
type Writer struct {
	api     PointWriter
	logger  *log.Logger
	mu      sync.RWMutex
	lastErr time.Time
	counts  map[string]int64
}

func NewWriter(w PointWriter, logger *log.Logger) *Writer {
	if logger == nil {
		logger = log.Default()
	}
	ww := &Writer{
		api:     w,
		logger:  logger,
		lastErr: time.Now().Add(-24 * time.Hour),
		counts:  make(map[string]int64),
	}
	go func() {
		for err := range w.Errors() {
			if err != nil {
				ww.mu.Lock()
				ww.lastErr = time.Now()
				ww.mu.Unlock()
				ww.logger.Printf("journal: influx write error: %v", err)
			}
		}
	}()
	return ww
}

// Record queues evt for writing.
func (w *Writer) Record(evt CommonEvent) {
	if w == nil {
		return
	}
	w.api.WritePoint(EventToPoint(evt))
	w.mu.Lock()
	w.counts[evt.EventType]++
	w.mu.Unlock()
}

func (w *Writer) Flush() {
	if w == nil {
		return
	}
	w.api.Flush()
}

// LastErrorAge reports how long ago the last write error happened.
func (w *Writer) LastErrorAge() time.Duration {
	if w == nil {
		return 99999 * time.Hour
	}
	w.mu.RLock()
	t := w.lastErr
	w.mu.RUnlock()
	return time.Since(t)
}

// Count returns how many events of eventType were recorded.
func (w *Writer) Count(eventType string) int64 {
	if w == nil {
		return 0
	}
	w.mu.RLock()
	c := w.counts[eventType]
	w.mu.RUnlock()
	return c
}
