package telemetry

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/plantcare/internal/model"
)

// Watcher is the store primitive the subscription needs. *rabbitmq.Store
// implements it.
type Watcher interface {
	Watch(path string, onValue func(payload []byte), onLink func(up bool)) (release func(), err error)
}

type EventKind int

const (
	SnapshotReceived EventKind = iota
	Disconnected
	Reconnected
)

func (k EventKind) String() string {
	switch k {
	case SnapshotReceived:
		return "snapshot"
	case Disconnected:
		return "disconnected"
	case Reconnected:
		return "reconnected"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is what the subscription reports to its consumer.
type Event struct {
	Kind     EventKind
	Snapshot model.TelemetrySnapshot
}

// Subscription keeps a live watch on the telemetry record.
type Subscription struct {
	path    string
	emit    func(Event)
	logger  *log.Logger
	now     func() time.Time
	release func()
	once    sync.Once
}

// Subscribe starts watching path and reports every decoded snapshot and
// link change through emit. emit runs on the store's delivery goroutine and
// must only hand the event over.
func Subscribe(store Watcher, path string, emit func(Event), logger *log.Logger) (*Subscription, error) {
	if store == nil {
		return nil, errors.New("telemetry: nil store")
	}
	if emit == nil {
		return nil, errors.New("telemetry: nil emit")
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Subscription{path: path, emit: emit, logger: logger, now: time.Now}

	release, err := store.Watch(path, s.onValue, s.onLink)
	if err != nil {
		return nil, fmt.Errorf("telemetry: watch %q: %w", path, err)
	}
	s.release = release
	return s, nil
}

func (s *Subscription) onValue(payload []byte) {
	snap, ok, err := DecodeSnapshot(payload, s.now())
	if err != nil {
		s.logger.Printf("telemetry: bad payload on %q: %v", s.path, err)
		return
	}
	if !ok {
		return
	}
	s.emit(Event{Kind: SnapshotReceived, Snapshot: snap})
}

func (s *Subscription) onLink(up bool) {
	if up {
		s.emit(Event{Kind: Reconnected})
		return
	}
	s.emit(Event{Kind: Disconnected})
}

// Close releases the underlying store watch. Idempotent.
func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.release != nil {
			s.release()
		}
		s.logger.Printf("telemetry: subscription on %q closed", s.path)
	})
}
