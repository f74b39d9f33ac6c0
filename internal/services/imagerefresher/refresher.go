package imagerefresher

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/plantcare/internal/metrics"
	"github.com/LeonardoBeccarini/plantcare/internal/model"
)

const DefaultPeriod = 30 * time.Second

type Config struct {
	Origin  Origin
	Period  time.Duration
	Logger  *log.Logger
	Metrics *metrics.Metrics
}

// Refresher polls an Origin on a fixed period and hands every successful
// result to emit, tagged with a strictly increasing Seq.
type Refresher struct {
	origin  Origin
	period  time.Duration
	logger  *log.Logger
	metrics *metrics.Metrics
	emit    func(model.ImageReference)

	seq      uint64
	started  sync.Once
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func New(cfg Config, emit func(model.ImageReference)) (*Refresher, error) {
	if cfg.Origin == nil {
		return nil, errors.New("refresher: nil origin")
	}
	if emit == nil {
		return nil, errors.New("refresher: nil emit")
	}
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Refresher{
		origin:  cfg.Origin,
		period:  cfg.Period,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		emit:    emit,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

// Start runs the loop in its own goroutine.
func (r *Refresher) Start(ctx context.Context) {
	go r.Run(ctx)
}

// Run fetches once right away, then every period, until ctx ends or Stop
// is called. Only the first call does anything.
func (r *Refresher) Run(ctx context.Context) {
	first := false
	r.started.Do(func() { first = true })
	if !first {
		return
	}
	defer close(r.done)

	select {
	case <-r.stop:
		return
	default:
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-r.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	r.tick(ctx)

	ticker := time.NewTicker(r.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Printf("refresher: stopped after seq=%d", r.seq)
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Refresher) tick(ctx context.Context) {
	r.seq++
	seq := r.seq

	ref, err := r.origin.Latest(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		r.metrics.ImageFetch(false)
		r.logger.Printf("refresher: fetch failed seq=%d err=%v", seq, err)
		return
	}
	r.metrics.ImageFetch(true)
	ref.Seq = seq
	if ref.FetchedAt.IsZero() {
		ref.FetchedAt = time.Now()
	}
	r.emit(ref)
}

// Stop ends the loop. Safe to call more than once, before or after Run.
func (r *Refresher) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// Done is closed once Run has returned.
func (r *Refresher) Done() <-chan struct{} { return r.done }
