package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LeonardoBeccarini/plantcare/internal/metrics"
	"github.com/LeonardoBeccarini/plantcare/internal/model"
	"github.com/LeonardoBeccarini/plantcare/internal/services/analysis"
	"github.com/LeonardoBeccarini/plantcare/internal/services/event"
	"github.com/LeonardoBeccarini/plantcare/internal/services/imagerefresher"
	"github.com/LeonardoBeccarini/plantcare/internal/services/telemetry"
)

var (
	ErrAlreadyRunning = errors.New("analysis already running")
	ErrPumpLocked     = errors.New("pump locked: water tank empty")
	ErrNoTelemetry    = errors.New("no telemetry received yet")
	ErrClosed         = errors.New("dashboard closed")
)

// Store is the telemetry store as the coordinator sees it.
type Store interface {
	telemetry.Watcher
	Set(ctx context.Context, path string, value interface{}) error
}

type Analyzer interface {
	Analyze(ctx context.Context, ref model.ImageReference) (string, error)
}

type Journal interface {
	Record(evt event.CommonEvent)
}

type Config struct {
	RecordPath      string // store path of the plant record, "" = root
	PlaceholderURL  string
	ImagePeriod     time.Duration
	WriteTimeout    time.Duration
	AnalysisTimeout time.Duration

	Logger       *log.Logger
	Metrics      *metrics.Metrics
	OnLinkChange func(up bool)
}

type Deps struct {
	Store    Store
	Origin   imagerefresher.Origin
	Analyzer Analyzer
	Journal  Journal // optional
}

// Coordinator owns the dashboard state. A single goroutine applies every
// event in arrival order; readers get published copies through View.
type Coordinator struct {
	cfg     Config
	deps    Deps
	logger  *log.Logger
	metrics *metrics.Metrics

	events   chan interface{}
	loopDone chan struct{}

	startOnce    sync.Once
	teardownOnce sync.Once
	started      bool
	startErr     error

	sub       *telemetry.Subscription
	refresher *imagerefresher.Refresher

	// loop-owned
	st      View
	lastSeq uint64
	closed  bool

	viewMu sync.RWMutex
	view   View
}

func New(cfg Config, deps Deps) (*Coordinator, error) {
	if deps.Store == nil || deps.Origin == nil || deps.Analyzer == nil {
		return nil, errors.New("dashboard: store, origin and analyzer are required")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.AnalysisTimeout <= 0 {
		cfg.AnalysisTimeout = 90 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	c := &Coordinator{
		cfg:      cfg,
		deps:     deps,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		events:   make(chan interface{}, 64),
		loopDone: make(chan struct{}),
	}
	c.st = View{
		Image:    model.Placeholder(cfg.PlaceholderURL),
		Analysis: model.AnalysisResult{State: model.AnalysisIdle},
	}
	c.view = c.st
	return c, nil
}

// Start subscribes to telemetry, starts the image refresher and the event
// loop. Cancelling ctx tears the session down.
func (c *Coordinator) Start(ctx context.Context) error {
	c.startOnce.Do(func() {
		sub, err := telemetry.Subscribe(c.deps.Store, c.cfg.RecordPath, c.onTelemetry, c.logger)
		if err != nil {
			c.startErr = fmt.Errorf("dashboard: %w", err)
			return
		}
		ref, err := imagerefresher.New(imagerefresher.Config{
			Origin:  c.deps.Origin,
			Period:  c.cfg.ImagePeriod,
			Logger:  c.logger,
			Metrics: c.metrics,
		}, c.onImage)
		if err != nil {
			sub.Close()
			c.startErr = fmt.Errorf("dashboard: %w", err)
			return
		}
		c.sub, c.refresher = sub, ref

		// reported before the loop runs, so a queued Disconnected always lands after it
		c.st.Connected = true
		c.metrics.Link(true)
		if c.cfg.OnLinkChange != nil {
			c.cfg.OnLinkChange(true)
		}
		c.publish()
		c.started = true

		go c.loop()
		c.refresher.Start(ctx)
		go func() {
			select {
			case <-ctx.Done():
				c.Teardown()
			case <-c.loopDone:
			}
		}()
		c.logger.Printf("dashboard: session started path=%q", c.cfg.RecordPath)
	})
	return c.startErr
}

// View returns the last published state.
func (c *Coordinator) View() View {
	c.viewMu.RLock()
	defer c.viewMu.RUnlock()
	return c.view
}

// Done is closed when the event loop has exited (after Teardown and once
// any in-flight analysis has been applied).
func (c *Coordinator) Done() <-chan struct{} { return c.loopDone }

// TogglePump writes the negation of the last reported pump state.
func (c *Coordinator) TogglePump(ctx context.Context) (model.PumpCommand, error) {
	reply := make(chan toggleReply, 1)
	if err := c.post(ctx, toggleRequest{reply: reply}); err != nil {
		return model.PumpCommand{}, err
	}
	select {
	case r := <-reply:
		return r.cmd, r.err
	case <-c.loopDone:
		return model.PumpCommand{}, ErrClosed
	case <-ctx.Done():
		return model.PumpCommand{}, ctx.Err()
	}
}

// RequestAnalysis starts an analysis of the current image and returns the
// new analysis state (Running, or Failed for a placeholder image).
func (c *Coordinator) RequestAnalysis(ctx context.Context) (model.AnalysisResult, error) {
	return c.askAnalysis(ctx, func(r chan analyzeReply) interface{} { return analyzeRequest{reply: r} })
}

// ClearAnalysis returns a finished analysis slot to Idle.
func (c *Coordinator) ClearAnalysis(ctx context.Context) (model.AnalysisResult, error) {
	return c.askAnalysis(ctx, func(r chan analyzeReply) interface{} { return clearRequest{reply: r} })
}

func (c *Coordinator) askAnalysis(ctx context.Context, mk func(chan analyzeReply) interface{}) (model.AnalysisResult, error) {
	reply := make(chan analyzeReply, 1)
	if err := c.post(ctx, mk(reply)); err != nil {
		return model.AnalysisResult{}, err
	}
	select {
	case r := <-reply:
		return r.res, r.err
	case <-c.loopDone:
		return model.AnalysisResult{}, ErrClosed
	case <-ctx.Done():
		return model.AnalysisResult{}, ctx.Err()
	}
}

// Teardown closes the telemetry subscription and stops the refresher.
// In-flight analysis still completes. Safe to call more than once.
func (c *Coordinator) Teardown() {
	c.teardownOnce.Do(func() {
		// blocks until a concurrent Start has finished
		c.startOnce.Do(func() { c.startErr = ErrClosed })
		if !c.started {
			c.viewMu.Lock()
			c.view.Closed = true
			c.viewMu.Unlock()
			close(c.loopDone)
			return
		}
		c.sub.Close()
		c.refresher.Stop()
		_ = c.post(context.Background(), teardownRequest{})
		c.logger.Println("dashboard: teardown requested")
	})
}

// ===== leaf callbacks =====

func (c *Coordinator) onTelemetry(ev telemetry.Event) {
	_ = c.post(context.Background(), telemetryEvent{ev: ev})
}

func (c *Coordinator) onImage(ref model.ImageReference) {
	_ = c.post(context.Background(), imageEvent{ref: ref})
}

func (c *Coordinator) post(ctx context.Context, ev interface{}) error {
	select {
	case <-c.loopDone:
		return ErrClosed
	default:
	}
	select {
	case c.events <- ev:
		return nil
	case <-c.loopDone:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ===== event loop =====

func (c *Coordinator) loop() {
	defer close(c.loopDone)
	for ev := range c.events {
		c.apply(ev)
		c.publish()
		if c.closed && !c.st.Analysis.InFlight() {
			c.drain()
			c.logger.Println("dashboard: session closed")
			return
		}
	}
}

// drain answers requests that were queued behind the teardown.
func (c *Coordinator) drain() {
	for {
		select {
		case ev := <-c.events:
			c.apply(ev)
		default:
			return
		}
	}
}

func (c *Coordinator) apply(ev interface{}) {
	switch e := ev.(type) {
	case telemetryEvent:
		c.applyTelemetry(e.ev)
	case imageEvent:
		c.applyImage(e.ref)
	case toggleRequest:
		cmd, err := c.toggle()
		e.reply <- toggleReply{cmd: cmd, err: err}
	case pumpWritten:
		if e.err != nil {
			c.st.PumpError = e.err.Error()
		}
	case analyzeRequest:
		res, err := c.startAnalysis()
		e.reply <- analyzeReply{res: res, err: err}
	case clearRequest:
		res, err := c.clearAnalysis()
		e.reply <- analyzeReply{res: res, err: err}
	case analysisDone:
		c.finishAnalysis(e)
	case teardownRequest:
		c.closed = true
		c.st.Closed = true
	}
}

func (c *Coordinator) applyTelemetry(ev telemetry.Event) {
	if c.closed {
		return
	}
	switch ev.Kind {
	case telemetry.SnapshotReceived:
		snap := ev.Snapshot
		c.st.Telemetry = &snap
		c.st.PumpPending = nil
		c.metrics.Telemetry(snap.SoilMoisturePct, snap.WaterLevelCm)
		if !c.st.Connected {
			c.setLink(true)
		}
	case telemetry.Disconnected:
		c.setLink(false)
	case telemetry.Reconnected:
		c.setLink(true)
	}
}

func (c *Coordinator) setLink(up bool) {
	if c.st.Connected == up {
		return
	}
	c.st.Connected = up
	c.metrics.Link(up)
	c.record(event.TelemetryLink(up, time.Now()))
	if up {
		c.logger.Println("dashboard: telemetry link restored")
	} else {
		c.logger.Println("dashboard: telemetry link lost, keeping last snapshot")
	}
	if c.cfg.OnLinkChange != nil {
		c.cfg.OnLinkChange(up)
	}
}

func (c *Coordinator) applyImage(ref model.ImageReference) {
	if c.closed {
		return
	}
	if ref.Seq <= c.lastSeq {
		c.logger.Printf("dashboard: dropping stale image seq=%d last=%d", ref.Seq, c.lastSeq)
		return
	}
	c.lastSeq = ref.Seq
	c.st.Image = ref
}

func (c *Coordinator) toggle() (model.PumpCommand, error) {
	if c.closed {
		return model.PumpCommand{}, ErrClosed
	}
	snap := c.st.Telemetry
	if snap == nil {
		return model.PumpCommand{}, ErrNoTelemetry
	}
	target := !snap.PumpOn
	if target && snap.PumpLocked() {
		c.metrics.Pump("locked")
		c.record(event.PumpLocked(time.Now()))
		return model.PumpCommand{}, ErrPumpLocked
	}

	cmd := model.PumpCommand{ID: uuid.NewString(), On: target, IssuedAt: time.Now()}
	c.st.PumpPending = &target
	c.st.PumpError = ""
	c.record(event.PumpCommand(cmd))
	c.logger.Printf("dashboard: pump command id=%s on=%v", cmd.ID, cmd.On)

	go c.writePump(cmd)
	return cmd, nil
}

func (c *Coordinator) writePump(cmd model.PumpCommand) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.WriteTimeout)
	defer cancel()

	err := c.deps.Store.Set(ctx, model.PumpPath, cmd.On)
	if err != nil {
		c.logger.Printf("dashboard: pump write failed id=%s on=%v err=%v", cmd.ID, cmd.On, err)
		c.metrics.Pump("write_failed")
		c.record(event.PumpWriteFailed(cmd, err, time.Now()))
	} else {
		c.metrics.Pump("written")
	}
	_ = c.post(context.Background(), pumpWritten{cmd: cmd, err: err})
}

func (c *Coordinator) startAnalysis() (model.AnalysisResult, error) {
	if c.closed {
		return model.AnalysisResult{}, ErrClosed
	}
	if c.st.Analysis.InFlight() {
		return c.st.Analysis, ErrAlreadyRunning
	}

	now := time.Now()
	id := uuid.NewString()
	ref := c.st.Image
	if ref.IsPlaceholder() {
		c.st.Analysis = model.AnalysisResult{
			State:       model.AnalysisFailed,
			Reason:      "no image yet",
			FailureKind: string(analysis.InvalidInput),
			RequestID:   id,
			StartedAt:   now,
			FinishedAt:  now,
		}
		c.metrics.Analysis(string(model.AnalysisFailed), string(analysis.InvalidInput), 0)
		c.record(event.AnalysisResult(c.st.Analysis))
		return c.st.Analysis, nil
	}

	c.st.Analysis = model.AnalysisResult{State: model.AnalysisRunning, RequestID: id, StartedAt: now}
	c.logger.Printf("dashboard: analysis started id=%s image=%s seq=%d", id, ref.Kind, ref.Seq)
	go c.runAnalysis(id, ref)
	return c.st.Analysis, nil
}

func (c *Coordinator) runAnalysis(id string, ref model.ImageReference) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.AnalysisTimeout)
	defer cancel()
	text, err := c.deps.Analyzer.Analyze(ctx, ref)
	// the loop stays up while an analysis is in flight
	_ = c.post(context.Background(), analysisDone{id: id, text: text, err: err})
}

func (c *Coordinator) finishAnalysis(d analysisDone) {
	cur := c.st.Analysis
	if !cur.InFlight() || cur.RequestID != d.id {
		c.logger.Printf("dashboard: ignoring stale analysis result id=%s", d.id)
		return
	}
	res := model.AnalysisResult{RequestID: d.id, StartedAt: cur.StartedAt, FinishedAt: time.Now()}
	if d.err != nil {
		res.State = model.AnalysisFailed
		res.FailureKind = string(analysis.KindOf(d.err))
		if res.FailureKind == "" {
			res.FailureKind = string(analysis.InferenceFailed)
		}
		var ae *analysis.Error
		if errors.As(d.err, &ae) {
			res.Reason = ae.Reason
		} else {
			res.Reason = d.err.Error()
		}
		c.logger.Printf("dashboard: analysis failed id=%s kind=%s err=%v", d.id, res.FailureKind, d.err)
	} else {
		res.State = model.AnalysisSucceeded
		res.Text = d.text
		c.logger.Printf("dashboard: analysis done id=%s in %s", d.id, res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
	}
	c.st.Analysis = res
	c.metrics.Analysis(string(res.State), res.FailureKind, res.FinishedAt.Sub(res.StartedAt))
	c.record(event.AnalysisResult(res))
}

func (c *Coordinator) clearAnalysis() (model.AnalysisResult, error) {
	if c.closed {
		return model.AnalysisResult{}, ErrClosed
	}
	if c.st.Analysis.InFlight() {
		return c.st.Analysis, ErrAlreadyRunning
	}
	c.st.Analysis = model.AnalysisResult{State: model.AnalysisIdle}
	return c.st.Analysis, nil
}

func (c *Coordinator) record(evt event.CommonEvent) {
	if c.deps.Journal != nil {
		c.deps.Journal.Record(evt)
	}
}

func (c *Coordinator) publish() {
	c.viewMu.Lock()
	c.view = c.st
	c.viewMu.Unlock()
}
