package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/LeonardoBeccarini/plantcare/internal/config"
	"github.com/LeonardoBeccarini/plantcare/internal/metrics"
	"github.com/LeonardoBeccarini/plantcare/internal/services/analysis"
	"github.com/LeonardoBeccarini/plantcare/internal/services/dashboard"
	"github.com/LeonardoBeccarini/plantcare/internal/services/event"
	"github.com/LeonardoBeccarini/plantcare/internal/services/gateway/app"
	"github.com/LeonardoBeccarini/plantcare/internal/services/imagerefresher"
	"github.com/LeonardoBeccarini/plantcare/pkg/rabbitmq"
	"github.com/LeonardoBeccarini/plantcare/pkg/upstream"
)

const (
	breakerInterval = time.Minute
	shutdownTimeout = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard API",
	Long:  "serve connects to the telemetry store, refreshes the plant photo and exposes the dashboard over HTTP and gRPC health.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load(envFiles()...)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		return serve(cmd.Context(), cfg)
	},
}

func serve(parent context.Context, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger := log.Default()

	// --- store (MQTT retained topics) ---
	cfg.Rabbit.Logger = logger
	store, err := rabbitmq.Open(ctx, &cfg.Rabbit)
	if err != nil {
		return err
	}
	defer store.Close()

	// --- image origin + analysis ---
	originUp := upstream.New("image-origin", cfg.CameraTimeout,
		upstream.NewBreaker("image-origin", cfg.BreakerFailures, cfg.BreakerOpenFor, breakerInterval))
	var origin imagerefresher.Origin
	switch cfg.ImageSource {
	case config.ImageSourceDevice:
		origin = imagerefresher.NewDeviceOrigin(cfg.CameraIP, originUp)
	default:
		origin = imagerefresher.NewScriptOrigin(cfg.ImageScriptURL, cfg.ImagePrefix, originUp)
	}

	fetchUp := upstream.New("image-fetch", cfg.CameraTimeout,
		upstream.NewBreaker("image-fetch", cfg.BreakerFailures, cfg.BreakerOpenFor, breakerInterval))
	gemini := analysis.NewGeminiClient(analysis.GeminiConfig{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
		Timeout: cfg.InferenceTimeout,
		Breaker: upstream.NewBreaker("gemini", cfg.BreakerFailures, cfg.BreakerOpenFor, breakerInterval),
	})
	pipeline, err := analysis.New(analysis.Config{
		Fetch:        fetchUp,
		Model:        gemini,
		FetchTimeout: cfg.CameraTimeout,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	// --- journal (optional) ---
	var (
		writer  *event.Writer
		journal dashboard.Journal
		events  http.Handler
	)
	if cfg.JournalEnabled() {
		opts := influxdb2.DefaultOptions().
			SetBatchSize(uint(cfg.InfluxBatchSize)).
			SetFlushInterval(uint(cfg.InfluxFlushInterval.Milliseconds()))
		client := influxdb2.NewClientWithOptions(cfg.InfluxURL, cfg.InfluxToken, opts)
		defer client.Close()
		writer = event.NewWriter(client.WriteAPI(cfg.InfluxOrg, cfg.InfluxBucket), logger)
		journal = writer
		events = event.NewRecentHandler(client.QueryAPI(cfg.InfluxOrg), cfg.InfluxBucket)
		logger.Printf("journal: writing to %s bucket=%s", cfg.InfluxURL, cfg.InfluxBucket)
	} else {
		logger.Println("journal: INFLUX_URL not set, events are not recorded")
	}

	// --- coordinator ---
	m := metrics.New()
	reporter := app.NewHealthReporter()
	coord, err := dashboard.New(dashboard.Config{
		PlaceholderURL:  cfg.PlaceholderURL,
		ImagePeriod:     cfg.ImageRefreshPeriod,
		AnalysisTimeout: cfg.CameraTimeout + cfg.InferenceTimeout,
		Logger:          logger,
		Metrics:         m,
		OnLinkChange:    reporter.SetLink,
	}, dashboard.Deps{
		Store:    store,
		Origin:   origin,
		Analyzer: pipeline,
		Journal:  journal,
	})
	if err != nil {
		return err
	}
	if err := coord.Start(ctx); err != nil {
		return err
	}

	// --- HTTP ---
	gw := app.NewGateway(app.Config{
		Metrics: m,
		Health:  event.NewHealthHandler(store, writer),
		Ready:   event.NewReadyHandler(store, writer, 30*time.Second),
		Events:  events,
		Logger:  logger,
	}, coord)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           gw.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 2)
	go func() {
		logger.Printf("gateway: HTTP listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// --- gRPC health ---
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		coord.Teardown()
		return fmt.Errorf("grpc listen: %w", err)
	}
	gs := grpc.NewServer()
	reporter.Register(gs)
	go func() {
		logger.Printf("gateway: gRPC health listening on %s", lis.Addr())
		if err := gs.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}
	stop()

	// graceful shutdown
	shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shCtx)
	reporter.Shutdown()
	gs.GracefulStop()

	coord.Teardown()
	select {
	case <-coord.Done():
	case <-shCtx.Done():
		logger.Println("dashboard: teardown timed out")
	}
	writer.Flush()
	logger.Println("plantcare: shutdown complete")
	return runErr
}
