package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/abgdnv/storefront/internal/app"
	"github.com/abgdnv/storefront/internal/config"
	"github.com/abgdnv/storefront/pkg/bootstrap"
	"github.com/abgdnv/storefront/pkg/config/configloader"
	"github.com/abgdnv/storefront/pkg/messaging"
	"github.com/abgdnv/storefront/pkg/nats"
	"github.com/abgdnv/storefront/pkg/telemetry"
	"golang.org/x/sync/errgroup"
)

const serviceName = "storefront"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Printf("application run failed: %v", err)
		os.Exit(1)
	}
	log.Println("application stopped gracefully")
}

// run loads the configuration, opens the store, connects the event publisher and serves HTTP until ctx is done.
func run(ctx context.Context) error {
	cfg, cfgErr := configloader.Load[*config.Config](serviceName)
	if cfgErr != nil {
		return fmt.Errorf("failed to load configuration: %w", cfgErr)
	}
	log.Printf("Configuration loaded: %v", cfg)

	logger := bootstrap.NewLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	telemetry.SetPropagator()
	if cfg.Telemetry.Traces.Enabled {
		tp, err := telemetry.NewTracerProvider(ctx, serviceName, cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("failed to create tracer provider: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Error("Failed to shut down tracer provider", "error", err)
			}
		}()
	}

	st, closeStore, err := app.OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer closeStore()
	logger.Info("Successfully connected to the database!", slog.String("driver", cfg.Database.Driver))

	publisher, closePublisher, err := newPublisher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	var metrics *telemetry.Metrics
	if cfg.Telemetry.Metrics.Enabled {
		// the meter provider must be global before the services create their counters
		metrics, err = telemetry.NewMetrics(serviceName)
		if err != nil {
			return fmt.Errorf("failed to create metrics: %w", err)
		}
		defer func() {
			if err := metrics.Provider.Shutdown(context.Background()); err != nil {
				logger.Error("Failed to shut down meter provider", "error", err)
			}
		}()
	}

	deps := app.SetupDependencies(st, publisher, logger)
	if metrics != nil {
		deps.MetricsHandler = metrics.Handler
		deps.MetricsPath = cfg.Telemetry.Metrics.Path
	}
	httpServer := app.SetupHttpServer(deps, cfg)

	g, gCtx := errgroup.WithContext(ctx)
	serve(gCtx, g, "HTTP", httpServer, cfg, logger)
	if cfg.PProf.Enabled {
		pprofServer := &http.Server{Addr: cfg.PProf.Addr}
		serve(gCtx, g, "pprof", pprofServer, cfg, logger)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("errgroup encountered an error: %w", err)
	}
	return nil
}

// newPublisher connects to NATS JetStream when enabled and returns a publisher guarded by a circuit breaker.
// Without NATS purchase events are dropped.
func newPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (messaging.Publisher, func(), error) {
	if !cfg.Nats.Enabled {
		logger.Warn("NATS is disabled, purchase events will not be published")
		return messaging.NoopPublisher{}, func() {}, nil
	}
	natsConn, err := nats.NewClient(cfg.Nats.Url, cfg.Nats.Timeout)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create NATS connection: %w", err)
	}
	js, err := nats.NewJetStreamContext(natsConn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}
	streamCtx, cancel := context.WithTimeout(ctx, cfg.Nats.Timeout)
	defer cancel()
	if _, err := nats.EnsureStream(streamCtx, js, cfg.Nats.Stream, messaging.PurchasesCompletedSubject); err != nil {
		natsConn.Close()
		return nil, nil, err
	}
	logger.Info("Connected to NATS JetStream", slog.String("stream", cfg.Nats.Stream))

	natsPublisher := nats.NewNatsPublisher(js, cfg.Resilience.Retry.MaxAttempts, cfg.Resilience.Retry.Wait)
	closeFn := func() {
		if err := natsConn.Drain(); err != nil {
			logger.Error("Failed to drain NATS connection", "error", err)
		}
	}
	return messaging.NewBreakerPublisher(natsPublisher, cfg.Resilience.CircuitBreaker), closeFn, nil
}

// serve runs srv in the group and shuts it down gracefully once ctx is done.
func serve(ctx context.Context, g *errgroup.Group, name string, srv *http.Server, cfg *config.Config, logger *slog.Logger) {
	g.Go(func() error {
		logger.Info(name+" server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s server failed: %w", name, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down " + name + " server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
