package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"sgbridge/internal/config"
	"sgbridge/internal/constants"
	"sgbridge/internal/dedup"
	"sgbridge/internal/event"
	"sgbridge/internal/logger"
	"sgbridge/internal/relay"
	"sgbridge/internal/routing"
	"sgbridge/internal/shotgun"
	"sgbridge/internal/trigger"
	"sgbridge/pkg/bootstrap"
	"sgbridge/pkg/health"
	"sgbridge/pkg/logging"
	"sgbridge/pkg/metrics"
	"sgbridge/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	redis          *redis.Client
	registry       *shotgun.Client
	filter         event.Filter
	processor      *trigger.Processor
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(constants.ServiceNameTrigger)
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	a.filter = event.DefaultFilter()

	if err := a.initRedis(ctx); err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}

	if err := a.initRegistry(); err != nil {
		return fmt.Errorf("failed to initialize registry client: %w", err)
	}

	if err := a.initProcessor(); err != nil {
		return fmt.Errorf("failed to initialize processor: %w", err)
	}

	if err := a.InitSource(a.registry, a.redis, a.filter); err != nil {
		return fmt.Errorf("failed to initialize event source: %w", err)
	}

	tp, err := tracing.Init(a.Config.Tracing, constants.ServiceNameTrigger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterTriggerMetrics()
	if a.Config.Relay.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	if err := a.initHTTPServer(ctx); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return nil
}

// initRedis connects only when something needs it: the dedup guard or the
// poll watermark. A kafka source with dedup disabled runs without redis.
func (a *App) initRedis(ctx context.Context) error {
	if !a.Config.Deduplication.Enabled && a.Config.Source.Type != constants.SourceTypePoll {
		return nil
	}

	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redis = rdb
	return nil
}

func (a *App) initRegistry() error {
	client, err := shotgun.NewClient(a.Config.Shotgun, a.Logger)
	if err != nil {
		return err
	}
	a.registry = client
	return nil
}

func (a *App) initProcessor() error {
	cacheTTL := time.Duration(a.Config.Routing.CacheTTLSeconds) * time.Second
	cache := routing.NewRouteCache(cacheTTL, a.Config.Routing.CacheLookupFailures, a.Logger)
	resolver := routing.NewProjectResolver(a.registry, a.Logger)
	sender := relay.New(a.Config.Relay, a.Logger)
	router := routing.NewRouter(cache, resolver, sender, a.Logger)

	guard := dedup.NewGuard(dedup.NewRepository(a.redis), a.Config.Deduplication, a.Logger)

	a.processor = trigger.NewProcessor(a.filter, guard, router, a.Logger)
	return nil
}

func (a *App) initHTTPServer(ctx context.Context) error {
	mux := http.NewServeMux()

	healthRegistry := health.NewCheckerRegistry()
	if a.redis != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redis))
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		h := healthRegistry.Check(r.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		fmt.Fprintf(w, `{"status":"%s","timestamp":"%s"}`, h.Status, h.Timestamp.Format(time.RFC3339))
	})

	mux.Handle("/metrics", promhttp.Handler())

	port := a.Config.Metrics.Port
	if port == 0 {
		port = constants.DefaultMetricsPort
	}

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	if a.server != nil {
		g.Go(func() error {
			a.Logger.InfowCtx(ctx, "HTTP server starting", "addr", a.server.Addr)
			if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})

		// Unblock the server goroutine when the group winds down.
		g.Go(func() error {
			<-gCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			return a.server.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		runCtx := logging.WithServiceName(gCtx, constants.ServiceNameTrigger)
		a.Logger.InfowCtx(runCtx, "Starting event source", "type", a.Config.Source.Type)
		return a.Source.Run(gCtx, a.processor.Process)
	})

	err := g.Wait()

	if shutdownErr := a.Shutdown(context.Background()); shutdownErr != nil {
		a.Logger.Errorw("Shutdown error", "error", shutdownErr)
	}

	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, constants.ServiceNameTrigger)
	a.Logger.InfowCtx(shutdownCtx, "Shutting down trigger service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redis, nil, nil)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
