package bootstrap

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"sgbridge/internal/config"
	"sgbridge/internal/event"
	"sgbridge/internal/logger"
	"sgbridge/internal/shotgun"
	"sgbridge/internal/source"
)

type Base struct {
	Config *config.Config
	Logger logger.Logger
	Source source.Source
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

// InitSource builds the configured event source. The poll source needs a
// registry client and redis for its watermark; the kafka source needs
// neither.
func (b *Base) InitSource(client *shotgun.Client, redisClient *redis.Client, filter event.Filter) error {
	src, err := source.New(b.Config.Source, client, redisClient, filter, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create event source: %w", err)
	}

	b.Source = src
	return nil
}

func (b *Base) ShutdownSource() []error {
	var errs []error

	if b.Source != nil {
		if err := b.Source.Close(); err != nil {
			errs = append(errs, fmt.Errorf("source close error: %w", err))
		}
	}

	return errs
}

func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.Info("Shutting down application...")

	var errs []error

	errs = append(errs, b.ShutdownSource()...)

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	b.Logger.Info("Application exited successfully")
	return nil
}
