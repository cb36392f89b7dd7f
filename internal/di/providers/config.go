// Package providers contains dependency injection providers for the Folio server.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/folioapp/folio-server/internal/clock"
	"github.com/folioapp/folio-server/internal/config"
	"github.com/folioapp/folio-server/internal/logger"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting Folio Server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"storage_backend", cfg.Storage.Backend,
		"data_path", cfg.Storage.DataPath,
		"timezone", cfg.Study.Location.String(),
	)

	return log, nil
}

// ProvideClock provides the wall clock used by timers and timestamps.
func ProvideClock(i do.Injector) (clock.Clock, error) {
	return clock.System(), nil
}
