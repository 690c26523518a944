package main

import (
	"context"
	"log/slog"

	"github.com/s-celles/bemserver-core/internal/clients"
	"github.com/s-celles/bemserver-core/internal/config"
	"github.com/s-celles/bemserver-core/internal/launch"
	"github.com/s-celles/bemserver-core/internal/prepare"
	"github.com/s-celles/bemserver-core/internal/telemetry"
)

// bootstrapPreparer is the subset of *prepare.Preparer used by the up
// command; declared as an interface so tests can inject a double.
type bootstrapPreparer interface {
	PrepareConfig(ctx context.Context) error
	PrepareStorage(ctx context.Context) error
}

// serverExecer is satisfied by *launch.Executor.
type serverExecer interface {
	Exec(cmd launch.Command) error
}

// dependencyProber is satisfied by *clients.PostgresClient and
// *clients.RedisClient; the preflight command only needs Probe.
type dependencyProber interface {
	Probe(ctx context.Context) prepare.ProbeResult
}

// AppContext holds all constructed application dependencies shared across
// subcommands. It is built once in PersistentPreRunE.
type AppContext struct {
	cfg          *config.Config
	otelProvider *telemetry.Provider
	db           dependencyProber
	broker       dependencyProber
	preparer     bootstrapPreparer
	execer       serverExecer
}

// buildAppContext constructs all dependencies from cfg: the best-effort OTEL
// provider, one circuit breaker per storage client, the preparer, and the
// server executor. No connection is opened here.
func buildAppContext(cfg *config.Config) (*AppContext, error) {
	app := &AppContext{cfg: cfg}

	// Telemetry is best-effort: an empty endpoint disables it entirely and a
	// failed init must never block the launch.
	if cfg.Telemetry.OTLPEndpoint == "" {
		slog.Debug("telemetry disabled (no endpoint configured)")
	} else {
		tp, err := telemetry.InitProvider(
			context.Background(),
			cfg.Telemetry.OTLPEndpoint,
			cfg.Telemetry.ServiceName,
			cfg.Telemetry.OTLPInsecure,
		)
		if err != nil {
			slog.Warn("telemetry init failed, continuing without it", "err", err)
		} else {
			app.otelProvider = tp
		}
	}

	db := clients.NewPostgresClient(cfg.Database, clients.NewCircuitBreaker("postgres"))
	broker := clients.NewRedisClient(cfg.Broker, clients.NewCircuitBreaker("redis"))
	app.db = db
	app.broker = broker

	settings := prepare.NewSettingsFile(cfg.Settings, cfg.Database, cfg.Broker)
	app.preparer = prepare.New(settings, db, broker)
	app.execer = launch.NewExecutor()

	return app, nil
}
