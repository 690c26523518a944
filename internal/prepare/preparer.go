// Package prepare implements the bootstrap steps that must complete before
// the application server launches: rendering the settings artifact and
// provisioning backing storage. Every step either succeeds or fails fatally;
// there is no partial or recovered state.
package prepare

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// SettingsRenderer is satisfied by *SettingsFile.
type SettingsRenderer interface {
	Render(ctx context.Context) (path string, err error)
}

// DatabaseProvisioner is satisfied by *clients.PostgresClient.
type DatabaseProvisioner interface {
	EnsureDatabase(ctx context.Context) error
}

// BrokerChecker is satisfied by *clients.RedisClient.
type BrokerChecker interface {
	CheckBroker(ctx context.Context) error
}

// Preparer runs the two bootstrap steps in order. Both are idempotent: the
// settings artifact is rewritten in place and storage provisioning is a
// no-op when the database already exists.
type Preparer struct {
	settings SettingsRenderer
	db       DatabaseProvisioner
	broker   BrokerChecker
}

// New constructs a Preparer. The concrete client types satisfy the
// interfaces defined in this package.
func New(settings SettingsRenderer, db DatabaseProvisioner, broker BrokerChecker) *Preparer {
	return &Preparer{
		settings: settings,
		db:       db,
		broker:   broker,
	}
}

// PrepareConfig renders the application settings artifact. A render failure
// aborts the bootstrap before any launch attempt.
func (p *Preparer) PrepareConfig(ctx context.Context) error {
	ctx, span := otel.Tracer("bemboot").Start(ctx, "bemboot.prepare_config")
	defer span.End()

	path, err := p.settings.Render(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "settings render failed")
		return fmt.Errorf("rendering settings artifact: %w", err)
	}

	span.SetAttributes(attribute.String("settings.path", path))
	span.SetStatus(codes.Ok, "")
	slog.InfoContext(ctx, "settings artifact written", "path", path)
	return nil
}

// PrepareStorage ensures the database exists and the Celery broker is
// reachable, strictly in that order. The first failure aborts; the launch
// step must never run after a storage failure.
func (p *Preparer) PrepareStorage(ctx context.Context) error {
	ctx, span := otel.Tracer("bemboot").Start(ctx, "bemboot.prepare_storage")
	defer span.End()

	if err := p.db.EnsureDatabase(ctx); err != nil {
		span.SetStatus(codes.Error, "database provisioning failed")
		return fmt.Errorf("provisioning database: %w", err)
	}
	slog.InfoContext(ctx, "database ready")

	if err := p.broker.CheckBroker(ctx); err != nil {
		span.SetStatus(codes.Error, "broker check failed")
		return fmt.Errorf("checking broker: %w", err)
	}
	slog.InfoContext(ctx, "broker ready")

	span.SetStatus(codes.Ok, "")
	return nil
}
