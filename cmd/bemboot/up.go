package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/s-celles/bemserver-core/internal/launch"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Prepare the deployment and start the application server",
	Long: `Up runs the full bootstrap sequence: render the application settings
file, ensure the database and the Celery broker are in place, then replace
this process with the server selected by the environment signals
(BEMSERVER_LAUNCH_MODE, BEMSERVER_LAUNCH_TLS).

On success this command never returns; the exit status is the server's. A
preparation failure exits non-zero before any launch attempt.`,
	RunE: runUp,
}

func runUp(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Prepare.Timeout)
	defer cancel()
	defer shutdownTelemetry()

	if err := app.preparer.PrepareConfig(ctx); err != nil {
		return fmt.Errorf("preparing config: %w", err)
	}
	if err := app.preparer.PrepareStorage(ctx); err != nil {
		return fmt.Errorf("preparing storage: %w", err)
	}

	// Signals are read once; the launched server owns the process from here.
	sig := launch.ParseSignals(cfg.Launch.Mode, cfg.Launch.TLS)
	command := launch.Resolve(sig, cfg.Server)

	// Flush spans now — after a successful execve nothing of ours remains
	// to run deferred shutdowns.
	shutdownTelemetry()

	if err := app.execer.Exec(command); err != nil {
		return fmt.Errorf("launching server: %w", err)
	}
	return nil
}

// shutdownTelemetry flushes and closes the OTEL provider. Idempotent: the
// second call (from the deferred cleanup on error paths) is a no-op.
func shutdownTelemetry() {
	if app.otelProvider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.otelProvider.Shutdown(ctx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	app.otelProvider = nil
}
