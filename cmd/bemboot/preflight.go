package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/s-celles/bemserver-core/internal/prepare"
)

var preflightCmd = &cobra.Command{
	Use:   "preflight",
	Short: "Probe the storage dependencies and report their health",
	Long: `Preflight probes Postgres and the Celery broker concurrently and
prints a JSON report. It is purely diagnostic: nothing is provisioned and
no server is started. Exits non-zero if any dependency is unreachable.`,
	RunE: runPreflight,
}

func runPreflight(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Prepare.Timeout)
	defer cancel()
	defer shutdownTelemetry()

	results := make(map[string]prepare.ProbeResult, 2)
	var mu sync.Mutex

	// A plain errgroup: one probe failing must not cancel the other.
	var g errgroup.Group
	g.Go(func() error {
		probe := app.db.Probe(ctx)
		mu.Lock()
		results["postgres"] = probe
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		probe := app.broker.Probe(ctx)
		mu.Lock()
		results["redis"] = probe
		mu.Unlock()
		return nil
	})
	_ = g.Wait()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("encoding preflight report: %w", err)
	}

	// Fixed iteration order so the reported dependency is stable when more
	// than one is down.
	for _, name := range []string{"postgres", "redis"} {
		if probe := results[name]; !probe.OK {
			return fmt.Errorf("dependency %s unhealthy: %s", probe.Name, probe.Error)
		}
	}
	return nil
}
