package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/s-celles/bemserver-core/internal/launch"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the launch command the current environment resolves to",
	Long: `Plan evaluates the launch decision table against the current
environment and prints the resolved command as JSON, without preparing
anything or starting a server. Useful for verifying deployment variables
before rolling an image out.`,
	RunE: runPlan,
}

func runPlan(cmd *cobra.Command, args []string) error {
	sig := launch.ParseSignals(cfg.Launch.Mode, cfg.Launch.TLS)
	command := launch.Resolve(sig, cfg.Server)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(command); err != nil {
		return fmt.Errorf("encoding plan: %w", err)
	}
	return nil
}
