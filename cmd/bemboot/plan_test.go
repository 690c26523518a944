package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s-celles/bemserver-core/internal/config"
	"github.com/s-celles/bemserver-core/internal/launch"
)

func runPlanCapture(t *testing.T) launch.Command {
	t.Helper()

	cmd := testCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	require.NoError(t, runPlan(cmd, nil))

	var got launch.Command
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	return got
}

func TestRunPlan_MatchesUpResolution(t *testing.T) {
	tests := []struct {
		name       string
		launchCfg  config.LaunchConfig
		wantBranch launch.Branch
	}{
		{"production with tls", config.LaunchConfig{Mode: "production", TLS: "1"}, launch.BranchProdTLS},
		{"production without tls", config.LaunchConfig{Mode: "production"}, launch.BranchProdPlain},
		{"development", config.LaunchConfig{Mode: "development", TLS: "1"}, launch.BranchDev},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setupUp(t, tc.launchCfg, &fakePreparer{}, &fakeExecer{})

			got := runPlanCapture(t)

			// Plan must print exactly what up would exec for the same signals.
			want := launch.Resolve(launch.ParseSignals(cfg.Launch.Mode, cfg.Launch.TLS), cfg.Server)
			assert.Equal(t, want, got)
			assert.Equal(t, tc.wantBranch, got.Branch)
		})
	}
}

func TestRunPlan_IsDryRun(t *testing.T) {
	preparer := &fakePreparer{}
	execer := &fakeExecer{}
	setupUp(t, config.LaunchConfig{Mode: "production", TLS: "1"}, preparer, execer)

	_ = runPlanCapture(t)

	assert.Empty(t, preparer.calls, "plan must not prepare anything")
	assert.Empty(t, execer.cmds, "plan must not launch anything")
}
