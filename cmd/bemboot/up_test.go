package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s-celles/bemserver-core/internal/config"
	"github.com/s-celles/bemserver-core/internal/launch"
)

// Note: no t.Parallel() here — these tests swap the package-level cfg and
// app globals that PersistentPreRunE normally populates.

type fakePreparer struct {
	configErr  error
	storageErr error
	calls      []string
}

func (f *fakePreparer) PrepareConfig(_ context.Context) error {
	f.calls = append(f.calls, "config")
	return f.configErr
}

func (f *fakePreparer) PrepareStorage(_ context.Context) error {
	f.calls = append(f.calls, "storage")
	return f.storageErr
}

type fakeExecer struct {
	err  error
	cmds []launch.Command
}

func (f *fakeExecer) Exec(cmd launch.Command) error {
	f.cmds = append(f.cmds, cmd)
	return f.err
}

func setupUp(t *testing.T, launchCfg config.LaunchConfig, preparer *fakePreparer, execer *fakeExecer) {
	t.Helper()

	prevCfg, prevApp := cfg, app
	t.Cleanup(func() { cfg, app = prevCfg, prevApp })

	c, err := config.Load("")
	require.NoError(t, err)
	c.Launch = launchCfg
	c.Prepare.Timeout = 5 * time.Second

	cfg = c
	app = &AppContext{cfg: c, preparer: preparer, execer: execer}
}

func testCommand() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	return cmd
}

func TestRunUp_PreparesThenLaunchesExactlyOnce(t *testing.T) {
	preparer := &fakePreparer{}
	execer := &fakeExecer{}
	setupUp(t, config.LaunchConfig{Mode: "production", TLS: "1"}, preparer, execer)

	require.NoError(t, runUp(testCommand(), nil))

	assert.Equal(t, []string{"config", "storage"}, preparer.calls)
	require.Len(t, execer.cmds, 1, "exactly one launch command per run")
	assert.Equal(t, launch.BranchProdTLS, execer.cmds[0].Branch)
	assert.Equal(t,
		"gunicorn --bind 0.0.0.0:5001 --certfile=/etc/ssl/server.crt --keyfile=/etc/ssl/server.key app:create_app()",
		execer.cmds[0].String())
}

func TestRunUp_DevelopmentBranch(t *testing.T) {
	execer := &fakeExecer{}
	setupUp(t, config.LaunchConfig{Mode: "", TLS: "1"}, &fakePreparer{}, execer)

	require.NoError(t, runUp(testCommand(), nil))

	require.Len(t, execer.cmds, 1)
	assert.Equal(t, launch.BranchDev, execer.cmds[0].Branch)
	assert.Equal(t, "flask run", execer.cmds[0].String())
}

func TestRunUp_ConfigFailureAbortsBeforeStorageAndLaunch(t *testing.T) {
	preparer := &fakePreparer{configErr: errors.New("read-only file system")}
	execer := &fakeExecer{}
	setupUp(t, config.LaunchConfig{Mode: "production"}, preparer, execer)

	err := runUp(testCommand(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "preparing config")
	assert.Equal(t, []string{"config"}, preparer.calls)
	assert.Empty(t, execer.cmds, "no launch may be attempted after a preparation failure")
}

func TestRunUp_StorageFailureAbortsBeforeLaunch(t *testing.T) {
	preparer := &fakePreparer{storageErr: errors.New("connection refused")}
	execer := &fakeExecer{}
	setupUp(t, config.LaunchConfig{Mode: "production"}, preparer, execer)

	err := runUp(testCommand(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "preparing storage")
	assert.Empty(t, execer.cmds, "no launch may be attempted after a preparation failure")
}

func TestRunUp_LaunchFailurePropagates(t *testing.T) {
	execer := &fakeExecer{err: errors.New("executable file not found in $PATH")}
	setupUp(t, config.LaunchConfig{Mode: "production"}, &fakePreparer{}, execer)

	err := runUp(testCommand(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "launching server")
	require.Len(t, execer.cmds, 1, "a failed launch is not retried")
}
