package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/McbyX/Deeploy/internal/config"
	"github.com/McbyX/Deeploy/internal/container"
	"github.com/McbyX/Deeploy/internal/devmgr"
	"github.com/McbyX/Deeploy/internal/tmux"
	"github.com/McbyX/Deeploy/internal/usbip"
	"github.com/McbyX/Deeploy/internal/workspace"
)

var gap9Probe = usbip.DeviceID{Vendor: "15ba", Product: "002b"}

// deadEnvironment fails every external command, emulating a machine where
// nothing is running and the USB/IP host is unreachable.
func deadEnvironment(t *testing.T) *Orchestrator {
	t.Helper()

	run := func(_ context.Context, _ string, _ ...string) (string, error) {
		return "", errors.New("connection refused")
	}

	cfg := &config.Config{
		Image:     "img",
		WorkDir:   t.TempDir(),
		CacheDir:  t.TempDir(),
		VendorID:  gap9Probe.Vendor,
		ProductID: gap9Probe.Product,
		USBIPHost: "192.168.1.2",
		Shell:     "/bin/sh",
	}

	engine := container.NewEngineWithRunner(run)

	return &Orchestrator{
		Config:    cfg,
		Devices:   devmgr.New(engine, cfg.Image, cfg.USBIPHost, gap9Probe, func(context.Context) bool { return true }),
		Workspace: workspace.New(engine, cfg),
		Tmux:      tmux.NewSessionWithRunner(TmuxSessionName, run),
	}
}

func TestStopSafeWithNothingRunning(t *testing.T) {
	t.Parallel()

	o := deadEnvironment(t)

	err := o.Stop(context.Background())
	require.NoError(t, err, "stop must succeed with nothing running")
}

func TestAttachFailureThenStopStillSucceeds(t *testing.T) {
	t.Parallel()

	o := deadEnvironment(t)

	// Host unreachable: the remote device list cannot be fetched.
	err := o.Devices.Attach(context.Background())
	require.Error(t, err)

	err = o.Stop(context.Background())
	require.NoError(t, err)
}
