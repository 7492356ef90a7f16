// Package session composes the controllers into the user facing commands.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/McbyX/Deeploy/internal/config"
	"github.com/McbyX/Deeploy/internal/container"
	"github.com/McbyX/Deeploy/internal/devmgr"
	"github.com/McbyX/Deeploy/internal/hostserv"
	"github.com/McbyX/Deeploy/internal/scheduling"
	"github.com/McbyX/Deeploy/internal/tmux"
	"github.com/McbyX/Deeploy/internal/usbip"
	"github.com/McbyX/Deeploy/internal/workspace"
)

// TmuxSessionName is the fixed name of the multiplexed session.
const TmuxSessionName = "gap9-dev"

// Orchestrator owns the singleton handles (device manager container, tmux
// session) and wires the controllers together.
type Orchestrator struct {
	Config    *config.Config
	Host      *hostserv.Manager
	Devices   *devmgr.Controller
	Workspace *workspace.Controller
	Tmux      *tmux.Session
}

// New builds an Orchestrator for the given configuration, backed by the real
// docker, tmux and usbip clients.
func New(cfg *config.Config) *Orchestrator {
	engine := container.NewEngine()
	host := hostserv.NewManager(cfg.CacheDir)
	device := usbip.DeviceID{Vendor: cfg.VendorID, Product: cfg.ProductID}

	return &Orchestrator{
		Config:    cfg,
		Host:      host,
		Devices:   devmgr.New(engine, cfg.Image, cfg.USBIPHost, device, host.IsRunning),
		Workspace: workspace.New(engine, cfg),
		Tmux:      tmux.NewSession(TmuxSessionName),
	}
}

// Start brings the whole environment up: daemon, device, workspace shell.
// The first failure aborts the sequence.
func (o *Orchestrator) Start(ctx context.Context) error {
	err := o.Devices.EnsureDaemon(ctx)
	if err != nil {
		return err
	}

	err = o.Devices.Attach(ctx)
	if err != nil {
		return err
	}

	return o.Workspace.Start(ctx)
}

// Stop tears everything down. Every leg is best-effort; failures are logged
// and never propagated so stop is always safe to run.
func (o *Orchestrator) Stop(ctx context.Context) error {
	var group errgroup.Group

	group.Go(func() error {
		err := o.Devices.StopDaemon(ctx)
		if err != nil {
			slog.WarnContext(ctx, "Unable to stop device manager", "error", err)
		}

		return nil
	})

	group.Go(func() error {
		if !o.Tmux.Exists(ctx) {
			return nil
		}

		err := o.Tmux.Kill(ctx)
		if err != nil {
			slog.WarnContext(ctx, "Unable to kill tmux session", "session", o.Tmux.Name, "error", err)
		}

		return nil
	})

	_ = group.Wait()

	slog.InfoContext(ctx, "Environment stopped")

	return nil
}

// StartTmux creates the three-pane session (host service, daemon plus attach,
// workspace shell) and attaches to it. A prior session of the same name is
// killed first so re-invoking restarts cleanly.
func (o *Orchestrator) StartTmux(ctx context.Context) error {
	if o.Tmux.Exists(ctx) {
		slog.InfoContext(ctx, "Killing previous tmux session", "session", o.Tmux.Name)

		err := o.Tmux.Kill(ctx)
		if err != nil {
			return err
		}
	}

	self, err := os.Executable()
	if err != nil {
		return err
	}

	// The middle pane drops into a shell once the attach sequence is done so
	// the pane doesn't close underneath the operator.
	panes := []string{
		self + " start-usbip-host",
		fmt.Sprintf("sh -c '%s start-usbip-daemon && %s attach-usbip; exec ${SHELL:-sh}'", self, self),
		self + " start-gap9",
	}

	err = o.Tmux.Start(ctx, panes)
	if err != nil {
		return err
	}

	return o.Tmux.Attach(ctx)
}

// Watch periodically verifies the device attachment and re-attaches after
// host-side drops, until the context is cancelled.
func (o *Orchestrator) Watch(ctx context.Context) error {
	scheduler, err := scheduling.NewScheduler()
	if err != nil {
		return err
	}

	err = scheduler.RegisterJob("usbip-watch", o.Config.WatchInterval, o.checkAttachment)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Watching device attachment", "interval", o.Config.WatchInterval.String())

	scheduler.Start()

	<-ctx.Done()

	return scheduler.Shutdown()
}

func (o *Orchestrator) checkAttachment(ctx context.Context) error {
	attached, err := o.Devices.Attached(ctx)
	if err != nil {
		return err
	}

	if attached {
		return nil
	}

	slog.WarnContext(ctx, "Device no longer attached, re-attaching")

	return o.Devices.Attach(ctx)
}
