// Package devmgr controls the privileged device manager container that holds
// the USB/IP attachment for the board.
package devmgr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lxc/incus/v6/shared/revert"

	"github.com/McbyX/Deeploy/internal/container"
	"github.com/McbyX/Deeploy/internal/readiness"
	"github.com/McbyX/Deeploy/internal/usbip"
)

// ContainerName is the fixed name of the device manager container. Name
// uniqueness in the container runtime is what keeps this a singleton.
const ContainerName = "usbip-devmgr"

// ErrServiceNotReady is returned when the host USB/IP server never became
// visible within the readiness budget.
var ErrServiceNotReady = errors.New("USB/IP host service not ready")

// Controller manages the daemon container and the device attachment.
type Controller struct {
	engine    *container.Engine
	client    *usbip.Client
	image     string
	device    usbip.DeviceID
	poller    *readiness.Poller
	hostReady func(context.Context) bool
}

// New creates a Controller. hostReady is the visibility check for the host
// USB/IP server, polled up to 20 times at 1s spacing by EnsureDaemon.
func New(engine *container.Engine, image string, host string, device usbip.DeviceID, hostReady func(context.Context) bool) *Controller {
	client := &usbip.Client{
		Host: host,
		Run: func(ctx context.Context, name string, args ...string) (string, error) {
			command := append([]string{name}, args...)

			return engine.Exec(ctx, ContainerName, command...)
		},
	}

	return &Controller{
		engine:    engine,
		client:    client,
		image:     image,
		device:    device,
		poller:    readiness.NewPoller(20, time.Second),
		hostReady: hostReady,
	}
}

// EnsureDaemon makes sure the daemon container is up. It waits for the host
// service first and is a no-op when the container is already running.
func (c *Controller) EnsureDaemon(ctx context.Context) error {
	if c.poller.Wait(ctx, c.hostReady) != readiness.Ready {
		return fmt.Errorf("%w: start it with \"gap9-dev start-usbip-host\"", ErrServiceNotReady)
	}

	if c.engine.IsRunning(ctx, ContainerName) {
		slog.InfoContext(ctx, "Device manager container already running", "container", ContainerName)

		return nil
	}

	reverter := revert.New()
	defer reverter.Fail()

	slog.InfoContext(ctx, "Starting device manager container", "container", ContainerName)

	err := c.engine.Run(ctx, container.RunOptions{
		Name:        ContainerName,
		Image:       c.image,
		Privileged:  true,
		HostPID:     true,
		HostNetwork: true,
		Detach:      true,
		Remove:      true,
		Command:     []string{"sleep", "infinity"},
	})
	if err != nil {
		return err
	}

	reverter.Add(func() { _ = c.engine.Stop(ctx, ContainerName) })

	// The vhci-hcd module must be present before any attach can work.
	_, err = c.engine.Exec(ctx, ContainerName, "modprobe", "vhci-hcd")
	if err != nil {
		return err
	}

	reverter.Success()

	return nil
}

// Attach imports the device from the remote host. It always detaches first so
// a stale attachment can never make the new one fail.
func (c *Controller) Attach(ctx context.Context) error {
	c.Detach(ctx)

	busID, err := c.client.FindRemote(ctx, c.device)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Attaching USB device", "device", c.device.String(), "busid", busID)

	return c.client.Attach(ctx, busID)
}

// Detach releases the device if it is attached. "Not attached" and "detach
// refused" are indistinguishable here and both are acceptable outcomes, so
// this only ever warns.
func (c *Controller) Detach(ctx context.Context) {
	port, err := c.client.FindPort(ctx, c.device)
	if err != nil {
		if errors.Is(err, usbip.ErrDeviceNotFound) {
			slog.WarnContext(ctx, "Device not attached, nothing to detach", "device", c.device.String())
		} else {
			slog.WarnContext(ctx, "Unable to query attached ports", "error", err)
		}

		return
	}

	slog.InfoContext(ctx, "Detaching USB device", "device", c.device.String(), "port", port)

	err = c.client.Detach(ctx, port)
	if err != nil {
		slog.WarnContext(ctx, "Unable to detach USB device", "device", c.device.String(), "port", port, "error", err)
	}
}

// Attached reports whether the device is currently imported.
func (c *Controller) Attached(ctx context.Context) (bool, error) {
	_, err := c.client.FindPort(ctx, c.device)
	if err != nil {
		if errors.Is(err, usbip.ErrDeviceNotFound) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

// StopDaemon detaches the device and stops the daemon container. Both steps
// are best-effort so teardown is always safe to run.
func (c *Controller) StopDaemon(ctx context.Context) error {
	if !c.engine.IsRunning(ctx, ContainerName) {
		slog.InfoContext(ctx, "Device manager container not running", "container", ContainerName)

		return nil
	}

	c.Detach(ctx)

	slog.InfoContext(ctx, "Stopping device manager container", "container", ContainerName)

	return c.engine.Stop(ctx, ContainerName)
}
