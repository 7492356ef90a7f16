package usbip

import (
	"context"
)

// Runner executes a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) (string, error)

// Client drives a usbip client binary through the provided runner. The runner
// decides where the binary actually executes (directly on the host or inside
// the device manager container).
type Client struct {
	Host string
	Run  Runner
}

// ListRemote returns the raw exportable device list of the remote host.
func (c *Client) ListRemote(ctx context.Context) (string, error) {
	return c.Run(ctx, "usbip", "list", "-r", c.Host)
}

// Ports returns the raw list of locally imported devices.
func (c *Client) Ports(ctx context.Context) (string, error) {
	return c.Run(ctx, "usbip", "port")
}

// Attach imports the given remote bus ID.
func (c *Client) Attach(ctx context.Context, busID string) error {
	_, err := c.Run(ctx, "usbip", "attach", "-r", c.Host, "-b", busID)

	return err
}

// Detach releases the given local port.
func (c *Client) Detach(ctx context.Context, port string) error {
	_, err := c.Run(ctx, "usbip", "detach", "-p", port)

	return err
}

// FindRemote resolves the bus ID the device is exported under.
func (c *Client) FindRemote(ctx context.Context, id DeviceID) (string, error) {
	output, err := c.ListRemote(ctx)
	if err != nil {
		return "", err
	}

	return ParseRemoteList(output, id)
}

// FindPort resolves the local port the device is currently imported on.
func (c *Client) FindPort(ctx context.Context, id DeviceID) (string, error) {
	output, err := c.Ports(ctx)
	if err != nil {
		return "", err
	}

	return ParsePorts(output, id)
}
