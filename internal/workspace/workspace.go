// Package workspace starts the interactive development container.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/McbyX/Deeploy/internal/config"
	"github.com/McbyX/Deeploy/internal/container"
)

// ContainerName is the fixed name of the workspace container.
const ContainerName = "gap9-workspace"

// ErrPathNotFound is returned when the work directory does not exist.
var ErrPathNotFound = errors.New("path not found")

// Controller starts the development container for a session configuration.
type Controller struct {
	engine *container.Engine
	config *config.Config
}

// New creates a Controller.
func New(engine *container.Engine, cfg *config.Config) *Controller {
	return &Controller{
		engine: engine,
		config: cfg,
	}
}

// Start validates the work directory, prepares the cache layout and runs the
// interactive workspace container. The container's exit code is carried in
// the returned error unchanged.
func (c *Controller) Start(ctx context.Context) error {
	info, err := os.Stat(c.config.WorkDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: work directory %q", ErrPathNotFound, c.config.WorkDir)
	}

	opts, err := c.runOptions()
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Starting workspace container", "container", ContainerName, "image", c.config.Image, "workdir", c.config.WorkDir)

	return c.engine.RunInteractive(ctx, opts)
}

// runOptions prepares the cache layout and builds the container options.
func (c *Controller) runOptions() (container.RunOptions, error) {
	for _, dir := range []string{c.config.CacheDir, filepath.Join(c.config.CacheDir, "pip"), filepath.Join(c.config.CacheDir, "ccache")} {
		err := os.MkdirAll(dir, 0o755)
		if err != nil {
			return container.RunOptions{}, err
		}
	}

	// The history file has to exist before docker can bind mount it, or the
	// runtime creates it as a directory.
	history := filepath.Join(c.config.CacheDir, "bash_history")

	f, err := os.OpenFile(history, os.O_CREATE|os.O_WRONLY, 0o600) //nolint:gosec
	if err != nil {
		return container.RunOptions{}, err
	}

	_ = f.Close()

	return container.RunOptions{
		Name:        ContainerName,
		Image:       c.config.Image,
		Platform:    c.config.Platform,
		Privileged:  true,
		Remove:      true,
		Interactive: true,
		WorkDir:     "/workspace",
		Mounts: []container.Mount{
			{Source: c.config.WorkDir, Target: "/workspace"},
			{Source: c.config.SSHKey, Target: "/root/.ssh/" + filepath.Base(c.config.SSHKey), ReadOnly: true},
			{Source: filepath.Join(c.config.CacheDir, "pip"), Target: "/root/.cache/pip"},
			{Source: filepath.Join(c.config.CacheDir, "ccache"), Target: "/root/.ccache"},
			{Source: history, Target: "/root/.bash_history"},
		},
		Devices: []string{"/dev/bus/usb"},
		Command: []string{c.config.Shell},
	}, nil
}
