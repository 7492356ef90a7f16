// Package container wraps the docker command line client.
package container

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/lxc/incus/v6/shared/subprocess"
)

// Runner executes a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) (string, error)

// Engine drives the docker CLI.
type Engine struct {
	run Runner
}

// NewEngine returns an Engine backed by the real docker client.
func NewEngine() *Engine {
	return &Engine{run: subprocess.RunCommandContext}
}

// NewEngineWithRunner returns an Engine with a custom command runner.
func NewEngineWithRunner(run Runner) *Engine {
	return &Engine{run: run}
}

// Mount describes a bind mount into a container.
type Mount struct {
	Source   string
	Target   string
	ReadOnly bool
}

// RunOptions describes a container to start.
type RunOptions struct {
	Name        string
	Image       string
	Platform    string
	Privileged  bool
	HostPID     bool
	HostNetwork bool
	Detach      bool
	Remove      bool
	Interactive bool
	WorkDir     string
	Env         []string
	Mounts      []Mount
	Devices     []string
	Command     []string
}

func (o RunOptions) args() []string {
	args := []string{"run"}

	if o.Detach {
		args = append(args, "-d")
	}

	if o.Remove {
		args = append(args, "--rm")
	}

	if o.Interactive {
		args = append(args, "-it")
	}

	if o.Name != "" {
		args = append(args, "--name", o.Name)
	}

	if o.Platform != "" {
		args = append(args, "--platform", o.Platform)
	}

	if o.Privileged {
		args = append(args, "--privileged")
	}

	if o.HostPID {
		args = append(args, "--pid", "host")
	}

	if o.HostNetwork {
		args = append(args, "--network", "host")
	}

	if o.WorkDir != "" {
		args = append(args, "--workdir", o.WorkDir)
	}

	for _, env := range o.Env {
		args = append(args, "-e", env)
	}

	for _, mount := range o.Mounts {
		spec := mount.Source + ":" + mount.Target
		if mount.ReadOnly {
			spec += ":ro"
		}

		args = append(args, "-v", spec)
	}

	for _, device := range o.Devices {
		args = append(args, "--device", device)
	}

	args = append(args, o.Image)
	args = append(args, o.Command...)

	return args
}

// Run starts a container.
func (e *Engine) Run(ctx context.Context, opts RunOptions) error {
	_, err := e.run(ctx, "docker", opts.args()...)

	return err
}

// RunInteractive starts a container attached to the controlling terminal.
// The error carries the container's exit code unchanged.
func (e *Engine) RunInteractive(ctx context.Context, opts RunOptions) error {
	// #nosec G204
	cmd := exec.CommandContext(ctx, "docker", opts.args()...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}

// IsRunning checks whether a container with the given name is currently
// running. Inspect exits non-zero for unknown names, so any error is treated
// as not running.
func (e *Engine) IsRunning(ctx context.Context, name string) bool {
	output, err := e.run(ctx, "docker", "inspect", "--format", "{{.State.Running}}", name)
	if err != nil {
		return false
	}

	return strings.TrimSpace(output) == "true"
}

// Stop stops a container.
func (e *Engine) Stop(ctx context.Context, name string) error {
	_, err := e.run(ctx, "docker", "stop", name)

	return err
}

// Exec runs a command inside a running container and returns its output.
func (e *Engine) Exec(ctx context.Context, name string, command ...string) (string, error) {
	args := append([]string{"exec", name}, command...)

	return e.run(ctx, "docker", args...)
}
