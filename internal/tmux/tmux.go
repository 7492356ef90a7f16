// Package tmux manages the multiplexed development session.
package tmux

import (
	"context"
	"errors"
	"os"
	"os/exec"

	"github.com/lxc/incus/v6/shared/subprocess"
)

// ErrNoPanes is returned when a session start is requested without commands.
var ErrNoPanes = errors.New("session needs at least one pane command")

// Session represents a named tmux session.
type Session struct {
	Name string

	run func(ctx context.Context, name string, args ...string) (string, error)
}

// NewSession returns a handle for the named session.
func NewSession(name string) *Session {
	return &Session{
		Name: name,
		run:  subprocess.RunCommandContext,
	}
}

// NewSessionWithRunner returns a handle with a custom command runner.
func NewSessionWithRunner(name string, run func(ctx context.Context, name string, args ...string) (string, error)) *Session {
	return &Session{
		Name: name,
		run:  run,
	}
}

// Exists reports whether the session is present.
func (s *Session) Exists(ctx context.Context) bool {
	_, err := s.run(ctx, "tmux", "has-session", "-t", s.Name)

	return err == nil
}

// Kill tears the session down.
func (s *Session) Kill(ctx context.Context) error {
	_, err := s.run(ctx, "tmux", "kill-session", "-t", s.Name)

	return err
}

// Start creates a detached session with one pane per command, tiled evenly.
func (s *Session) Start(ctx context.Context, panes []string) error {
	if len(panes) == 0 {
		return ErrNoPanes
	}

	_, err := s.run(ctx, "tmux", "new-session", "-d", "-s", s.Name, panes[0])
	if err != nil {
		return err
	}

	for _, pane := range panes[1:] {
		_, err = s.run(ctx, "tmux", "split-window", "-t", s.Name, pane)
		if err != nil {
			return err
		}
	}

	_, err = s.run(ctx, "tmux", "select-layout", "-t", s.Name, "even-vertical")
	if err != nil {
		return err
	}

	return nil
}

// Attach connects the controlling terminal to the session; returns when the
// user detaches or the session ends.
func (s *Session) Attach(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "tmux", "attach-session", "-t", s.Name)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}
