// Package hostserv manages the host side Python USB/IP server.
package hostserv

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/lxc/incus/v6/shared/subprocess"
)

// DefaultRepoURL points at the Python USB/IP server implementation used to
// export the board from the host.
const DefaultRepoURL = "https://github.com/tumayt/pyusbip"

// Manager handles checkout, dependency setup and running of the host server.
type Manager struct {
	// SourceDir is where the server checkout lives, usually under the cache
	// directory.
	SourceDir string
	RepoURL   string

	run func(ctx context.Context, name string, args ...string) (string, error)
}

// NewManager returns a Manager rooted at the given cache directory.
func NewManager(cacheDir string) *Manager {
	return &Manager{
		SourceDir: filepath.Join(cacheDir, "pyusbip"),
		RepoURL:   DefaultRepoURL,
		run:       subprocess.RunCommandContext,
	}
}

func (m *Manager) venvDir() string {
	return filepath.Join(m.SourceDir, ".venv")
}

// EnsureSetup fetches the server source and prepares its virtual environment.
// Both steps only run when their target is absent, so this is safe to call on
// every invocation.
func (m *Manager) EnsureSetup(ctx context.Context) error {
	_, err := os.Stat(m.SourceDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}

		slog.InfoContext(ctx, "Fetching USB/IP host server", "url", m.RepoURL, "path", m.SourceDir)

		_, err = m.run(ctx, "git", "clone", "--depth", "1", m.RepoURL, m.SourceDir)
		if err != nil {
			return err
		}
	}

	_, err = os.Stat(m.venvDir())
	if err == nil {
		return nil
	}

	if !os.IsNotExist(err) {
		return err
	}

	slog.InfoContext(ctx, "Creating USB/IP host server environment", "path", m.venvDir())

	_, err = m.run(ctx, "python3", "-m", "venv", m.venvDir())
	if err != nil {
		return err
	}

	pip := filepath.Join(m.venvDir(), "bin", "pip")

	_, err = m.run(ctx, pip, "install", "-r", filepath.Join(m.SourceDir, "requirements.txt"))
	if err != nil {
		return err
	}

	return nil
}

// RunForeground starts the server attached to the controlling terminal. It
// only returns once the server exits or is interrupted.
func (m *Manager) RunForeground(ctx context.Context) error {
	python := filepath.Join(m.venvDir(), "bin", "python")

	// #nosec G204
	cmd := exec.CommandContext(ctx, python, "-m", "pyusbip")
	cmd.Dir = m.SourceDir
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	slog.InfoContext(ctx, "Starting USB/IP host server", "path", m.SourceDir)

	return cmd.Run()
}

// IsRunning reports whether a server process is visible in the process list.
func (m *Manager) IsRunning(ctx context.Context) bool {
	_, err := m.run(ctx, "pgrep", "-f", "pyusbip")

	return err == nil
}
