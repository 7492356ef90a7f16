package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/McbyX/Deeploy/internal/config"
	"github.com/McbyX/Deeploy/internal/container"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		Image:    "img",
		WorkDir:  t.TempDir(),
		CacheDir: filepath.Join(t.TempDir(), "cache"),
		SSHKey:   "/home/dev/.ssh/id_ed25519",
		Platform: "linux/amd64",
		Shell:    "/bin/bash",
	}
}

func TestStartMissingWorkDir(t *testing.T) {
	t.Parallel()

	ran := false

	engine := container.NewEngineWithRunner(func(_ context.Context, _ string, _ ...string) (string, error) {
		ran = true

		return "", nil
	})

	cfg := testConfig(t)
	cfg.WorkDir = filepath.Join(cfg.WorkDir, "does-not-exist")

	err := New(engine, cfg).Start(context.Background())
	require.ErrorIs(t, err, ErrPathNotFound)
	require.False(t, ran, "no container created for a missing work directory")
}

func TestRunOptionsLayout(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)

	opts, err := New(container.NewEngine(), cfg).runOptions()
	require.NoError(t, err)

	require.Equal(t, ContainerName, opts.Name)
	require.Equal(t, []string{"/bin/bash"}, opts.Command)
	require.Equal(t, "/workspace", opts.WorkDir)
	require.True(t, opts.Interactive)
	require.True(t, opts.Remove)
	require.Contains(t, opts.Devices, "/dev/bus/usb")

	require.Equal(t, container.Mount{
		Source:   cfg.SSHKey,
		Target:   "/root/.ssh/id_ed25519",
		ReadOnly: true,
	}, opts.Mounts[1])

	// The cache layout and the history file must exist afterwards.
	for _, path := range []string{
		filepath.Join(cfg.CacheDir, "pip"),
		filepath.Join(cfg.CacheDir, "ccache"),
	} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}

	info, err := os.Stat(filepath.Join(cfg.CacheDir, "bash_history"))
	require.NoError(t, err)
	require.False(t, info.IsDir())
}
