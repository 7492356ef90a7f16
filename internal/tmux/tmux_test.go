package tmux

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStartBuildsPanes(t *testing.T) {
	t.Parallel()

	var calls [][]string

	s := NewSession("gap9-dev")
	s.run = func(_ context.Context, name string, args ...string) (string, error) {
		calls = append(calls, append([]string{name}, args...))

		return "", nil
	}

	err := s.Start(context.Background(), []string{"cmd-a", "cmd-b", "cmd-c"})
	require.NoError(t, err)

	require.Equal(t, [][]string{
		{"tmux", "new-session", "-d", "-s", "gap9-dev", "cmd-a"},
		{"tmux", "split-window", "-t", "gap9-dev", "cmd-b"},
		{"tmux", "split-window", "-t", "gap9-dev", "cmd-c"},
		{"tmux", "select-layout", "-t", "gap9-dev", "even-vertical"},
	}, calls)
}

func TestStartNeedsPanes(t *testing.T) {
	t.Parallel()

	s := NewSession("gap9-dev")

	err := s.Start(context.Background(), nil)
	require.ErrorIs(t, err, ErrNoPanes)
}

func TestExists(t *testing.T) {
	t.Parallel()

	s := NewSession("gap9-dev")

	s.run = func(_ context.Context, _ string, _ ...string) (string, error) { return "", nil }
	require.True(t, s.Exists(context.Background()))

	s.run = func(_ context.Context, _ string, _ ...string) (string, error) {
		return "", errors.New("no server running")
	}
	require.False(t, s.Exists(context.Background()))
}
