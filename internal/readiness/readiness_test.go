package readiness

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitReadyFirstAttempt(t *testing.T) {
	t.Parallel()

	p := NewPoller(20, time.Second)

	slept := 0
	p.sleep = func(time.Duration) { slept++ }

	result := p.Wait(context.Background(), func(context.Context) bool { return true })
	require.Equal(t, Ready, result)
	require.Zero(t, slept, "no sleep expected when the first check succeeds")
}

func TestWaitReadyAfterRetries(t *testing.T) {
	t.Parallel()

	p := NewPoller(20, time.Second)

	slept := 0
	p.sleep = func(time.Duration) { slept++ }

	checks := 0
	result := p.Wait(context.Background(), func(context.Context) bool {
		checks++

		return checks == 3
	})

	require.Equal(t, Ready, result)
	require.Equal(t, 3, checks)
	require.Equal(t, 2, slept)
}

func TestWaitExhaustsBudget(t *testing.T) {
	t.Parallel()

	p := NewPoller(20, time.Second)

	var intervals []time.Duration

	p.sleep = func(d time.Duration) { intervals = append(intervals, d) }

	checks := 0
	result := p.Wait(context.Background(), func(context.Context) bool {
		checks++

		return false
	})

	require.Equal(t, TimedOut, result)
	require.Equal(t, 20, checks, "exactly the attempt budget, never more")
	require.Len(t, intervals, 19, "no sleep after the final attempt")

	for _, d := range intervals {
		require.Equal(t, time.Second, d)
	}
}

func TestWaitStopsOnCancel(t *testing.T) {
	t.Parallel()

	p := NewPoller(20, time.Second)
	p.sleep = func(time.Duration) {}

	ctx, cancel := context.WithCancel(context.Background())

	checks := 0
	result := p.Wait(ctx, func(context.Context) bool {
		checks++
		cancel()

		return false
	})

	require.Equal(t, TimedOut, result)
	require.Equal(t, 1, checks)
}
