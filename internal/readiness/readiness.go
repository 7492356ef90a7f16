// Package readiness implements a bounded poll for external processes.
package readiness

import (
	"context"
	"time"
)

// Result represents the outcome of a readiness wait.
type Result int

const (
	// TimedOut indicates the check never reported ready within the attempt budget.
	TimedOut Result = iota

	// Ready indicates the check reported ready.
	Ready
)

// Poller repeatedly runs a readiness check at a fixed interval.
type Poller struct {
	attempts int
	interval time.Duration

	sleep func(time.Duration)
}

// NewPoller creates a Poller with the given attempt budget and spacing.
func NewPoller(attempts int, interval time.Duration) *Poller {
	return &Poller{
		attempts: attempts,
		interval: interval,
		sleep:    time.Sleep,
	}
}

// Wait runs the check until it reports ready or the attempt budget is spent.
// No sleep happens after the final attempt.
func (p *Poller) Wait(ctx context.Context, check func(context.Context) bool) Result {
	for i := range p.attempts {
		if check(ctx) {
			return Ready
		}

		if i == p.attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return TimedOut
		default:
		}

		p.sleep(p.interval)
	}

	return TimedOut
}
