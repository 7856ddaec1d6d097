package stream

import (
	"context"
	"sync/atomic"
	"time"
)

// DefaultPollInterval is how often a paused producer re-checks its control.
// Resume latency is bounded by this interval.
const DefaultPollInterval = 100 * time.Millisecond

// Control is the shared handle used to pause, resume or cancel a running
// stream. Both flags are independent; a paused stream that is cancelled
// terminates instead of resuming. Safe for concurrent use.
type Control struct {
	paused    atomic.Bool
	cancelled atomic.Bool
}

// NewControl returns a handle with both flags cleared.
func NewControl() *Control {
	return &Control{}
}

func (c *Control) Pause()  { c.paused.Store(true) }
func (c *Control) Resume() { c.paused.Store(false) }
func (c *Control) Cancel() { c.cancelled.Store(true) }

func (c *Control) IsPaused() bool    { return c.paused.Load() }
func (c *Control) IsCancelled() bool { return c.cancelled.Load() }

// WaitWhilePaused blocks while the stream is paused, polling every
// interval. It returns false if the stream was cancelled or ctx ended,
// meaning the caller should stop.
func (c *Control) WaitWhilePaused(ctx context.Context, interval time.Duration) bool {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	var ticker *time.Ticker
	for c.IsPaused() {
		if c.IsCancelled() {
			return false
		}
		if ticker == nil {
			ticker = time.NewTicker(interval)
			defer ticker.Stop()
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}

	return !c.IsCancelled() && ctx.Err() == nil
}
