package monitor

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// TickerConfig configures an interval loop.
type TickerConfig struct {
	Name      string
	Interval  time.Duration
	SkipFirst bool
	Logger    *log.Logger
}

// RunWithTicker calls fn every Interval until ctx is done, immediately as
// well unless SkipFirst is set. Errors from fn are logged and the loop
// keeps running. It returns ctx.Err().
func RunWithTicker(ctx context.Context, cfg TickerConfig, fn func(context.Context) error) error {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	if !cfg.SkipFirst {
		if err := fn(ctx); err != nil {
			cfg.Logger.Debugf("[%s] initial execution error: %v", cfg.Name, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				cfg.Logger.Debugf("[%s] execution error: %v", cfg.Name, err)
			}
		}
	}
}
