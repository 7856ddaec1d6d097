package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/datasynth/synth/pkg/degradation"
	"github.com/datasynth/synth/pkg/events"
	"github.com/datasynth/synth/pkg/generators"
	"github.com/datasynth/synth/pkg/monitor"
	"github.com/datasynth/synth/pkg/orchestrator"
	"github.com/datasynth/synth/pkg/router"
	"github.com/datasynth/synth/pkg/sink"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Result describes a finished run.
type Result struct {
	SessionID string
	Summary   *events.Summary
	Router    router.Stats
	// Compact is true when output was written as msgpack
	Compact bool
	// PeakLevel is the most severe degradation level seen during the run
	PeakLevel  degradation.Level
	FinalLevel degradation.Level
}

// Option configures a Runner.
type Option func(*Runner)

// WithProbe replaces the system resource probe.
func WithProbe(p monitor.Probe) Option {
	return func(r *Runner) { r.probe = p }
}

// WithSessionID fixes the session id, which also names the output files.
func WithSessionID(id string) Option {
	return func(r *Runner) { r.sessionID = id }
}

// Runner wires the resource monitor, the generation stream and the sinks
// of a single generation run.
type Runner struct {
	config    Config
	logger    *logrus.Logger
	probe     monitor.Probe
	sessionID string
}

func New(config Config, logger *logrus.Logger, opts ...Option) *Runner {
	r := &Runner{config: config, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run generates one dataset. Cancelling ctx interrupts generation, but the
// stream is still drained to its Complete event so the outputs are closed
// with a summary.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	cfg := r.config
	logger := r.logger

	if err := os.MkdirAll(cfg.Output.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", cfg.Output.Path, err)
	}

	controller := degradation.NewController(cfg.Degradation)

	probe := r.probe
	if probe == nil {
		systemProbe, err := monitor.NewSystemProbe(cfg.Monitor)
		if err != nil {
			return nil, fmt.Errorf("failed to create resource probe: %w", err)
		}
		probe = systemProbe
	}

	var peakMu sync.Mutex
	peakLevel := degradation.Normal
	mon := monitor.New(cfg.Monitor, probe, controller, logger)
	mon.OnChange(func(signal degradation.Signal) {
		peakMu.Lock()
		defer peakMu.Unlock()
		if signal.To > peakLevel {
			peakLevel = signal.To
		}
	})

	if _, _, err := mon.Check(ctx); err != nil {
		logger.Warnf("initial resource check incomplete: %v", err)
	}

	compact := cfg.Output.Compact || controller.Actions().UseCompactOutput
	if compact && !cfg.Output.Compact {
		logger.Infof("resources at %s, writing compact output", controller.CurrentLevel())
	}

	orchOpts := []orchestrator.Option{
		orchestrator.WithController(controller),
		orchestrator.WithPeakMemory(mon.PeakMemoryMB),
	}
	if r.sessionID != "" {
		orchOpts = append(orchOpts, orchestrator.WithSessionID(r.sessionID))
	}

	orchConfig := orchestrator.DefaultConfig()
	orchConfig.Stream = cfg.Stream
	orchConfig.Phases = cfg.Phases
	registry := generators.NewRegistry(cfg.Generation, cfg.Stream.BatchSize)

	orch, err := orchestrator.New(orchConfig, registry, logger, orchOpts...)
	if err != nil {
		return nil, err
	}
	sessionID := orch.SessionID()

	sinks, err := sink.Build(ctx, cfg.Output, sessionID, compact, logger)
	if err != nil {
		return nil, err
	}
	rt := router.New(sinks, controller, logger, router.Config{FlushInterval: cfg.Output.FlushInterval})

	logger.WithFields(logrus.Fields{
		"session": sessionID,
		"phases":  len(cfg.Phases),
		"seed":    cfg.Generation.Seed,
	}).Info("starting generation")

	// Draining must outlive ctx so an interrupted run still ends with its
	// summary.
	drainCtx := context.WithoutCancel(ctx)
	rx, control := orch.Stream(drainCtx)

	monCtx, stopMonitor := context.WithCancel(drainCtx)
	defer stopMonitor()

	var summary *events.Summary
	g := new(errgroup.Group)
	g.Go(func() error {
		err := mon.Run(monCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		defer stopMonitor()
		var err error
		summary, err = rt.Drain(drainCtx, rx)
		return err
	})
	g.Go(func() error {
		select {
		case <-ctx.Done():
			logger.Warn("interrupted, finishing the current stream")
			control.Cancel()
		case <-monCtx.Done():
		}
		return nil
	})

	err = g.Wait()

	peakMu.Lock()
	defer peakMu.Unlock()
	result := &Result{
		SessionID:  sessionID,
		Summary:    summary,
		Router:     rt.Stats(),
		Compact:    compact,
		PeakLevel:  peakLevel,
		FinalLevel: controller.CurrentLevel(),
	}
	return result, err
}
