package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/datasynth/synth/internal/utils"
	"github.com/datasynth/synth/pkg/degradation"
	"github.com/datasynth/synth/pkg/events"
	"github.com/datasynth/synth/pkg/stream"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Config controls one orchestrator.
type Config struct {
	Stream stream.Config
	// Phases run in this order; phases without a registered func are
	// still closed with a PhaseComplete marker.
	Phases []Phase
	// PollInterval is the pause wake interval
	PollInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Stream:       stream.DefaultConfig(),
		Phases:       []Phase{ChartOfAccounts, MasterData, JournalEntries},
		PollInterval: stream.DefaultPollInterval,
	}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithController attaches a degradation controller. Phases read its actions
// through Emitter.Actions and no new phase starts once it reports
// terminate.
func WithController(c *degradation.Controller) Option {
	return func(o *Orchestrator) { o.controller = c }
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) Option {
	return func(o *Orchestrator) { o.sessionID = id }
}

// WithPeakMemory sets the source of the summary's peak memory figure.
func WithPeakMemory(fn func() *uint64) Option {
	return func(o *Orchestrator) { o.peakMemory = fn }
}

// Orchestrator sequences generation phases into a bounded event stream.
// Every call to Stream is an independent session.
type Orchestrator struct {
	config     Config
	registry   Registry
	logger     *logrus.Logger
	controller *degradation.Controller
	sessionID  string
	peakMemory func() *uint64
}

func New(config Config, registry Registry, logger *logrus.Logger, opts ...Option) (*Orchestrator, error) {
	if err := utils.ValidateStruct(&config.Stream); err != nil {
		return nil, fmt.Errorf("invalid stream config: %w", err)
	}
	if len(config.Phases) == 0 {
		return nil, errors.New("no phases configured")
	}
	if config.PollInterval <= 0 {
		config.PollInterval = stream.DefaultPollInterval
	}
	if registry == nil {
		registry = Registry{}
	}

	o := &Orchestrator{
		config:   config,
		registry: registry,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.sessionID == "" {
		o.sessionID = uuid.NewString()
	}
	return o, nil
}

func (o *Orchestrator) SessionID() string { return o.sessionID }

// Stats describes how the orchestrator is configured.
type Stats struct {
	SessionID    string                      `json:"session_id"`
	Phases       []string                    `json:"phases"`
	BufferSize   int                         `json:"buffer_size"`
	Backpressure stream.BackpressureStrategy `json:"backpressure"`
}

func (o *Orchestrator) Stats() Stats {
	names := make([]string, len(o.config.Phases))
	for i, p := range o.config.Phases {
		names[i] = p.Name()
	}
	return Stats{
		SessionID:    o.sessionID,
		Phases:       names,
		BufferSize:   o.config.Stream.BufferSize,
		Backpressure: o.config.Stream.Backpressure,
	}
}

// Stream starts generation on its own goroutine and returns at once. The
// receiver yields events until Complete, after which it is closed; the
// close is the only completion signal. Cancelling ctx behaves like
// Control.Cancel.
func (o *Orchestrator) Stream(ctx context.Context) (*stream.Receiver[events.Event], *stream.Control) {
	tx, rx := stream.NewChannel[events.Event](o.config.Stream)
	control := stream.NewControl()

	r := &run{
		tx:           tx,
		control:      control,
		controller:   o.controller,
		pollInterval: o.config.PollInterval,
		logger:       o.logger.WithField("session", o.sessionID),
		start:        time.Now(),
	}
	if o.config.Stream.EnableProgress {
		r.progressEvery = o.config.Stream.ProgressInterval
	}
	r.pressure = stream.NewProducer(o.config.Stream.Backpressure, tx.Stats().Capacity)
	if o.config.Stream.AdaptiveRate {
		r.pressure.WithAdaptive(stream.NewAdaptiveDelay())
		r.throttle = true
	}

	go o.runGeneration(ctx, r)

	return rx, control
}

func (o *Orchestrator) runGeneration(ctx context.Context, r *run) {
	defer r.tx.Close()

	r.logger.Debugf("generation started with %d phases", len(o.config.Phases))

	// the first snapshot must reach the consumer ahead of any data
	if !r.sendReliable(ctx, r.progressEvent("initializing")) {
		return
	}

	var completed []string
	for _, phase := range o.config.Phases {
		if r.control.IsCancelled() || ctx.Err() != nil {
			r.logger.Debugf("cancelled before phase %s", phase.Name())
			break
		}
		if r.control.IsPaused() {
			if !r.control.WaitWhilePaused(ctx, r.pollInterval) {
				r.logger.Debugf("cancelled while paused before phase %s", phase.Name())
				break
			}
		}
		if r.controller != nil && r.controller.CurrentLevel().ShouldTerminate() {
			r.logger.Warnf("degradation at %s, not starting phase %s", r.controller.CurrentLevel(), phase.Name())
			break
		}

		r.remaining = nil
		if !r.sendProgress(ctx, phase.Name()) {
			return
		}

		ok := o.runPhase(ctx, r, phase)
		if r.gone {
			return
		}

		if !r.sendReliable(ctx, events.NewDataEvent(events.PhaseComplete{Phase: phase.Name()})) {
			return
		}
		if ok {
			completed = append(completed, phase.Name())
		}

		if !r.sendProgress(ctx, phase.Name()) {
			return
		}
	}

	summary := events.NewSummary(r.items, time.Since(r.start))
	summary.SessionID = o.sessionID
	summary.ErrorCount = r.errors
	summary.DroppedCount = r.tx.Stats().ItemsDropped
	if completed != nil {
		summary.PhasesCompleted = completed
	}
	if o.peakMemory != nil {
		summary.PeakMemoryMB = o.peakMemory()
	}

	pressure := r.pressure.Stats()
	r.logger.WithFields(logrus.Fields{
		"fill_ratio": fmt.Sprintf("%.2f", pressure.FillRatio),
		"dropped":    pressure.ItemsDropped,
		"blocked_ms": pressure.BlockedTime.Milliseconds(),
		"events":     pressure.Events,
	}).Debug("stream backpressure")

	if r.sendReliable(ctx, events.NewCompleteEvent(summary)) {
		r.logger.Debugf("generation complete: %d items, %d dropped, %d errors",
			summary.TotalItems, summary.DroppedCount, summary.ErrorCount)
	}
}

// runPhase reports whether the phase ran to completion.
func (o *Orchestrator) runPhase(ctx context.Context, r *run, phase Phase) (ok bool) {
	fn, found := o.registry[phase]
	if !found {
		r.logger.Debugf("no generator registered for phase %s", phase.Name())
		return true
	}

	em := newEmitter(r, phase)
	defer func() {
		if p := recover(); p != nil {
			r.errors++
			em.logger.Errorf("phase panicked: %v", p)
			ok = false
		}
	}()

	err := fn(ctx, em)
	switch {
	case err == nil:
	case errors.Is(err, stream.ErrReceiverClosed):
		r.gone = true
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	default:
		r.errors++
		em.logger.Errorf("phase failed: %v", err)
		return false
	}

	em.logger.Debugf("phase emitted %d items", em.items)
	return !em.interrupted
}

// run is the state of one stream session. It is only touched by the
// producer goroutine.
type run struct {
	tx           *stream.Sender[events.Event]
	control      *stream.Control
	controller   *degradation.Controller
	pollInterval time.Duration
	logger       *logrus.Entry
	start        time.Time

	// pressure follows the buffer level after every data send; throttle
	// makes the producer honour its recommended delay
	pressure *stream.Producer
	throttle bool

	progressEvery uint64
	items         uint64
	remaining     *uint64
	errors        uint64

	// gone is set once the consumer closed its end
	gone bool
}

func (r *run) send(ctx context.Context, event events.Event) bool {
	if r.gone {
		return false
	}
	_, err := r.tx.Send(ctx, event)
	return r.handleSendError(err)
}

func (r *run) sendReliable(ctx context.Context, event events.Event) bool {
	if r.gone {
		return false
	}
	return r.handleSendError(r.tx.SendReliable(ctx, event))
}

func (r *run) handleSendError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, stream.ErrReceiverClosed) {
		r.logger.Debug("receiver closed, stopping generation")
		r.gone = true
	} else {
		r.logger.Debugf("send aborted: %v", err)
	}
	return false
}

// sendProgress emits a snapshot. Phase boundaries always report progress;
// EnableProgress only gates the periodic in-phase snapshots.
func (r *run) sendProgress(ctx context.Context, phase string) bool {
	return r.send(ctx, r.progressEvent(phase))
}

func (r *run) progressEvent(phase string) events.Event {
	p := events.NewProgress(phase)
	p.Update(r.items, time.Since(r.start))
	p.SetRemaining(r.remaining)
	fill := r.tx.Stats().FillRatio()
	p.BufferFillRatio = &fill
	if r.controller != nil {
		p.DegradationLevel = r.controller.CurrentLevel().String()
	}
	return events.NewProgressEvent(p)
}

// pace follows the buffer level and, with AdaptiveRate, holds the producer
// back while the consumer catches up. It returns false when ctx ended
// during the pause.
func (r *run) pace(ctx context.Context) bool {
	prev := r.pressure.State()
	if state := r.pressure.Observe(r.tx.Stats()); state != prev {
		r.logger.Debugf("backpressure %s -> %s", prev, state)
	}
	if !r.throttle {
		return true
	}

	delay := r.pressure.RecommendedDelay()
	if delay <= 0 {
		return true
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
