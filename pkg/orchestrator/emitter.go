package orchestrator

import (
	"context"

	"github.com/datasynth/synth/pkg/degradation"
	"github.com/datasynth/synth/pkg/events"
	"github.com/sirupsen/logrus"
)

// Emitter is handed to a PhaseFunc. It owns the safe points of the item
// loop: every Emit observes cancellation and pause before sending.
// An Emitter is only valid for the duration of its phase.
type Emitter struct {
	run    *run
	phase  Phase
	items  uint64
	logger *logrus.Entry

	// interrupted is set once the phase was told to stop early
	interrupted bool
}

func newEmitter(r *run, phase Phase) *Emitter {
	return &Emitter{
		run:    r,
		phase:  phase,
		logger: r.logger.WithField("phase", phase.Name()),
	}
}

// Emit sends item as a Data event. It returns false when the phase must
// stop: the stream was cancelled, the consumer went away or ctx ended.
// An item dropped by backpressure still returns true.
func (e *Emitter) Emit(ctx context.Context, item events.Item) bool {
	if e.stopRequested(ctx) {
		e.interrupted = true
		return false
	}
	if e.run.control.IsPaused() {
		if !e.run.control.WaitWhilePaused(ctx, e.run.pollInterval) {
			e.interrupted = true
			return false
		}
	}

	if !e.run.send(ctx, events.NewDataEvent(item)) {
		e.interrupted = true
		return false
	}

	e.items++
	e.run.items++
	if e.run.remaining != nil && *e.run.remaining > 0 {
		*e.run.remaining--
	}

	if !e.run.pace(ctx) {
		e.interrupted = true
		return false
	}

	if e.run.progressEvery > 0 && e.items%e.run.progressEvery == 0 {
		if !e.run.sendProgress(ctx, e.phase.Name()) {
			e.interrupted = true
			return false
		}
	}
	return true
}

// SetRemaining records how many items the phase still expects to emit. It
// is carried by Progress events and counted down by Emit.
func (e *Emitter) SetRemaining(n uint64) {
	e.run.remaining = &n
}

// Actions returns the throttling knobs for the current degradation level,
// Normal actions when no controller is attached.
func (e *Emitter) Actions() degradation.Actions {
	if e.run.controller == nil {
		return degradation.ActionsForLevel(degradation.Normal)
	}
	return e.run.controller.Actions()
}

// ShouldStop reports whether the phase should finish early, either because
// the stream is stopping or because degradation reached terminate.
func (e *Emitter) ShouldStop(ctx context.Context) bool {
	if e.stopRequested(ctx) || e.Actions().Terminate {
		e.interrupted = true
		return true
	}
	return false
}

// Items is the number of items this phase emitted so far.
func (e *Emitter) Items() uint64 { return e.items }

func (e *Emitter) Logger() *logrus.Entry { return e.logger }

func (e *Emitter) Phase() Phase { return e.phase }

func (e *Emitter) stopRequested(ctx context.Context) bool {
	return e.run.gone || e.run.control.IsCancelled() || ctx.Err() != nil
}
