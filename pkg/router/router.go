package router

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/datasynth/synth/pkg/degradation"
	"github.com/datasynth/synth/pkg/events"
	"github.com/datasynth/synth/pkg/sink"
	"github.com/datasynth/synth/pkg/stream"
	log "github.com/sirupsen/logrus"
)

// ErrIncomplete is returned when a stream closes without a Complete event.
var ErrIncomplete = errors.New("stream closed before completion")

// Router drains a generation stream into multiple sinks
type Router struct {
	sinks      []sink.Sink
	controller *degradation.Controller

	flushInterval time.Duration
	logger        *log.Logger

	events     atomic.Uint64
	dataItems  atomic.Uint64
	sinkErrors atomic.Uint64
}

// Config holds router configuration
type Config struct {
	FlushInterval time.Duration
}

// Stats counts what a router has seen so far.
type Stats struct {
	Events     uint64
	DataItems  uint64
	SinkErrors uint64
}

// New creates a new router. controller may be nil.
func New(sinks []sink.Sink, controller *degradation.Controller, logger *log.Logger, config Config) *Router {
	if config.FlushInterval <= 0 {
		config.FlushInterval = time.Second
	}
	return &Router{
		sinks:         sinks,
		controller:    controller,
		flushInterval: config.FlushInterval,
		logger:        logger,
	}
}

func (r *Router) Stats() Stats {
	return Stats{
		Events:     r.events.Load(),
		DataItems:  r.dataItems.Load(),
		SinkErrors: r.sinkErrors.Load(),
	}
}

// Drain consumes rx until it closes, passing every event to all sinks in
// order. Sinks are flushed on a ticker, after every event while the
// controller asks for immediate flushes, and once more before they are
// closed. If ctx ends first the receiver is closed so the producer stops.
func (r *Router) Drain(ctx context.Context, rx *stream.Receiver[events.Event]) (*events.Summary, error) {
	r.logger.Infof("Draining stream into %d sinks", len(r.sinks))

	pumpCtx, stopPump := context.WithCancel(ctx)
	defer stopPump()
	eventChan := pump(pumpCtx, rx)

	flushTicker := time.NewTicker(r.flushInterval)
	defer flushTicker.Stop()

	var summary *events.Summary
	for {
		select {
		case <-ctx.Done():
			return summary, r.abort(rx, ctx.Err())

		case event, ok := <-eventChan:
			if !ok {
				if err := ctx.Err(); err != nil {
					return summary, r.abort(rx, err)
				}
				r.flush(ctx)
				if err := r.shutdown(); err != nil {
					return summary, err
				}
				if summary == nil {
					return nil, ErrIncomplete
				}
				return summary, nil
			}

			r.dispatch(ctx, event)
			if complete, ok := event.(events.CompleteEvent); ok {
				s := complete.Summary
				summary = &s
			}
			if r.controller != nil && r.controller.Actions().ImmediateFlush {
				r.flush(ctx)
			}

		case <-flushTicker.C:
			r.flush(ctx)
		}
	}
}

// abort stops the producer and closes the sinks after ctx ended.
func (r *Router) abort(rx *stream.Receiver[events.Event], cause error) error {
	r.logger.Println("Router shutting down")
	rx.Close()
	r.flush(context.Background())
	// close errors are logged and counted by shutdown, cause is what Drain reports
	_ = r.shutdown()
	return cause
}

func pump(ctx context.Context, rx *stream.Receiver[events.Event]) <-chan events.Event {
	out := make(chan events.Event)
	go func() {
		defer close(out)
		for {
			event, ok := rx.Recv(ctx)
			if !ok {
				return
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (r *Router) dispatch(ctx context.Context, event events.Event) {
	r.events.Add(1)
	if events.IsData(event) {
		r.dataItems.Add(1)
	}

	for _, snk := range r.sinks {
		if err := snk.Process(ctx, event); err != nil {
			r.sinkErrors.Add(1)
			r.logger.Warnf("Sink %s error processing %s event: %v", snk.Name(), event.Type(), err)
		}
	}
}

func (r *Router) flush(ctx context.Context) {
	for _, snk := range r.sinks {
		if err := snk.Flush(ctx); err != nil {
			r.sinkErrors.Add(1)
			r.logger.Warnf("Sink %s flush error: %v", snk.Name(), err)
		}
	}
}

// shutdown closes all sinks
func (r *Router) shutdown() error {
	r.logger.Println("Closing all sinks")
	var firstErr error
	for _, snk := range r.sinks {
		if err := snk.Close(); err != nil {
			r.sinkErrors.Add(1)
			r.logger.Warnf("Sink %s close error: %v", snk.Name(), err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
