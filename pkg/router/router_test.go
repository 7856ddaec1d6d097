package router

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/datasynth/synth/pkg/degradation"
	"github.com/datasynth/synth/pkg/events"
	"github.com/datasynth/synth/pkg/orchestrator"
	"github.com/datasynth/synth/pkg/sink"
	"github.com/datasynth/synth/pkg/stream"
	log "github.com/sirupsen/logrus"
)

type testItem struct {
	N int `json:"n"`
}

func (testItem) ItemType() string { return "test_item" }

// MockSink for testing
type MockSink struct {
	name         string
	processErr   error
	closeErr     error
	flushedCount int
	closed       bool
	mu           sync.Mutex
	events       []events.Event
}

func (m *MockSink) Name() string {
	return m.name
}

func (m *MockSink) Process(ctx context.Context, event events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.processErr
}

func (m *MockSink) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushedCount++
	return nil
}

func (m *MockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.closeErr
}

func (m *MockSink) GetFlushedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushedCount
}

func (m *MockSink) GetEvents() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]events.Event(nil), m.events...)
}

func (m *MockSink) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func testLogger() *log.Logger {
	logger := log.New()
	logger.SetLevel(log.ErrorLevel)
	return logger
}

func newStream(t *testing.T) (*stream.Sender[events.Event], *stream.Receiver[events.Event]) {
	t.Helper()
	cfg := stream.DefaultConfig()
	cfg.BufferSize = 100
	return stream.NewChannel[events.Event](cfg)
}

func send(t *testing.T, tx *stream.Sender[events.Event], evs ...events.Event) {
	t.Helper()
	for _, e := range evs {
		if err := tx.SendReliable(context.Background(), e); err != nil {
			t.Fatalf("send failed: %v", err)
		}
	}
}

func TestRouter_DrainToCompletion(t *testing.T) {
	sink1 := &MockSink{name: "sink1"}
	sink2 := &MockSink{name: "sink2"}
	router := New([]sink.Sink{sink1, sink2}, nil, testLogger(), Config{FlushInterval: time.Hour})

	tx, rx := newStream(t)
	send(t, tx,
		events.NewProgressEvent(events.Progress{Phase: "master_data"}),
		events.NewDataEvent(testItem{N: 1}),
		events.NewDataEvent(testItem{N: 2}),
		events.NewDataEvent(events.PhaseComplete{Phase: "master_data"}),
		events.NewCompleteEvent(events.Summary{SessionID: "s-1", TotalItems: 2}),
	)
	tx.Close()

	summary, err := router.Drain(context.Background(), rx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary == nil || summary.SessionID != "s-1" || summary.TotalItems != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	for _, snk := range []*MockSink{sink1, sink2} {
		evts := snk.GetEvents()
		if len(evts) != 5 {
			t.Errorf("%s expected 5 events, got %d", snk.name, len(evts))
		}
		if evts[1].(events.DataEvent).Item.(testItem).N != 1 || evts[2].(events.DataEvent).Item.(testItem).N != 2 {
			t.Errorf("%s received events out of order", snk.name)
		}
		if snk.GetFlushedCount() < 1 {
			t.Errorf("%s expected a final flush", snk.name)
		}
		if !snk.IsClosed() {
			t.Errorf("%s expected to be closed", snk.name)
		}
	}

	stats := router.Stats()
	if stats.Events != 5 {
		t.Errorf("expected 5 events, got %d", stats.Events)
	}
	if stats.DataItems != 2 {
		t.Errorf("expected 2 data items, got %d", stats.DataItems)
	}
}

func TestRouter_ClosedWithoutComplete(t *testing.T) {
	snk := &MockSink{name: "sink"}
	router := New([]sink.Sink{snk}, nil, testLogger(), Config{FlushInterval: time.Hour})

	tx, rx := newStream(t)
	send(t, tx, events.NewDataEvent(testItem{N: 1}))
	tx.Close()

	summary, err := router.Drain(context.Background(), rx)
	if !errors.Is(err, ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
	if summary != nil {
		t.Errorf("expected no summary, got %+v", summary)
	}
	if !snk.IsClosed() {
		t.Error("expected sink to be closed")
	}
}

func TestRouter_FlushInterval(t *testing.T) {
	snk := &MockSink{name: "sink"}
	router := New([]sink.Sink{snk}, nil, testLogger(), Config{FlushInterval: 20 * time.Millisecond})

	tx, rx := newStream(t)
	go func() {
		time.Sleep(110 * time.Millisecond)
		tx.SendReliable(context.Background(), events.NewCompleteEvent(events.Summary{}))
		tx.Close()
	}()

	if _, err := router.Drain(context.Background(), rx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 20, 40, 60, 80, 100ms plus the final flush
	if got := snk.GetFlushedCount(); got < 4 {
		t.Errorf("expected at least 4 flushes, got %d", got)
	}
}

func TestRouter_ImmediateFlushWhenDegraded(t *testing.T) {
	controller := degradation.NewController(degradation.DefaultConfig())
	controller.ForceLevel(degradation.Minimal)

	snk := &MockSink{name: "sink"}
	router := New([]sink.Sink{snk}, controller, testLogger(), Config{FlushInterval: time.Hour})

	tx, rx := newStream(t)
	send(t, tx,
		events.NewDataEvent(testItem{N: 1}),
		events.NewDataEvent(testItem{N: 2}),
		events.NewCompleteEvent(events.Summary{}),
	)
	tx.Close()

	if _, err := router.Drain(context.Background(), rx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// One flush per event plus the final flush
	if got := snk.GetFlushedCount(); got != 4 {
		t.Errorf("expected 4 flushes, got %d", got)
	}
}

func TestRouter_ContextCancelClosesReceiver(t *testing.T) {
	snk := &MockSink{name: "sink"}
	router := New([]sink.Sink{snk}, nil, testLogger(), Config{FlushInterval: time.Hour})

	tx, rx := newStream(t)
	send(t, tx, events.NewDataEvent(testItem{N: 1}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := router.Drain(ctx, rx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if !rx.IsClosed() {
		t.Error("expected receiver to be closed")
	}
	if !snk.IsClosed() {
		t.Error("expected sink to be closed")
	}

	if _, err := tx.Send(context.Background(), events.NewDataEvent(testItem{N: 2})); !errors.Is(err, stream.ErrReceiverClosed) {
		t.Errorf("expected ErrReceiverClosed, got %v", err)
	}
}

func TestRouter_SinkErrorDoesNotStopOthers(t *testing.T) {
	failing := &MockSink{name: "failing", processErr: errors.New("disk full")}
	healthy := &MockSink{name: "healthy"}
	router := New([]sink.Sink{failing, healthy}, nil, testLogger(), Config{FlushInterval: time.Hour})

	tx, rx := newStream(t)
	send(t, tx,
		events.NewDataEvent(testItem{N: 1}),
		events.NewCompleteEvent(events.Summary{}),
	)
	tx.Close()

	if _, err := router.Drain(context.Background(), rx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(healthy.GetEvents()); got != 2 {
		t.Errorf("expected healthy sink to get 2 events, got %d", got)
	}
	if got := router.Stats().SinkErrors; got != 2 {
		t.Errorf("expected 2 sink errors, got %d", got)
	}
}

func TestRouter_DrainsOrchestratorStream(t *testing.T) {
	registry := orchestrator.Registry{
		orchestrator.MasterData: func(ctx context.Context, e *orchestrator.Emitter) error {
			for i := 0; i < 10; i++ {
				if !e.Emit(ctx, testItem{N: i}) {
					return nil
				}
			}
			return nil
		},
	}

	cfg := orchestrator.DefaultConfig()
	cfg.Phases = []orchestrator.Phase{orchestrator.MasterData}
	orch, err := orchestrator.New(cfg, registry, testLogger(), orchestrator.WithSessionID("s-42"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snk := &MockSink{name: "sink"}
	router := New([]sink.Sink{snk}, nil, testLogger(), Config{FlushInterval: time.Hour})

	rx, _ := orch.Stream(context.Background())
	summary, err := router.Drain(context.Background(), rx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.SessionID != "s-42" {
		t.Errorf("expected session s-42, got %s", summary.SessionID)
	}
	if summary.TotalItems != 10 {
		t.Errorf("expected 10 items, got %d", summary.TotalItems)
	}
	if len(summary.PhasesCompleted) != 1 || summary.PhasesCompleted[0] != "master_data" {
		t.Errorf("unexpected completed phases: %v", summary.PhasesCompleted)
	}
	if got := router.Stats().DataItems; got != 10 {
		t.Errorf("expected 10 data items, got %d", got)
	}
}

func TestRouter_CloseErrors(t *testing.T) {
	t.Run("after complete", func(t *testing.T) {
		snk := &MockSink{name: "sink", closeErr: errors.New("close failed")}
		router := New([]sink.Sink{snk}, nil, testLogger(), Config{FlushInterval: time.Hour})

		tx, rx := newStream(t)
		send(t, tx, events.NewCompleteEvent(events.Summary{SessionID: "s-1"}))
		tx.Close()

		summary, err := router.Drain(context.Background(), rx)
		if err == nil || err.Error() != "close failed" {
			t.Fatalf("expected the close error, got %v", err)
		}
		if summary == nil || summary.SessionID != "s-1" {
			t.Errorf("expected the summary alongside the error, got %+v", summary)
		}
		if got := router.Stats().SinkErrors; got != 1 {
			t.Errorf("expected 1 sink error, got %d", got)
		}
	})

	t.Run("on abort", func(t *testing.T) {
		snk := &MockSink{name: "sink", closeErr: errors.New("close failed")}
		router := New([]sink.Sink{snk}, nil, testLogger(), Config{FlushInterval: time.Hour})

		_, rx := newStream(t)
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := router.Drain(ctx, rx)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected context.DeadlineExceeded, got %v", err)
		}
		if !snk.IsClosed() {
			t.Error("expected sink to be closed")
		}
		if got := router.Stats().SinkErrors; got != 1 {
			t.Errorf("expected the close error to be counted, got %d", got)
		}
	})
}
