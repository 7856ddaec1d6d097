package sink

import (
	"context"
	"time"

	"github.com/datasynth/synth/pkg/events"
)

// Sink processes events
type Sink interface {
	// Process handles an incoming event
	Process(ctx context.Context, event events.Event) error

	// Name returns the sink identifier
	Name() string

	// Flush writes out anything the sink buffers
	Flush(ctx context.Context) error

	// Close any resources that need cleanup
	Close() error
}

// Record is the serialized form of an event shared by the file based
// sinks.
type Record struct {
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp"`
	ItemType  string      `json:"item_type,omitempty"`
	Payload   interface{} `json:"payload"`
}

// NewRecord converts event into a Record. ok is false for unknown events.
func NewRecord(event events.Event) (record Record, ok bool) {
	record = Record{
		Type:      string(event.Type()),
		Timestamp: event.Timestamp().Format(time.RFC3339Nano),
	}

	switch e := event.(type) {
	case events.DataEvent:
		record.ItemType = e.Item.ItemType()
		record.Payload = e.Item
	case events.ProgressEvent:
		record.Payload = e.Progress
	case events.CompleteEvent:
		record.Payload = e.Summary
	default:
		return Record{}, false
	}
	return record, true
}
