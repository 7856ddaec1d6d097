package events

import (
	"time"
)

// Event is the base interface for everything sent on a generation stream
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// EventType represents the type of event
type EventType string

const (
	EventTypeData     EventType = "data"
	EventTypeProgress EventType = "progress"
	EventTypeComplete EventType = "complete"
)

// BaseEvent provides common event fields
type BaseEvent struct {
	EventTimestamp time.Time
	EventType      EventType
}

func (e BaseEvent) Timestamp() time.Time {
	return e.EventTimestamp
}

func (e BaseEvent) Type() EventType {
	return e.EventType
}

// DataEvent carries one generated item
type DataEvent struct {
	BaseEvent
	Item Item
}

func NewDataEvent(item Item) DataEvent {
	return DataEvent{
		BaseEvent: BaseEvent{EventTimestamp: time.Now(), EventType: EventTypeData},
		Item:      item,
	}
}

// ProgressEvent carries a progress snapshot
type ProgressEvent struct {
	BaseEvent
	Progress Progress
}

func NewProgressEvent(p Progress) ProgressEvent {
	return ProgressEvent{
		BaseEvent: BaseEvent{EventTimestamp: time.Now(), EventType: EventTypeProgress},
		Progress:  p,
	}
}

// CompleteEvent is the last event of a stream
type CompleteEvent struct {
	BaseEvent
	Summary Summary
}

func NewCompleteEvent(s Summary) CompleteEvent {
	return CompleteEvent{
		BaseEvent: BaseEvent{EventTimestamp: time.Now(), EventType: EventTypeComplete},
		Summary:   s,
	}
}

// IsData reports whether e carries a domain item, as opposed to a
// PhaseComplete or Progress marker.
func IsData(e Event) bool {
	d, ok := e.(DataEvent)
	if !ok {
		return false
	}
	return !IsControlItem(d.Item)
}
