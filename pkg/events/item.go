package events

// Item is a generated payload carried by a DataEvent. Domain types
// implement it; ItemType is a stable snake_case name used by sinks.
type Item interface {
	ItemType() string
}

const ItemTypePhaseComplete = "phase_complete"

// PhaseComplete marks the end of a phase in the data stream.
type PhaseComplete struct {
	Phase string `json:"phase"`
}

func (PhaseComplete) ItemType() string { return ItemTypePhaseComplete }

// IsControlItem reports whether item is a marker rather than domain data.
func IsControlItem(item Item) bool {
	switch item.(type) {
	case PhaseComplete, *PhaseComplete:
		return true
	}
	return false
}
