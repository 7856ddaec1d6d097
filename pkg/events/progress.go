package events

import "time"

// Progress is a snapshot of how far a stream has got.
type Progress struct {
	Phase          string  `json:"phase"`
	ItemsGenerated uint64  `json:"items_generated"`
	ItemsRemaining *uint64 `json:"items_remaining,omitempty"`
	ElapsedMS      uint64  `json:"elapsed_ms"`
	ItemsPerSecond float64 `json:"items_per_second"`
	// ETAMS is the estimated time left, present when ItemsRemaining is
	ETAMS *uint64 `json:"eta_ms,omitempty"`
	// BufferFillRatio is the stream channel occupancy when it was taken
	BufferFillRatio  *float64 `json:"buffer_fill_ratio,omitempty"`
	DegradationLevel string   `json:"degradation_level,omitempty"`
}

func NewProgress(phase string) Progress {
	return Progress{Phase: phase}
}

// Update sets the cumulative count and elapsed time and derives the rate.
func (p *Progress) Update(items uint64, elapsed time.Duration) {
	p.ItemsGenerated = items
	p.ElapsedMS = uint64(elapsed.Milliseconds())
	p.ItemsPerSecond = rate(items, p.ElapsedMS)
	p.updateETA()
}

// SetRemaining records how many items are still expected, nil if unknown.
func (p *Progress) SetRemaining(remaining *uint64) {
	if remaining == nil {
		p.ItemsRemaining = nil
	} else {
		v := *remaining
		p.ItemsRemaining = &v
	}
	p.updateETA()
}

// ETA estimates the time left from the remaining count and the current
// rate. It is zero while no rate is known and false when nothing is known
// about the remaining items.
func (p Progress) ETA() (time.Duration, bool) {
	if p.ItemsRemaining == nil {
		return 0, false
	}
	if p.ItemsPerSecond <= 0 {
		return 0, true
	}
	seconds := float64(*p.ItemsRemaining) / p.ItemsPerSecond
	return time.Duration(seconds * float64(time.Second)), true
}

func (p *Progress) updateETA() {
	eta, ok := p.ETA()
	if !ok {
		p.ETAMS = nil
		return
	}
	ms := uint64(eta.Milliseconds())
	p.ETAMS = &ms
}

// Summary is carried by the final CompleteEvent of a stream.
type Summary struct {
	SessionID         string   `json:"session_id,omitempty"`
	TotalItems        uint64   `json:"total_items"`
	TotalTimeMS       uint64   `json:"total_time_ms"`
	AvgItemsPerSecond float64  `json:"avg_items_per_second"`
	ErrorCount        uint64   `json:"error_count"`
	DroppedCount      uint64   `json:"dropped_count"`
	PeakMemoryMB      *uint64  `json:"peak_memory_mb,omitempty"`
	PhasesCompleted   []string `json:"phases_completed"`
}

func NewSummary(totalItems uint64, elapsed time.Duration) Summary {
	ms := uint64(elapsed.Milliseconds())
	return Summary{
		TotalItems:        totalItems,
		TotalTimeMS:       ms,
		AvgItemsPerSecond: rate(totalItems, ms),
		PhasesCompleted:   []string{},
	}
}

func rate(items, elapsedMS uint64) float64 {
	if elapsedMS == 0 {
		return 0
	}
	return float64(items) / (float64(elapsedMS) / 1000.0)
}
