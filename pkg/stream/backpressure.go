package stream

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	DefaultHighWatermark = 0.8
	DefaultLowWatermark  = 0.5

	DefaultTargetFill     = 0.7
	DefaultMaxDelay       = 10 * time.Millisecond
	DefaultAdjustInterval = 100 * time.Millisecond

	// used when no adaptive delay is configured
	slowDownDelay = 100 * time.Microsecond
	blockedDelay  = time.Millisecond
)

// PressureStats is a snapshot of a Monitor.
type PressureStats struct {
	Strategy      BackpressureStrategy `json:"strategy"`
	FillRatio     float64              `json:"fill_ratio"`
	ItemsDropped  uint64               `json:"items_dropped"`
	BlockedTime   time.Duration        `json:"blocked_time_ns"`
	Events        uint64               `json:"backpressure_events"`
	UnderPressure bool                 `json:"under_pressure"`
}

// Monitor tracks buffer occupancy against a high and a low watermark.
// Safe for concurrent use.
type Monitor struct {
	strategy BackpressureStrategy
	capacity int
	high     float64
	low      float64

	fill      atomic.Int64
	dropped   atomic.Uint64
	blockedNS atomic.Int64
	events    atomic.Uint64
}

func NewMonitor(strategy BackpressureStrategy, capacity int) *Monitor {
	if capacity < 1 {
		capacity = 1
	}
	return &Monitor{
		strategy: strategy,
		capacity: capacity,
		high:     DefaultHighWatermark,
		low:      DefaultLowWatermark,
	}
}

// WithWatermarks sets both thresholds. high is clamped to [0, 1] and low
// to [0, high].
func (m *Monitor) WithWatermarks(high, low float64) *Monitor {
	m.high = clamp(high, 0, 1)
	m.low = clamp(low, 0, m.high)
	return m
}

func (m *Monitor) UpdateFill(buffered int) { m.fill.Store(int64(buffered)) }

// FillRatio can exceed 1 when overflow slots are in use.
func (m *Monitor) FillRatio() float64 {
	return float64(m.fill.Load()) / float64(m.capacity)
}

func (m *Monitor) ShouldApplyBackpressure() bool { return m.FillRatio() >= m.high }

func (m *Monitor) HasRecovered() bool { return m.FillRatio() <= m.low }

func (m *Monitor) RecordBackpressure()               { m.events.Add(1) }
func (m *Monitor) RecordDropped(n uint64)            { m.dropped.Add(n) }
func (m *Monitor) RecordBlockedTime(d time.Duration) { m.blockedNS.Add(int64(d)) }
func (m *Monitor) Strategy() BackpressureStrategy    { return m.strategy }

func (m *Monitor) Stats() PressureStats {
	return PressureStats{
		Strategy:      m.strategy,
		FillRatio:     m.FillRatio(),
		ItemsDropped:  m.dropped.Load(),
		BlockedTime:   time.Duration(m.blockedNS.Load()),
		Events:        m.events.Load(),
		UnderPressure: m.ShouldApplyBackpressure(),
	}
}

// AdaptiveDelay steers a per-item producer delay so the buffer settles
// around a target fill ratio. The delay is re-evaluated at most once per
// adjust interval.
type AdaptiveDelay struct {
	target   float64
	min      time.Duration
	max      time.Duration
	interval time.Duration

	mu      sync.Mutex
	current time.Duration
	last    time.Time
	now     func() time.Time
}

func NewAdaptiveDelay() *AdaptiveDelay {
	return &AdaptiveDelay{
		target:   DefaultTargetFill,
		max:      DefaultMaxDelay,
		interval: DefaultAdjustInterval,
		last:     time.Now(),
		now:      time.Now,
	}
}

// WithTargetFill sets the fill ratio to hold, clamped to [0.1, 0.9].
func (a *AdaptiveDelay) WithTargetFill(target float64) *AdaptiveDelay {
	a.target = clamp(target, 0.1, 0.9)
	return a
}

func (a *AdaptiveDelay) WithBounds(lo, hi time.Duration) *AdaptiveDelay {
	if hi < lo {
		hi = lo
	}
	a.min, a.max = lo, hi
	a.current = a.bound(a.current)
	return a
}

// Adjust applies a proportional step towards the target fill.
func (a *AdaptiveDelay) Adjust(fill float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if now.Sub(a.last) < a.interval {
		return
	}
	a.last = now

	diff := fill - a.target
	var next float64
	if a.current == 0 && diff > 0 {
		// start from a tenth of the ceiling, at least a microsecond
		step := a.max / 10
		if step < time.Microsecond {
			step = time.Microsecond
		}
		next = float64(step) * diff * 2
	} else {
		next = float64(a.current) * (1 + diff*0.5)
	}
	if next < 0 {
		next = 0
	}
	a.current = a.bound(time.Duration(next))
}

func (a *AdaptiveDelay) Current() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

func (a *AdaptiveDelay) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = a.min
}

func (a *AdaptiveDelay) bound(d time.Duration) time.Duration {
	if d < a.min {
		return a.min
	}
	if d > a.max {
		return a.max
	}
	return d
}

// PressureState is where a producer sits relative to the watermarks.
type PressureState int

const (
	PressureNormal PressureState = iota
	PressureSlowingDown
	PressureBlocked
	PressureRecovering
)

func (s PressureState) String() string {
	switch s {
	case PressureNormal:
		return "normal"
	case PressureSlowingDown:
		return "slowing_down"
	case PressureBlocked:
		return "blocked"
	case PressureRecovering:
		return "recovering"
	}
	return "unknown"
}

// Producer follows a channel's fill level and recommends how long the
// producing goroutine should pause before its next send. It is owned by
// that goroutine.
type Producer struct {
	monitor  *Monitor
	adaptive *AdaptiveDelay
	state    PressureState

	lastDropped uint64
	lastBlocked time.Duration
}

func NewProducer(strategy BackpressureStrategy, capacity int) *Producer {
	return &Producer{monitor: NewMonitor(strategy, capacity)}
}

// WithAdaptive derives the slow-down delay from an AdaptiveDelay instead of
// a fixed pause.
func (p *Producer) WithAdaptive(a *AdaptiveDelay) *Producer {
	p.adaptive = a
	return p
}

// Update moves the state machine for the given number of buffered items.
func (p *Producer) Update(buffered int) PressureState {
	p.monitor.UpdateFill(buffered)
	ratio := p.monitor.FillRatio()

	if p.adaptive != nil {
		p.adaptive.Adjust(ratio)
	}

	switch {
	case ratio >= 1:
		p.state = PressureBlocked
	case p.monitor.ShouldApplyBackpressure():
		if p.state == PressureNormal {
			p.monitor.RecordBackpressure()
		}
		p.state = PressureSlowingDown
	case p.monitor.HasRecovered():
		p.state = PressureNormal
	case p.state == PressureSlowingDown:
		p.state = PressureRecovering
	}
	return p.state
}

// Observe feeds a channel snapshot: fill level plus the drops and blocked
// time accumulated since the previous call.
func (p *Producer) Observe(s Stats) PressureState {
	if s.ItemsDropped > p.lastDropped {
		p.monitor.RecordDropped(s.ItemsDropped - p.lastDropped)
		p.lastDropped = s.ItemsDropped
	}
	if s.BlockedTime > p.lastBlocked {
		p.monitor.RecordBlockedTime(s.BlockedTime - p.lastBlocked)
		p.lastBlocked = s.BlockedTime
	}
	return p.Update(s.BufferLen)
}

func (p *Producer) State() PressureState { return p.state }

// RecommendedDelay is the pause to take before the next send.
func (p *Producer) RecommendedDelay() time.Duration {
	switch p.state {
	case PressureSlowingDown, PressureRecovering:
		if p.adaptive != nil {
			return p.adaptive.Current()
		}
		return slowDownDelay
	case PressureBlocked:
		return blockedDelay
	}
	return 0
}

func (p *Producer) Stats() PressureStats { return p.monitor.Stats() }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
