package stream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrReceiverClosed is returned by Send once the consumer has walked away.
	ErrReceiverClosed = errors.New("stream receiver closed")
	// ErrSenderClosed is returned by Send after the producer closed the stream.
	ErrSenderClosed = errors.New("stream sender closed")
	// ErrSendTimeout is returned by SendTimeout when a waiting strategy ran
	// out of time.
	ErrSendTimeout = errors.New("stream send timeout")
)

// Stats is a snapshot of channel counters.
type Stats struct {
	ItemsSent     uint64 `json:"items_sent"`
	ItemsReceived uint64 `json:"items_received"`
	ItemsDropped  uint64 `json:"items_dropped"`
	SendBlocks    uint64 `json:"send_blocks"`
	// BlockedTime is the total time the sender waited for a free slot
	BlockedTime  time.Duration `json:"blocked_time_ns"`
	BufferLen    int           `json:"buffer_len"`
	MaxBufferLen int           `json:"max_buffer_len"`
	// Capacity is the configured buffer size. Overflow slots of the Buffer
	// strategy come on top of it.
	Capacity int `json:"capacity"`
	Overflow int `json:"overflow,omitempty"`
}

// FillRatio is the buffer occupancy relative to Capacity. It goes above 1
// while the Buffer strategy is using its overflow slots.
func (s Stats) FillRatio() float64 {
	if s.Capacity == 0 {
		return 0
	}
	return float64(s.BufferLen) / float64(s.Capacity)
}

// entry is a buffered value. Pinned entries were sent with SendReliable and
// are never evicted by DropOldest.
type entry[T any] struct {
	v      T
	pinned bool
}

// channel is the state shared by one Sender and one Receiver.
type channel[T any] struct {
	mu       sync.Mutex
	buf      []entry[T]
	strategy BackpressureStrategy
	capacity int
	slots    int

	// notEmpty and notFull carry at most one pending wakeup each
	notEmpty chan struct{}
	notFull  chan struct{}

	// finished is closed by Sender.Close
	finished  chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once

	// done is closed when the receiver walks away
	done     chan struct{}
	doneOnce sync.Once

	sent       atomic.Uint64
	received   atomic.Uint64
	dropped    atomic.Uint64
	sendBlocks atomic.Uint64
	blockedNS  atomic.Int64
	maxLen     atomic.Int64
}

// Sender is the producing end. It must be used by a single goroutine.
type Sender[T any] struct {
	ch *channel[T]
}

// Receiver is the consuming end.
type Receiver[T any] struct {
	ch *channel[T]
}

// NewChannel creates a bounded channel governed by cfg.Backpressure.
func NewChannel[T any](cfg Config) (*Sender[T], *Receiver[T]) {
	capacity := cfg.BufferSize
	if capacity < 1 {
		capacity = 1
	}
	strategy := cfg.Backpressure
	if strategy == "" {
		strategy = Block
	}

	slots := capacity
	if strategy == Buffer && cfg.MaxOverflow > 0 {
		slots += cfg.MaxOverflow
	}

	ch := &channel[T]{
		buf:      make([]entry[T], 0, slots),
		strategy: strategy,
		capacity: capacity,
		slots:    slots,
		notEmpty: make(chan struct{}, 1),
		notFull:  make(chan struct{}, 1),
		finished: make(chan struct{}),
		done:     make(chan struct{}),
	}
	return &Sender[T]{ch: ch}, &Receiver[T]{ch: ch}
}

// Send delivers v according to the backpressure strategy. It returns false
// with a nil error when v itself was dropped.
func (s *Sender[T]) Send(ctx context.Context, v T) (bool, error) {
	if err := s.ch.checkOpen(); err != nil {
		return false, err
	}

	switch s.ch.strategy {
	case DropNewest:
		if s.ch.tryPush(v, false) {
			return true, nil
		}
		s.ch.dropped.Add(1)
		return false, nil
	case DropOldest:
		return s.ch.pushEvicting(v), nil
	default:
		if err := s.ch.waitPush(ctx, v, false, nil); err != nil {
			return false, err
		}
		return true, nil
	}
}

// SendReliable blocks until v is buffered whatever the strategy. Used for
// events that must never be dropped: once buffered, v is not evicted by
// DropOldest either.
func (s *Sender[T]) SendReliable(ctx context.Context, v T) error {
	if err := s.ch.checkOpen(); err != nil {
		return err
	}
	return s.ch.waitPush(ctx, v, true, nil)
}

// SendTimeout waits up to d for a free slot. When d runs out the drop
// strategies apply as usual, while Block and Buffer give up with
// ErrSendTimeout.
func (s *Sender[T]) SendTimeout(ctx context.Context, v T, d time.Duration) (bool, error) {
	if err := s.ch.checkOpen(); err != nil {
		return false, err
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	err := s.ch.waitPush(ctx, v, false, timer.C)
	if !errors.Is(err, ErrSendTimeout) {
		return err == nil, err
	}

	switch s.ch.strategy {
	case DropNewest:
		s.ch.dropped.Add(1)
		return false, nil
	case DropOldest:
		return s.ch.pushEvicting(v), nil
	}
	return false, err
}

// Close ends the stream; the receiver drains what is buffered then sees
// the channel closed. Idempotent.
func (s *Sender[T]) Close() {
	s.ch.closeOnce.Do(func() {
		s.ch.mu.Lock()
		s.ch.closed.Store(true)
		s.ch.mu.Unlock()
		close(s.ch.finished)
	})
}

func (s *Sender[T]) Stats() Stats { return s.ch.stats() }

// Recv waits for the next item. ok is false once the stream is closed and
// drained, or when ctx ends.
func (r *Receiver[T]) Recv(ctx context.Context) (T, bool) {
	for {
		v, ok, closed := r.ch.pop()
		if ok || closed {
			return v, ok
		}
		select {
		case <-r.ch.notEmpty:
		case <-r.ch.finished:
		case <-ctx.Done():
			return v, false
		}
	}
}

// RecvTimeout is Recv bounded by d.
func (r *Receiver[T]) RecvTimeout(d time.Duration) (T, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return r.Recv(ctx)
}

// TryRecv returns the next buffered item without waiting.
func (r *Receiver[T]) TryRecv() (v T, ok bool) {
	v, ok, _ = r.ch.pop()
	return v, ok
}

// Close tells the producer nobody is listening anymore. Pending and future
// sends fail with ErrReceiverClosed. Idempotent.
func (r *Receiver[T]) Close() {
	r.ch.doneOnce.Do(func() {
		close(r.ch.done)
	})
}

// IsClosed reports whether the receiver was closed.
func (r *Receiver[T]) IsClosed() bool {
	select {
	case <-r.ch.done:
		return true
	default:
		return false
	}
}

func (r *Receiver[T]) Stats() Stats { return r.ch.stats() }

func (c *channel[T]) checkOpen() error {
	select {
	case <-c.done:
		return ErrReceiverClosed
	default:
	}
	if c.closed.Load() {
		return ErrSenderClosed
	}
	return nil
}

// tryPush buffers v if a slot is free.
func (c *channel[T]) tryPush(v T, pinned bool) bool {
	c.mu.Lock()
	if len(c.buf) >= c.slots {
		c.mu.Unlock()
		return false
	}
	c.push(v, pinned)
	c.mu.Unlock()
	wake(c.notEmpty)
	return true
}

// pushEvicting buffers v, evicting the oldest unpinned entry when full. If
// every buffered entry is pinned v is dropped instead.
func (c *channel[T]) pushEvicting(v T) bool {
	c.mu.Lock()
	if len(c.buf) >= c.slots {
		victim := -1
		for i := range c.buf {
			if !c.buf[i].pinned {
				victim = i
				break
			}
		}
		c.dropped.Add(1)
		if victim < 0 {
			c.mu.Unlock()
			return false
		}
		copy(c.buf[victim:], c.buf[victim+1:])
		c.buf[len(c.buf)-1] = entry[T]{}
		c.buf = c.buf[:len(c.buf)-1]
	}
	c.push(v, false)
	c.mu.Unlock()
	wake(c.notEmpty)
	return true
}

// waitPush buffers v, waiting for a slot until ctx ends, the receiver
// closes or expired fires. A nil expired waits indefinitely.
func (c *channel[T]) waitPush(ctx context.Context, v T, pinned bool, expired <-chan time.Time) error {
	if c.tryPush(v, pinned) {
		return nil
	}

	c.sendBlocks.Add(1)
	start := time.Now()
	defer func() {
		c.blockedNS.Add(int64(time.Since(start)))
	}()

	for {
		select {
		case <-c.notFull:
		case <-c.done:
			return ErrReceiverClosed
		case <-ctx.Done():
			return ctx.Err()
		case <-expired:
			return ErrSendTimeout
		}
		if c.tryPush(v, pinned) {
			return nil
		}
	}
}

// push appends under c.mu.
func (c *channel[T]) push(v T, pinned bool) {
	c.buf = append(c.buf, entry[T]{v: v, pinned: pinned})
	c.sent.Add(1)
	current := int64(len(c.buf))
	if current > c.maxLen.Load() {
		c.maxLen.Store(current)
	}
}

// pop takes the head entry. closed is true when nothing is buffered and the
// sender has closed.
func (c *channel[T]) pop() (v T, ok, closed bool) {
	c.mu.Lock()
	if len(c.buf) == 0 {
		closed = c.closed.Load()
		c.mu.Unlock()
		return v, false, closed
	}
	head := c.buf[0]
	c.buf[0] = entry[T]{}
	c.buf = c.buf[1:]
	c.received.Add(1)
	c.mu.Unlock()
	wake(c.notFull)
	return head.v, true, false
}

func (c *channel[T]) stats() Stats {
	c.mu.Lock()
	buffered := len(c.buf)
	c.mu.Unlock()
	return Stats{
		ItemsSent:     c.sent.Load(),
		ItemsReceived: c.received.Load(),
		ItemsDropped:  c.dropped.Load(),
		SendBlocks:    c.sendBlocks.Load(),
		BlockedTime:   time.Duration(c.blockedNS.Load()),
		BufferLen:     buffered,
		MaxBufferLen:  int(c.maxLen.Load()),
		Capacity:      c.capacity,
		Overflow:      c.slots - c.capacity,
	}
}

func wake(c chan struct{}) {
	select {
	case c <- struct{}{}:
	default:
	}
}
