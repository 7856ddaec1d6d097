package monitor

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/datasynth/synth/pkg/degradation"
	log "github.com/sirupsen/logrus"
)

// ChangeFunc is notified after the controller changed level.
type ChangeFunc func(signal degradation.Signal)

// Monitor periodically samples a Probe and feeds the result into a
// degradation controller.
type Monitor struct {
	config     Config
	probe      Probe
	controller *degradation.Controller
	logger     *log.Logger

	mu       sync.Mutex
	onChange []ChangeFunc

	samples atomic.Uint64
	peakMB  atomic.Uint64
	hasPeak atomic.Bool
}

func New(config Config, probe Probe, controller *degradation.Controller, logger *log.Logger) *Monitor {
	return &Monitor{
		config:     config,
		probe:      probe,
		controller: controller,
		logger:     logger,
	}
}

// OnChange registers fn to be called on every level change.
func (m *Monitor) OnChange(fn ChangeFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// Run samples until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Debugf("resource monitor started, interval %s", m.config.Interval)
	return RunWithTicker(ctx, TickerConfig{
		Name:      "monitor",
		Interval:  m.config.Interval,
		SkipFirst: m.config.SkipFirst,
		Logger:    m.logger,
	}, func(ctx context.Context) error {
		_, _, err := m.Check(ctx)
		return err
	})
}

// Check takes one sample and updates the controller. A partial reading is
// still applied; the probe error is returned alongside.
func (m *Monitor) Check(ctx context.Context) (degradation.Level, bool, error) {
	reading, err := m.probe.Sample(ctx)
	m.samples.Add(1)

	if reading.ProcessMemoryMB != nil {
		m.recordPeak(*reading.ProcessMemoryMB)
	}

	previous := m.controller.CurrentLevel()
	level, changed := m.controller.Update(reading.Status)
	if changed {
		signal := m.controller.NewSignal(previous, level, reading.Status)
		m.logChange(signal)

		m.mu.Lock()
		callbacks := append([]ChangeFunc(nil), m.onChange...)
		m.mu.Unlock()
		for _, fn := range callbacks {
			fn(signal)
		}
	}
	return level, changed, err
}

func (m *Monitor) logChange(signal degradation.Signal) {
	entry := m.logger.WithFields(log.Fields{
		"from":    signal.From.String(),
		"to":      signal.To.String(),
		"trigger": string(signal.Trigger),
	})
	if signal.Escalated() {
		entry.Warnf("degradation escalated: %s", signal.To.Description())
	} else {
		entry.Infof("degradation recovered: %s", signal.To.Description())
	}
}

func (m *Monitor) recordPeak(mb uint64) {
	for {
		seen := m.peakMB.Load()
		if mb <= seen || m.peakMB.CompareAndSwap(seen, mb) {
			break
		}
	}
	m.hasPeak.Store(true)
}

// PeakMemoryMB is the largest process memory seen so far, nil before the
// first successful reading.
func (m *Monitor) PeakMemoryMB() *uint64 {
	if !m.hasPeak.Load() {
		return nil
	}
	v := m.peakMB.Load()
	return &v
}

// Samples is the number of probe samples taken.
func (m *Monitor) Samples() uint64 {
	return m.samples.Load()
}
