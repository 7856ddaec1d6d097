package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/datasynth/synth/pkg/degradation"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockProbe implements Probe for testing
type MockProbe struct {
	mock.Mock
}

func (m *MockProbe) Sample(ctx context.Context) (Reading, error) {
	args := m.Called(ctx)
	return args.Get(0).(Reading), args.Error(1)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func memoryReading(usage float64, rssMB uint64) Reading {
	return Reading{
		Status:          degradation.ResourceStatus{MemoryUsage: degradation.Float(usage)},
		ProcessMemoryMB: degradation.MB(rssMB),
	}
}

func TestMonitor_CheckEscalatesAndRecovers(t *testing.T) {
	probe := new(MockProbe)
	probe.On("Sample", mock.Anything).Return(memoryReading(0.90, 300), nil).Once()
	probe.On("Sample", mock.Anything).Return(memoryReading(0.50, 200), nil).Once()

	controller := degradation.NewController(degradation.DefaultConfig())
	m := New(DefaultConfig(), probe, controller, testLogger())

	var signals []degradation.Signal
	m.OnChange(func(s degradation.Signal) { signals = append(signals, s) })

	level, changed, err := m.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, degradation.Minimal, level)

	level, changed, err = m.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, degradation.Reduced, level, "recovery is one tier per sample")

	require.Len(t, signals, 2)
	assert.True(t, signals[0].Escalated())
	assert.Equal(t, degradation.TriggerMemory, signals[0].Trigger)
	assert.Equal(t, degradation.TriggerRecovery, signals[1].Trigger)

	require.NotNil(t, m.PeakMemoryMB())
	assert.Equal(t, uint64(300), *m.PeakMemoryMB())
	assert.Equal(t, uint64(2), m.Samples())
	probe.AssertExpectations(t)
}

func TestMonitor_PartialReadingStillApplied(t *testing.T) {
	probe := new(MockProbe)
	reading := Reading{Status: degradation.ResourceStatus{DiskAvailableMB: degradation.MB(50)}}
	probe.On("Sample", mock.Anything).Return(reading, errors.New("memory unavailable"))

	controller := degradation.NewController(degradation.DefaultConfig())
	m := New(DefaultConfig(), probe, controller, testLogger())

	level, changed, err := m.Check(context.Background())
	assert.Error(t, err)
	assert.True(t, changed)
	assert.Equal(t, degradation.Emergency, level)
	assert.Nil(t, m.PeakMemoryMB())
}

func TestMonitor_NoCallbackWithoutChange(t *testing.T) {
	probe := new(MockProbe)
	probe.On("Sample", mock.Anything).Return(memoryReading(0.10, 10), nil)

	controller := degradation.NewController(degradation.DefaultConfig())
	m := New(DefaultConfig(), probe, controller, testLogger())

	called := false
	m.OnChange(func(degradation.Signal) { called = true })

	_, changed, err := m.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.False(t, called)
	assert.Equal(t, uint64(0), controller.LevelChangeCount())
}

func TestMonitor_Run(t *testing.T) {
	probe := new(MockProbe)
	probe.On("Sample", mock.Anything).Return(memoryReading(0.75, 100), nil)

	controller := degradation.NewController(degradation.DefaultConfig())
	cfg := DefaultConfig()
	cfg.Interval = 20 * time.Millisecond
	m := New(cfg, probe, controller, testLogger())

	var mu sync.Mutex
	changes := 0
	m.OnChange(func(degradation.Signal) {
		mu.Lock()
		changes++
		mu.Unlock()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 110*time.Millisecond)
	defer cancel()

	err := m.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, m.Samples(), uint64(3))
	assert.Equal(t, degradation.Reduced, controller.CurrentLevel())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, changes)
}

func TestSystemProbe_Sample(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutputPath = t.TempDir()
	cfg.CPUSampleWindow = 10 * time.Millisecond
	cfg.MemoryLimitMB = 1 << 20

	probe, err := NewSystemProbe(cfg)
	require.NoError(t, err)

	reading, err := probe.Sample(context.Background())
	if err != nil {
		t.Skipf("resource readings unavailable here: %v", err)
	}

	require.NotNil(t, reading.ProcessMemoryMB)
	require.NotNil(t, reading.Status.MemoryUsage)
	assert.GreaterOrEqual(t, *reading.Status.MemoryUsage, 0.0)
	assert.Less(t, *reading.Status.MemoryUsage, 1.0)
	assert.NotNil(t, reading.Status.DiskAvailableMB)
	require.NotNil(t, reading.Status.CPULoad)
	assert.LessOrEqual(t, *reading.Status.CPULoad, 1.0)
}

func TestSystemProbe_DisabledDimensions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DisableCPU = true
	cfg.DisableDisk = true

	probe, err := NewSystemProbe(cfg)
	require.NoError(t, err)

	reading, err := probe.Sample(context.Background())
	if err != nil {
		t.Skipf("resource readings unavailable here: %v", err)
	}
	assert.Nil(t, reading.Status.CPULoad)
	assert.Nil(t, reading.Status.DiskAvailableMB)
	assert.NotNil(t, reading.Status.MemoryUsage)
}

func TestConfigFromViper(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("monitor.interval", "500ms")
	viper.Set("monitor.memory_limit_mb", 2048)

	cfg, err := ConfigFromViper(nil)
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, cfg.Interval)
	assert.Equal(t, uint64(2048), cfg.MemoryLimitMB)
	assert.Equal(t, ".", cfg.OutputPath)

	viper.Set("monitor.interval", "0s")
	_, err = ConfigFromViper(nil)
	assert.Error(t, err)
}
