package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/datasynth/synth/pkg/degradation"
	"github.com/datasynth/synth/pkg/monitor"
	"github.com/datasynth/synth/pkg/orchestrator"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockProbe implements monitor.Probe for testing
type MockProbe struct {
	mock.Mock
}

func (m *MockProbe) Sample(ctx context.Context) (monitor.Reading, error) {
	args := m.Called(ctx)
	return args.Get(0).(monitor.Reading), args.Error(1)
}

func memoryProbe(usage float64) *MockProbe {
	probe := new(MockProbe)
	probe.On("Sample", mock.Anything).Return(monitor.Reading{
		Status:          degradation.ResourceStatus{MemoryUsage: degradation.Float(usage)},
		ProcessMemoryMB: degradation.MB(64),
	}, nil)
	return probe
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func smallConfig(t *testing.T) Config {
	cfg := DefaultConfig()
	cfg.Output.Path = t.TempDir()
	cfg.Output.FlushInterval = 10 * time.Millisecond
	cfg.Monitor.Interval = 10 * time.Millisecond
	cfg.Monitor.OutputPath = cfg.Output.Path
	cfg.Stream.BufferSize = 64

	gen := &cfg.Generation
	gen.Vendors = 5
	gen.Customers = 5
	gen.Materials = 5
	gen.Employees = 3
	gen.DocumentFlows = 10
	gen.JournalEntries = 40
	gen.BankTransactions = 10
	return cfg
}

func readLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var lines []map[string]interface{}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		var line map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestRunner_Run(t *testing.T) {
	cfg := smallConfig(t)
	probe := memoryProbe(0.10)

	result, err := New(cfg, testLogger(), WithProbe(probe), WithSessionID("run-1")).Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result.Summary)

	assert.Equal(t, "run-1", result.SessionID)
	assert.Equal(t, "run-1", result.Summary.SessionID)
	assert.False(t, result.Compact)
	assert.Equal(t, degradation.Normal, result.PeakLevel)
	assert.Equal(t, uint64(0), result.Summary.ErrorCount)
	assert.Contains(t, result.Summary.PhasesCompleted, "journal_entries")
	assert.Contains(t, result.Summary.PhasesCompleted, "balance_validation")
	require.NotNil(t, result.Summary.PeakMemoryMB)
	assert.Equal(t, uint64(64), *result.Summary.PeakMemoryMB)

	lines := readLines(t, filepath.Join(cfg.Output.Path, "run-1.jsonl"))
	require.NotEmpty(t, lines)
	assert.Equal(t, "progress", lines[0]["type"])
	assert.Equal(t, "complete", lines[len(lines)-1]["type"])
	assert.Equal(t, uint64(len(lines)), result.Router.Events)

	types := map[string]int{}
	for _, line := range lines {
		if itemType, ok := line["item_type"].(string); ok {
			types[itemType]++
		}
	}
	assert.Equal(t, 40, types["journal_entry"])
	assert.Equal(t, 5, types["vendor"])
	assert.Greater(t, types["phase_complete"], 0)
}

func TestRunner_CompactOutputUnderPressure(t *testing.T) {
	cfg := smallConfig(t)
	probe := memoryProbe(0.90)

	result, err := New(cfg, testLogger(), WithProbe(probe), WithSessionID("run-2")).Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result.Summary)

	assert.True(t, result.Compact)
	assert.Equal(t, degradation.Minimal, result.PeakLevel)
	assert.Contains(t, result.Summary.PhasesCompleted, "journal_entries")
	assert.Equal(t, uint64(0), result.Summary.ErrorCount)

	_, err = os.Stat(filepath.Join(cfg.Output.Path, "run-2.msgpack"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(cfg.Output.Path, "run-2.jsonl"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunner_EmergencyStopsBeforeFirstPhase(t *testing.T) {
	cfg := smallConfig(t)
	probe := memoryProbe(0.99)

	result, err := New(cfg, testLogger(), WithProbe(probe)).Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result.Summary)

	assert.Equal(t, degradation.Emergency, result.FinalLevel)
	assert.Empty(t, result.Summary.PhasesCompleted)
	assert.Equal(t, uint64(0), result.Summary.TotalItems)
}

func TestRunner_InterruptedRunStillCompletes(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Generation.JournalEntries = 100000
	probe := memoryProbe(0.10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := New(cfg, testLogger(), WithProbe(probe), WithSessionID("run-3")).Run(ctx)
	require.NoError(t, err)
	require.NotNil(t, result.Summary)
	assert.NotContains(t, result.Summary.PhasesCompleted, "data_quality")

	lines := readLines(t, filepath.Join(cfg.Output.Path, "run-3.jsonl"))
	require.NotEmpty(t, lines)
	assert.Equal(t, "complete", lines[len(lines)-1]["type"])
}

func TestConfigFromViper(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("output.path", "/tmp/synth-out")
	viper.Set("phases", []string{"chart_of_accounts, master_data"})

	cfg, err := ConfigFromViper()
	require.NoError(t, err)
	assert.Equal(t, []orchestrator.Phase{orchestrator.ChartOfAccounts, orchestrator.MasterData}, cfg.Phases)
	assert.Equal(t, "/tmp/synth-out", cfg.Monitor.OutputPath)

	viper.Set("phases", []string{"nope"})
	_, err = ConfigFromViper()
	assert.Error(t, err)
}

func TestParsePhaseList(t *testing.T) {
	phases, err := ParsePhaseList([]string{"master_data", "journal_entries,balance_validation", " "})
	require.NoError(t, err)
	assert.Equal(t, []orchestrator.Phase{
		orchestrator.MasterData,
		orchestrator.JournalEntries,
		orchestrator.BalanceValidation,
	}, phases)

	_, err = ParsePhaseList([]string{"master_data,master_data"})
	assert.Error(t, err)
}
