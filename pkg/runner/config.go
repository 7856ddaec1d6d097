package runner

import (
	"fmt"
	"strings"

	"github.com/datasynth/synth/pkg/degradation"
	"github.com/datasynth/synth/pkg/generators"
	"github.com/datasynth/synth/pkg/monitor"
	"github.com/datasynth/synth/pkg/orchestrator"
	"github.com/datasynth/synth/pkg/sink"
	"github.com/datasynth/synth/pkg/stream"
	"github.com/spf13/viper"
)

// Config gathers the settings of every component of a run.
type Config struct {
	Generation  generators.Config
	Stream      stream.Config
	Degradation degradation.Config
	Monitor     monitor.Config
	Output      sink.Config
	Phases      []orchestrator.Phase
}

// DefaultConfig runs every phase with default settings.
func DefaultConfig() Config {
	return Config{
		Generation:  generators.DefaultConfig(),
		Stream:      stream.DefaultConfig(),
		Degradation: degradation.DefaultConfig(),
		Monitor:     monitor.DefaultConfig(),
		Output:      sink.DefaultConfig(),
		Phases:      orchestrator.AllPhases,
	}
}

// ConfigFromViper reads every section from the global viper instance.
// The monitor watches the output directory unless given another path.
func ConfigFromViper() (Config, error) {
	var cfg Config
	var err error

	if cfg.Generation, err = generators.ConfigFromViper(nil); err != nil {
		return Config{}, fmt.Errorf("generation config: %w", err)
	}
	if cfg.Stream, err = stream.ConfigFromViper(nil); err != nil {
		return Config{}, fmt.Errorf("stream config: %w", err)
	}
	if cfg.Degradation, err = degradation.ConfigFromViper(nil); err != nil {
		return Config{}, fmt.Errorf("degradation config: %w", err)
	}
	if cfg.Output, err = sink.ConfigFromViper(nil); err != nil {
		return Config{}, fmt.Errorf("output config: %w", err)
	}

	if cfg.Monitor, err = monitor.ConfigFromViper(nil); err != nil {
		return Config{}, fmt.Errorf("monitor config: %w", err)
	}
	if cfg.Monitor.OutputPath == monitor.DefaultConfig().OutputPath {
		cfg.Monitor.OutputPath = cfg.Output.Path
	}

	cfg.Phases = orchestrator.AllPhases
	if names := viper.GetStringSlice("phases"); len(names) > 0 {
		if cfg.Phases, err = ParsePhaseList(names); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// ParsePhaseList accepts phase names either as separate entries or comma
// separated.
func ParsePhaseList(names []string) ([]orchestrator.Phase, error) {
	var split []string
	for _, n := range names {
		for _, part := range strings.Split(n, ",") {
			if part = strings.TrimSpace(part); part != "" {
				split = append(split, part)
			}
		}
	}
	return orchestrator.ParsePhases(split)
}
