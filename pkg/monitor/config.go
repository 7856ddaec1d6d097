package monitor

import (
	"fmt"
	"time"

	"github.com/datasynth/synth/internal/utils"
	"github.com/spf13/viper"
)

const DEFAULT_CONFIG_KEY = "monitor"

type Config struct {
	Interval time.Duration `mapstructure:"interval" validate:"gt=0"`
	// MemoryLimitMB turns process RSS into a usage fraction. When zero the
	// host memory usage is reported instead.
	MemoryLimitMB uint64 `mapstructure:"memory_limit_mb"`
	// OutputPath is the filesystem whose free space is watched
	OutputPath      string        `mapstructure:"output_path" validate:"required"`
	CPUSampleWindow time.Duration `mapstructure:"cpu_sample_window" validate:"gte=0"`
	DisableCPU      bool          `mapstructure:"disable_cpu"`
	DisableDisk     bool          `mapstructure:"disable_disk"`
	SkipFirst       bool          `mapstructure:"skip_first"`
}

func DefaultConfig() Config {
	return Config{
		Interval:        time.Second,
		OutputPath:      ".",
		CPUSampleWindow: 100 * time.Millisecond,
	}
}

func ConfigFromViper(key *string) (Config, error) {
	var keyValue string
	if key == nil {
		keyValue = DEFAULT_CONFIG_KEY
	} else {
		keyValue = *key
	}

	monitorConfig := viper.Sub(keyValue)
	if monitorConfig == nil {
		monitorConfig = viper.New()
	}

	monitorConfig.BindEnv("interval", "DATASYNTH_MONITOR_INTERVAL")
	monitorConfig.BindEnv("memory_limit_mb", "DATASYNTH_MONITOR_MEMORY_LIMIT_MB")
	monitorConfig.BindEnv("output_path", "DATASYNTH_MONITOR_OUTPUT_PATH")

	defaults := DefaultConfig()
	monitorConfig.SetDefault("interval", defaults.Interval)
	monitorConfig.SetDefault("memory_limit_mb", defaults.MemoryLimitMB)
	monitorConfig.SetDefault("output_path", defaults.OutputPath)
	monitorConfig.SetDefault("cpu_sample_window", defaults.CPUSampleWindow)
	monitorConfig.SetDefault("disable_cpu", defaults.DisableCPU)
	monitorConfig.SetDefault("disable_disk", defaults.DisableDisk)
	monitorConfig.SetDefault("skip_first", defaults.SkipFirst)

	var cfg Config
	err := monitorConfig.Unmarshal(&cfg)
	if err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct, %v", err)
	}

	err = utils.ValidateStruct(&cfg)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}
