package degradation

import (
	"fmt"

	"github.com/datasynth/synth/internal/utils"
	"github.com/spf13/viper"
)

// Config holds the per-level resource thresholds.
//
// Thresholds are expected to increase in severity (reduced < minimal <
// emergency for memory and CPU, the reverse for disk free space). This is
// not enforced; with an inconsistent config the tiered comparison simply
// returns whichever tier matches first.
type Config struct {
	Enabled bool `mapstructure:"enabled"`

	// Memory usage as a fraction of the limit
	ReducedMemoryThreshold   float64 `mapstructure:"reduced_memory_threshold" validate:"gte=0,lte=1"`
	MinimalMemoryThreshold   float64 `mapstructure:"minimal_memory_threshold" validate:"gte=0,lte=1"`
	EmergencyMemoryThreshold float64 `mapstructure:"emergency_memory_threshold" validate:"gte=0,lte=1"`

	// Disk space remaining, in MB
	ReducedDiskThresholdMB   uint64 `mapstructure:"reduced_disk_threshold_mb"`
	MinimalDiskThresholdMB   uint64 `mapstructure:"minimal_disk_threshold_mb"`
	EmergencyDiskThresholdMB uint64 `mapstructure:"emergency_disk_threshold_mb"`

	// CPU load as a fraction; CPU never drives Emergency
	ReducedCPUThreshold float64 `mapstructure:"reduced_cpu_threshold" validate:"gte=0,lte=1"`
	MinimalCPUThreshold float64 `mapstructure:"minimal_cpu_threshold" validate:"gte=0,lte=1"`

	AutoRecovery       bool    `mapstructure:"auto_recovery"`
	RecoveryHysteresis float64 `mapstructure:"recovery_hysteresis" validate:"gte=0,lte=1"`
}

const (
	DEFAULT_CONFIG_KEY = "degradation"
)

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		Enabled:                  true,
		ReducedMemoryThreshold:   0.70,
		MinimalMemoryThreshold:   0.85,
		EmergencyMemoryThreshold: 0.95,
		ReducedDiskThresholdMB:   1000,
		MinimalDiskThresholdMB:   500,
		EmergencyDiskThresholdMB: 100,
		ReducedCPUThreshold:      0.80,
		MinimalCPUThreshold:      0.90,
		AutoRecovery:             true,
		RecoveryHysteresis:       0.05,
	}
}

// ConservativeConfig degrades earlier than the default.
func ConservativeConfig() Config {
	c := DefaultConfig()
	c.ReducedMemoryThreshold = 0.60
	c.MinimalMemoryThreshold = 0.75
	c.EmergencyMemoryThreshold = 0.90
	c.ReducedDiskThresholdMB = 2000
	c.MinimalDiskThresholdMB = 1000
	c.EmergencyDiskThresholdMB = 500
	c.ReducedCPUThreshold = 0.70
	c.MinimalCPUThreshold = 0.85
	return c
}

// AggressiveConfig degrades later, favouring throughput.
func AggressiveConfig() Config {
	c := DefaultConfig()
	c.ReducedMemoryThreshold = 0.80
	c.MinimalMemoryThreshold = 0.90
	c.EmergencyMemoryThreshold = 0.98
	c.ReducedDiskThresholdMB = 500
	c.MinimalDiskThresholdMB = 200
	c.EmergencyDiskThresholdMB = 50
	c.ReducedCPUThreshold = 0.90
	c.MinimalCPUThreshold = 0.95
	return c
}

// DisabledConfig turns degradation off; Update always reports Normal.
func DisabledConfig() Config {
	c := DefaultConfig()
	c.Enabled = false
	return c
}

// presets maps the "preset" config key to a base configuration
var presets = map[string]func() Config{
	"default":      DefaultConfig,
	"conservative": ConservativeConfig,
	"aggressive":   AggressiveConfig,
	"disabled":     DisabledConfig,
}

// ConfigFromViper reads the degradation section. A "preset" key selects the
// base thresholds, individual keys override it.
func ConfigFromViper(key *string) (Config, error) {
	var keyValue string
	if key == nil {
		keyValue = DEFAULT_CONFIG_KEY
	} else {
		keyValue = *key
	}

	settingConfig := viper.Sub(keyValue)
	if settingConfig == nil {
		settingConfig = viper.New()
	}

	settingConfig.BindEnv("preset", "DATASYNTH_DEGRADATION_PRESET")
	settingConfig.SetDefault("preset", "default")

	presetName := settingConfig.GetString("preset")
	preset, ok := presets[presetName]
	if !ok {
		return Config{}, fmt.Errorf("unknown degradation preset %q", presetName)
	}
	base := preset()

	settingConfig.BindEnv("enabled", "DATASYNTH_DEGRADATION_ENABLED")
	settingConfig.BindEnv("reduced_memory_threshold", "DATASYNTH_DEGRADATION_REDUCED_MEMORY_THRESHOLD")
	settingConfig.BindEnv("minimal_memory_threshold", "DATASYNTH_DEGRADATION_MINIMAL_MEMORY_THRESHOLD")
	settingConfig.BindEnv("emergency_memory_threshold", "DATASYNTH_DEGRADATION_EMERGENCY_MEMORY_THRESHOLD")
	settingConfig.BindEnv("auto_recovery", "DATASYNTH_DEGRADATION_AUTO_RECOVERY")
	settingConfig.BindEnv("recovery_hysteresis", "DATASYNTH_DEGRADATION_RECOVERY_HYSTERESIS")

	settingConfig.SetDefault("enabled", base.Enabled)
	settingConfig.SetDefault("reduced_memory_threshold", base.ReducedMemoryThreshold)
	settingConfig.SetDefault("minimal_memory_threshold", base.MinimalMemoryThreshold)
	settingConfig.SetDefault("emergency_memory_threshold", base.EmergencyMemoryThreshold)
	settingConfig.SetDefault("reduced_disk_threshold_mb", base.ReducedDiskThresholdMB)
	settingConfig.SetDefault("minimal_disk_threshold_mb", base.MinimalDiskThresholdMB)
	settingConfig.SetDefault("emergency_disk_threshold_mb", base.EmergencyDiskThresholdMB)
	settingConfig.SetDefault("reduced_cpu_threshold", base.ReducedCPUThreshold)
	settingConfig.SetDefault("minimal_cpu_threshold", base.MinimalCPUThreshold)
	settingConfig.SetDefault("auto_recovery", base.AutoRecovery)
	settingConfig.SetDefault("recovery_hysteresis", base.RecoveryHysteresis)

	var settings Config
	err := settingConfig.Unmarshal(&settings)
	if err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct, %v", err)
	}

	err = utils.ValidateStruct(&settings)
	return settings, err
}
