package stream

import (
	"fmt"

	"github.com/datasynth/synth/internal/utils"
	"github.com/spf13/viper"
)

// BackpressureStrategy decides what a full channel does with a new item.
type BackpressureStrategy string

const (
	// Block waits until the consumer frees a slot
	Block BackpressureStrategy = "block"
	// DropOldest discards the oldest buffered item to make room
	DropOldest BackpressureStrategy = "drop_oldest"
	// DropNewest discards the item being sent
	DropNewest BackpressureStrategy = "drop_newest"
	// Buffer accepts MaxOverflow extra items before blocking
	Buffer BackpressureStrategy = "buffer"
)

// ParseBackpressureStrategy validates a strategy name.
func ParseBackpressureStrategy(s string) (BackpressureStrategy, error) {
	switch strategy := BackpressureStrategy(s); strategy {
	case Block, DropOldest, DropNewest, Buffer:
		return strategy, nil
	}
	return "", fmt.Errorf("unknown backpressure strategy %q", s)
}

// Drops reports whether the strategy can lose items.
func (b BackpressureStrategy) Drops() bool {
	return b == DropOldest || b == DropNewest
}

// Config holds the stream channel settings.
type Config struct {
	BufferSize       int                  `mapstructure:"buffer_size" validate:"gte=1"`
	ProgressInterval uint64               `mapstructure:"progress_interval" validate:"gte=1"`
	Backpressure     BackpressureStrategy `mapstructure:"backpressure" validate:"oneof=block drop_oldest drop_newest buffer"`
	MaxOverflow      int                  `mapstructure:"max_overflow" validate:"gte=0"`
	EnableProgress   bool                 `mapstructure:"enable_progress"`
	// BatchSize is the nominal batch size phases scale with degradation
	BatchSize int `mapstructure:"batch_size" validate:"gte=1"`
	// AdaptiveRate makes the producer pause between items while the buffer
	// sits above its high watermark
	AdaptiveRate bool `mapstructure:"adaptive_rate"`
}

const (
	DEFAULT_CONFIG_KEY = "stream"

	DefaultBufferSize       = 1000
	DefaultProgressInterval = 100
	DefaultBatchSize        = 100
)

// DefaultConfig returns a blocking stream with a 1000 item buffer.
func DefaultConfig() Config {
	return Config{
		BufferSize:       DefaultBufferSize,
		ProgressInterval: DefaultProgressInterval,
		Backpressure:     Block,
		EnableProgress:   true,
		BatchSize:        DefaultBatchSize,
	}
}

func ConfigFromViper(key *string) (Config, error) {
	var keyValue string
	if key == nil {
		keyValue = DEFAULT_CONFIG_KEY
	} else {
		keyValue = *key
	}

	streamConfig := viper.Sub(keyValue)
	if streamConfig == nil {
		streamConfig = viper.New()
	}

	streamConfig.BindEnv("buffer_size", "DATASYNTH_STREAM_BUFFER_SIZE")
	streamConfig.BindEnv("progress_interval", "DATASYNTH_STREAM_PROGRESS_INTERVAL")
	streamConfig.BindEnv("backpressure", "DATASYNTH_STREAM_BACKPRESSURE")
	streamConfig.BindEnv("max_overflow", "DATASYNTH_STREAM_MAX_OVERFLOW")
	streamConfig.BindEnv("adaptive_rate", "DATASYNTH_STREAM_ADAPTIVE_RATE")

	defaults := DefaultConfig()
	streamConfig.SetDefault("buffer_size", defaults.BufferSize)
	streamConfig.SetDefault("progress_interval", defaults.ProgressInterval)
	streamConfig.SetDefault("backpressure", string(defaults.Backpressure))
	streamConfig.SetDefault("max_overflow", defaults.MaxOverflow)
	streamConfig.SetDefault("enable_progress", defaults.EnableProgress)
	streamConfig.SetDefault("batch_size", defaults.BatchSize)
	streamConfig.SetDefault("adaptive_rate", defaults.AdaptiveRate)

	var cfg Config
	err := streamConfig.Unmarshal(&cfg)
	if err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct, %v", err)
	}

	err = utils.ValidateStruct(&cfg)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}
