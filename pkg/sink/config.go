package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/datasynth/synth/internal/utils"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const DEFAULT_CONFIG_KEY = "output"

// Config selects and configures the sinks of a run.
type Config struct {
	// Path is the output directory for file based sinks
	Path string `mapstructure:"path" validate:"required"`
	// Compact switches the file output from JSONL to msgpack
	Compact bool `mapstructure:"compact"`

	WebhookURL   string `mapstructure:"webhook_url" validate:"omitempty,url"`
	WebhookToken string `mapstructure:"webhook_token"`
	WebhookRetry int    `mapstructure:"webhook_retry" validate:"gte=0"`

	PostgresDSN   string `mapstructure:"postgres_dsn"`
	PostgresTable string `mapstructure:"postgres_table"`
	BatchSize     int    `mapstructure:"batch_size" validate:"gte=1"`

	FlushInterval time.Duration `mapstructure:"flush_interval" validate:"gt=0"`
}

func DefaultConfig() Config {
	return Config{
		Path:          "output",
		WebhookRetry:  3,
		PostgresTable: DefaultTable,
		BatchSize:     500,
		FlushInterval: time.Second,
	}
}

func ConfigFromViper(key *string) (Config, error) {
	var keyValue string
	if key == nil {
		keyValue = DEFAULT_CONFIG_KEY
	} else {
		keyValue = *key
	}

	outputConfig := viper.Sub(keyValue)
	if outputConfig == nil {
		outputConfig = viper.New()
	}

	outputConfig.BindEnv("path", "DATASYNTH_OUTPUT_PATH")
	outputConfig.BindEnv("compact", "DATASYNTH_OUTPUT_COMPACT")
	outputConfig.BindEnv("webhook_url", "DATASYNTH_OUTPUT_WEBHOOK_URL")
	outputConfig.BindEnv("webhook_token", "DATASYNTH_OUTPUT_WEBHOOK_TOKEN")
	outputConfig.BindEnv("postgres_dsn", "DATASYNTH_OUTPUT_POSTGRES_DSN")
	outputConfig.BindEnv("postgres_table", "DATASYNTH_OUTPUT_POSTGRES_TABLE")

	defaults := DefaultConfig()
	outputConfig.SetDefault("path", defaults.Path)
	outputConfig.SetDefault("compact", defaults.Compact)
	outputConfig.SetDefault("webhook_retry", defaults.WebhookRetry)
	outputConfig.SetDefault("postgres_table", defaults.PostgresTable)
	outputConfig.SetDefault("batch_size", defaults.BatchSize)
	outputConfig.SetDefault("flush_interval", defaults.FlushInterval)

	var cfg Config
	err := outputConfig.Unmarshal(&cfg)
	if err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct, %v", err)
	}

	err = utils.ValidateStruct(&cfg)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Build opens every sink the config enables. compact forces msgpack file
// output regardless of Config.Compact. On error the sinks opened so far
// are closed.
func Build(ctx context.Context, cfg Config, sessionID string, compact bool, logger *log.Logger) ([]Sink, error) {
	var sinks []Sink
	fail := func(err error) ([]Sink, error) {
		for _, s := range sinks {
			s.Close()
		}
		return nil, err
	}

	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", cfg.Path, err)
	}

	if cfg.Compact || compact {
		s, err := NewCompactSink(filepath.Join(cfg.Path, sessionID+".msgpack"), logger)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
	} else {
		s, err := NewFileSink(filepath.Join(cfg.Path, sessionID+".jsonl"), logger)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
	}

	if cfg.WebhookURL != "" {
		client := NewWebhookClient(logger, cfg.WebhookRetry)
		sinks = append(sinks, NewWebhookSink(cfg.WebhookURL, cfg.WebhookToken, client, logger))
	}

	if cfg.PostgresDSN != "" {
		s, err := NewPostgresSink(ctx, cfg.PostgresDSN, cfg.PostgresTable, sessionID, cfg.BatchSize, logger)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
	}

	return sinks, nil
}
