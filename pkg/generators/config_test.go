package generators

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFromViper_Defaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	cfg, err := ConfigFromViper(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestConfigFromViper_Overrides(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("generation.seed", 99)
	viper.Set("generation.journal_entries", 5)
	viper.Set("generation.complexity", "medium")

	cfg, err := ConfigFromViper(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(99), cfg.Seed)
	assert.Equal(t, 5, cfg.JournalEntries)
	assert.Equal(t, "medium", cfg.Complexity)
	assert.Equal(t, "1000", cfg.CompanyCode)
}

func TestConfigFromViper_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value interface{}
	}{
		{"bad complexity", "generation.complexity", "huge"},
		{"bad date", "generation.start_date", "01/02/2024"},
		{"rate above one", "generation.anomaly_rate", 1.5},
		{"negative count", "generation.vendors", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			defer viper.Reset()

			viper.Set(tt.key, tt.value)
			_, err := ConfigFromViper(nil)
			assert.Error(t, err)
		})
	}
}
