package utils

import (
	"strings"
	"testing"
)

type sampleConfig struct {
	Path      string  `mapstructure:"output_path" validate:"required"`
	Fraction  float64 `mapstructure:"fraction" validate:"gte=0,lte=1"`
	BatchSize int     `mapstructure:"batch_size" validate:"gte=1"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name          string
		input         interface{}
		expectError   bool
		errorContains []string
	}{
		{
			name:        "Valid config",
			input:       &sampleConfig{Path: "out", Fraction: 0.5, BatchSize: 10},
			expectError: false,
		},
		{
			name:          "Missing required field",
			input:         &sampleConfig{Fraction: 0.5, BatchSize: 10},
			expectError:   true,
			errorContains: []string{"output_path is required"},
		},
		{
			name:          "Multiple failures",
			input:         &sampleConfig{Path: "out", Fraction: 2, BatchSize: 0},
			expectError:   true,
			errorContains: []string{"fraction is required or invalid", "batch_size is required or invalid"},
		},
		{
			name:          "Nil input",
			input:         nil,
			expectError:   true,
			errorContains: []string{"invalid validation"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.input)

			if tt.expectError && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !tt.expectError && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			for _, substr := range tt.errorContains {
				if !strings.Contains(err.Error(), substr) {
					t.Errorf("expected error to contain %q, got %q", substr, err.Error())
				}
			}
		})
	}
}
