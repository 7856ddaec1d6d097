package degradation

import "math"

// Actions are the throttling knobs phase logic applies at a given level.
type Actions struct {
	SkipDataQuality      bool    `json:"skip_data_quality"`
	SkipAnomalyInjection bool    `json:"skip_anomaly_injection"`
	SkipOptionalFields   bool    `json:"skip_optional_fields"`
	BatchSizeFactor      float64 `json:"batch_size_factor"`
	AnomalyRateFactor    float64 `json:"anomaly_rate_factor"`
	UseCompactOutput     bool    `json:"use_compact_output"`
	ImmediateFlush       bool    `json:"immediate_flush"`
	// Terminate is advisory: phases are expected to stop producing and let
	// the stream complete.
	Terminate bool `json:"terminate"`
}

var actionsTable = [...]Actions{
	Normal: {
		BatchSizeFactor:   1.0,
		AnomalyRateFactor: 1.0,
	},
	Reduced: {
		SkipDataQuality:   true,
		BatchSizeFactor:   0.5,
		AnomalyRateFactor: 0.5,
		UseCompactOutput:  true,
	},
	Minimal: {
		SkipDataQuality:      true,
		SkipAnomalyInjection: true,
		SkipOptionalFields:   true,
		BatchSizeFactor:      0.25,
		AnomalyRateFactor:    0.0,
		UseCompactOutput:     true,
		ImmediateFlush:       true,
	},
	Emergency: {
		SkipDataQuality:      true,
		SkipAnomalyInjection: true,
		SkipOptionalFields:   true,
		BatchSizeFactor:      0.0,
		AnomalyRateFactor:    0.0,
		UseCompactOutput:     true,
		ImmediateFlush:       true,
		Terminate:            true,
	},
}

// ActionsForLevel looks up the fixed actions for level.
func ActionsForLevel(level Level) Actions {
	if level > Emergency {
		level = Emergency
	}
	return actionsTable[level]
}

// ScaleBatch applies BatchSizeFactor to n. The result is at least 1 unless
// the factor is zero.
func (a Actions) ScaleBatch(n int) int {
	if a.BatchSizeFactor <= 0 || n <= 0 {
		return 0
	}
	scaled := int(math.Floor(float64(n) * a.BatchSizeFactor))
	if scaled < 1 {
		return 1
	}
	return scaled
}

// ScaleRate applies AnomalyRateFactor to an injection rate.
func (a Actions) ScaleRate(rate float64) float64 {
	return rate * a.AnomalyRateFactor
}
