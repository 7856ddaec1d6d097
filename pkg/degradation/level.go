package degradation

import (
	"fmt"
	"strings"
)

// Level is the degradation tier the generator is running at.
// Levels are totally ordered, a higher value is more severe.
type Level uint8

const (
	// Normal operation, every feature enabled
	Normal Level = iota
	// Reduced skips optional work and halves batch sizes
	Reduced
	// Minimal generates essential data only, injections disabled
	Minimal
	// Emergency flushes pending output and terminates gracefully
	Emergency
)

// Levels lists every level from least to most severe.
var Levels = []Level{Normal, Reduced, Minimal, Emergency}

func (l Level) String() string {
	switch l {
	case Normal:
		return "normal"
	case Reduced:
		return "reduced"
	case Minimal:
		return "minimal"
	case Emergency:
		return "emergency"
	default:
		return fmt.Sprintf("level(%d)", uint8(l))
	}
}

// Description explains what generation does at this level.
func (l Level) Description() string {
	switch l {
	case Normal:
		return "Full operation with all features enabled"
	case Reduced:
		return "Reduced batch sizes, skip data quality injection, 50% anomaly rate"
	case Minimal:
		return "Essential data only, no injections, minimal batch sizes"
	default:
		return "Flush pending writes and terminate gracefully"
	}
}

// ParseLevel accepts the names produced by String, case-insensitively.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal":
		return Normal, nil
	case "reduced":
		return Reduced, nil
	case "minimal":
		return Minimal, nil
	case "emergency":
		return Emergency, nil
	}
	return Normal, fmt.Errorf("unknown degradation level %q", s)
}

// levelFromUint clamps anything past Emergency to Emergency.
func levelFromUint(v uint32) Level {
	if v > uint32(Emergency) {
		return Emergency
	}
	return Level(v)
}

// MaxLevel returns the more severe of a and b.
func MaxLevel(a, b Level) Level {
	if a > b {
		return a
	}
	return b
}

func (l Level) SkipDataQuality() bool        { return l >= Reduced }
func (l Level) SkipAnomalyInjection() bool   { return l >= Minimal }
func (l Level) SkipOptionalFields() bool     { return l >= Minimal }
func (l Level) RequiresImmediateFlush() bool { return l >= Emergency }
func (l Level) ShouldTerminate() bool        { return l == Emergency }

// BatchSizeMultiplier is the recommended batch size factor, 1.0 meaning unchanged.
func (l Level) BatchSizeMultiplier() float64 {
	switch l {
	case Normal:
		return 1.0
	case Reduced:
		return 0.5
	case Minimal:
		return 0.25
	default:
		return 0.0
	}
}

// AnomalyRateMultiplier is the recommended anomaly injection rate factor.
func (l Level) AnomalyRateMultiplier() float64 {
	switch l {
	case Normal:
		return 1.0
	case Reduced:
		return 0.5
	default:
		return 0.0
	}
}
