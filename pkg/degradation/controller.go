package degradation

import (
	"sync/atomic"
)

// ResourceStatus is a point-in-time resource snapshot. A nil field means
// the dimension was not measured and is left out of the level calculation.
type ResourceStatus struct {
	// Memory usage as a fraction of the limit (0.0 - 1.0)
	MemoryUsage *float64 `json:"memory_usage,omitempty"`
	// Available disk space in MB
	DiskAvailableMB *uint64 `json:"disk_available_mb,omitempty"`
	// CPU load (0.0 - 1.0)
	CPULoad *float64 `json:"cpu_load,omitempty"`
}

// NewResourceStatus builds a status from optional measurements.
func NewResourceStatus(memoryUsage *float64, diskAvailableMB *uint64, cpuLoad *float64) ResourceStatus {
	return ResourceStatus{
		MemoryUsage:     memoryUsage,
		DiskAvailableMB: diskAvailableMB,
		CPULoad:         cpuLoad,
	}
}

// Float returns a pointer to v, for building a ResourceStatus.
func Float(v float64) *float64 { return &v }

// MB returns a pointer to v, for building a ResourceStatus.
func MB(v uint64) *uint64 { return &v }

// Controller maps resource snapshots to a degradation level. It is safe for
// concurrent use; the level and the change counter are independent atomics
// with no cross-field consistency guarantee.
type Controller struct {
	config       Config
	currentLevel atomic.Uint32
	changeCount  atomic.Uint64
}

// NewController creates a controller at Normal with a zero change count.
func NewController(config Config) *Controller {
	return &Controller{config: config}
}

// Config returns the controller configuration.
func (c *Controller) Config() Config {
	return c.config
}

// CurrentLevel returns the level stored by the last Update or ForceLevel.
func (c *Controller) CurrentLevel() Level {
	return levelFromUint(c.currentLevel.Load())
}

// IsDegraded reports whether the current level is anything but Normal.
func (c *Controller) IsDegraded() bool {
	return c.CurrentLevel() != Normal
}

// LevelChangeCount is the number of level transitions so far.
func (c *Controller) LevelChangeCount() uint64 {
	return c.changeCount.Load()
}

// Actions returns the throttling knobs for the current level.
func (c *Controller) Actions() Actions {
	return ActionsForLevel(c.CurrentLevel())
}

// Update computes the level for status, stores it and reports whether it
// differs from the previous one. A disabled controller always returns
// (Normal, false) and leaves its state untouched.
func (c *Controller) Update(status ResourceStatus) (Level, bool) {
	if !c.config.Enabled {
		return Normal, false
	}

	newLevel := c.calculateLevel(status)
	oldLevel := levelFromUint(c.currentLevel.Swap(uint32(newLevel)))
	changed := oldLevel != newLevel
	if changed {
		c.changeCount.Add(1)
	}

	return newLevel, changed
}

// ForceLevel sets the level unconditionally and always counts a change.
func (c *Controller) ForceLevel(level Level) {
	c.currentLevel.Store(uint32(level))
	c.changeCount.Add(1)
}

// Reset returns to Normal without touching the change counter.
func (c *Controller) Reset() {
	c.currentLevel.Store(uint32(Normal))
}

func (c *Controller) calculateLevel(status ResourceStatus) Level {
	current := c.CurrentLevel()
	cfg := c.config

	level := Normal
	if status.MemoryUsage != nil {
		level = MaxLevel(level, c.memoryLevel(*status.MemoryUsage))
	}
	if status.DiskAvailableMB != nil {
		level = MaxLevel(level, c.diskLevel(*status.DiskAvailableMB))
	}
	if status.CPULoad != nil {
		level = MaxLevel(level, c.cpuLevel(*status.CPULoad))
	}

	if level >= current || !cfg.AutoRecovery {
		return level
	}

	// Recovery: memory has to clear the threshold of the level being left
	// by the hysteresis margin, then only one tier is stepped down.
	canRecover := true
	if status.MemoryUsage != nil {
		canRecover = *status.MemoryUsage < c.memoryThreshold(current)-cfg.RecoveryHysteresis
	}
	if !canRecover {
		return current
	}
	return MaxLevel(level, current-1)
}

func (c *Controller) memoryLevel(usage float64) Level {
	switch {
	case usage >= c.config.EmergencyMemoryThreshold:
		return Emergency
	case usage >= c.config.MinimalMemoryThreshold:
		return Minimal
	case usage >= c.config.ReducedMemoryThreshold:
		return Reduced
	default:
		return Normal
	}
}

func (c *Controller) diskLevel(availableMB uint64) Level {
	switch {
	case availableMB <= c.config.EmergencyDiskThresholdMB:
		return Emergency
	case availableMB <= c.config.MinimalDiskThresholdMB:
		return Minimal
	case availableMB <= c.config.ReducedDiskThresholdMB:
		return Reduced
	default:
		return Normal
	}
}

func (c *Controller) cpuLevel(load float64) Level {
	switch {
	case load >= c.config.MinimalCPUThreshold:
		return Minimal
	case load >= c.config.ReducedCPUThreshold:
		return Reduced
	default:
		return Normal
	}
}

// memoryThreshold is the memory threshold that put the controller at level.
func (c *Controller) memoryThreshold(level Level) float64 {
	switch level {
	case Emergency:
		return c.config.EmergencyMemoryThreshold
	case Minimal:
		return c.config.MinimalMemoryThreshold
	case Reduced:
		return c.config.ReducedMemoryThreshold
	default:
		// nothing below Normal, always permitted
		return 1.0 + c.config.RecoveryHysteresis
	}
}
