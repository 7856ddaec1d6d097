package degradation

import "time"

// Trigger names the resource dimension that determined a level.
type Trigger string

const (
	TriggerMemory Trigger = "memory"
	TriggerDisk   Trigger = "disk"
	TriggerCPU    Trigger = "cpu"
	// TriggerRecovery marks a step down towards Normal
	TriggerRecovery Trigger = "recovery"
)

// Signal describes a level transition observed by a monitor.
type Signal struct {
	From      Level          `json:"from"`
	To        Level          `json:"to"`
	Trigger   Trigger        `json:"trigger,omitempty"`
	Status    ResourceStatus `json:"status"`
	Actions   Actions        `json:"actions"`
	Timestamp time.Time      `json:"timestamp"`
}

// Escalated reports whether the transition raised the level.
func (s Signal) Escalated() bool {
	return s.To > s.From
}

// NewSignal builds the signal for a transition caused by status.
func (c *Controller) NewSignal(from, to Level, status ResourceStatus) Signal {
	return Signal{
		From:      from,
		To:        to,
		Trigger:   c.trigger(from, to, status),
		Status:    status,
		Actions:   ActionsForLevel(to),
		Timestamp: time.Now(),
	}
}

// trigger picks the most severe dimension, memory first on ties.
func (c *Controller) trigger(from, to Level, status ResourceStatus) Trigger {
	if to < from {
		return TriggerRecovery
	}
	if status.MemoryUsage != nil && c.memoryLevel(*status.MemoryUsage) == to {
		return TriggerMemory
	}
	if status.DiskAvailableMB != nil && c.diskLevel(*status.DiskAvailableMB) == to {
		return TriggerDisk
	}
	if status.CPULoad != nil && c.cpuLevel(*status.CPULoad) == to {
		return TriggerCPU
	}
	return ""
}
