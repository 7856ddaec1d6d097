package monitor

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/datasynth/synth/pkg/degradation"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

const bytesPerMB = 1024 * 1024

// Reading is one probe sample. ProcessMemoryMB is the resident size of the
// generating process, nil when it could not be read.
type Reading struct {
	Status          degradation.ResourceStatus
	ProcessMemoryMB *uint64
}

// Probe samples resource usage. A dimension that cannot be read is left
// nil and reported in the returned error; the rest of the reading is
// still usable.
type Probe interface {
	Sample(ctx context.Context) (Reading, error)
}

// SystemProbe reads memory, disk and CPU through gopsutil.
type SystemProbe struct {
	config Config
	proc   *process.Process
}

func NewSystemProbe(config Config) (*SystemProbe, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to open own process: %w", err)
	}
	return &SystemProbe{config: config, proc: proc}, nil
}

func (p *SystemProbe) Sample(ctx context.Context) (Reading, error) {
	var reading Reading
	var errs []error

	rss, err := p.processMemoryMB(ctx)
	if err != nil {
		errs = append(errs, err)
	} else {
		reading.ProcessMemoryMB = &rss
	}

	if p.config.MemoryLimitMB > 0 {
		if reading.ProcessMemoryMB != nil {
			reading.Status.MemoryUsage = degradation.Float(float64(rss) / float64(p.config.MemoryLimitMB))
		}
	} else {
		vm, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to read memory: %w", err))
		} else {
			reading.Status.MemoryUsage = degradation.Float(vm.UsedPercent / 100.0)
		}
	}

	if !p.config.DisableDisk {
		usage, err := disk.UsageWithContext(ctx, p.config.OutputPath)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to read disk usage of %s: %w", p.config.OutputPath, err))
		} else {
			reading.Status.DiskAvailableMB = degradation.MB(usage.Free / bytesPerMB)
		}
	}

	if !p.config.DisableCPU {
		percent, err := cpu.PercentWithContext(ctx, p.config.CPUSampleWindow, false)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to read cpu: %w", err))
		} else if len(percent) > 0 {
			reading.Status.CPULoad = degradation.Float(percent[0] / 100.0)
		}
	}

	return reading, errors.Join(errs...)
}

func (p *SystemProbe) processMemoryMB(ctx context.Context) (uint64, error) {
	info, err := p.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read process memory: %w", err)
	}
	return info.RSS / bytesPerMB, nil
}
