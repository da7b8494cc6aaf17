package telemetry

import (
	"context"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

// Host is a fresh CPU and memory reading of the machine running the stack.
type Host struct {
	Available      bool    `json:"available"`
	CPUPercent     float64 `json:"cpu_percent"`
	MemoryPercent  float64 `json:"memory_percent"`
	MemoryUsedGiB  float64 `json:"memory_used_gb"`
	MemoryTotalGiB float64 `json:"memory_total_gb"`
}

// HostSampler reads host counters.
type HostSampler interface {
	CPUPercent(ctx context.Context) (float64, error)
	Memory(ctx context.Context) (used, total uint64, err error)
}

type gopsutilSampler struct{}

func (gopsutilSampler) CPUPercent(ctx context.Context) (float64, error) {
	percentages, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, err
	}
	if len(percentages) == 0 {
		return 0, nil
	}
	return percentages[0], nil
}

func (gopsutilSampler) Memory(ctx context.Context) (uint64, uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, 0, err
	}
	return vm.Used, vm.Total, nil
}

// Host samples CPU and memory. Errors degrade to Available false.
func (r *Reader) Host(ctx context.Context) Host {
	cpuPercent, err := r.host.CPUPercent(ctx)
	if err != nil {
		r.logger.Debug("cpu sample failed", zap.Error(err))
		return Host{}
	}
	used, total, err := r.host.Memory(ctx)
	if err != nil {
		r.logger.Debug("memory sample failed", zap.Error(err))
		return Host{}
	}

	var memPercent float64
	if total > 0 {
		memPercent = round(float64(used)/float64(total)*100, 1)
	}
	return Host{
		Available:      true,
		CPUPercent:     round(cpuPercent, 1),
		MemoryPercent:  memPercent,
		MemoryUsedGiB:  round(float64(used)/bytesPerGiB, 2),
		MemoryTotalGiB: round(float64(total)/bytesPerGiB, 2),
	}
}
