package monitor

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/pattty847/Multi-Agent-Team/internal/models"
	"github.com/pattty847/Multi-Agent-Team/pkg/logger"
)

// Collector 按固定周期采样主机 CPU 和内存，喂给状态跟踪器。
type Collector struct {
	tracker  *StateTracker
	interval time.Duration
}

// NewCollector 创建采样器。interval<=0 时取 1 秒。
func NewCollector(tracker *StateTracker, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = time.Second
	}
	return &Collector{tracker: tracker, interval: interval}
}

// Start 启动采样循环，直到 ctx 结束。
func (c *Collector) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.sample(ctx)
			}
		}
	}()
}

func (c *Collector) sample(ctx context.Context) {
	metrics := HostMetrics{SampledAt: time.Now().UTC()}

	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		logger.New("monitor_service", "", "").WithError(models.ErrorInfo{Message: err.Error()}).
			Warn("failed to sample cpu usage")
	} else if len(percents) > 0 {
		metrics.CPUPercent = percents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		logger.New("monitor_service", "", "").WithError(models.ErrorInfo{Message: err.Error()}).
			Warn("failed to sample memory usage")
	} else {
		metrics.MemoryPercent = vm.UsedPercent
		metrics.MemoryUsedMB = float64(vm.Used) / (1024 * 1024)
	}

	c.tracker.SetHostMetrics(metrics)
}
