// Package metrics samples system load during a generation run. Tiling a
// planet extract alternates between CPU-bound matching and I/O-bound node
// index lookups, so the collector reports iowait and disk rates alongside
// CPU and memory.
package metrics

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// Snapshot holds one sampling round.
type Snapshot struct {
	CPUPercent     float64 // system-wide, 0-100
	ProcCPUPercent float64 // this process, can exceed 100 on multi-core
	IOWaitPercent  float64
	MemUsedGB      float64
	MemPercent     float64
	ProcRSSGB      float64
	DiskReadMBps   float64
	DiskWriteMBps  float64
	DiskBusyPct    float64
	Goroutines     int
	Taken          time.Time
}

// Collector periodically samples and logs system metrics.
type Collector struct {
	interval time.Duration
	log      *zap.Logger
	proc     *process.Process

	lastDisk     map[string]disk.IOCountersStat
	lastDiskTime time.Time
	lastCPU      cpu.TimesStat
	hasCPU       bool

	mu   sync.RWMutex
	last *Snapshot
}

// NewCollector creates a collector sampling at the given interval.
// Intervals under a second are raised to the 30s default.
func NewCollector(interval time.Duration, log *zap.Logger) *Collector {
	if interval < time.Second {
		interval = 30 * time.Second
	}
	proc, _ := process.NewProcess(int32(os.Getpid()))
	return &Collector{
		interval: interval,
		log:      log,
		proc:     proc,
	}
}

// Start samples until the context is cancelled. The first sample runs
// immediately and seeds the disk and CPU baselines.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.sample()
	for {
		select {
		case <-ctx.Done():
			c.log.Debug("metrics collection stopped")
			return
		case <-ticker.C:
			c.sample()
		}
	}
}

// Last returns the most recent snapshot, nil before the first sample.
func (c *Collector) Last() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

func (c *Collector) sample() {
	s := &Snapshot{
		Taken:      time.Now(),
		Goroutines: runtime.NumGoroutine(),
	}

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		s.CPUPercent = pct[0]
	}
	if c.proc != nil {
		if pct, err := c.proc.Percent(0); err == nil {
			s.ProcCPUPercent = pct
		}
		if mi, err := c.proc.MemoryInfo(); err == nil {
			s.ProcRSSGB = float64(mi.RSS) / (1 << 30)
		}
	}
	s.IOWaitPercent = c.iowait()

	if vm, err := mem.VirtualMemory(); err == nil {
		s.MemPercent = vm.UsedPercent
		s.MemUsedGB = float64(vm.Used) / (1 << 30)
	}

	s.DiskReadMBps, s.DiskWriteMBps, s.DiskBusyPct = c.diskRates()

	c.mu.Lock()
	c.last = s
	c.mu.Unlock()

	c.log.Info("system metrics",
		zap.String("sys_cpu", pct(s.CPUPercent)),
		zap.String("proc_cpu", pct(s.ProcCPUPercent)),
		zap.String("iowait", pct(s.IOWaitPercent)),
		zap.String("mem", fmt.Sprintf("%.1f GB (%.0f%%)", s.MemUsedGB, s.MemPercent)),
		zap.String("rss", fmt.Sprintf("%.1f GB", s.ProcRSSGB)),
		zap.String("disk_r", rate(s.DiskReadMBps)),
		zap.String("disk_w", rate(s.DiskWriteMBps)),
		zap.String("disk_busy", pct(s.DiskBusyPct)),
		zap.Int("goroutines", s.Goroutines),
	)
}

// iowait derives the iowait share from aggregate CPU time deltas.
func (c *Collector) iowait() float64 {
	times, err := cpu.Times(false)
	if err != nil || len(times) == 0 {
		return 0
	}
	cur := times[0]
	if !c.hasCPU {
		c.lastCPU = cur
		c.hasCPU = true
		return 0
	}
	last := c.lastCPU
	c.lastCPU = cur

	total := (cur.User - last.User) +
		(cur.System - last.System) +
		(cur.Idle - last.Idle) +
		(cur.Iowait - last.Iowait) +
		(cur.Irq - last.Irq) +
		(cur.Softirq - last.Softirq) +
		(cur.Steal - last.Steal)
	if total <= 0 {
		return 0
	}
	return (cur.Iowait - last.Iowait) / total * 100
}

// diskRates derives throughput and utilization from IO counter deltas
// across all disks. Busy time is capped at 100%.
func (c *Collector) diskRates() (readMBps, writeMBps, busyPct float64) {
	counters, err := disk.IOCounters()
	if err != nil {
		return 0, 0, 0
	}
	now := time.Now()

	if c.lastDisk == nil {
		c.lastDisk = counters
		c.lastDiskTime = now
		return 0, 0, 0
	}

	elapsed := now.Sub(c.lastDiskTime).Seconds()
	if elapsed < 0.1 {
		return 0, 0, 0
	}

	var readDelta, writeDelta, ioTimeDelta uint64
	for name, cur := range counters {
		last, ok := c.lastDisk[name]
		if !ok {
			continue
		}
		// Counters can wrap or reset on device re-attach.
		if cur.ReadBytes >= last.ReadBytes {
			readDelta += cur.ReadBytes - last.ReadBytes
		}
		if cur.WriteBytes >= last.WriteBytes {
			writeDelta += cur.WriteBytes - last.WriteBytes
		}
		if cur.IoTime >= last.IoTime {
			ioTimeDelta += cur.IoTime - last.IoTime
		}
	}
	c.lastDisk = counters
	c.lastDiskTime = now

	readMBps = float64(readDelta) / elapsed / (1 << 20)
	writeMBps = float64(writeDelta) / elapsed / (1 << 20)
	busyPct = float64(ioTimeDelta) / (elapsed * 1000) * 100
	if busyPct > 100 {
		busyPct = 100
	}
	return readMBps, writeMBps, busyPct
}

func pct(v float64) string  { return fmt.Sprintf("%.1f%%", v) }
func rate(v float64) string { return fmt.Sprintf("%.1f MB/s", v) }
