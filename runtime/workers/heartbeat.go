package workers

import (
	"context"
	"log/slog"
	"os"
	goruntime "runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

// ProcessStats is a snapshot of the relay process.
type ProcessStats struct {
	PID        int32   `json:"pid"`
	Status     string  `json:"status"`
	CPUPercent float64 `json:"cpu_percent"`
	RSSBytes   uint64  `json:"rss_bytes"`
	Goroutines int     `json:"goroutines"`
}

// SelfStats reads the stats of the current process.
func SelfStats() (ProcessStats, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return ProcessStats{}, err
	}
	return readStats(p)
}

func readStats(p *process.Process) (ProcessStats, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return ProcessStats{}, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return ProcessStats{}, err
	}
	status, err := p.Status()
	if err != nil {
		return ProcessStats{}, err
	}
	return ProcessStats{
		PID:        p.Pid,
		Status:     status,
		CPUPercent: cpuPercent,
		RSSBytes:   memInfo.RSS,
		Goroutines: goruntime.NumGoroutine(),
	}, nil
}

// HeartbeatWorker logs the process footprint next to the live subscription count.
type HeartbeatWorker struct {
	log           *slog.Logger
	interval      time.Duration
	subscriptions func() int
}

func NewHeartbeatWorker(log *slog.Logger, interval time.Duration, subscriptions func() int) *HeartbeatWorker {
	return &HeartbeatWorker{
		log:           log,
		interval:      interval,
		subscriptions: subscriptions,
	}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting heartbeat worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			stats, err := readStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "error", err)
				continue
			}
			w.log.Info("Heartbeat",
				"subscriptions", w.subscriptions(),
				"goroutines", stats.Goroutines,
				"rss_bytes", stats.RSSBytes,
				"cpu_percent", stats.CPUPercent,
				"status", stats.Status)
		}
	}
}
