package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"talk-lab/observability"
)

// RoomCounter is the one repository method this worker needs.
type RoomCounter interface {
	CountRooms() (int, error)
}

// RoomStatsWorker samples the room count and the process's own CPU and
// memory usage, and pushes them to the monitoring manager for the debug
// endpoint to serve.
type RoomStatsWorker struct {
	log        *slog.Logger
	rooms      RoomCounter
	monitoring *observability.MonitoringManager
	interval   time.Duration
}

func NewRoomStatsWorker(
	log *slog.Logger,
	rooms RoomCounter,
	monitoring *observability.MonitoringManager,
	interval time.Duration,
) *RoomStatsWorker {
	return &RoomStatsWorker{
		log:        log,
		rooms:      rooms,
		monitoring: monitoring,
		interval:   interval,
	}
}

func (w *RoomStatsWorker) Run(ctx context.Context) error {
	w.log.Info("Starting room stats worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rooms, err := w.rooms.CountRooms()
			if err != nil {
				w.log.Error("Failed to count rooms", "error", err)
				continue
			}
			cpu, ram, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "error", err)
				continue
			}
			w.monitoring.UpdateGauges(rooms, cpu, ram)
		}
	}
}

// selfStats retrieves CPU and memory usage for the given process.
func selfStats(p *process.Process) (float64, uint64, error) {
	cpu, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	return cpu, memInfo.RSS, nil
}
