package observability

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// MonitoringStats aggregates the metrics exposed on the debug endpoint.
type MonitoringStats struct {
	Rooms              int     `json:"rooms"`
	RequestsServed     uint64  `json:"requests_served"`
	HeartbeatsReceived uint64  `json:"heartbeats_received"`
	InvitesDispatched  uint64  `json:"invites_dispatched"`
	CPUPercent         float64 `json:"cpu_percent"`
	RamBytes           uint64  `json:"ram_bytes"`
	AllocMemMb         uint64  `json:"alloc_mem_mb"`
	NumGC              uint32  `json:"num_gc"`
	UpdatedAt          string  `json:"updated_at"`
}

// MonitoringManager collects counters from the HTTP layer and gauges from
// the stats worker. Counters are atomic; the snapshot is guarded.
type MonitoringManager struct {
	log *slog.Logger
	mu  sync.RWMutex

	latestStats MonitoringStats

	RequestsServed     uint64
	HeartbeatsReceived uint64
	InvitesDispatched  uint64
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	return &MonitoringManager{log: log}
}

func (mm *MonitoringManager) IncrRequestsServed() {
	atomic.AddUint64(&mm.RequestsServed, 1)
}

func (mm *MonitoringManager) IncrHeartbeatsReceived() {
	atomic.AddUint64(&mm.HeartbeatsReceived, 1)
}

func (mm *MonitoringManager) IncrInvitesDispatched() {
	atomic.AddUint64(&mm.InvitesDispatched, 1)
}

// UpdateGauges is called by the stats worker with freshly sampled values.
func (mm *MonitoringManager) UpdateGauges(rooms int, cpuPercent float64, ramBytes uint64) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.latestStats = MonitoringStats{
		Rooms:              rooms,
		RequestsServed:     atomic.LoadUint64(&mm.RequestsServed),
		HeartbeatsReceived: atomic.LoadUint64(&mm.HeartbeatsReceived),
		InvitesDispatched:  atomic.LoadUint64(&mm.InvitesDispatched),
		CPUPercent:         cpuPercent,
		RamBytes:           ramBytes,
		AllocMemMb:         m.Alloc / 1024 / 1024,
		NumGC:              m.NumGC,
		UpdatedAt:          time.Now().UTC().Format(time.RFC3339),
	}

	mm.log.Debug("stats updated",
		"rooms", rooms,
		"requests", mm.latestStats.RequestsServed,
		"mem_mb", mm.latestStats.AllocMemMb,
	)
}

func (mm *MonitoringManager) GetLatest() MonitoringStats {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	stats := mm.latestStats
	stats.RequestsServed = atomic.LoadUint64(&mm.RequestsServed)
	stats.HeartbeatsReceived = atomic.LoadUint64(&mm.HeartbeatsReceived)
	stats.InvitesDispatched = atomic.LoadUint64(&mm.InvitesDispatched)
	return stats
}
