package server

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/aristath/capitol/internal/database"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemHandlers serves process, database and work-queue status.
type SystemHandlers struct {
	log         zerolog.Logger
	startupTime time.Time
	databases   []*database.DB
	work        WorkQueue
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(log zerolog.Logger, databases []*database.DB, work WorkQueue) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		startupTime: time.Now(),
		databases:   databases,
		work:        work,
	}
}

// SystemStatusResponse is the body of GET /api/system/status.
type SystemStatusResponse struct {
	Status        string  `json:"status"`
	Uptime        string  `json:"uptime"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  uint64  `json:"memory_used_mb"`
	Goroutines    int     `json:"goroutines"`
	HeapAllocMB   uint64  `json:"heap_alloc_mb"`
	RunningWork   string  `json:"running_work,omitempty"`
	PendingWork   int     `json:"pending_work"`
}

// DBInfo describes one database file.
type DBInfo struct {
	Name         string `json:"name"`
	Profile      string `json:"profile"`
	SizeBytes    int64  `json:"size_bytes"`
	WALSizeBytes int64  `json:"wal_size_bytes"`
	PageCount    int64  `json:"page_count"`
	Healthy      bool   `json:"healthy"`
	Error        string `json:"error,omitempty"`
}

// HandleSystemStatus returns host and process health
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	uptime := time.Since(h.startupTime)
	cpuPercent, memPercent, memUsed := h.hostMetrics()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	response := SystemStatusResponse{
		Status:        "healthy",
		Uptime:        formatUptime(uptime),
		UptimeSeconds: int64(uptime.Seconds()),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		MemoryUsedMB:  memUsed / 1024 / 1024,
		Goroutines:    runtime.NumGoroutine(),
		HeapAllocMB:   ms.HeapAlloc / 1024 / 1024,
	}
	if h.work != nil {
		st := h.work.Status()
		response.RunningWork = st.Running
		response.PendingWork = len(st.Pending)
	}

	writeEnvelope(w, h.log, http.StatusOK, response)
}

// HandleJobsStatus returns the work processor state with per-type completions
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	if h.work == nil {
		writeEnvelope(w, h.log, http.StatusOK, map[string]interface{}{})
		return
	}
	writeEnvelope(w, h.log, http.StatusOK, h.work.Status())
}

// HandleDatabaseStats returns database statistics
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting database stats")

	infos := make([]DBInfo, 0, len(h.databases))
	for _, db := range h.databases {
		info := DBInfo{Name: db.Name(), Profile: string(db.Profile()), Healthy: true}

		if stats, err := db.GetStats(); err != nil {
			info.Error = err.Error()
		} else {
			info.SizeBytes = stats.SizeBytes
			info.WALSizeBytes = stats.WALSizeBytes
			info.PageCount = stats.PageCount
		}
		if err := db.HealthCheck(r.Context()); err != nil {
			info.Healthy = false
			info.Error = err.Error()
		}

		infos = append(infos, info)
	}

	writeEnvelope(w, h.log, http.StatusOK, map[string]interface{}{
		"databases": infos,
	})
}

func (h *SystemHandlers) hostMetrics() (cpuPercent, memPercent float64, memUsed uint64) {
	percents, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(percents) == 0 {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	} else {
		cpuPercent = percents[0]
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return cpuPercent, 0, 0
	}
	return cpuPercent, memStat.UsedPercent, memStat.Used
}

// formatUptime renders a duration as "3d 4h 5m".
func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
