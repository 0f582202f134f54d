package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// systemStatus is the /system/status shape.
type systemStatus struct {
	Status        string  `json:"status"`
	UptimeSeconds int64   `json:"uptimeSeconds"`
	Goroutines    int     `json:"goroutines"`
	CPUPercent    float64 `json:"cpuPercent"`
	MemPercent    float64 `json:"memPercent"`
	MemUsedMB     float64 `json:"memUsedMb"`
	DiskPercent   float64 `json:"diskPercent"`
	Timestamp     int64   `json:"timestamp"`
}

// handleSystemStatus reports process and host health. The 100ms CPU sample
// keeps the call fast enough for a dashboard poll loop.
func (s *Server) handleSystemStatus(w http.ResponseWriter, _ *http.Request) {
	status := systemStatus{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		Timestamp:     time.Now().UnixMilli(),
	}

	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		status.CPUPercent = cpuPercent[0]
	} else if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	}

	if memStat, err := mem.VirtualMemory(); err == nil {
		status.MemPercent = memStat.UsedPercent
		status.MemUsedMB = float64(memStat.Used) / 1024 / 1024
	} else {
		s.log.Warn().Err(err).Msg("Failed to get memory statistics")
	}

	if diskStat, err := disk.Usage(s.cfg.DataDir); err == nil {
		status.DiskPercent = diskStat.UsedPercent
	} else {
		s.log.Warn().Err(err).Msg("Failed to get disk usage")
	}

	s.writeJSON(w, http.StatusOK, status)
}
