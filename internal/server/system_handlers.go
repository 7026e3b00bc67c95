package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aaanmmoool/finboard/internal/cache"
	"github.com/aaanmmoool/finboard/internal/dashboard"
	"github.com/aaanmmoool/finboard/internal/database"
	"github.com/aaanmmoool/finboard/internal/kvstore"
)

// SystemHandlers serves the system monitoring endpoint.
type SystemHandlers struct {
	log       zerolog.Logger
	dashboard *dashboard.Service
	cache     *cache.Cache
	streams   StreamCounter
	db        *database.DB
	store     KeyLister
	startedAt time.Time
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(
	log zerolog.Logger,
	dash *dashboard.Service,
	c *cache.Cache,
	streams StreamCounter,
	db *database.DB,
	store KeyLister,
) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("service", "system").Logger(),
		dashboard: dash,
		cache:     c,
		streams:   streams,
		db:        db,
		store:     store,
		startedAt: time.Now(),
	}
}

// SystemStatusResponse represents the system status response
type SystemStatusResponse struct {
	Status          string          `json:"status"` // "healthy" or "degraded"
	Uptime          string          `json:"uptime"`
	StartedAt       string          `json:"started_at"`
	CPUPercent      float64         `json:"cpu_percent"`
	MemoryPercent   float64         `json:"memory_percent"`
	MemoryUsed      string          `json:"memory_used"`
	Goroutines      int             `json:"goroutines"`
	Widgets         int             `json:"widgets"`
	StreamCount     int             `json:"stream_count"`
	Cache           cache.Stats     `json:"cache"`
	Database        *database.Stats `json:"database,omitempty"`
	DatabaseSize    string          `json:"database_size,omitempty"`
	StoredKeys      []kvstore.Entry `json:"stored_keys,omitempty"`
}

// GetSystemStatusSnapshot returns a snapshot of the current system status.
func (h *SystemHandlers) GetSystemStatusSnapshot(ctx context.Context) (SystemStatusResponse, error) {
	cpuPercent, memPercent, memUsed := h.getSystemStats()

	response := SystemStatusResponse{
		Status:        "healthy",
		Uptime:        strings.TrimSpace(humanize.RelTime(h.startedAt, time.Now(), "", "")),
		StartedAt:     h.startedAt.Format(time.RFC3339),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		MemoryUsed:    humanize.Bytes(memUsed),
		Goroutines:    runtime.NumGoroutine(),
	}
	if h.dashboard != nil {
		response.Widgets = len(h.dashboard.Widgets())
	}
	if h.streams != nil {
		response.StreamCount = h.streams.Count()
	}
	if h.cache != nil {
		response.Cache = h.cache.Stats()
	}

	if h.store != nil {
		keys, err := h.store.List()
		if err != nil {
			response.Status = "degraded"
			return response, err
		}
		response.StoredKeys = keys
	}

	if h.db == nil {
		return response, nil
	}
	if err := h.db.HealthCheck(ctx); err != nil {
		response.Status = "degraded"
		return response, err
	}
	stats, err := h.db.GetStats()
	if err != nil {
		response.Status = "degraded"
		return response, err
	}
	response.Database = stats
	response.DatabaseSize = humanize.Bytes(uint64(stats.SizeBytes + stats.WALSizeBytes))
	return response, nil
}

// HandleSystemStatus returns system status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	response, err := h.GetSystemStatusSnapshot(r.Context())
	if err != nil {
		h.log.Warn().Err(err).Msg("System status collected with warnings")
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// getSystemStats samples CPU over 100ms and reads memory usage.
func (h *SystemHandlers) getSystemStats() (cpuAvg, memPercent float64, memUsed uint64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	} else if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return cpuAvg, 0, 0
	}
	return cpuAvg, memStat.UsedPercent, memStat.Used
}
