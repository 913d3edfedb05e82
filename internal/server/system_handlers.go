package server

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"runtime"
	"slices"
	"time"

	"github.com/aristath/rebalancer/internal/database"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// JobRunner lists and triggers scheduled jobs
type JobRunner interface {
	Jobs() []string
	RunNow(name string) error
}

// CacheStats reports the size of the result cache
type CacheStats interface {
	Len() int
}

// SystemStatusResponse is the body of GET /api/system/status
type SystemStatusResponse struct {
	Status        string           `json:"status"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	GoVersion     string           `json:"go_version"`
	Goroutines    int              `json:"goroutines"`
	CPUPercent    float64          `json:"cpu_percent"`
	MemoryPercent float64          `json:"memory_percent"`
	DiskPercent   float64          `json:"disk_percent"`
	CachedResults int              `json:"cached_results"`
	Databases     []database.Stats `json:"databases"`
	Jobs          []string         `json:"jobs"`
}

// SystemHandlers handles system monitoring and job trigger requests
type SystemHandlers struct {
	log       zerolog.Logger
	jobs      JobRunner
	cache     CacheStats
	databases []*database.DB
	startedAt time.Time
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(log zerolog.Logger, jobs JobRunner, cache CacheStats, databases []*database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		jobs:      jobs,
		cache:     cache,
		databases: databases,
		startedAt: time.Now(),
	}
}

// RegisterRoutes registers system routes
func (h *SystemHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/system", func(r chi.Router) {
		r.Get("/status", h.HandleSystemStatus)
		r.Get("/databases", h.HandleDatabaseHealth)
		r.Get("/jobs", h.HandleListJobs)
		r.Post("/jobs/{name}", h.HandleTriggerJob)
	})
}

// HandleSystemStatus returns host and process status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.getSystemStats()

	response := SystemStatusResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		GoVersion:     runtime.Version(),
		Goroutines:    runtime.NumGoroutine(),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Databases:     []database.Stats{},
		Jobs:          []string{},
	}
	if h.cache != nil {
		response.CachedResults = h.cache.Len()
	}
	if h.jobs != nil {
		response.Jobs = h.jobs.Jobs()
	}

	for _, db := range h.databases {
		if db == nil {
			continue
		}
		stats, err := db.GetStats(r.Context())
		if err != nil {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
			response.Status = "degraded"
			continue
		}
		response.Databases = append(response.Databases, *stats)

		if response.DiskPercent == 0 {
			if usage, err := disk.Usage(filepath.Dir(db.Path())); err == nil {
				response.DiskPercent = usage.UsedPercent
			}
		}
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleDatabaseHealth runs a quick integrity check on every database
func (h *SystemHandlers) HandleDatabaseHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.databases))
	for _, db := range h.databases {
		if db == nil {
			continue
		}
		if err := db.HealthCheck(ctx); err != nil {
			results[db.Name()] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[db.Name()] = "ok"
	}

	h.writeJSON(w, status, results)
}

// HandleListJobs lists registered jobs
func (h *SystemHandlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := []string{}
	if h.jobs != nil {
		jobs = h.jobs.Jobs()
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs})
}

// HandleTriggerJob runs a job immediately
// POST /api/system/jobs/{name}
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if h.jobs == nil || !slices.Contains(h.jobs.Jobs(), name) {
		h.writeJSON(w, http.StatusNotFound, map[string]string{
			"status":  "error",
			"message": "unknown job: " + name,
		})
		return
	}

	h.log.Info().Str("job", name).Msg("Manual job run triggered")
	if err := h.jobs.RunNow(name); err != nil {
		h.log.Error().Err(err).Str("job", name).Msg("Failed to run job")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": name + " completed",
	})
}

// getSystemStats returns CPU and RAM usage percentages.
// CPU is sampled over 100ms to keep the call short.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
