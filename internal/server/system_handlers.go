package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/podfund/internal/database"
)

// SystemHandlers handles system monitoring endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	startupTime time.Time
	databases   []*database.DB
}

// NewSystemHandlers creates system handlers over the app's databases
func NewSystemHandlers(databases []*database.DB, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		startupTime: time.Now().UTC(),
		databases:   databases,
	}
}

// RegisterRoutes registers system routes
func (h *SystemHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/system", func(r chi.Router) {
		r.Get("/health", h.HandleHealth)
	})
}

type databaseHealth struct {
	Name    string `json:"name"`
	Profile string `json:"profile"`
	Status  string `json:"status"`
}

type healthResponse struct {
	Status        string           `json:"status"`
	UptimeSeconds float64          `json:"uptime_seconds"`
	CPUPercent    float64          `json:"cpu_percent"`
	MemoryPercent float64          `json:"memory_percent"`
	Databases     []databaseHealth `json:"databases"`
}

// HandleHealth reports process and database health
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := healthResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(h.startupTime).Seconds(),
	}

	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		response.CPUPercent = percentages[0]
	} else if err != nil {
		h.log.Warn().Err(err).Msg("Failed to read CPU usage")
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		response.MemoryPercent = vm.UsedPercent
	} else {
		h.log.Warn().Err(err).Msg("Failed to read memory usage")
	}

	for _, db := range h.databases {
		status := "ok"
		if err := db.Conn().PingContext(r.Context()); err != nil {
			status = "unreachable"
			response.Status = "degraded"
		}
		response.Databases = append(response.Databases, databaseHealth{
			Name:    db.Name(),
			Profile: string(db.Profile()),
			Status:  status,
		})
	}

	writeJSON(w, response)
}
