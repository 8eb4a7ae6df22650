package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"seafile-thumbnail/internal/logging"
	"seafile-thumbnail/internal/media"
	"seafile-thumbnail/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	Uptime       string `json:"uptime"`
	Database     string `json:"database"`
	Vips         bool   `json:"vips"`
	VideoEnabled bool   `json:"videoEnabled"`
	MemoryPaused bool   `json:"memoryPaused"`

	GoVersion    string `json:"goVersion"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck reports the service status. It answers 503 when the seahub
// database is unreachable, since watermarks and share links depend on it.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:       statusHealthy,
		Version:      startup.Version,
		Uptime:       time.Since(h.started).Round(time.Second).String(),
		Database:     "ok",
		Vips:         media.IsVipsAvailable(),
		VideoEnabled: h.opts.VideoEnabled,
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	code := http.StatusOK
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := h.db.Ping(ctx)
		cancel()
		if err != nil {
			logging.Warn("Health check: database ping failed: %v", err)
			response.Database = "unreachable"
			response.Status = statusDegraded
			code = http.StatusServiceUnavailable
		}
	} else {
		response.Database = "disabled"
	}

	if h.gate != nil {
		response.MemoryPaused = h.gate.Paused()
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(code)
	if r.Method != http.MethodHead {
		writeJSON(w, response)
	}
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}
