package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/finsight/reportgen/internal/common"
	"github.com/finsight/reportgen/internal/scheduler"
)

// StatusHandler handles HTTP requests for application status
type StatusHandler struct {
	scheduler *scheduler.Scheduler
	logger    arbor.ILogger
	startTime time.Time
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(sched *scheduler.Scheduler, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		scheduler: sched,
		logger:    logger,
		startTime: time.Now(),
	}
}

// GetStatusHandler handles GET /api/status. The queue length and active
// job gauges feed operational dashboards.
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"version":      common.Version,
		"uptime":       time.Since(h.startTime).Round(time.Second).String(),
		"queue_length": h.scheduler.QueueLength(),
		"active_jobs":  h.scheduler.ActiveJobs(),
		"goroutines":   common.GetGoroutineCount(),
	})
}
