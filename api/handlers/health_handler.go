package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/qpaper-go/internal/app"
)

// Version is reported by the health endpoint and the server banner
const Version = "1.0.0"

// HealthHandler reports liveness and queue readiness
type HealthHandler struct {
	queueMgr *app.QueueManager
	started  time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(queueMgr *app.QueueManager) *HealthHandler {
	return &HealthHandler{
		queueMgr: queueMgr,
		started:  time.Now(),
	}
}

// QueueHealth summarizes the queue for health checks
type QueueHealth struct {
	Running    bool  `json:"running"`
	Queued     int64 `json:"queued"`
	Processing int64 `json:"processing"`
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status  string      `json:"status"`
	Version string      `json:"version"`
	Uptime  string      `json:"uptime"`
	Queue   QueueHealth `json:"queue"`
}

// Health handles GET /health; it answers 200 whenever the process serves requests
func (h *HealthHandler) Health(c *gin.Context) {
	response := HealthResponse{
		Status:  "ok",
		Version: Version,
		Uptime:  time.Since(h.started).Round(time.Second).String(),
		Queue:   QueueHealth{Running: h.queueMgr.IsRunning()},
	}
	if stats, err := h.queueMgr.GetStats(); err == nil {
		response.Queue.Queued = stats.Queued
		response.Queue.Processing = stats.Processing
	} else {
		response.Status = "degraded"
	}

	c.JSON(http.StatusOK, response)
}

// Ready handles GET /ready; the server is ready once the queue runs and the store answers
func (h *HealthHandler) Ready(c *gin.Context) {
	if !h.queueMgr.IsRunning() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "queue manager not running",
		})
		return
	}

	if _, err := h.queueMgr.GetStats(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "paper store unavailable: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
