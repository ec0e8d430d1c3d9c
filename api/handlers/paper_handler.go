package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/qpaper-go/internal/app"
	"github.com/yourusername/qpaper-go/internal/domain"
	"github.com/yourusername/qpaper-go/internal/infrastructure"
)

// PaperHandler handles paper-related HTTP requests
type PaperHandler struct {
	queueMgr *app.QueueManager
	fetchMgr *app.FetchManager
	config   *domain.FetchConfig
	logger   *zap.Logger
}

// NewPaperHandler creates a new paper handler
func NewPaperHandler(queueMgr *app.QueueManager, fetchMgr *app.FetchManager, config *domain.FetchConfig, logger *zap.Logger) *PaperHandler {
	return &PaperHandler{
		queueMgr: queueMgr,
		fetchMgr: fetchMgr,
		config:   config,
		logger:   logger,
	}
}

// AddPaperRequest represents a request to queue a paper.
// Destination is relative to the papers directory and defaults to the
// catalog location derived from Name.
type AddPaperRequest struct {
	URL         string `json:"url" binding:"required,url"`
	Name        string `json:"name,omitempty"`
	Destination string `json:"destination,omitempty"`
}

// AddPaper handles POST /api/v1/papers
func (h *PaperHandler) AddPaper(c *gin.Context) {
	var req AddPaperRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var (
		dest string
		err  error
	)
	switch {
	case req.Destination != "":
		dest, err = infrastructure.ConfineDestination(h.config.PapersDir(), req.Destination)
	case req.Name != "":
		dest, err = infrastructure.ResolveDestination(h.config.PapersDir(), req.Name)
	default:
		err = errors.New("either name or destination is required")
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	paper, err := h.queueMgr.AddPaper(req.URL, req.Name, dest)
	if err != nil {
		h.logger.Error("Failed to add paper", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, paper)
}

// GetPaper handles GET /api/v1/papers/:id
func (h *PaperHandler) GetPaper(c *gin.Context) {
	paper, err := h.queueMgr.GetPaper(c.Param("id"))
	if err != nil {
		h.respondError(c, "Failed to get paper", err)
		return
	}

	c.JSON(http.StatusOK, paper)
}

// ListPapers handles GET /api/v1/papers
func (h *PaperHandler) ListPapers(c *gin.Context) {
	filters := make(map[string]interface{})

	if status := c.Query("status"); status != "" {
		if !domain.ValidateStatus(domain.PaperStatus(status)) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status: " + status})
			return
		}
		filters["status"] = status
	}
	if board := c.Query("board"); board != "" {
		filters["board"] = board
	}
	if year := c.Query("year"); year != "" {
		y, err := strconv.Atoi(year)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid year: " + year})
			return
		}
		filters["year"] = y
	}

	papers, err := h.queueMgr.ListPapers(filters)
	if err != nil {
		h.logger.Error("Failed to list papers", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, papers)
}

// GetStats handles GET /api/v1/papers/stats
func (h *PaperHandler) GetStats(c *gin.Context) {
	stats, err := h.queueMgr.GetStats()
	if err != nil {
		h.logger.Error("Failed to get stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// CancelPaper handles POST /api/v1/papers/:id/cancel
func (h *PaperHandler) CancelPaper(c *gin.Context) {
	id := c.Param("id")

	if err := h.fetchMgr.CancelPaper(id); err != nil {
		h.respondError(c, "Failed to cancel paper", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "paper cancelled"})
}

// RetryPaper handles POST /api/v1/papers/:id/retry
func (h *PaperHandler) RetryPaper(c *gin.Context) {
	paper, err := h.fetchMgr.RetryPaper(c.Param("id"))
	if err != nil {
		h.respondError(c, "Failed to retry paper", err)
		return
	}

	c.JSON(http.StatusOK, paper)
}

// DeletePaper handles DELETE /api/v1/papers/:id
func (h *PaperHandler) DeletePaper(c *gin.Context) {
	id := c.Param("id")

	if err := h.queueMgr.DeletePaper(id); err != nil {
		h.respondError(c, "Failed to delete paper", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "paper deleted"})
}

func (h *PaperHandler) respondError(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, domain.ErrPaperNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "paper not found"})
	case errors.Is(err, app.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error(msg, zap.String("id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
