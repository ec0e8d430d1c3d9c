package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/qpaper-go/internal/app"
	"github.com/yourusername/qpaper-go/internal/domain"
	"github.com/yourusername/qpaper-go/internal/infrastructure"
)

// CatalogHandler exposes the configured paper catalog
type CatalogHandler struct {
	syncer *app.Syncer
	load   app.CatalogLoader
	config *domain.FetchConfig
	logger *zap.Logger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(syncer *app.Syncer, load app.CatalogLoader, config *domain.FetchConfig, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		syncer: syncer,
		load:   load,
		config: config,
		logger: logger,
	}
}

// CatalogEntryResponse is a catalog entry with its resolved destination
type CatalogEntryResponse struct {
	Board string            `json:"board"`
	Name  string            `json:"name"`
	URL   string            `json:"url"`
	Path  string            `json:"path,omitempty"`
	Paper *domain.PaperName `json:"paper,omitempty"`
	Error string            `json:"error,omitempty"`
}

// ListCatalog handles GET /api/v1/catalog
func (h *CatalogHandler) ListCatalog(c *gin.Context) {
	catalog, err := h.load()
	if err != nil {
		h.logger.Error("Failed to load catalog", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var entries []CatalogEntryResponse
	for _, group := range catalog.Boards {
		for _, entry := range group.Papers {
			resp := CatalogEntryResponse{Board: group.Board, Name: entry.Name, URL: entry.URL}
			if parsed, err := domain.ParsePaperName(entry.Name); err != nil {
				resp.Error = err.Error()
			} else {
				resp.Paper = &parsed
				resp.Path, _ = infrastructure.ResolveDestination(h.config.PapersDir(), entry.Name)
			}
			entries = append(entries, resp)
		}
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries, "total": len(entries)})
}

// EnqueueCatalog handles POST /api/v1/catalog/enqueue
func (h *CatalogHandler) EnqueueCatalog(c *gin.Context) {
	catalog, err := h.load()
	if err != nil {
		h.logger.Error("Failed to load catalog", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	report, err := h.syncer.Enqueue(catalog)
	if err != nil {
		h.logger.Error("Failed to enqueue catalog", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, report)
}
