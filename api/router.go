package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/qpaper-go/api/handlers"
	"github.com/yourusername/qpaper-go/api/middleware"
	"github.com/yourusername/qpaper-go/internal/app"
	"github.com/yourusername/qpaper-go/internal/domain"
	"github.com/yourusername/qpaper-go/pkg/logger"
)

// RouterDeps groups what the HTTP API is served from
type RouterDeps struct {
	QueueMgr      *app.QueueManager
	FetchMgr      *app.FetchManager
	Syncer        *app.Syncer
	CatalogLoader app.CatalogLoader
	FetchConfig   *domain.FetchConfig
	LogAdapter    *logger.LoggerAdapter
	LogsDir       string

	AllowedOrigins []string
}

// SetupRouter sets up the HTTP router
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(middleware.RequestLogger(deps.LogAdapter))
	router.Use(middleware.Recovery(deps.LogAdapter))
	router.Use(middleware.CORS(deps.AllowedOrigins))

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(deps.QueueMgr)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		paperHandler := handlers.NewPaperHandler(deps.QueueMgr, deps.FetchMgr, deps.FetchConfig, deps.LogAdapter.Queue())
		papers := v1.Group("/papers")
		{
			papers.POST("", paperHandler.AddPaper)
			papers.GET("", paperHandler.ListPapers)
			papers.GET("/stats", paperHandler.GetStats)
			papers.GET("/:id", paperHandler.GetPaper)
			papers.POST("/:id/cancel", paperHandler.CancelPaper)
			papers.POST("/:id/retry", paperHandler.RetryPaper)
			papers.DELETE("/:id", paperHandler.DeletePaper)
		}

		if deps.Syncer != nil && deps.CatalogLoader != nil {
			catalogHandler := handlers.NewCatalogHandler(deps.Syncer, deps.CatalogLoader, deps.FetchConfig, deps.LogAdapter.Queue())
			catalog := v1.Group("/catalog")
			{
				catalog.GET("", catalogHandler.ListCatalog)
				catalog.POST("/enqueue", catalogHandler.EnqueueCatalog)
			}
		}

		if deps.LogsDir != "" {
			logHandler := handlers.NewLogHandler(deps.LogsDir)
			wsHandler := handlers.NewLogWebSocketHandler(deps.LogsDir, deps.LogAdapter.Queue())
			logs := v1.Group("/logs")
			{
				logs.GET("/categories", logHandler.GetCategories)
				logs.GET("/stream", wsHandler.HandleWebSocket)
				logs.GET("/:category", logHandler.GetLogs)
				logs.GET("/:category/search", logHandler.SearchLogs)
				logs.GET("/:category/export", logHandler.ExportLogs)
			}
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
