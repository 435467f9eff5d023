package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/yt-fetch-go/api/handlers"
	"github.com/yourusername/yt-fetch-go/api/middleware"
	"github.com/yourusername/yt-fetch-go/internal/app"
	"github.com/yourusername/yt-fetch-go/internal/domain"
	"github.com/yourusername/yt-fetch-go/pkg/logger"
	"github.com/yourusername/yt-fetch-go/web"
)

// RouterConfig carries the settings the HTTP layer needs
type RouterConfig struct {
	LogsDir         string
	ExtractorBinary string
	DefaultQuality  domain.Quality
	RateLimit       domain.RateLimitConfig
}

// SetupRouter sets up the HTTP router
func SetupRouter(service *app.FetchService, logAdapter *logger.LoggerAdapter, config RouterConfig) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Middleware
	router.Use(middleware.RecoveryWithAdapter(logAdapter))
	router.Use(middleware.LoggerWithAdapter(logAdapter))
	router.Use(middleware.CORS())

	templates, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	router.SetHTMLTemplate(templates)
	router.StaticFS("/static", http.FS(web.GetStaticFS()))

	// admitted wraps handlers that start new fetches
	admitted := func(h gin.HandlerFunc) []gin.HandlerFunc {
		return []gin.HandlerFunc{h}
	}
	if config.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(config.RateLimit.RequestsPerSecond, config.RateLimit.Burst)
		admitted = func(h gin.HandlerFunc) []gin.HandlerFunc {
			return []gin.HandlerFunc{limiter.Middleware(), h}
		}
	}

	responder := handlers.NewArtifactResponder(logAdapter.Fetch())
	fetchHandler := handlers.NewFetchHandler(service, responder, config.DefaultQuality, logAdapter.General())
	pageHandler := handlers.NewPageHandler(config.DefaultQuality)

	// Front page and synchronous fetch
	router.GET("/", pageHandler.Index)
	router.POST("/fetch", admitted(fetchHandler.Fetch)...)
	router.GET("/status/:id", fetchHandler.GetFetch)

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(service, config.ExtractorBinary)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		statusWS := handlers.NewStatusWebSocketHandler(service, logAdapter.General())
		fetches := v1.Group("/fetches")
		{
			fetches.POST("", admitted(fetchHandler.Submit)...)
			fetches.GET("", fetchHandler.ListFetches)
			fetches.POST("/purge", fetchHandler.Purge)
			fetches.GET("/:id", fetchHandler.GetFetch)
			fetches.GET("/:id/file", fetchHandler.GetFile)
			fetches.GET("/:id/ws", statusWS.HandleWebSocket)
		}

		historyHandler := handlers.NewHistoryHandler(service, logAdapter.General())
		history := v1.Group("/history")
		{
			history.GET("", historyHandler.List)
			history.GET("/stats", historyHandler.Stats)
			history.DELETE("", historyHandler.Prune)
		}

		if config.LogsDir != "" {
			logHandler := handlers.NewLogHandler(config.LogsDir)
			logWS := handlers.NewLogWebSocketHandler(config.LogsDir, logAdapter.General())
			logs := v1.Group("/logs")
			{
				logs.GET("/categories", logHandler.GetCategories)
				logs.GET("/ws", logWS.HandleWebSocket)
				logs.GET("/:category", logHandler.GetLogs)
				logs.GET("/:category/search", logHandler.SearchLogs)
				logs.GET("/:category/export", logHandler.ExportLogs)
			}
		}
	}

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, handlers.ErrorResponse{Error: "not found", Kind: handlers.KindNotFound})
			return
		}
		c.Redirect(http.StatusFound, "/")
	})

	return router, nil
}
