package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/dynastyhq/dynasty-backend/internal/api/handlers"
	"github.com/dynastyhq/dynasty-backend/internal/cache"
	"github.com/dynastyhq/dynasty-backend/internal/services"
)

// SetupRoutes configures all API routes on the given router group.
func SetupRoutes(group *gin.RouterGroup, orchestrator *cache.Orchestrator, responseCache *services.ResponseCache, logger *logrus.Logger) {
	statsHandler := handlers.NewStatsHandler(orchestrator, responseCache, logger)
	cacheHandler := handlers.NewCacheHandler(orchestrator, logger)

	// Stats extraction
	group.GET("/stats/extract", statsHandler.ExtractStats)

	// Cache administration
	group.GET("/cache/stats", cacheHandler.GetCacheStats)
	group.POST("/cache/invalidate", cacheHandler.Invalidate)
	group.POST("/cache/invalidate-expired", cacheHandler.InvalidateExpired)
	group.POST("/cache/warm", cacheHandler.Warm)
	group.PUT("/cache/enabled", cacheHandler.SetEnabled)
}
