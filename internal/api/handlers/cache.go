package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/dynastyhq/dynasty-backend/internal/cache"
	"github.com/dynastyhq/dynasty-backend/pkg/utils"
)

type CacheHandler struct {
	orchestrator *cache.Orchestrator
	logger       *logrus.Logger
}

func NewCacheHandler(orchestrator *cache.Orchestrator, logger *logrus.Logger) *CacheHandler {
	return &CacheHandler{
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// GetCacheStats serves GET /cache/stats with an optional RFC3339 `since`
// query parameter.
func (h *CacheHandler) GetCacheStats(c *gin.Context) {
	var since *time.Time
	if sinceStr := c.Query("since"); sinceStr != "" {
		parsed, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			utils.SendValidationError(c, "invalid since timestamp", "expected RFC3339, e.g. 2026-01-02T15:04:05Z")
			return
		}
		since = &parsed
	}

	stats, err := h.orchestrator.GetCacheStats(since)
	if err != nil {
		utils.SendInternalError(c, "failed to compute cache stats")
		return
	}

	utils.SendSuccess(c, stats)
}

// InvalidateExpired serves POST /cache/invalidate-expired.
func (h *CacheHandler) InvalidateExpired(c *gin.Context) {
	deleted, err := h.orchestrator.InvalidateExpiredCache()
	if err != nil {
		utils.SendInternalError(c, "expiry sweep failed")
		return
	}

	utils.SendSuccess(c, gin.H{"deleted": deleted})
}

// Invalidate serves POST /cache/invalidate. An empty filter wipes the
// whole cache, so the body is required even if all fields are omitted.
func (h *CacheHandler) Invalidate(c *gin.Context) {
	var filter cache.InvalidationFilter
	if err := c.ShouldBindJSON(&filter); err != nil {
		utils.SendValidationError(c, "invalid invalidation filter", err.Error())
		return
	}

	deleted, err := h.orchestrator.InvalidateCache(filter)
	if err != nil {
		utils.SendInternalError(c, "invalidation failed")
		return
	}

	utils.SendSuccess(c, gin.H{"deleted": deleted})
}

type warmRequest struct {
	Years     []int    `json:"years" binding:"required"`
	Positions []string `json:"positions"`
}

// Warm serves POST /cache/warm. Warming runs in the background; the
// handler returns immediately.
func (h *CacheHandler) Warm(c *gin.Context) {
	var req warmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "invalid warm request", err.Error())
		return
	}

	go h.orchestrator.WarmCache(context.Background(), req.Years, req.Positions)

	h.logger.WithFields(logrus.Fields{
		"component": "cache_handler",
		"years":     req.Years,
		"positions": req.Positions,
	}).Info("Cache warm requested")

	utils.SendAccepted(c, gin.H{"status": "warming"})
}

type enabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// SetEnabled serves PUT /cache/enabled.
func (h *CacheHandler) SetEnabled(c *gin.Context) {
	var req enabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "invalid request", "body must be {\"enabled\": true|false}")
		return
	}

	h.orchestrator.SetCacheEnabled(*req.Enabled)
	utils.SendSuccess(c, gin.H{"enabled": *req.Enabled})
}
