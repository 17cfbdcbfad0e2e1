package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/dynastyhq/dynasty-backend/internal/services"
	"github.com/dynastyhq/dynasty-backend/pkg/database"
)

type HealthHandler struct {
	db            *database.DB
	responseCache *services.ResponseCache
	scheduler     *services.MaintenanceScheduler
	logger        *logrus.Logger
}

func NewHealthHandler(db *database.DB, responseCache *services.ResponseCache, scheduler *services.MaintenanceScheduler, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{
		db:            db,
		responseCache: responseCache,
		scheduler:     scheduler,
		logger:        logger,
	}
}

// GetHealth is the liveness probe; returns 200 whenever the process is up.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "dynasty-backend",
		"time":    time.Now().UTC(),
	})
}

// GetReady is the readiness probe; checks the store and, when
// configured, Redis.
func (h *HealthHandler) GetReady(c *gin.Context) {
	checks := gin.H{}
	healthy := true

	if err := h.db.HealthCheck(); err != nil {
		checks["database"] = err.Error()
		healthy = false
	} else {
		checks["database"] = "ok"
	}

	if h.responseCache.Enabled() {
		if err := h.responseCache.Ping(c.Request.Context()); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		} else {
			checks["redis"] = "ok"
		}
	}

	if h.scheduler != nil {
		checks["scheduler"] = h.scheduler.GetStatus()
	}

	status := http.StatusOK
	state := "ready"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "not_ready"
	}

	c.JSON(status, gin.H{
		"status": state,
		"checks": checks,
	})
}
