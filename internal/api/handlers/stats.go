package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/dynastyhq/dynasty-backend/internal/cache"
	"github.com/dynastyhq/dynasty-backend/internal/services"
	"github.com/dynastyhq/dynasty-backend/internal/source"
	"github.com/dynastyhq/dynasty-backend/pkg/config"
	"github.com/dynastyhq/dynasty-backend/pkg/utils"
)

type StatsHandler struct {
	orchestrator  *cache.Orchestrator
	responseCache *services.ResponseCache
	logger        *logrus.Logger
}

func NewStatsHandler(orchestrator *cache.Orchestrator, responseCache *services.ResponseCache, logger *logrus.Logger) *StatsHandler {
	return &StatsHandler{
		orchestrator:  orchestrator,
		responseCache: responseCache,
		logger:        logger,
	}
}

// ExtractStats serves GET /stats/extract. The body is the unified
// response shape; consumers check its error field rather than the HTTP
// status, which is 200 even on total source failure.
func (h *StatsHandler) ExtractStats(c *gin.Context) {
	opts, err := parseExtractOptions(c)
	if err != nil {
		utils.SendValidationError(c, "invalid extract parameters", err.Error())
		return
	}

	ctx := c.Request.Context()

	if memo, ok := h.responseCache.Get(ctx, opts); ok {
		c.JSON(http.StatusOK, memo)
		return
	}

	resp := h.orchestrator.ExtractData(ctx, opts)

	if !resp.Failed() {
		if err := h.responseCache.Set(ctx, opts, resp); err != nil {
			h.logger.WithFields(logrus.Fields{
				"component": "stats_handler",
				"error":     err.Error(),
			}).Warn("Failed to memoize extract response")
		}
	}

	c.JSON(http.StatusOK, resp)
}

func parseExtractOptions(c *gin.Context) (source.ExtractOptions, error) {
	var opts source.ExtractOptions

	if yearsStr := c.Query("years"); yearsStr != "" {
		years, err := config.ParseSeasons(yearsStr)
		if err != nil {
			return opts, err
		}
		opts.Years = years
	}

	if posStr := c.Query("positions"); posStr != "" {
		positions := strings.Split(posStr, ",")
		for i := range positions {
			positions[i] = strings.ToUpper(strings.TrimSpace(positions[i]))
		}
		opts.Positions = positions
	}

	if weekStr := c.Query("week"); weekStr != "" {
		week, err := strconv.Atoi(weekStr)
		if err != nil {
			return opts, err
		}
		opts.Week = &week
	}

	return opts, nil
}
