package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynastyhq/dynasty-backend/internal/cache"
	"github.com/dynastyhq/dynasty-backend/internal/models"
	"github.com/dynastyhq/dynasty-backend/internal/services"
	"github.com/dynastyhq/dynasty-backend/internal/source"
	"github.com/dynastyhq/dynasty-backend/pkg/database"
)

type stubSource struct {
	resp *source.ExtractResponse
	err  error
}

func (s *stubSource) Fetch(context.Context, source.ExtractOptions) (*source.ExtractResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.resp != nil {
		return s.resp, nil
	}
	return &source.ExtractResponse{
		WeeklyStats:   []source.StatRecord{},
		SeasonalStats: []source.StatRecord{},
	}, nil
}

func (s *stubSource) Name() string { return "stub" }

func newTestRouter(t *testing.T, src source.StatsSource) (*gin.Engine, *database.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewConnection("sqlite://"+filepath.Join(t.TempDir(), "api_test.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.PlayerStatRecord{},
		&models.CallLog{},
		&models.InvalidationEvent{},
	))

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	orchestrator := cache.NewOrchestrator(db, src, logger)
	responseCache := services.NewResponseCache(nil, 0)

	router := gin.New()
	SetupRoutes(router.Group("/api/v1"), orchestrator, responseCache, logger)
	return router, db
}

func doRequest(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestExtractStatsEndpoint(t *testing.T) {
	src := &stubSource{
		resp: &source.ExtractResponse{
			WeeklyStats: []source.StatRecord{
				{PlayerID: "00-0033873", PlayerName: "Patrick Mahomes", Position: "QB", Season: 2024, Week: 5},
			},
			SeasonalStats: []source.StatRecord{},
		},
	}
	router, _ := newTestRouter(t, src)

	w := doRequest(router, http.MethodGet, "/api/v1/stats/extract?years=2024&positions=qb&week=5", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp source.ExtractResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.WeeklyStats, 1)
	assert.Equal(t, "00-0033873", resp.WeeklyStats[0].PlayerID)
	assert.Empty(t, resp.Error)
}

func TestExtractStatsEndpointSourceFailure(t *testing.T) {
	src := &stubSource{err: assert.AnError}
	router, _ := newTestRouter(t, src)

	// Total source failure is still a 200; the error travels in the body.
	w := doRequest(router, http.MethodGet, "/api/v1/stats/extract?years=2024", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp source.ExtractResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Failed())
	assert.Empty(t, resp.WeeklyStats)
}

func TestExtractStatsEndpointBadParams(t *testing.T) {
	router, _ := newTestRouter(t, &stubSource{})

	for _, path := range []string{
		"/api/v1/stats/extract?years=twentytwentyfour",
		"/api/v1/stats/extract?week=five",
	} {
		w := doRequest(router, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)

		var envelope map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
		assert.Equal(t, false, envelope["success"])
	}
}

func TestCacheStatsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, &stubSource{})

	// One extract call seeds the log before reading stats.
	doRequest(router, http.MethodGet, "/api/v1/stats/extract?years=2024", nil)

	w := doRequest(router, http.MethodGet, "/api/v1/cache/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Success bool              `json:"success"`
		Data    models.CacheStats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.True(t, envelope.Success)
	assert.Equal(t, int64(1), envelope.Data.TotalCalls)
	assert.Equal(t, int64(1), envelope.Data.Misses)

	badSince := doRequest(router, http.MethodGet, "/api/v1/cache/stats?since=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, badSince.Code)
}

func TestInvalidateEndpoint(t *testing.T) {
	router, db := newTestRouter(t, &stubSource{})

	require.NoError(t, db.Create(&models.PlayerStatRecord{
		PlayerID: "00-0033873", PlayerName: "Patrick Mahomes", Position: "QB",
		Season: 2024, Week: 5,
		CachedAt: time.Now().UTC(), ExpiresAt: time.Now().UTC().Add(time.Hour),
	}).Error)

	w := doRequest(router, http.MethodPost, "/api/v1/cache/invalidate", map[string]interface{}{"season": 2024})
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			Deleted int64 `json:"deleted"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.True(t, envelope.Success)
	assert.Equal(t, int64(1), envelope.Data.Deleted)

	// A missing body is rejected rather than treated as a full wipe.
	noBody := doRequest(router, http.MethodPost, "/api/v1/cache/invalidate", nil)
	assert.Equal(t, http.StatusBadRequest, noBody.Code)
}

func TestInvalidateExpiredEndpoint(t *testing.T) {
	router, db := newTestRouter(t, &stubSource{})

	require.NoError(t, db.Create(&models.PlayerStatRecord{
		PlayerID: "00-0033873", PlayerName: "Patrick Mahomes", Position: "QB",
		Season: 2023, Week: 1,
		CachedAt: time.Now().UTC().Add(-2 * time.Hour), ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}).Error)

	w := doRequest(router, http.MethodPost, "/api/v1/cache/invalidate-expired", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data struct {
			Deleted int64 `json:"deleted"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, int64(1), envelope.Data.Deleted)
}

func TestWarmEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, &stubSource{})

	w := doRequest(router, http.MethodPost, "/api/v1/cache/warm", map[string]interface{}{"years": []int{2024}})
	assert.Equal(t, http.StatusAccepted, w.Code)

	missingYears := doRequest(router, http.MethodPost, "/api/v1/cache/warm", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, missingYears.Code)
}

func TestSetEnabledEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, &stubSource{})

	w := doRequest(router, http.MethodPut, "/api/v1/cache/enabled", map[string]interface{}{"enabled": false})
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			Enabled bool `json:"enabled"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.True(t, envelope.Success)
	assert.False(t, envelope.Data.Enabled)

	missingField := doRequest(router, http.MethodPut, "/api/v1/cache/enabled", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, missingField.Code)
}
