package services

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynastyhq/dynasty-backend/internal/cache"
	"github.com/dynastyhq/dynasty-backend/internal/models"
	"github.com/dynastyhq/dynasty-backend/internal/source"
	"github.com/dynastyhq/dynasty-backend/pkg/database"
)

type stubSource struct{}

func (stubSource) Fetch(context.Context, source.ExtractOptions) (*source.ExtractResponse, error) {
	return &source.ExtractResponse{
		WeeklyStats:   []source.StatRecord{},
		SeasonalStats: []source.StatRecord{},
	}, nil
}

func (stubSource) Name() string { return "stub" }

func newTestScheduler(t *testing.T, warmSeasons []int) *MaintenanceScheduler {
	t.Helper()

	db, err := database.NewConnection("sqlite://"+filepath.Join(t.TempDir(), "scheduler_test.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.PlayerStatRecord{},
		&models.CallLog{},
		&models.InvalidationEvent{},
	))

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	orchestrator := cache.NewOrchestrator(db, stubSource{}, logger)
	return NewMaintenanceScheduler(orchestrator, logger, "0 * * * *", "0 4 * * *", warmSeasons, nil)
}

func TestSchedulerStartStop(t *testing.T) {
	s := newTestScheduler(t, []int{2024})

	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Error(t, s.Start(), "starting twice must fail")

	status := s.GetStatus()
	assert.Equal(t, true, status["is_running"])
	assert.Equal(t, 2, status["job_count"])

	jobs := status["jobs"].(map[string]JobInfo)
	assert.Contains(t, jobs, "expiry_sweep")
	assert.Contains(t, jobs, "cache_warming")
	assert.Equal(t, "scheduled", jobs["expiry_sweep"].Status)
	assert.False(t, jobs["expiry_sweep"].NextRun.IsZero())
}

func TestSchedulerSkipsWarmingWithoutSeasons(t *testing.T) {
	s := newTestScheduler(t, nil)

	require.NoError(t, s.Start())
	defer s.Stop()

	status := s.GetStatus()
	assert.Equal(t, 1, status["job_count"])

	jobs := status["jobs"].(map[string]JobInfo)
	assert.NotContains(t, jobs, "cache_warming")
}

func TestSchedulerTriggerJob(t *testing.T) {
	s := newTestScheduler(t, []int{2024})

	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Error(t, s.TriggerJob("no_such_job"))

	require.NoError(t, s.TriggerJob("expiry_sweep"))

	assert.Eventually(t, func() bool {
		jobs := s.GetStatus()["jobs"].(map[string]JobInfo)
		job := jobs["expiry_sweep"]
		return job.RunCount == 1 && job.Status == "completed"
	}, 5*time.Second, 20*time.Millisecond)
}
