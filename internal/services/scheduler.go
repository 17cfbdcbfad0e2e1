package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/dynastyhq/dynasty-backend/internal/cache"
)

// JobInfo tracks one scheduled maintenance job.
type JobInfo struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Schedule   string        `json:"schedule"`
	LastRun    time.Time     `json:"last_run"`
	NextRun    time.Time     `json:"next_run"`
	Status     string        `json:"status"`
	RunCount   int           `json:"run_count"`
	ErrorCount int           `json:"error_count"`
	LastError  string        `json:"last_error,omitempty"`
	Duration   time.Duration `json:"duration"`
	IsEnabled  bool          `json:"is_enabled"`
}

// MaintenanceScheduler runs the periodic expiry sweep and off-peak cache
// warming against the orchestrator.
type MaintenanceScheduler struct {
	orchestrator *cache.Orchestrator
	logger       *logrus.Logger
	cron         *cron.Cron

	sweepSchedule string
	warmSchedule  string
	warmSeasons   []int
	warmPositions []string

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	jobs      map[string]JobInfo
	isRunning bool
}

func NewMaintenanceScheduler(
	orchestrator *cache.Orchestrator,
	logger *logrus.Logger,
	sweepSchedule, warmSchedule string,
	warmSeasons []int,
	warmPositions []string,
) *MaintenanceScheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &MaintenanceScheduler{
		orchestrator:  orchestrator,
		logger:        logger,
		cron:          cron.New(),
		sweepSchedule: sweepSchedule,
		warmSchedule:  warmSchedule,
		warmSeasons:   warmSeasons,
		warmPositions: warmPositions,
		ctx:           ctx,
		cancel:        cancel,
		jobs:          make(map[string]JobInfo),
	}
}

// Start schedules the maintenance jobs and begins the cron loop.
func (s *MaintenanceScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("maintenance scheduler is already running")
	}

	if err := s.addJob("expiry_sweep", s.sweepSchedule, "Expired cache sweep", s.sweepExpired); err != nil {
		return fmt.Errorf("failed to schedule expiry sweep: %w", err)
	}

	if len(s.warmSeasons) > 0 {
		if err := s.addJob("cache_warming", s.warmSchedule, "Cache warming", s.warmCache); err != nil {
			return fmt.Errorf("failed to schedule cache warming: %w", err)
		}
	}

	s.cron.Start()
	s.isRunning = true

	s.logger.WithFields(logrus.Fields{
		"component": "maintenance_scheduler",
		"jobs":      len(s.jobs),
	}).Info("Maintenance scheduler started")
	return nil
}

// Stop halts the cron loop and waits briefly for running jobs.
func (s *MaintenanceScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		s.logger.WithField("component", "maintenance_scheduler").Warn("Scheduler stop timed out")
	}

	s.cancel()
	s.isRunning = false
	s.logger.WithField("component", "maintenance_scheduler").Info("Maintenance scheduler stopped")
}

func (s *MaintenanceScheduler) addJob(id, schedule, name string, jobFunc func()) error {
	entryID, err := s.cron.AddFunc(schedule, func() {
		s.runJob(id, name, jobFunc)
	})
	if err != nil {
		return fmt.Errorf("failed to add job %s: %w", id, err)
	}

	var nextRun time.Time
	for _, entry := range s.cron.Entries() {
		if entry.ID == entryID {
			nextRun = entry.Next
			break
		}
	}

	s.jobs[id] = JobInfo{
		ID:        id,
		Name:      name,
		Schedule:  schedule,
		NextRun:   nextRun,
		Status:    "scheduled",
		IsEnabled: true,
	}

	s.logger.WithFields(logrus.Fields{
		"component": "maintenance_scheduler",
		"job_id":    id,
		"schedule":  schedule,
	}).Info("Scheduled job added")
	return nil
}

// runJob executes one job with panic recovery and bookkeeping.
func (s *MaintenanceScheduler) runJob(id, name string, jobFunc func()) {
	s.mu.Lock()
	job, exists := s.jobs[id]
	if !exists || !job.IsEnabled {
		s.mu.Unlock()
		return
	}
	job.Status = "running"
	job.LastRun = time.Now()
	job.RunCount++
	s.jobs[id] = job
	s.mu.Unlock()

	logger := s.logger.WithFields(logrus.Fields{
		"component": "maintenance_scheduler",
		"job_id":    id,
		"job_name":  name,
	})

	logger.Info("Starting scheduled job")
	startTime := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("Job panicked")
			s.updateJobStatus(id, "failed", fmt.Sprintf("panic: %v", r), time.Since(startTime))
		}
	}()

	jobFunc()

	duration := time.Since(startTime)
	logger.WithField("duration", duration).Info("Job completed")
	s.updateJobStatus(id, "completed", "", duration)
}

func (s *MaintenanceScheduler) updateJobStatus(id, status, errorMsg string, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return
	}

	job.Status = status
	job.Duration = duration
	if errorMsg != "" {
		job.ErrorCount++
		job.LastError = errorMsg
	}
	s.jobs[id] = job
}

func (s *MaintenanceScheduler) sweepExpired() {
	deleted, err := s.orchestrator.InvalidateExpiredCache()
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"component": "maintenance_scheduler",
			"error":     err.Error(),
		}).Error("Expiry sweep failed")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"component": "maintenance_scheduler",
		"deleted":   deleted,
	}).Info("Expiry sweep completed")
}

func (s *MaintenanceScheduler) warmCache() {
	s.orchestrator.WarmCache(s.ctx, s.warmSeasons, s.warmPositions)
}

// TriggerJob manually runs a job outside its schedule.
func (s *MaintenanceScheduler) TriggerJob(id string) error {
	s.mu.RLock()
	job, exists := s.jobs[id]
	s.mu.RUnlock()

	if !exists {
		return fmt.Errorf("job %s not found", id)
	}

	jobFunctions := map[string]func(){
		"expiry_sweep":  s.sweepExpired,
		"cache_warming": s.warmCache,
	}
	jobFunc, ok := jobFunctions[id]
	if !ok {
		return fmt.Errorf("job function not found for %s", id)
	}

	s.logger.WithField("job_id", id).Info("Manually triggering job")
	go s.runJob(id, job.Name, jobFunc)
	return nil
}

// GetStatus returns the scheduler's current state for health endpoints.
func (s *MaintenanceScheduler) GetStatus() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make(map[string]JobInfo, len(s.jobs))
	for k, v := range s.jobs {
		jobs[k] = v
	}

	return map[string]interface{}{
		"is_running": s.isRunning,
		"jobs":       jobs,
		"job_count":  len(jobs),
	}
}
