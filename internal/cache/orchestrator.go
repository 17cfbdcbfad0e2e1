// Package cache implements the cache-first read strategy over the
// relational store: lookup, fetch-through, TTL-based population,
// call logging, invalidation and warming.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dynastyhq/dynasty-backend/internal/models"
	"github.com/dynastyhq/dynasty-backend/internal/source"
	"github.com/dynastyhq/dynasty-backend/internal/ttl"
	"github.com/dynastyhq/dynasty-backend/pkg/database"
)

// Orchestrator owns all writes to the stats, call-log and invalidation
// tables. Construct one at process start and inject it into the entry
// points that need it; call Close during orderly shutdown.
type Orchestrator struct {
	db     *database.DB
	source source.StatsSource
	logger *logrus.Logger

	clock      func() time.Time
	seasonWeek ttl.SeasonWeekFunc

	mu      sync.RWMutex
	enabled bool
}

func NewOrchestrator(db *database.DB, src source.StatsSource, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		db:         db,
		source:     src,
		logger:     logger,
		clock:      func() time.Time { return time.Now().UTC() },
		seasonWeek: ttl.SeasonWeek,
		enabled:    true,
	}
}

// SetCacheEnabled toggles the cache layer at runtime. When disabled,
// every extraction goes straight to the stats source.
func (o *Orchestrator) SetCacheEnabled(enabled bool) {
	o.mu.Lock()
	o.enabled = enabled
	o.mu.Unlock()

	o.logger.WithFields(logrus.Fields{
		"component": "cache_orchestrator",
		"enabled":   enabled,
	}).Info("Cache toggled")
}

// CacheEnabled reports whether the cache layer is active.
func (o *Orchestrator) CacheEnabled() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.enabled
}

// Close releases the store connection. Required for scripts that
// manipulate the store directly, e.g. the warm-cache batch job.
func (o *Orchestrator) Close() error {
	return o.db.Close()
}

// InvalidationFilter selects rows for manual invalidation. All fields
// optional, combined with AND. An empty filter deletes the entire cache.
type InvalidationFilter struct {
	Season   *int    `json:"season,omitempty"`
	Week     *int    `json:"week,omitempty"`
	PlayerID *string `json:"player_id,omitempty"`
}

// ExtractData is the cache-first read path. It never returns an error:
// total failure is reported as a well-formed response carrying an Error
// string, and an unexpected cache-layer fault degrades to an uncached
// fetch so a cache bug cannot fail the request.
func (o *Orchestrator) ExtractData(ctx context.Context, opts source.ExtractOptions) *source.ExtractResponse {
	start := o.clock()

	resp, err := o.extract(ctx, opts, start)
	if err == nil {
		return resp
	}

	o.logger.WithFields(logrus.Fields{
		"component": "cache_orchestrator",
		"error":     err.Error(),
	}).Error("Extraction failed inside cache layer, retrying without cache")
	o.logCall(models.EndpointExtractError, opts, false, o.clock().Sub(start), err.Error())

	direct, fetchErr := o.source.Fetch(ctx, opts)
	if fetchErr != nil {
		return source.ErrorResponse(opts, fetchErr)
	}
	return direct
}

// extract runs the lookup/fetch/populate sequence. Only unexpected
// internal faults surface as errors; source failures are folded into the
// response per the error policy.
func (o *Orchestrator) extract(ctx context.Context, opts source.ExtractOptions, start time.Time) (resp *source.ExtractResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = fmt.Errorf("panic in cache layer: %v", r)
		}
	}()

	if o.CacheEnabled() {
		rows, lookupErr := o.lookup(opts)
		if lookupErr != nil {
			// A broken store read is a cache miss, not a request failure.
			o.logger.WithFields(logrus.Fields{
				"component": "cache_orchestrator",
				"error":     lookupErr.Error(),
			}).Warn("Cache lookup failed, falling through to stats source")
		} else if len(rows) > 0 {
			o.logCall(models.EndpointCacheHit, opts, true, o.clock().Sub(start), "")
			return o.responseFromRows(rows, opts), nil
		}
	}

	fetchStart := o.clock()
	fresh, fetchErr := o.source.Fetch(ctx, opts)
	elapsed := o.clock().Sub(fetchStart)

	if fetchErr != nil {
		o.logCall(models.EndpointFetchAndCache, opts, false, elapsed, fetchErr.Error())
		return source.ErrorResponse(opts, fetchErr), nil
	}
	if fresh.Failed() {
		o.logCall(models.EndpointFetchAndCache, opts, false, elapsed, fresh.Error)
		return fresh, nil
	}

	o.logCall(models.EndpointFetchAndCache, opts, true, elapsed, "")

	if o.CacheEnabled() && fresh.RecordCount() > 0 {
		if popErr := o.populate(fresh); popErr != nil {
			// Best effort: the caller already has valid data in hand.
			o.logger.WithFields(logrus.Fields{
				"component": "cache_orchestrator",
				"error":     popErr.Error(),
			}).Warn("Cache population failed, returning uncached response")
		}
	}

	return fresh, nil
}

// lookup returns non-expired rows matching the request. Week semantics
// are strict: no requested week means season aggregates only, so weekly
// breakdowns are never substituted for a season query or vice versa.
func (o *Orchestrator) lookup(opts source.ExtractOptions) ([]models.PlayerStatRecord, error) {
	week := models.WeekSeasonTotal
	if opts.Week != nil {
		week = *opts.Week
	}

	query := o.db.Where("expires_at >= ?", o.clock()).Where("week = ?", week)
	if len(opts.Years) > 0 {
		query = query.Where("season IN ?", opts.Years)
	}
	if len(opts.Positions) > 0 {
		query = query.Where("position IN ?", opts.Positions)
	}

	var rows []models.PlayerStatRecord
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("cache lookup failed: %w", err)
	}
	return rows, nil
}

// populate upserts fetched records keyed by (player_id, season, week).
// The composite unique index makes each write a single atomic upsert, so
// repeated population of the same keys never duplicates rows.
func (o *Orchestrator) populate(resp *source.ExtractResponse) error {
	now := o.clock()
	currentSeason, currentWeek := o.seasonWeek(now)

	rows := make([]models.PlayerStatRecord, 0, resp.RecordCount())
	for _, rec := range resp.WeeklyStats {
		rows = append(rows, o.toRow(rec, rec.Week, now, currentSeason, currentWeek))
	}
	for _, rec := range resp.SeasonalStats {
		rows = append(rows, o.toRow(rec, models.WeekSeasonTotal, now, currentSeason, currentWeek))
	}
	if len(rows) == 0 {
		return nil
	}

	err := o.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "player_id"}, {Name: "season"}, {Name: "week"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"player_name", "position", "team",
			"passing_yards", "passing_tds", "interceptions",
			"rushing_yards", "rushing_tds",
			"receiving_yards", "receiving_tds",
			"targets", "receptions", "fumbles_lost",
			"fantasy_points", "fantasy_points_ppr",
			"cached_at", "expires_at",
		}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("cache population failed: %w", err)
	}

	o.logger.WithFields(logrus.Fields{
		"component": "cache_orchestrator",
		"rows":      len(rows),
	}).Debug("Cache populated")
	return nil
}

func (o *Orchestrator) toRow(rec source.StatRecord, week int, now time.Time, currentSeason, currentWeek int) models.PlayerStatRecord {
	lifetime := ttl.For(rec.Season, week, currentSeason, currentWeek)
	return models.PlayerStatRecord{
		PlayerID:         rec.PlayerID,
		PlayerName:       rec.PlayerName,
		Position:         rec.Position,
		Team:             rec.Team,
		Season:           rec.Season,
		Week:             week,
		PassingYards:     rec.PassingYards,
		PassingTDs:       rec.PassingTDs,
		Interceptions:    rec.Interceptions,
		RushingYards:     rec.RushingYards,
		RushingTDs:       rec.RushingTDs,
		ReceivingYards:   rec.ReceivingYards,
		ReceivingTDs:     rec.ReceivingTDs,
		Targets:          rec.Targets,
		Receptions:       rec.Receptions,
		FumblesLost:      rec.FumblesLost,
		FantasyPoints:    rec.FantasyPoints,
		FantasyPointsPPR: rec.FantasyPointsPPR,
		CachedAt:         now,
		ExpiresAt:        now.Add(lifetime),
	}
}

// responseFromRows rebuilds the unified response shape from cached rows,
// split into weekly and seasonal arrays by the week sentinel.
func (o *Orchestrator) responseFromRows(rows []models.PlayerStatRecord, opts source.ExtractOptions) *source.ExtractResponse {
	weekly := make([]source.StatRecord, 0, len(rows))
	seasonal := make([]source.StatRecord, 0)
	players := make(map[string]struct{})
	teams := make(map[string]struct{})

	for _, row := range rows {
		rec := source.StatRecord{
			PlayerID:         row.PlayerID,
			PlayerName:       row.PlayerName,
			Position:         row.Position,
			Team:             row.Team,
			Season:           row.Season,
			Week:             row.Week,
			PassingYards:     row.PassingYards,
			PassingTDs:       row.PassingTDs,
			Interceptions:    row.Interceptions,
			RushingYards:     row.RushingYards,
			RushingTDs:       row.RushingTDs,
			ReceivingYards:   row.ReceivingYards,
			ReceivingTDs:     row.ReceivingTDs,
			Targets:          row.Targets,
			Receptions:       row.Receptions,
			FumblesLost:      row.FumblesLost,
			FantasyPoints:    row.FantasyPoints,
			FantasyPointsPPR: row.FantasyPointsPPR,
		}

		if row.IsSeasonTotal() {
			rec.Week = 0
			seasonal = append(seasonal, rec)
		} else {
			weekly = append(weekly, rec)
		}

		players[row.PlayerID] = struct{}{}
		if row.Team != "" {
			teams[row.Team] = struct{}{}
		}
	}

	return &source.ExtractResponse{
		WeeklyStats:           weekly,
		SeasonalStats:         seasonal,
		AggregatedSeasonStats: seasonal,
		PlayerInfo:            []source.PlayerInfo{},
		TeamAnalytics:         []source.TeamAnalytics{},
		Metadata: source.Metadata{
			Years:                opts.Years,
			Positions:            opts.Positions,
			Week:                 opts.Week,
			ExtractedAt:          o.clock(),
			TotalWeeklyRecords:   len(weekly),
			TotalSeasonalRecords: len(seasonal),
			TotalPlayers:         len(players),
			TotalTeams:           len(teams),
			Source:               "cache",
		},
	}
}

// GetCacheStats aggregates the call log, optionally since a timestamp.
// Hit rate counts cache_hit against fetch_and_cache; the mean response
// time spans all logged entries, errors included.
func (o *Orchestrator) GetCacheStats(since *time.Time) (*models.CacheStats, error) {
	query := o.db.Model(&models.CallLog{})
	if since != nil {
		query = query.Where("timestamp >= ?", *since)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count call logs: %w", err)
	}

	stats := &models.CacheStats{TotalCalls: total}
	if total == 0 {
		return stats, nil
	}

	countEndpoint := func(endpoint string) (int64, error) {
		q := o.db.Model(&models.CallLog{}).Where("endpoint = ?", endpoint)
		if since != nil {
			q = q.Where("timestamp >= ?", *since)
		}
		var n int64
		err := q.Count(&n).Error
		return n, err
	}

	var err error
	if stats.Hits, err = countEndpoint(models.EndpointCacheHit); err != nil {
		return nil, fmt.Errorf("failed to count cache hits: %w", err)
	}
	if stats.Misses, err = countEndpoint(models.EndpointFetchAndCache); err != nil {
		return nil, fmt.Errorf("failed to count cache misses: %w", err)
	}

	if stats.Hits+stats.Misses > 0 {
		stats.HitRate = float64(stats.Hits) / float64(stats.Hits+stats.Misses)
	}

	avgQuery := o.db.Model(&models.CallLog{})
	if since != nil {
		avgQuery = avgQuery.Where("timestamp >= ?", *since)
	}
	var avg sql.NullFloat64
	if err := avgQuery.Select("AVG(response_time_ms)").Scan(&avg).Error; err != nil {
		return nil, fmt.Errorf("failed to average response times: %w", err)
	}
	if avg.Valid {
		stats.AvgResponseTimeMs = avg.Float64
	}

	return stats, nil
}

// InvalidateExpiredCache deletes every row past its expiry and records
// one invalidation event. Idempotent: a second sweep with no new
// expirations deletes zero rows.
func (o *Orchestrator) InvalidateExpiredCache() (int64, error) {
	result := o.db.Where("expires_at < ?", o.clock()).Delete(&models.PlayerStatRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("expiry sweep failed: %w", result.Error)
	}

	o.logInvalidation(models.ReasonExpired, result.RowsAffected)

	o.logger.WithFields(logrus.Fields{
		"component": "cache_orchestrator",
		"deleted":   result.RowsAffected,
	}).Info("Expired cache rows removed")
	return result.RowsAffected, nil
}

// InvalidateCache deletes rows matching the filter. An empty filter
// deletes the entire cache; callers must treat that as intentional.
func (o *Orchestrator) InvalidateCache(filter InvalidationFilter) (int64, error) {
	query := o.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Model(&models.PlayerStatRecord{})
	if filter.Season != nil {
		query = query.Where("season = ?", *filter.Season)
	}
	if filter.Week != nil {
		query = query.Where("week = ?", *filter.Week)
	}
	if filter.PlayerID != nil {
		query = query.Where("player_id = ?", *filter.PlayerID)
	}

	result := query.Delete(&models.PlayerStatRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("manual invalidation failed: %w", result.Error)
	}

	o.logInvalidation(models.ReasonManual, result.RowsAffected)

	o.logger.WithFields(logrus.Fields{
		"component": "cache_orchestrator",
		"deleted":   result.RowsAffected,
	}).Info("Cache rows manually invalidated")
	return result.RowsAffected, nil
}

// WarmCache populates the cache ahead of user traffic: for every year,
// one extraction per position plus one with no position filter for the
// season aggregates. Errors are already absorbed by ExtractData.
func (o *Orchestrator) WarmCache(ctx context.Context, years []int, positions []string) {
	if len(positions) == 0 {
		positions = models.SkillPositions
	}

	o.logger.WithFields(logrus.Fields{
		"component": "cache_orchestrator",
		"years":     years,
		"positions": positions,
	}).Info("Starting cache warm")

	for _, year := range years {
		for _, pos := range positions {
			resp := o.ExtractData(ctx, source.ExtractOptions{
				Years:     []int{year},
				Positions: []string{pos},
			})
			if resp.Failed() {
				o.logger.WithFields(logrus.Fields{
					"component": "cache_orchestrator",
					"year":      year,
					"position":  pos,
					"error":     resp.Error,
				}).Warn("Cache warm iteration failed")
			}
		}

		// No position filter, so season aggregates land too.
		resp := o.ExtractData(ctx, source.ExtractOptions{Years: []int{year}})
		if resp.Failed() {
			o.logger.WithFields(logrus.Fields{
				"component": "cache_orchestrator",
				"year":      year,
				"error":     resp.Error,
			}).Warn("Cache warm iteration failed")
		}
	}

	o.logger.WithField("component", "cache_orchestrator").Info("Cache warm completed")
}

// logCall appends one call-log entry. Logging failures go to the
// operator console only and never block the data path.
func (o *Orchestrator) logCall(endpoint string, opts source.ExtractOptions, success bool, elapsed time.Duration, errMsg string) {
	params, err := json.Marshal(opts)
	if err != nil {
		params = []byte("{}")
	}

	entry := models.CallLog{
		Endpoint:       endpoint,
		Params:         datatypes.JSON(params),
		Success:        success,
		ResponseTimeMs: elapsed.Milliseconds(),
		ErrorMessage:   errMsg,
		Timestamp:      o.clock(),
	}
	if err := o.db.Create(&entry).Error; err != nil {
		o.logger.WithFields(logrus.Fields{
			"component": "cache_orchestrator",
			"endpoint":  endpoint,
			"error":     err.Error(),
		}).Warn("Failed to write call log entry")
	}
}

func (o *Orchestrator) logInvalidation(reason string, count int64) {
	event := models.InvalidationEvent{
		CacheType:   models.CacheTypePlayerStats,
		Reason:      reason,
		RecordCount: count,
		Timestamp:   o.clock(),
	}
	if err := o.db.Create(&event).Error; err != nil {
		o.logger.WithFields(logrus.Fields{
			"component": "cache_orchestrator",
			"reason":    reason,
			"error":     err.Error(),
		}).Warn("Failed to write invalidation event")
	}
}
