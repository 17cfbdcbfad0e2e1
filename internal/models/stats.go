package models

import (
	"time"

	"gorm.io/datatypes"
)

// WeekSeasonTotal is the sentinel week value for season-aggregate rows.
// Using 0 instead of NULL keeps the composite unique index reliable across
// Postgres and SQLite, so writes can be a single atomic upsert.
const WeekSeasonTotal = 0

// SkillPositions are the positions cached by default when a request does
// not name any.
var SkillPositions = []string{"QB", "RB", "WR", "TE"}

// Call log endpoints
const (
	EndpointCacheHit      = "cache_hit"
	EndpointFetchAndCache = "fetch_and_cache"
	EndpointExtractError  = "extract_error"
)

// Invalidation reasons
const (
	ReasonExpired = "expired"
	ReasonManual  = "manual"
)

// CacheTypePlayerStats is the only cache type this service owns.
const CacheTypePlayerStats = "player_stats"

// PlayerStatRecord is one cached row per (player, season, week), where
// week 0 holds the season aggregate.
type PlayerStatRecord struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	PlayerID   string `gorm:"size:20;not null;uniqueIndex:idx_player_season_week,priority:1" json:"player_id"`
	PlayerName string `gorm:"size:100;not null" json:"player_name"`
	Position   string `gorm:"size:10;index" json:"position"`
	Team       string `gorm:"size:10" json:"team,omitempty"`
	Season     int    `gorm:"not null;uniqueIndex:idx_player_season_week,priority:2;index" json:"season"`
	Week       int    `gorm:"not null;uniqueIndex:idx_player_season_week,priority:3" json:"week"`

	PassingYards     float64 `json:"passing_yards"`
	PassingTDs       int     `gorm:"column:passing_tds" json:"passing_tds"`
	Interceptions    int     `json:"interceptions"`
	RushingYards     float64 `json:"rushing_yards"`
	RushingTDs       int     `gorm:"column:rushing_tds" json:"rushing_tds"`
	ReceivingYards   float64 `json:"receiving_yards"`
	ReceivingTDs     int     `gorm:"column:receiving_tds" json:"receiving_tds"`
	Targets          int     `json:"targets"`
	Receptions       int     `json:"receptions"`
	FumblesLost      int     `json:"fumbles_lost"`
	FantasyPoints    float64 `json:"fantasy_points"`
	FantasyPointsPPR float64 `gorm:"column:fantasy_points_ppr" json:"fantasy_points_ppr"`

	CachedAt  time.Time `gorm:"not null" json:"cached_at"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
}

func (PlayerStatRecord) TableName() string {
	return "player_stat_records"
}

// IsSeasonTotal reports whether the row is a season aggregate rather than
// a single week's line.
func (r *PlayerStatRecord) IsSeasonTotal() bool {
	return r.Week == WeekSeasonTotal
}

// CallLog is an append-only record of every orchestrator decision. It is
// only ever aggregated into CacheStats; the hit/miss path never reads it.
type CallLog struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Endpoint       string         `gorm:"size:30;not null;index" json:"endpoint"`
	Params         datatypes.JSON `json:"params"`
	Success        bool           `json:"success"`
	ResponseTimeMs int64          `json:"response_time_ms"`
	ErrorMessage   string         `gorm:"type:text" json:"error_message,omitempty"`
	Timestamp      time.Time      `gorm:"not null;index" json:"timestamp"`
}

func (CallLog) TableName() string {
	return "call_logs"
}

// InvalidationEvent is an append-only record of cache-clearing actions.
type InvalidationEvent struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CacheType   string    `gorm:"size:30;not null" json:"cache_type"`
	Reason      string    `gorm:"size:20;not null" json:"reason"`
	RecordCount int64     `json:"record_count"`
	Timestamp   time.Time `gorm:"not null" json:"timestamp"`
}

func (InvalidationEvent) TableName() string {
	return "invalidation_events"
}

// CacheStats is derived from call logs, never stored.
type CacheStats struct {
	Hits              int64   `json:"hits"`
	Misses            int64   `json:"misses"`
	HitRate           float64 `json:"hit_rate"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
	TotalCalls        int64   `json:"total_calls"`
}
