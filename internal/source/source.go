// Package source defines the external NFL statistics provider and its
// unified response shape. Implementations are slow (up to ~2 minutes)
// and unreliable; callers bound them with timeouts.
package source

import (
	"context"
	"time"
)

// DefaultTimeout bounds a single extraction call.
const DefaultTimeout = 120 * time.Second

// StatsSource is the ultimate origin of NFL statistics.
type StatsSource interface {
	// Fetch returns raw statistics for the requested seasons, positions
	// and week. The returned response may itself carry an Error string
	// with empty arrays on graceful provider-side failure.
	Fetch(ctx context.Context, opts ExtractOptions) (*ExtractResponse, error)
	// Name identifies the implementation for logging.
	Name() string
}

// ExtractOptions selects what to extract. A nil Week asks for season
// aggregates; positions default to the four skill positions.
type ExtractOptions struct {
	Years     []int         `json:"years,omitempty"`
	Positions []string      `json:"positions,omitempty"`
	Week      *int          `json:"week,omitempty"`
	Timeout   time.Duration `json:"-"`
}

// StatRecord is one raw statistics line from the provider. Week is 0 for
// season aggregates.
type StatRecord struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Position   string `json:"position"`
	Team       string `json:"team,omitempty"`
	Season     int    `json:"season"`
	Week       int    `json:"week,omitempty"`

	PassingYards     float64 `json:"passing_yards"`
	PassingTDs       int     `json:"passing_tds"`
	Interceptions    int     `json:"interceptions"`
	RushingYards     float64 `json:"rushing_yards"`
	RushingTDs       int     `json:"rushing_tds"`
	ReceivingYards   float64 `json:"receiving_yards"`
	ReceivingTDs     int     `json:"receiving_tds"`
	Targets          int     `json:"targets"`
	Receptions       int     `json:"receptions"`
	FumblesLost      int     `json:"fumbles_lost"`
	FantasyPoints    float64 `json:"fantasy_points"`
	FantasyPointsPPR float64 `json:"fantasy_points_ppr"`
}

// PlayerInfo and TeamAnalytics pass through from the provider; this
// service does not cache them.
type PlayerInfo struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Position string `json:"position"`
	Team     string `json:"team,omitempty"`
}

type TeamAnalytics struct {
	Team   string  `json:"team"`
	Season int     `json:"season"`
	Points float64 `json:"points"`
}

// Metadata echoes the request parameters and summarizes the payload.
type Metadata struct {
	Years                []int     `json:"years,omitempty"`
	Positions            []string  `json:"positions,omitempty"`
	Week                 *int      `json:"week,omitempty"`
	ExtractedAt          time.Time `json:"extracted_at"`
	TotalWeeklyRecords   int       `json:"total_weekly_records"`
	TotalSeasonalRecords int       `json:"total_seasonal_records"`
	TotalPlayers         int       `json:"total_players"`
	TotalTeams           int       `json:"total_teams"`
	Source               string    `json:"source,omitempty"`
}

// ExtractResponse is the unified response shape shared by providers and
// the cache layer. AggregatedSeasonStats duplicates SeasonalStats for
// backward compatibility with older UI consumers. A non-empty Error
// means total failure; all arrays are empty and callers must check it.
type ExtractResponse struct {
	WeeklyStats           []StatRecord    `json:"weekly_stats"`
	SeasonalStats         []StatRecord    `json:"seasonal_stats"`
	AggregatedSeasonStats []StatRecord    `json:"aggregated_season_stats"`
	PlayerInfo            []PlayerInfo    `json:"player_info"`
	TeamAnalytics         []TeamAnalytics `json:"team_analytics"`
	Metadata              Metadata        `json:"metadata"`
	Error                 string          `json:"error,omitempty"`
}

// RecordCount returns the number of cacheable records in the response.
func (r *ExtractResponse) RecordCount() int {
	return len(r.WeeklyStats) + len(r.SeasonalStats)
}

// Failed reports whether the response carries a provider-side error.
func (r *ExtractResponse) Failed() bool {
	return r.Error != ""
}

// ErrorResponse builds the well-formed total-failure response: empty
// arrays plus the error message, never a nil or partial object.
func ErrorResponse(opts ExtractOptions, err error) *ExtractResponse {
	return &ExtractResponse{
		WeeklyStats:           []StatRecord{},
		SeasonalStats:         []StatRecord{},
		AggregatedSeasonStats: []StatRecord{},
		PlayerInfo:            []PlayerInfo{},
		TeamAnalytics:         []TeamAnalytics{},
		Metadata: Metadata{
			Years:       opts.Years,
			Positions:   opts.Positions,
			Week:        opts.Week,
			ExtractedAt: time.Now().UTC(),
		},
		Error: err.Error(),
	}
}

// PositionsOrDefault returns the requested positions, falling back to
// the four skill positions.
func (o ExtractOptions) PositionsOrDefault() []string {
	if len(o.Positions) > 0 {
		return o.Positions
	}
	return []string{"QB", "RB", "WR", "TE"}
}

// TimeoutOrDefault returns the per-request timeout, falling back to the
// package default.
func (o ExtractOptions) TimeoutOrDefault(fallback time.Duration) time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultTimeout
}
