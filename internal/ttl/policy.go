// Package ttl maps a statistic row's recency to a cache lifetime. Recent
// data changes often and gets short lifetimes; finished seasons are
// effectively immutable and get long ones.
package ttl

import "time"

// Cache lifetimes per recency tier.
const (
	CurrentWeek     = time.Hour
	PastWeek        = 24 * time.Hour
	SeasonAggregate = 7 * 24 * time.Hour
	Historical      = 30 * 24 * time.Hour
)

// weekSeasonTotal mirrors models.WeekSeasonTotal without the import.
const weekSeasonTotal = 0

const maxNFLWeek = 18

// SeasonWeekFunc derives the current NFL season and week from a point in
// time. Injectable so an official schedule lookup can replace the
// estimate without touching the policy.
type SeasonWeekFunc func(now time.Time) (season, week int)

// For returns the cache lifetime for a row keyed by (season, week),
// where week 0 denotes the season aggregate.
//
// A season greater than the current one has no product meaning (future
// seasons have no data yet); it defensively takes the current-week TTL.
func For(season, week, currentSeason, currentWeek int) time.Duration {
	switch {
	case season < currentSeason:
		return Historical
	case season > currentSeason:
		return CurrentWeek
	case week == weekSeasonTotal:
		return SeasonAggregate
	case week == currentWeek:
		return CurrentWeek
	default:
		return PastWeek
	}
}

// SeasonWeek estimates the current NFL season and week from wall-clock
// time: weeks of 7 days counted from September 1, clamped to [1, 18].
// This is an approximation, not schedule data, and can misclassify TTLs
// near season boundaries by one tier.
func SeasonWeek(now time.Time) (int, int) {
	season := now.Year()
	seasonStart := time.Date(season, time.September, 1, 0, 0, 0, 0, now.Location())

	week := int(now.Sub(seasonStart)/(7*24*time.Hour)) + 1
	if week < 1 {
		week = 1
	}
	if week > maxNFLWeek {
		week = maxNFLWeek
	}
	return season, week
}
