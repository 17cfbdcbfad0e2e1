package ttl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFor(t *testing.T) {
	const (
		currentSeason = 2024
		currentWeek   = 7
	)

	tests := []struct {
		name   string
		season int
		week   int
		want   time.Duration
	}{
		{
			name:   "current week gets the shortest lifetime",
			season: 2024,
			week:   7,
			want:   CurrentWeek,
		},
		{
			name:   "past week of the current season",
			season: 2024,
			week:   3,
			want:   PastWeek,
		},
		{
			name:   "season aggregate of the current season",
			season: 2024,
			week:   0,
			want:   SeasonAggregate,
		},
		{
			name:   "finished season weekly row",
			season: 2023,
			week:   7,
			want:   Historical,
		},
		{
			name:   "finished season aggregate",
			season: 2020,
			week:   0,
			want:   Historical,
		},
		{
			name:   "future season falls back to the shortest lifetime",
			season: 2025,
			week:   4,
			want:   CurrentWeek,
		},
		{
			name:   "future season aggregate falls back too",
			season: 2025,
			week:   0,
			want:   CurrentWeek,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, For(tt.season, tt.week, currentSeason, currentWeek))
		})
	}
}

func TestLifetimeOrdering(t *testing.T) {
	// Fresher data must always expire sooner.
	assert.Less(t, CurrentWeek, PastWeek)
	assert.Less(t, PastWeek, SeasonAggregate)
	assert.Less(t, SeasonAggregate, Historical)
}

func TestSeasonWeek(t *testing.T) {
	tests := []struct {
		name       string
		now        time.Time
		wantSeason int
		wantWeek   int
	}{
		{
			name:       "mid-October lands in week 7",
			now:        time.Date(2024, time.October, 15, 12, 0, 0, 0, time.UTC),
			wantSeason: 2024,
			wantWeek:   7,
		},
		{
			name:       "season opener",
			now:        time.Date(2024, time.September, 1, 0, 0, 0, 0, time.UTC),
			wantSeason: 2024,
			wantWeek:   1,
		},
		{
			name:       "end of the first week",
			now:        time.Date(2024, time.September, 7, 23, 0, 0, 0, time.UTC),
			wantSeason: 2024,
			wantWeek:   1,
		},
		{
			name:       "start of the second week",
			now:        time.Date(2024, time.September, 8, 0, 0, 0, 0, time.UTC),
			wantSeason: 2024,
			wantWeek:   2,
		},
		{
			name:       "before September clamps to week 1",
			now:        time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC),
			wantSeason: 2024,
			wantWeek:   1,
		},
		{
			name:       "end of December clamps to week 18",
			now:        time.Date(2024, time.December, 31, 23, 0, 0, 0, time.UTC),
			wantSeason: 2024,
			wantWeek:   18,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			season, week := SeasonWeek(tt.now)
			assert.Equal(t, tt.wantSeason, season)
			assert.Equal(t, tt.wantWeek, week)
		})
	}
}
