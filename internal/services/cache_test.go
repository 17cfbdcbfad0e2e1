package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dynastyhq/dynasty-backend/internal/source"
)

func intPtr(v int) *int { return &v }

func TestExtractResponseKey(t *testing.T) {
	tests := []struct {
		name string
		opts source.ExtractOptions
		want string
	}{
		{
			name: "weekly request",
			opts: source.ExtractOptions{Years: []int{2024}, Positions: []string{"QB"}, Week: intPtr(5)},
			want: "extract:2024:QB:5",
		},
		{
			name: "season request",
			opts: source.ExtractOptions{Years: []int{2024}, Positions: []string{"QB"}},
			want: "extract:2024:QB:season",
		},
		{
			name: "parameter order does not matter",
			opts: source.ExtractOptions{Years: []int{2024, 2023}, Positions: []string{"WR", "QB"}},
			want: "extract:2023,2024:QB,WR:season",
		},
		{
			name: "empty request",
			opts: source.ExtractOptions{},
			want: "extract:::season",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractResponseKey(tt.opts))
		})
	}
}

func TestExtractResponseKeyWeekSeasonNeverAlias(t *testing.T) {
	opts := source.ExtractOptions{Years: []int{2024}, Positions: []string{"QB"}}
	weekly := opts
	weekly.Week = intPtr(1)

	assert.NotEqual(t, ExtractResponseKey(opts), ExtractResponseKey(weekly))
}

func TestResponseCacheDisabledWithoutClient(t *testing.T) {
	cache := NewResponseCache(nil, 0)

	assert.False(t, cache.Enabled())

	_, ok := cache.Get(context.Background(), source.ExtractOptions{})
	assert.False(t, ok)

	assert.NoError(t, cache.Set(context.Background(), source.ExtractOptions{}, &source.ExtractResponse{}))
	assert.NoError(t, cache.Ping(context.Background()))
}
