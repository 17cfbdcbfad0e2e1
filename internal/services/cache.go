package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dynastyhq/dynasty-backend/internal/source"
)

// ResponseCache memoizes fully-formed extract responses in Redis for a
// short window. It sits strictly above the orchestrator: a nil client
// disables it, and misses cost nothing but the lookup.
type ResponseCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewResponseCache(client *redis.Client, ttl time.Duration) *ResponseCache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &ResponseCache{
		client: client,
		ttl:    ttl,
	}
}

// Enabled reports whether a Redis client is configured.
func (s *ResponseCache) Enabled() bool {
	return s != nil && s.client != nil
}

func (s *ResponseCache) Get(ctx context.Context, opts source.ExtractOptions) (*source.ExtractResponse, bool) {
	if !s.Enabled() {
		return nil, false
	}

	data, err := s.client.Get(ctx, ExtractResponseKey(opts)).Result()
	if err != nil {
		return nil, false
	}

	var resp source.ExtractResponse
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		return nil, false
	}
	return &resp, true
}

func (s *ResponseCache) Set(ctx context.Context, opts source.ExtractOptions, resp *source.ExtractResponse) error {
	if !s.Enabled() {
		return nil
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	if err := s.client.Set(ctx, ExtractResponseKey(opts), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set response cache: %w", err)
	}
	return nil
}

// Ping checks Redis connectivity for readiness probes.
func (s *ResponseCache) Ping(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	return s.client.Ping(ctx).Err()
}

// ExtractResponseKey builds a deterministic memo key. Week is part of
// the key so weekly and seasonal requests never alias.
func ExtractResponseKey(opts source.ExtractOptions) string {
	years := make([]string, len(opts.Years))
	for i, y := range opts.Years {
		years[i] = strconv.Itoa(y)
	}
	sort.Strings(years)

	positions := append([]string(nil), opts.Positions...)
	sort.Strings(positions)

	week := "season"
	if opts.Week != nil {
		week = strconv.Itoa(*opts.Week)
	}

	return fmt.Sprintf("extract:%s:%s:%s", strings.Join(years, ","), strings.Join(positions, ","), week)
}
