package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// HTTPSource calls a remote stats extraction service. Outbound calls are
// rate limited and wrapped in a circuit breaker so a flapping provider
// fails fast instead of tying up request goroutines for two minutes.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	timeout    time.Duration
	logger     *logrus.Logger
}

// NewHTTPSource creates an HTTP stats source. ratePerMinute caps
// outbound extraction calls; breakerThreshold sets how many requests the
// half-open breaker admits.
func NewHTTPSource(baseURL string, timeout time.Duration, ratePerMinute, breakerThreshold int, logger *logrus.Logger) *HTTPSource {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if ratePerMinute <= 0 {
		ratePerMinute = 10
	}

	settings := gobreaker.Settings{
		Name:        "stats-service",
		MaxRequests: uint32(breakerThreshold),
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"component": "circuit_breaker",
				"service":   name,
				"from":      from.String(),
				"to":        to.String(),
			}).Info("Circuit breaker state changed")
		},
	}

	return &HTTPSource{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(ratePerMinute)), ratePerMinute),
		breaker: gobreaker.NewCircuitBreaker(settings),
		timeout: timeout,
		logger:  logger,
	}
}

func (s *HTTPSource) Name() string {
	return "http"
}

// State exposes the breaker state so schedulers can skip warming while
// the provider is down.
func (s *HTTPSource) State() gobreaker.State {
	return s.breaker.State()
}

func (s *HTTPSource) Fetch(ctx context.Context, opts ExtractOptions) (*ExtractResponse, error) {
	timeout := opts.TimeoutOrDefault(s.timeout)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.doExtract(ctx, opts)
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("stats service timed out after %s", timeout)
		}
		return nil, err
	}

	return result.(*ExtractResponse), nil
}

func (s *HTTPSource) doExtract(ctx context.Context, opts ExtractOptions) (*ExtractResponse, error) {
	body, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode extract request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/extract", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build extract request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stats service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		diagnostic, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("stats service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(diagnostic)))
	}

	var extracted ExtractResponse
	if err := json.NewDecoder(resp.Body).Decode(&extracted); err != nil {
		return nil, fmt.Errorf("failed to parse stats service response: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"component": "stats_source",
		"source":    s.Name(),
		"records":   extracted.RecordCount(),
		"duration":  time.Since(start).String(),
	}).Info("Stats service extraction completed")

	return &extracted, nil
}
