// Batch job that warms the stats cache for the configured seasons and
// positions, then disconnects from the store. Run it from cron or CI
// ahead of expected traffic, e.g. before waiver day.
package main

import (
	"context"
	"flag"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dynastyhq/dynasty-backend/internal/cache"
	"github.com/dynastyhq/dynasty-backend/internal/source"
	"github.com/dynastyhq/dynasty-backend/pkg/config"
	"github.com/dynastyhq/dynasty-backend/pkg/database"
)

func main() {
	yearsFlag := flag.String("years", "", "comma-separated seasons to warm, e.g. 2024,2025 (defaults to WARM_SEASONS)")
	positionsFlag := flag.String("positions", "", "comma-separated positions to warm (defaults to WARM_POSITIONS)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	years := cfg.WarmSeasons
	if *yearsFlag != "" {
		years, err = config.ParseSeasons(*yearsFlag)
		if err != nil {
			logrus.Fatalf("Invalid -years: %v", err)
		}
	}
	if len(years) == 0 {
		logrus.Fatal("No seasons to warm: pass -years or set WARM_SEASONS")
	}

	positions := cfg.WarmPositions
	if *positionsFlag != "" {
		positions = strings.Split(*positionsFlag, ",")
	}

	logger := logrus.StandardLogger()

	db, err := database.NewConnection(cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}

	statsSource, err := source.New(source.Settings{
		Kind:             cfg.StatsSource,
		PythonBin:        cfg.PythonBin,
		ScriptPath:       cfg.StatsScriptPath,
		ServiceURL:       cfg.StatsServiceURL,
		Timeout:          cfg.ExtractTimeout,
		RatePerMinute:    cfg.StatsRateLimit,
		BreakerThreshold: cfg.CircuitBreakerThreshold,
	}, logger)
	if err != nil {
		logrus.Fatalf("Failed to build stats source: %v", err)
	}

	orchestrator := cache.NewOrchestrator(db, statsSource, logger)
	// The job owns the store connection; release it on the way out.
	defer func() {
		if err := orchestrator.Close(); err != nil {
			logrus.Warnf("Failed to close store connection: %v", err)
		}
	}()

	start := time.Now()
	orchestrator.WarmCache(context.Background(), years, positions)

	since := start.UTC()
	stats, err := orchestrator.GetCacheStats(&since)
	if err != nil {
		logrus.Warnf("Failed to read cache stats: %v", err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"years":       years,
		"positions":   positions,
		"total_calls": stats.TotalCalls,
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"duration":    time.Since(start).String(),
	}).Info("Cache warm finished")
}
