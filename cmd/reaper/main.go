package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/statelyrides/chauffeur/internal/quotes"
	"github.com/statelyrides/chauffeur/pkg/config"
	"github.com/statelyrides/chauffeur/pkg/database"
	"github.com/statelyrides/chauffeur/pkg/logger"
)

const serviceName = "chauffeur-reaper"

// The reaper deletes expired unlocked quotes on a fixed cadence. Expiry is
// enforced at read time; this is storage hygiene only, so a missed run is
// harmless.
func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	db, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	repo := quotes.NewRepository(db)

	interval := reapInterval()
	retention := reapRetention()
	logger.Info("Starting quote reaper",
		zap.Duration("interval", interval),
		zap.Duration("retention", retention),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	reap(ctx, repo, retention)
	for {
		select {
		case <-ctx.Done():
			logger.Info("Reaper exiting")
			return
		case <-ticker.C:
			reap(ctx, repo, retention)
		}
	}
}

func reap(ctx context.Context, repo *quotes.Repository, retention time.Duration) {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := time.Now().UTC().Add(-retention)
	deleted, err := repo.DeleteExpiredUnlocked(runCtx, cutoff)
	if err != nil {
		logger.Error("Failed to reap expired quotes", zap.Error(err))
		return
	}
	if deleted > 0 {
		logger.Info("Reaped expired quotes", zap.Int64("deleted", deleted))
	}
}

func reapInterval() time.Duration {
	if v := os.Getenv("REAPER_INTERVAL_MINUTES"); v != "" {
		if d, err := time.ParseDuration(v + "m"); err == nil && d > 0 {
			return d
		}
	}
	return 15 * time.Minute
}

// reapRetention keeps lapsed quotes around briefly so support can inspect
// recent sessions before they disappear.
func reapRetention() time.Duration {
	if v := os.Getenv("REAPER_RETENTION_HOURS"); v != "" {
		if d, err := time.ParseDuration(v + "h"); err == nil && d >= 0 {
			return d
		}
	}
	return 24 * time.Hour
}
