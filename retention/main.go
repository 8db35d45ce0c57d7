package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DeafMist/raad-monitor/internal/config"
	"github.com/DeafMist/raad-monitor/internal/elasticsearch"
	"github.com/DeafMist/raad-monitor/internal/logger"
)

const (
	connectAttempts = 10
	maxRetryDelay   = 30 * time.Second
)

type pruner interface {
	DeleteOlderThan(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)
}

func main() {
	log := logger.New("retention")
	cfg, err := config.LoadRetention()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	esClient, err := connect(ctx, log, cfg)
	if errors.Is(err, context.Canceled) {
		log.Info("shutdown signal received during startup")
		return
	}
	if err != nil {
		log.Error("connect elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("meeting retention running",
		slog.String("index", cfg.ElasticsearchIndex),
		slog.Duration("interval", cfg.Interval),
		slog.Duration("max_age", cfg.MaxAge),
	)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	runOnce(ctx, log, esClient, cfg)
	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received")
			return
		case <-ticker.C:
			runOnce(ctx, log, esClient, cfg)
		}
	}
}

// connect waits for the mirror index to answer pings, backing off between
// attempts.
func connect(ctx context.Context, log *slog.Logger, cfg *config.Retention) (*elasticsearch.Client, error) {
	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		return nil, err
	}

	delay := 2 * time.Second
	for attempt := 1; ; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = esClient.Ping(pingCtx)
		cancel()
		if err == nil {
			return esClient, nil
		}
		if attempt == connectAttempts {
			return nil, err
		}

		log.Warn("elasticsearch ping failed, retrying",
			slog.Any("err", err),
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", delay),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		delay = min(delay*2, maxRetryDelay)
	}
}

func runOnce(ctx context.Context, log *slog.Logger, p pruner, cfg *config.Retention) int64 {
	subCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	deleted, err := p.DeleteOlderThan(subCtx, cfg.MaxAge, cfg.BatchSize)
	if err != nil {
		log.Warn("pruning mirrored meetings failed, retrying next interval", slog.Any("err", err))
		return 0
	}

	if deleted > 0 {
		log.Info("pruned mirrored meetings", slog.Int64("deleted", deleted))
	} else {
		log.Debug("no mirrored meetings past retention")
	}
	return deleted
}
