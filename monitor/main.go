package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/DeafMist/raad-monitor/internal/config"
	"github.com/DeafMist/raad-monitor/internal/delta"
	"github.com/DeafMist/raad-monitor/internal/dispatch"
	"github.com/DeafMist/raad-monitor/internal/elasticsearch"
	"github.com/DeafMist/raad-monitor/internal/fetcher"
	"github.com/DeafMist/raad-monitor/internal/logger"
	"github.com/DeafMist/raad-monitor/internal/pipeline"
	"github.com/DeafMist/raad-monitor/internal/push"
	"github.com/DeafMist/raad-monitor/internal/state"
	"github.com/DeafMist/raad-monitor/internal/webhook"
)

func main() {
	log := logger.New("monitor")
	cfg, err := config.LoadMonitor()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	notifiers, mirror, closers, err := buildChannels(cfg, log)
	if err != nil {
		log.Error("init channels", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				log.Warn("close channel", slog.Any("err", err))
			}
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	p := pipeline.New(
		fetcher.New(fetcher.OptionsFromConfig(cfg), nil, log),
		delta.NewEngine(cfg.Granularity),
		dispatch.NewRouter(notifiers, mirror, log),
		state.NewSeenStore(cfg.SeenStateFile, log),
		state.NewNotifiedStore(cfg.NotifiedStateFile, log),
		pipeline.OptionsFromConfig(cfg),
		log,
	)

	log.Info("monitor cycle starting",
		slog.String("granularity", string(cfg.Granularity)),
		slog.Int("notifiers", len(notifiers)),
		slog.Bool("mirror", mirror != nil),
	)

	// A failed cycle is retried by the next scheduled invocation.
	if _, err := p.Run(ctx); err != nil {
		log.Warn("cycle aborted", slog.Any("err", err))
	}
}

func buildChannels(cfg *config.Monitor, log *slog.Logger) ([]dispatch.Notifier, dispatch.Mirror, []io.Closer, error) {
	var notifiers []dispatch.Notifier
	var closers []io.Closer

	if cfg.WebhookEnabled() {
		notifiers = append(notifiers, webhook.New(cfg.WebhookURL, cfg.SiteURL, cfg.WebhookChannel, cfg.RequestTimeout, nil, log))
	}

	if cfg.PushEnabled() {
		writer := push.NewKafkaWriter(cfg.KafkaBrokers, cfg.PushTopic)
		closers = append(closers, writer)
		notifiers = append(notifiers, push.New(writer, cfg.PushTopic, cfg.Granularity, log))
	}

	if len(notifiers) == 0 {
		log.Warn("no notification channel configured, nothing will be marked as notified")
	}

	if !cfg.MirrorEnabled {
		return notifiers, nil, closers, nil
	}
	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		return nil, nil, closers, err
	}
	return notifiers, esClient.WithDocumentIndex(cfg.DocumentIndex), closers, nil
}
