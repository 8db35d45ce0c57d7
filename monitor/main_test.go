package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/raad-monitor/internal/config"
	"github.com/DeafMist/raad-monitor/internal/logger"
)

func TestBuildChannelsFromConfig(t *testing.T) {
	cfg := &config.Monitor{
		Common:         config.Common{ElasticsearchAddr: "http://localhost:9200", ElasticsearchIndex: "vergaderingen"},
		Upstream:       config.Upstream{SiteURL: "https://raad.example"},
		Granularity:    config.GranularityDocument,
		WebhookURL:     "https://ha.example/api/webhook/raad",
		WebhookChannel: "Raadsinformatie",
		KafkaBrokers:   []string{"localhost:9092"},
		PushTopic:      "raad_updates",
		MirrorEnabled:  true,
		DocumentIndex:  "raadstukken",
	}

	notifiers, mirror, closers, err := buildChannels(cfg, logger.Discard())
	require.NoError(t, err)
	require.Len(t, notifiers, 2)
	require.Equal(t, "webhook", notifiers[0].Name())
	require.Equal(t, "push", notifiers[1].Name())
	require.NotNil(t, mirror)
	require.Len(t, closers, 1)
	for _, c := range closers {
		require.NoError(t, c.Close())
	}
}

func TestBuildChannelsNothingConfigured(t *testing.T) {
	cfg := &config.Monitor{Granularity: config.GranularityMeeting}

	notifiers, mirror, closers, err := buildChannels(cfg, logger.Discard())
	require.NoError(t, err)
	require.Empty(t, notifiers)
	require.Nil(t, mirror)
	require.Empty(t, closers)
}
