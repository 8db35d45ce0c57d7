package config_test

import (
	"testing"
	"time"

	"github.com/DeafMist/raad-monitor/internal/config"
	"github.com/stretchr/testify/require"
)

func clearMonitorEnv(t *testing.T) {
	for _, key := range []string{
		"ELASTICSEARCH_ADDR", "ELASTICSEARCH_INDEX", "UPSTREAM_SITE_URL", "UPSTREAM_LIST_API",
		"UPSTREAM_DETAIL_API", "UPSTREAM_DOCUMENTS_URL", "REQUEST_TIMEOUT", "GRANULARITY",
		"WEBHOOK_URL", "KAFKA_BROKERS", "PUSH_TOPIC", "SEEN_STATE_FILE", "NOTIFIED_STATE_FILE",
		"SYNC_LOOKBACK", "SYNC_LOOKAHEAD", "LIST_LOOKBACK", "MIRROR_ENABLED", "GLOBAL_DOCUMENTS_ENABLED",
		"ELASTICSEARCH_DOCUMENTS_INDEX",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadMonitorDefaults(t *testing.T) {
	clearMonitorEnv(t)

	cfg, err := config.LoadMonitor()
	require.NoError(t, err)

	require.Equal(t, "https://gemeenteraad.dronten.nl", cfg.SiteURL)
	require.Equal(t, "https://gemeenteraad.dronten.nl/api/v2", cfg.ListAPI)
	require.Equal(t, "https://gemeenteraad.dronten.nl/api/v1", cfg.DetailAPI)
	require.Equal(t, "https://gemeenteraad.dronten.nl/api/v2/documents", cfg.DocumentsURL)
	require.Equal(t, 14*24*time.Hour, cfg.SyncLookback)
	require.Equal(t, 42*24*time.Hour, cfg.Lookahead)
	require.Equal(t, 30*time.Second, cfg.RequestTimeout)
	require.Equal(t, config.GranularityDocument, cfg.Granularity)
	require.Equal(t, "raad_updates", cfg.PushTopic)
	require.False(t, cfg.WebhookEnabled())
	require.False(t, cfg.PushEnabled())
	require.False(t, cfg.MirrorEnabled)
	require.Equal(t, "raadstukken", cfg.DocumentIndex)
}

func TestLoadMonitorOverrides(t *testing.T) {
	clearMonitorEnv(t)
	t.Setenv("UPSTREAM_SITE_URL", "http://raad.local/")
	t.Setenv("GRANULARITY", "Meeting")
	t.Setenv("WEBHOOK_URL", "http://ha.local:8123/api/webhook/abc")
	t.Setenv("KAFKA_BROKERS", "broker-a:9092, broker-b:9092")
	t.Setenv("SYNC_LOOKAHEAD", "720h")
	t.Setenv("REQUEST_TIMEOUT", "10s")
	t.Setenv("MIRROR_ENABLED", "true")

	cfg, err := config.LoadMonitor()
	require.NoError(t, err)

	require.Equal(t, "http://raad.local", cfg.SiteURL)
	require.Equal(t, "http://raad.local/api/v2", cfg.ListAPI)
	require.Equal(t, config.GranularityMeeting, cfg.Granularity)
	require.True(t, cfg.WebhookEnabled())
	require.True(t, cfg.PushEnabled())
	require.Equal(t, []string{"broker-a:9092", "broker-b:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 30*24*time.Hour, cfg.Lookahead)
	require.Equal(t, 10*time.Second, cfg.RequestTimeout)
	require.True(t, cfg.MirrorEnabled)
}

func TestLoadMonitorRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "granularity", key: "GRANULARITY", val: "agenda"},
		{name: "timeout too long", key: "REQUEST_TIMEOUT", val: "5m"},
		{name: "relative webhook", key: "WEBHOOK_URL", val: "/api/webhook"},
		{name: "same state files", key: "NOTIFIED_STATE_FILE", val: "seen_meetings.json"},
		{name: "list shorter than sync", key: "LIST_LOOKBACK", val: "24h"},
		{name: "lookahead too short", key: "SYNC_LOOKAHEAD", val: "719h"},
		{name: "lookahead too long", key: "SYNC_LOOKAHEAD", val: "1009h"},
		{name: "negative lookahead", key: "SYNC_LOOKAHEAD", val: "-1h"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearMonitorEnv(t)
			t.Setenv(tt.key, tt.val)
			_, err := config.LoadMonitor()
			require.Error(t, err)
		})
	}
}

func TestLoadMonitorSweepNeedsDocumentGranularity(t *testing.T) {
	clearMonitorEnv(t)
	t.Setenv("GLOBAL_DOCUMENTS_ENABLED", "true")
	t.Setenv("GRANULARITY", "meeting")

	_, err := config.LoadMonitor()
	require.ErrorContains(t, err, "GLOBAL_DOCUMENTS_ENABLED")
}

func TestLoadAPI(t *testing.T) {
	t.Setenv("API_BIND_ADDR", ":9090")
	t.Setenv("API_PAGE_SIZE", "15")
	t.Setenv("API_MAX_PAGE_SIZE", "200")
	t.Setenv("ELASTICSEARCH_ADDR", "http://api-es:9200")
	t.Setenv("ELASTICSEARCH_INDEX", "api-index")
	t.Setenv("AGENDA_EXCLUDE", "Opening, Sluiting")
	t.Setenv("AGENDA_RULES_FILE", "/etc/raad/agenda.yaml")

	cfg, err := config.LoadAPI()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.BindAddr)
	require.Equal(t, 15, cfg.DefaultPage)
	require.Equal(t, 200, cfg.MaxPage)
	require.Equal(t, "http://api-es:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "api-index", cfg.ElasticsearchIndex)
	require.Equal(t, []string{"opening", "sluiting"}, cfg.AgendaExclude)
	require.Equal(t, "/etc/raad/agenda.yaml", cfg.AgendaRulesFile)
}

func TestLoadRetention(t *testing.T) {
	t.Setenv("ELASTICSEARCH_ADDR", "http://ret-es:9200")
	t.Setenv("ELASTICSEARCH_INDEX", "ret-index")
	t.Setenv("RETENTION_CRON", "12h")
	t.Setenv("RETENTION_MAX_AGE", "36h")
	t.Setenv("RETENTION_BATCH_SIZE", "123")

	cfg, err := config.LoadRetention()
	require.NoError(t, err)

	require.Equal(t, 12*time.Hour, cfg.Interval)
	require.Equal(t, 36*time.Hour, cfg.MaxAge)
	require.Equal(t, 123, cfg.BatchSize)
	require.Equal(t, "http://ret-es:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "ret-index", cfg.ElasticsearchIndex)
}
