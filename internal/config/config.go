package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Granularity selects what the notified state records.
type Granularity string

const (
	// GranularityDocument notifies once per document identifier.
	GranularityDocument Granularity = "document"
	// GranularityMeeting notifies once per meeting identifier.
	GranularityMeeting Granularity = "meeting"
)

// Common contains Elasticsearch parameters shared by every service.
type Common struct {
	ElasticsearchAddr  string
	ElasticsearchIndex string
}

// Upstream describes the municipal meetings API.
type Upstream struct {
	SiteURL        string
	ListAPI        string
	DetailAPI      string
	DocumentsURL   string
	UserAgent      string
	ListLimit      int
	Sort           string
	RequestTimeout time.Duration
}

// Monitor holds configuration for a single change-detection cycle.
type Monitor struct {
	Common
	Upstream

	SyncLookback time.Duration
	ListLookback time.Duration
	Lookahead    time.Duration

	DetailWorkers int
	DetailRPS     float64

	Granularity       Granularity
	SeenStateFile     string
	NotifiedStateFile string

	WebhookURL     string
	WebhookChannel string

	KafkaBrokers []string
	PushTopic    string

	MirrorEnabled bool
	DocumentIndex string

	GlobalDocumentsEnabled bool
	GlobalDocumentsLimit   int
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	BindAddr      string
	DefaultPage   int
	MaxPage       int
	AgendaExclude []string

	// AgendaRulesFile optionally points at a YAML file overriding the
	// agenda exclusion keywords and section markers.
	AgendaRulesFile string
}

// Retention configures the cleanup loop.
type Retention struct {
	Common
	Interval  time.Duration
	MaxAge    time.Duration
	BatchSize int
}

const maxRequestTimeout = 60 * time.Second

// The sync window reaches 30 to 42 days ahead.
const (
	minLookahead = 30 * 24 * time.Hour
	maxLookahead = 42 * 24 * time.Hour
)

var defaultAgendaExclude = "opening,sluiting,vaststellen agenda,vaststellen verslagen,opening en mededelingen," +
	"vaststellen kort verslag,afdoening ingekomen stukken,vragen van raadsleden,schorsing,lta,c-brieven,follow-up"

func loadCommon() Common {
	return Common{
		ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
		ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "vergaderingen"),
	}
}

// LoadMonitor builds a Monitor config from environment variables.
func LoadMonitor() (*Monitor, error) {
	site := strings.TrimRight(getEnv("UPSTREAM_SITE_URL", "https://gemeenteraad.dronten.nl"), "/")
	c := &Monitor{
		Common: loadCommon(),
		Upstream: Upstream{
			SiteURL:        site,
			ListAPI:        strings.TrimRight(getEnv("UPSTREAM_LIST_API", site+"/api/v2"), "/"),
			DetailAPI:      strings.TrimRight(getEnv("UPSTREAM_DETAIL_API", site+"/api/v1"), "/"),
			DocumentsURL:   strings.TrimRight(getEnv("UPSTREAM_DOCUMENTS_URL", site+"/api/v2/documents"), "/"),
			UserAgent:      getEnv("UPSTREAM_USER_AGENT", "Mozilla/5.0"),
			ListLimit:      getInt("UPSTREAM_LIST_LIMIT", 100),
			Sort:           getEnv("UPSTREAM_SORT", "date_asc"),
			RequestTimeout: getDuration("REQUEST_TIMEOUT", "30s"),
		},
		SyncLookback:           getDuration("SYNC_LOOKBACK", "336h"),
		ListLookback:           getDuration("LIST_LOOKBACK", "1440h"),
		Lookahead:              getDuration("SYNC_LOOKAHEAD", "1008h"),
		DetailWorkers:          getInt("DETAIL_WORKERS", 4),
		DetailRPS:              getFloat("DETAIL_RPS", 4),
		Granularity:            Granularity(strings.ToLower(getEnv("GRANULARITY", string(GranularityDocument)))),
		SeenStateFile:          getEnv("SEEN_STATE_FILE", "seen_meetings.json"),
		NotifiedStateFile:      getEnv("NOTIFIED_STATE_FILE", "notified.json"),
		WebhookURL:             getEnv("WEBHOOK_URL", ""),
		WebhookChannel:         getEnv("WEBHOOK_CHANNEL", "Raadsinformatie"),
		KafkaBrokers:           splitAndTrim(getEnv("KAFKA_BROKERS", "")),
		PushTopic:              getEnv("PUSH_TOPIC", "raad_updates"),
		MirrorEnabled:          getBool("MIRROR_ENABLED", false),
		DocumentIndex:          getEnv("ELASTICSEARCH_DOCUMENTS_INDEX", "raadstukken"),
		GlobalDocumentsEnabled: getBool("GLOBAL_DOCUMENTS_ENABLED", false),
		GlobalDocumentsLimit:   getInt("GLOBAL_DOCUMENTS_LIMIT", 20),
	}

	if c.Granularity != GranularityDocument && c.Granularity != GranularityMeeting {
		return nil, fmt.Errorf("GRANULARITY must be %q or %q", GranularityDocument, GranularityMeeting)
	}
	if c.RequestTimeout <= 0 || c.RequestTimeout > maxRequestTimeout {
		return nil, fmt.Errorf("REQUEST_TIMEOUT must be positive and at most %s", maxRequestTimeout)
	}
	if c.SyncLookback < 0 {
		return nil, fmt.Errorf("SYNC_LOOKBACK cannot be negative")
	}
	if c.Lookahead < minLookahead || c.Lookahead > maxLookahead {
		return nil, fmt.Errorf("SYNC_LOOKAHEAD must be between %s and %s", minLookahead, maxLookahead)
	}
	if c.ListLookback < c.SyncLookback {
		return nil, fmt.Errorf("LIST_LOOKBACK cannot be shorter than SYNC_LOOKBACK")
	}
	if c.ListLimit <= 0 {
		return nil, fmt.Errorf("UPSTREAM_LIST_LIMIT must be positive")
	}
	if c.DetailWorkers <= 0 {
		return nil, fmt.Errorf("DETAIL_WORKERS must be positive")
	}
	if c.DetailRPS <= 0 {
		return nil, fmt.Errorf("DETAIL_RPS must be positive")
	}
	if c.GlobalDocumentsLimit <= 0 {
		return nil, fmt.Errorf("GLOBAL_DOCUMENTS_LIMIT must be positive")
	}
	if c.GlobalDocumentsEnabled && c.Granularity != GranularityDocument {
		return nil, fmt.Errorf("GLOBAL_DOCUMENTS_ENABLED requires GRANULARITY=%s", GranularityDocument)
	}
	if c.SeenStateFile == "" || c.NotifiedStateFile == "" {
		return nil, fmt.Errorf("SEEN_STATE_FILE and NOTIFIED_STATE_FILE are required")
	}
	if c.SeenStateFile == c.NotifiedStateFile {
		return nil, fmt.Errorf("SEEN_STATE_FILE and NOTIFIED_STATE_FILE must differ")
	}
	for key, raw := range map[string]string{"UPSTREAM_SITE_URL": c.SiteURL, "UPSTREAM_LIST_API": c.ListAPI, "UPSTREAM_DETAIL_API": c.DetailAPI} {
		if err := requireAbsoluteURL(raw); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
	}
	if c.WebhookURL != "" {
		if err := requireAbsoluteURL(c.WebhookURL); err != nil {
			return nil, fmt.Errorf("WEBHOOK_URL: %w", err)
		}
	}
	if len(c.KafkaBrokers) > 0 && strings.TrimSpace(c.PushTopic) == "" {
		return nil, fmt.Errorf("PUSH_TOPIC is required when KAFKA_BROKERS is set")
	}

	return c, nil
}

// WebhookEnabled reports whether the webhook channel is configured.
func (c *Monitor) WebhookEnabled() bool { return c.WebhookURL != "" }

// PushEnabled reports whether the push channel is configured.
func (c *Monitor) PushEnabled() bool { return len(c.KafkaBrokers) > 0 }

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	c := &API{
		Common:          loadCommon(),
		BindAddr:        getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		DefaultPage:     getInt("API_PAGE_SIZE", 20),
		MaxPage:         getInt("API_MAX_PAGE_SIZE", 100),
		AgendaExclude:   splitAndTrim(strings.ToLower(getEnv("AGENDA_EXCLUDE", defaultAgendaExclude))),
		AgendaRulesFile: getEnv("AGENDA_RULES_FILE", ""),
	}

	if c.DefaultPage <= 0 {
		return nil, fmt.Errorf("API_PAGE_SIZE must be positive")
	}
	if c.MaxPage <= 0 {
		return nil, fmt.Errorf("API_MAX_PAGE_SIZE must be positive")
	}
	if c.DefaultPage > c.MaxPage {
		return nil, fmt.Errorf("API_PAGE_SIZE cannot exceed API_MAX_PAGE_SIZE")
	}

	return c, nil
}

// LoadRetention builds a Retention config from environment variables.
func LoadRetention() (*Retention, error) {
	c := &Retention{
		Common:    loadCommon(),
		Interval:  getDuration("RETENTION_CRON", "24h"),
		MaxAge:    getDuration("RETENTION_MAX_AGE", "8760h"),
		BatchSize: getInt("RETENTION_BATCH_SIZE", 500),
	}

	if c.MaxAge <= 0 {
		return nil, fmt.Errorf("RETENTION_MAX_AGE must be positive")
	}

	if c.Interval <= 0 {
		return nil, fmt.Errorf("RETENTION_CRON must be positive")
	}

	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("RETENTION_BATCH_SIZE must be positive")
	}

	return c, nil
}

func requireAbsoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("%q is not an absolute http(s) URL", raw)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
