package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/DeafMist/raad-monitor/internal/logger"
	"github.com/DeafMist/raad-monitor/internal/models"
)

// upsertScript merges the managed fields into the stored meeting. Fields the
// pipeline does not send are left alone, and a synced flag that is already
// true is never cleared.
const upsertScript = `for (entry in params.doc.entrySet()) { ctx._source[entry.getKey()] = entry.getValue(); }
if (params.synced == true) { ctx._source.synced = true; } else if (ctx._source.synced == null) { ctx._source.synced = false; }
ctx._source.last_updated = ctx._now;`

// documentScript stores a swept document. The first sighting stamps the
// timestamp and an unread flag; later upserts refresh the metadata only, so a
// reader's is_read survives.
const documentScript = `for (entry in params.doc.entrySet()) { ctx._source[entry.getKey()] = entry.getValue(); }
if (ctx._source.timestamp == null) { ctx._source.timestamp = ctx._now; }
if (ctx._source.is_read == null) { ctx._source.is_read = false; }`

// DefaultDocumentIndex holds swept documents unless overridden.
const DefaultDocumentIndex = "raadstukken"

// Client wraps go-elasticsearch with helpers tailored to the meeting mirror.
type Client struct {
	es       *elasticsearch.Client
	index    string
	docIndex string
	log      *slog.Logger
}

// StoredMeeting is a meeting as held by the document store, including the
// fields the pipeline does not manage.
type StoredMeeting struct {
	models.Meeting
	DocCount    int   `json:"doc_count"`
	Synced      bool  `json:"synced"`
	LastUpdated int64 `json:"last_updated"`
}

// SearchParams narrow the meeting search.
type SearchParams struct {
	Query      string
	SyncedOnly bool
	From       int
	Size       int
	Sort       string
	Start      *time.Time
	End        *time.Time
}

// SearchResult bundles hits and total count.
type SearchResult struct {
	Total int64
	Items []StoredMeeting
}

// New instantiates the Elasticsearch client.
func New(addr, index string, log *slog.Logger) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{addr},
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	if log == nil {
		log = logger.Discard()
	}

	return &Client{es: es, index: index, docIndex: DefaultDocumentIndex, log: log}, nil
}

// WithDocumentIndex sets the index swept documents are written to.
func (c *Client) WithDocumentIndex(index string) *Client {
	if index != "" {
		c.docIndex = index
	}
	return c
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}

	return nil
}

// upsertParams builds the script parameters for m. List-level meetings only
// carry their header fields so a previously mirrored agenda survives.
func upsertParams(m models.Meeting) map[string]any {
	date := m.DateRaw
	if !m.Date.IsZero() {
		date = m.Date.Format("2006-01-02")
	}
	doc := map[string]any{
		"id":        m.ID,
		"type":      m.Type,
		"date":      date,
		"startTime": m.StartTime,
		"location":  m.Location,
	}
	if m.HasDetail {
		items := m.Items
		if items == nil {
			items = []models.AgendaItem{}
		}
		doc["items"] = items
		doc["doc_count"] = m.DocumentCount()
		if m.FullURL != "" {
			doc["fullUrl"] = m.FullURL
		}
	}
	return map[string]any{"doc": doc, "synced": m.HasDetail}
}

// UpsertMeeting merges m into the mirror keyed by its id.
func (c *Client) UpsertMeeting(ctx context.Context, m models.Meeting) error {
	body := map[string]any{
		"scripted_upsert": true,
		"script": map[string]any{
			"lang":   "painless",
			"source": upsertScript,
			"params": upsertParams(m),
		},
		"upsert": map[string]any{},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal upsert: %w", err)
	}

	if err := c.update(ctx, c.index, m.ID, payload); err != nil {
		return fmt.Errorf("upsert meeting: %w", err)
	}
	return nil
}

// UpsertDocument writes a swept document into the document index keyed by
// its id.
func (c *Client) UpsertDocument(ctx context.Context, d models.Document) error {
	title := d.Filename
	if title == "" {
		title = "Naamloos document"
	}
	body := map[string]any{
		"scripted_upsert": true,
		"script": map[string]any{
			"lang":   "painless",
			"source": documentScript,
			"params": map[string]any{
				"doc": map[string]any{
					"doc_id":     d.ID,
					"title":      title,
					"url":        d.DownloadURL,
					"viewer_url": d.ViewerURL,
					"type":       "global_doc",
				},
			},
		},
		"upsert": map[string]any{},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal document upsert: %w", err)
	}

	if err := c.update(ctx, c.docIndex, d.ID, payload); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

func (c *Client) update(ctx context.Context, index, id string, payload []byte) error {
	retries := 3
	req := esapi.UpdateRequest{
		Index:           index,
		DocumentID:      id,
		Body:            bytes.NewReader(payload),
		Refresh:         "false",
		RetryOnConflict: &retries,
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("status %s: %s", res.Status(), strings.TrimSpace(string(data)))
	}

	return nil
}

// SearchMeetings executes a bool query over mirrored meetings.
func (c *Client) SearchMeetings(ctx context.Context, params SearchParams) (*SearchResult, error) {
	if params.Size <= 0 {
		params.Size = 20
	}
	if params.Size > 200 {
		params.Size = 200
	}
	if params.From < 0 {
		params.From = 0
	}

	must := make([]map[string]any, 0, 1)
	filters := make([]map[string]any, 0, 2)

	if params.Query != "" {
		must = append(must, map[string]any{
			"multi_match": map[string]any{
				"query":  params.Query,
				"fields": []string{"type^2", "items.title", "items.description", "items.documents.filename"},
			},
		})
	}

	if params.SyncedOnly {
		filters = append(filters, map[string]any{
			"term": map[string]any{"synced": true},
		})
	}

	if params.Start != nil || params.End != nil {
		rangeQuery := map[string]any{}
		if params.Start != nil {
			rangeQuery["gte"] = params.Start.Format("2006-01-02")
		}
		if params.End != nil {
			rangeQuery["lte"] = params.End.Format("2006-01-02")
		}
		filters = append(filters, map[string]any{
			"range": map[string]any{
				"date": rangeQuery,
			},
		})
	}

	boolQuery := map[string]any{}
	if len(must) > 0 {
		boolQuery["must"] = must
	}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}
	if len(must) == 0 && len(filters) == 0 {
		boolQuery["must"] = []map[string]any{
			{"match_all": map[string]any{}},
		}
	}

	body := map[string]any{
		"from":             params.From,
		"size":             params.Size,
		"track_total_hits": true,
		"query": map[string]any{
			"bool": boolQuery,
		},
	}

	sortField := params.Sort
	if sortField == "" {
		sortField = "date:asc"
	}

	parts := strings.Split(sortField, ":")
	order := "asc"
	field := parts[0]
	if field == "" {
		field = "date"
	}
	if len(parts) > 1 && parts[1] != "" {
		order = parts[1]
	}
	body["sort"] = []map[string]any{
		{field: map[string]any{"order": order}},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source StoredMeeting `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	items := make([]StoredMeeting, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		items = append(items, hit.Source)
	}

	return &SearchResult{
		Total: parsed.Hits.Total.Value,
		Items: items,
	}, nil
}

// DeleteOlderThan removes meetings dated before now-maxAge using batched
// delete-by-query. It loops until a batch deletes fewer documents than
// batchSize.
func (c *Client) DeleteOlderThan(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	cutoff := time.Now().Add(-maxAge).Format("2006-01-02")
	totalDeleted := int64(0)

	for {
		body := map[string]any{
			"query": map[string]any{
				"range": map[string]any{
					"date": map[string]any{
						"lt": cutoff,
					},
				},
			},
			"max_docs": batchSize,
		}

		payload, err := json.Marshal(body)
		if err != nil {
			return totalDeleted, fmt.Errorf("marshal delete body: %w", err)
		}

		res, err := c.es.DeleteByQuery(
			[]string{c.index},
			bytes.NewReader(payload),
			c.es.DeleteByQuery.WithContext(ctx),
			c.es.DeleteByQuery.WithWaitForCompletion(true),
			c.es.DeleteByQuery.WithConflicts("proceed"),
			c.es.DeleteByQuery.WithScrollSize(batchSize),
		)
		if err != nil {
			return totalDeleted, fmt.Errorf("delete by query: %w", err)
		}

		if res.IsError() {
			data, _ := io.ReadAll(res.Body)
			res.Body.Close()
			return totalDeleted, fmt.Errorf("delete by query failed: %s", strings.TrimSpace(string(data)))
		}

		var parsed struct {
			Deleted int64 `json:"deleted"`
		}
		if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
			res.Body.Close()
			return totalDeleted, fmt.Errorf("decode delete response: %w", err)
		}
		res.Body.Close()

		totalDeleted += parsed.Deleted
		c.log.Debug("retention batch deleted",
			slog.String("index", c.index),
			slog.Int64("deleted", parsed.Deleted),
		)

		if parsed.Deleted < int64(batchSize) {
			break
		}
	}

	return totalDeleted, nil
}

// Health pings Elasticsearch to ensure connectivity.
func (c *Client) Health(ctx context.Context) error {
	res, err := c.es.Cluster.Health(c.es.Cluster.Health.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("cluster health bad: %s", strings.TrimSpace(string(data)))
	}
	return nil
}
