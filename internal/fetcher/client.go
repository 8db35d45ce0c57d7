package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/DeafMist/raad-monitor/internal/config"
	"github.com/DeafMist/raad-monitor/internal/dedupe"
	"github.com/DeafMist/raad-monitor/internal/logger"
	"github.com/DeafMist/raad-monitor/internal/models"
	"github.com/DeafMist/raad-monitor/internal/normalize"
)

// ErrStatus marks a non-2xx upstream response.
var ErrStatus = errors.New("unexpected upstream status")

const maxBody = 16 << 20

// Options configures a Client.
type Options struct {
	ListAPI      string
	DetailAPI    string
	DocumentsURL string
	SiteURL      string
	UserAgent    string
	Sort         string
	ListLimit    int
	Timeout      time.Duration
	Workers      int
	DetailRPS    float64
}

// OptionsFromConfig maps the monitor configuration onto fetcher options.
func OptionsFromConfig(c *config.Monitor) Options {
	return Options{
		ListAPI:      c.ListAPI,
		DetailAPI:    c.DetailAPI,
		DocumentsURL: c.DocumentsURL,
		SiteURL:      c.SiteURL,
		UserAgent:    c.UserAgent,
		Sort:         c.Sort,
		ListLimit:    c.ListLimit,
		Timeout:      c.RequestTimeout,
		Workers:      c.DetailWorkers,
		DetailRPS:    c.DetailRPS,
	}
}

// Client talks to the upstream meetings API.
type Client struct {
	http    *http.Client
	opts    Options
	limiter *rate.Limiter
	log     *slog.Logger
}

// New creates a fetcher. A nil httpClient gets one bounded by opts.Timeout.
func New(opts Options, httpClient *http.Client, log *slog.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.ListLimit <= 0 {
		opts.ListLimit = 100
	}
	if opts.Sort == "" {
		opts.Sort = "date_asc"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	limit := rate.Inf
	if opts.DetailRPS > 0 {
		limit = rate.Limit(opts.DetailRPS)
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Client{
		http:    httpClient,
		opts:    opts,
		limiter: rate.NewLimiter(limit, opts.Workers),
		log:     log,
	}
}

// Links returns the base URLs used when normalizing records.
func (c *Client) Links() normalize.Links {
	return normalize.Links{SiteURL: c.opts.SiteURL, DocumentsURL: c.opts.DocumentsURL}
}

// ListMeetings fetches the meeting list starting at the window's lower bound
// and re-filters it locally, since the upstream date filter is not reliable.
// Any transport or decoding failure is returned; the caller aborts the cycle.
func (c *Client) ListMeetings(ctx context.Context, w Window) ([]models.Meeting, error) {
	q := url.Values{}
	q.Set("sort", c.opts.Sort)
	q.Set("date_from", w.From.Format("2006-01-02"))
	q.Set("limit", strconv.Itoa(c.opts.ListLimit))

	body, err := c.get(ctx, c.opts.ListAPI+"/meetings?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	records, shape, err := normalize.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	if shape == "" {
		c.log.Warn("meeting list has an unknown envelope, treating as empty")
	}

	meetings := make([]models.Meeting, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		m, err := normalize.Meeting(rec)
		if err != nil {
			c.log.Warn("skip malformed meeting record", slog.Any("err", err))
			continue
		}
		if !w.Contains(m.Date) {
			continue
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		meetings = append(meetings, m)
	}
	c.log.Info("meeting list fetched",
		slog.Int("received", len(records)),
		slog.Int("in_window", len(meetings)),
		slog.String("envelope", shape),
	)
	return meetings, nil
}

// Detail fetches the agenda tree of one meeting and merges it into m.
func (c *Client) Detail(ctx context.Context, m models.Meeting) (models.Meeting, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return m, fmt.Errorf("detail %s: %w", m.ID, err)
	}
	body, err := c.get(ctx, c.opts.DetailAPI+"/meetings/"+url.PathEscape(m.ID))
	if err != nil {
		return m, fmt.Errorf("detail %s: %w", m.ID, err)
	}
	detail, err := normalize.DecodeObject(body)
	if err != nil {
		return m, fmt.Errorf("detail %s: %w", m.ID, err)
	}
	return normalize.ApplyDetail(m, detail, c.Links()), nil
}

// DetailResult is the outcome of one detail fetch.
type DetailResult struct {
	Meeting models.Meeting
	Err     error
}

// Details fetches the agenda tree for each distinct meeting using a bounded
// worker pool. The result is keyed by meeting id and preserves no ordering;
// failed meetings carry their error.
func (c *Client) Details(ctx context.Context, meetings []models.Meeting) map[string]DetailResult {
	claimed := dedupe.NewSet(len(meetings))
	jobs := make(chan models.Meeting)
	results := make(map[string]DetailResult, len(meetings))
	var mu sync.Mutex
	var wg sync.WaitGroup

	workers := min(c.opts.Workers, len(meetings))
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range jobs {
				full, err := c.Detail(ctx, m)
				mu.Lock()
				results[m.ID] = DetailResult{Meeting: full, Err: err}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, m := range meetings {
		if !claimed.Claim(m.ID) {
			continue
		}
		select {
		case jobs <- m:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	return results
}

// ListDocuments fetches the most recent published documents.
func (c *Client) ListDocuments(ctx context.Context, limit int) ([]models.Document, error) {
	q := url.Values{}
	q.Set("sort", "id_desc")
	q.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, c.opts.DocumentsURL+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	records, shape, err := normalize.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	if shape == "" {
		c.log.Warn("document list has an unknown envelope, treating as empty")
	}

	docs := make([]models.Document, 0, len(records))
	for _, rec := range records {
		doc, err := normalize.Document(rec, c.Links())
		if err != nil {
			c.log.Warn("skip document without id")
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s: %s", ErrStatus, res.Status, strings.TrimSpace(truncate(string(body), 200)))
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
