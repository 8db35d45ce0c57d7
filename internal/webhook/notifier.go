package webhook

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

	"github.com/DeafMist/raad-monitor/internal/logger"
	"github.com/DeafMist/raad-monitor/internal/models"
	"github.com/DeafMist/raad-monitor/internal/normalize"
)

const (
	maxListed  = 10
	maxActions = 3
)

// Action is a deep link rendered as a notification button.
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
	URI    string `json:"uri"`
}

// Data holds the client-side rendering hints.
type Data struct {
	ClickAction string   `json:"clickAction"`
	URL         string   `json:"url"`
	Actions     []Action `json:"actions"`
	Channel     string   `json:"channel"`
	Tag         string   `json:"tag"`
	Importance  string   `json:"importance"`
	Priority    string   `json:"priority"`
}

// Payload is the JSON body posted to the webhook.
type Payload struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Data    Data   `json:"data"`
}

// Build renders the payload for one event. Meeting events link to the agenda
// item holding the first new document; document-sweep events link to the
// first document.
func Build(ev models.Event, siteURL, channel string) Payload {
	docs := ev.NewDocuments
	listed := docs
	if len(listed) > maxListed {
		listed = listed[:maxListed]
	}

	var msg strings.Builder
	actions := make([]Action, 0, maxActions)
	for i, doc := range listed {
		label := doc.Filename
		if ev.Meeting != nil {
			if item, ok := ev.Meeting.ItemFor(doc.ID); ok {
				label = item.Title + ": " + doc.Filename
			}
		}
		fmt.Fprintf(&msg, "- [%s](%s)\n", label, doc.ViewerURL)
		if i < maxActions {
			actions = append(actions, Action{Action: "URI", Title: fmt.Sprintf("Open %d", i+1), URI: doc.ViewerURL})
		}
	}
	if rest := len(docs) - len(listed); rest > 0 {
		fmt.Fprintf(&msg, "\n... en nog %d andere documenten.", rest)
	}

	p := Payload{
		Data: Data{
			Actions:    actions,
			Channel:    channel,
			Importance: "high",
			Priority:   "high",
		},
	}

	if ev.Meeting != nil {
		m := ev.Meeting
		p.Title = m.Type
		if len(m.DateRaw) >= 10 {
			p.Title += " " + m.DateRaw[:10]
		}
		p.Message = "Nieuwe documenten:\n\n" + msg.String()
		p.Data.Tag = "agenda-" + m.ID
		p.Data.URL = agendaURL(*m, docs, siteURL)
	} else {
		p.Title = fmt.Sprintf("%d nieuwe documenten", len(docs))
		if len(docs) == 1 {
			p.Title = "Nieuw document"
		}
		p.Message = "Zojuist gepubliceerd:\n\n" + msg.String()
		p.Data.Tag = "global-docs"
		p.Data.URL = siteURL
		if len(docs) > 0 {
			p.Data.URL = docs[0].ViewerURL
		}
	}
	p.Data.ClickAction = p.Data.URL
	return p
}

func agendaURL(m models.Meeting, docs []models.Document, siteURL string) string {
	if m.FullURL == "" {
		return siteURL
	}
	if len(docs) == 0 {
		return m.FullURL
	}
	item, ok := m.ItemFor(docs[0].ID)
	if !ok {
		return m.FullURL
	}
	return strings.TrimRight(m.FullURL, "/") + "/" + normalize.Slugify(item.Title)
}

// Notifier posts event payloads to a single webhook URL.
type Notifier struct {
	url     string
	siteURL string
	channel string
	http    *http.Client
	log     *slog.Logger
}

// New creates a notifier. A nil httpClient gets one bounded by timeout.
func New(url, siteURL, channel string, timeout time.Duration, httpClient *http.Client, log *slog.Logger) *Notifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Notifier{url: url, siteURL: siteURL, channel: channel, http: httpClient, log: log}
}

// Name identifies the channel in dispatch reports.
func (n *Notifier) Name() string { return "webhook" }

// Notify posts one payload. Transport failures and non-2xx answers are
// returned; there is no retry within the cycle.
func (n *Notifier) Notify(ctx context.Context, ev models.Event) error {
	payload := Build(ev, n.siteURL, n.channel)
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("webhook failed: %s: %s", res.Status, strings.TrimSpace(string(data)))
	}
	_, _ = io.Copy(io.Discard, res.Body)

	n.log.Info("webhook sent", slog.String("title", payload.Title), slog.Int("documents", len(ev.NewDocuments)))
	return nil
}
