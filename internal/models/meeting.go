package models

import "time"

// Document is a single published file attached to an agenda item.
type Document struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	DownloadURL string `json:"url"`
	ViewerURL   string `json:"viewer_url"`
}

// AgendaItem is one numbered point on a meeting agenda.
type AgendaItem struct {
	Number      string     `json:"number"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Documents   []Document `json:"documents"`
}

// Meeting is the canonical meeting record produced by the normalizer and
// mirrored into the document store.
type Meeting struct {
	ID        string       `json:"id"`
	Date      time.Time    `json:"-"`
	DateRaw   string       `json:"date"`
	StartTime string       `json:"startTime"`
	Type      string       `json:"type"`
	Location  string       `json:"location"`
	FullURL   string       `json:"fullUrl,omitempty"`
	Items     []AgendaItem `json:"items,omitempty"`

	// HasDetail is set when the agenda tree came from the detail endpoint.
	HasDetail bool `json:"-"`
}

// DocumentCount is the meeting fingerprint: documents across all agenda items.
func (m Meeting) DocumentCount() int {
	total := 0
	for _, item := range m.Items {
		total += len(item.Documents)
	}
	return total
}

// Documents flattens the agenda tree in agenda order. A document attached to
// several agenda items is listed once, at its first position.
func (m Meeting) Documents() []Document {
	out := make([]Document, 0, m.DocumentCount())
	seen := make(map[string]struct{}, m.DocumentCount())
	for _, item := range m.Items {
		for _, doc := range item.Documents {
			if _, dup := seen[doc.ID]; dup {
				continue
			}
			seen[doc.ID] = struct{}{}
			out = append(out, doc)
		}
	}
	return out
}

// ItemFor returns the agenda item holding the document with the given id.
func (m Meeting) ItemFor(documentID string) (AgendaItem, bool) {
	for _, item := range m.Items {
		for _, doc := range item.Documents {
			if doc.ID == documentID {
				return item, true
			}
		}
	}
	return AgendaItem{}, false
}
