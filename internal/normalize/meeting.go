package normalize

import (
	"errors"
	"fmt"

	"github.com/DeafMist/raad-monitor/internal/models"
)

// ErrMissingID is returned for records without an identifier.
var ErrMissingID = errors.New("record has no id")

// Links carries the base URLs used to derive document and agenda links.
type Links struct {
	SiteURL      string
	DocumentsURL string
}

// Meeting builds a list-level meeting from a list record. The date is
// required; a record without a usable id or date is a schema error.
func Meeting(rec Record) (models.Meeting, error) {
	id := String(rec, "id")
	if id == "" {
		return models.Meeting{}, ErrMissingID
	}
	raw := String(rec, "date")
	date, err := ParseDate(raw)
	if err != nil {
		return models.Meeting{}, fmt.Errorf("meeting %s: %w", id, err)
	}
	return models.Meeting{
		ID:        id,
		Date:      date,
		DateRaw:   raw,
		StartTime: String(rec, "startTime", "time"),
		Type:      meetingType(rec),
		Location:  orDefault(String(rec, "location"), "Onbekend"),
	}, nil
}

// ApplyDetail merges a detail payload into a list-level meeting, filling the
// agenda tree and any fields the list record lacked.
func ApplyDetail(m models.Meeting, detail Record, links Links) models.Meeting {
	if t := String(detail, "type"); t != "" {
		m.Type = t
	} else if Object(detail, "dmu") != nil {
		m.Type = meetingType(detail)
	}
	if loc := String(detail, "location"); loc != "" {
		m.Location = loc
	}
	if m.StartTime == "" {
		m.StartTime = String(detail, "startTime", "time")
	}
	m.FullURL = AbsoluteURL(links.SiteURL, String(detail, "fullUrl"))

	rawItems := Objects(detail, "items", "agenda_items")
	m.Items = make([]models.AgendaItem, 0, len(rawItems))
	for _, item := range rawItems {
		m.Items = append(m.Items, agendaItem(item, links))
	}
	m.HasDetail = true
	return m
}

// Document builds a document from an upstream document object.
func Document(rec Record, links Links) (models.Document, error) {
	id := String(rec, "id")
	if id == "" {
		return models.Document{}, ErrMissingID
	}
	download := DownloadURL(links.DocumentsURL, id)
	return models.Document{
		ID:          id,
		Filename:    orDefault(String(rec, "fileName", "filename", "name", "title"), "Naamloos document"),
		DownloadURL: download,
		ViewerURL:   ViewerURL(download),
	}, nil
}

func agendaItem(rec Record, links Links) models.AgendaItem {
	item := models.AgendaItem{
		Number:      String(rec, "number"),
		Title:       orDefault(String(rec, "title"), "Agendapunt"),
		Description: String(rec, "explanation", "description", "text"),
	}
	for _, raw := range Objects(rec, "documents") {
		doc, err := Document(raw, links)
		if err != nil {
			continue
		}
		item.Documents = append(item.Documents, doc)
	}
	return item
}

func meetingType(rec Record) string {
	name := "Vergadering"
	if dmu := Object(rec, "dmu"); dmu != nil {
		name = orDefault(String(dmu, "name"), name)
	}
	if label := Object(rec, "meetingLabel"); label != nil {
		if v := String(label, "value"); v != "" {
			return name + " - " + v
		}
	}
	return name
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
