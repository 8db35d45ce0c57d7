// Package delta classifies freshly fetched meetings against the state of the
// previous cycle.
//
// The fingerprint is the document count, so a document replaced in place
// while another is deleted in the same interval leaves the count unchanged
// and is not reported as a meeting change. Document-level events still catch
// the replacement because they compare identifiers.
package delta

import (
	"github.com/DeafMist/raad-monitor/internal/config"
	"github.com/DeafMist/raad-monitor/internal/dedupe"
	"github.com/DeafMist/raad-monitor/internal/models"
	"github.com/DeafMist/raad-monitor/internal/state"
)

// Result is the classification of one meeting.
type Result struct {
	Kind         models.EventKind
	Fingerprint  int
	Previous     int
	NewDocuments []models.Document
}

// Evaluate compares one detail-fetched meeting with the seen fingerprints.
// New documents are those whose identifier is not in known; a meeting absent
// from seen is new in full regardless of known.
func Evaluate(m models.Meeting, seen state.Seen, known state.Notified) Result {
	fp := m.DocumentCount()
	prev, ok := seen[m.ID]
	if !ok {
		return Result{Kind: models.EventNew, Fingerprint: fp, NewDocuments: m.Documents()}
	}

	res := Result{Kind: models.EventUnchanged, Fingerprint: fp, Previous: prev}
	if fp != prev {
		res.Kind = models.EventChanged
	}
	for _, doc := range m.Documents() {
		if !known.Has(doc.ID) {
			res.NewDocuments = append(res.NewDocuments, doc)
		}
	}
	return res
}

// Engine turns classifications into dispatchable events for the configured
// granularity.
type Engine struct {
	granularity config.Granularity
}

// NewEngine creates an engine; an unknown granularity falls back to
// document level.
func NewEngine(g config.Granularity) *Engine {
	if g != config.GranularityMeeting {
		g = config.GranularityDocument
	}
	return &Engine{granularity: g}
}

// Granularity returns the active mode.
func (e *Engine) Granularity() config.Granularity {
	return e.granularity
}

// Event evaluates m and returns the event to dispatch, if any. seen is
// advanced to the new fingerprint in place.
//
// Under document granularity notified holds document identifiers and the
// event carries the documents not yet notified. claimed spans one cycle: a
// document already placed in an earlier event of the cycle is dropped, so a
// document attached to several meetings is announced once. claimed may be nil.
//
// Under meeting granularity notified holds meeting identifiers and a meeting
// is announced once, as soon as it has documents. Later fingerprint moves of
// an announced meeting are classified as changed but raise no event.
func (e *Engine) Event(m models.Meeting, seen state.Seen, notified state.Notified, claimed *dedupe.Set) (models.Event, bool) {
	var res Result
	if e.granularity == config.GranularityMeeting {
		res = Evaluate(m, seen, nil)
	} else {
		res = Evaluate(m, seen, notified)
	}
	seen[m.ID] = res.Fingerprint

	ev := models.Event{
		Kind:                res.Kind,
		Meeting:             &m,
		Fingerprint:         res.Fingerprint,
		PreviousFingerprint: res.Previous,
	}

	if e.granularity == config.GranularityMeeting {
		if res.Fingerprint == 0 || notified.Has(m.ID) {
			return ev, false
		}
		ev.NewDocuments = m.Documents()
		return ev, true
	}

	for _, doc := range res.NewDocuments {
		if claimed == nil || claimed.Claim(doc.ID) {
			ev.NewDocuments = append(ev.NewDocuments, doc)
		}
	}
	return ev, len(ev.NewDocuments) > 0
}

// NotifiedKeys returns the identifiers to record once ev was delivered.
func (e *Engine) NotifiedKeys(ev models.Event) []string {
	if e.granularity == config.GranularityMeeting && ev.Meeting != nil {
		return []string{ev.Meeting.ID}
	}
	return ev.DocumentIDs()
}
