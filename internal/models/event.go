package models

// EventKind classifies a delta event.
type EventKind string

const (
	EventNew       EventKind = "new"
	EventChanged   EventKind = "changed"
	EventUnchanged EventKind = "unchanged"
)

// Event describes what changed for one upstream entity between two cycles.
// Events raised by the global documents sweep carry no meeting.
type Event struct {
	Kind                EventKind
	Meeting             *Meeting
	NewDocuments        []Document
	Fingerprint         int
	PreviousFingerprint int
}

// Key is the entity identifier recorded in the notified state for this event
// under meeting granularity.
func (e Event) Key() string {
	if e.Meeting != nil {
		return e.Meeting.ID
	}
	if len(e.NewDocuments) > 0 {
		return e.NewDocuments[0].ID
	}
	return ""
}

// DocumentIDs lists the identifiers of the new documents.
func (e Event) DocumentIDs() []string {
	ids := make([]string, 0, len(e.NewDocuments))
	for _, doc := range e.NewDocuments {
		ids = append(ids, doc.ID)
	}
	return ids
}
