// Package agenda consolidates the agendas of upcoming synced meetings into a
// single view for the group meeting that precedes them.
package agenda

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/DeafMist/raad-monitor/internal/models"
	"github.com/DeafMist/raad-monitor/internal/normalize"
)

var months = [...]string{
	"januari", "februari", "maart", "april", "mei", "juni",
	"juli", "augustus", "september", "oktober", "november", "december",
}

// MeetingRef is one meeting contributing to the view.
type MeetingRef struct {
	ID    string    `json:"id"`
	Label string    `json:"label"`
	URL   string    `json:"url,omitempty"`
	Date  time.Time `json:"date"`
}

// Link points at an agenda item within one meeting type.
type Link struct {
	Type string `json:"type"`
	URL  string `json:"url,omitempty"`
}

// Item is an agenda title deduplicated across meetings.
type Item struct {
	Title string `json:"title"`
	Links []Link `json:"links"`
}

// View is the consolidated agenda.
type View struct {
	GroupMeeting *time.Time   `json:"group_meeting,omitempty"`
	Meetings     []MeetingRef `json:"meetings"`
	Consent      []Item       `json:"consent"`
	Discussion   []Item       `json:"discussion"`
}

// DutchDate formats t as "1 mei 2025".
func DutchDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), months[t.Month()-1], t.Year())
}

// Classify maps a meeting type onto its short name and one-letter code.
func Classify(meetingType string) (short, code string) {
	switch {
	case strings.Contains(meetingType, "Raad"):
		return "Raad", "R"
	case strings.Contains(meetingType, "Oordeel"):
		return "Oordeelsvormend", "O"
	default:
		return "Beeldvormend", "B"
	}
}

type entry struct {
	title   string
	consent bool
	links   map[string]string
}

// Build consolidates meetings, ordered by date, into a view. Items whose
// lowercased title contains an excluded keyword are dropped. Section headers
// switch subsequent items between the consent and discussion lists.
func Build(meetings []models.Meeting, rules Rules, now time.Time) View {
	rules = rules.withDefaults()
	sorted := make([]models.Meeting, 0, len(meetings))
	for _, m := range meetings {
		if m.Date.IsZero() {
			d, err := normalize.ParseDate(m.DateRaw)
			if err != nil {
				continue
			}
			m.Date = d
		}
		sorted = append(sorted, m)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	view := View{Meetings: []MeetingRef{}, Consent: []Item{}, Discussion: []Item{}}
	var order []*entry
	byTitle := map[string]*entry{}

	for _, m := range sorted {
		short, code := Classify(m.Type)
		view.Meetings = append(view.Meetings, MeetingRef{
			ID:    m.ID,
			Label: fmt.Sprintf("%s (%s)", short, DutchDate(m.Date)),
			URL:   m.FullURL,
			Date:  m.Date,
		})

		consent := false
		for _, item := range m.Items {
			title := strings.TrimSpace(item.Title)
			lower := strings.ToLower(title)
			if excluded(lower, rules.Exclude) {
				continue
			}
			if strings.Contains(lower, rules.ConsentMarker) {
				consent = true
				continue
			}
			if strings.Contains(lower, rules.DiscussionMarker) {
				consent = false
				continue
			}

			e, ok := byTitle[title]
			if !ok {
				e = &entry{title: title, consent: consent, links: map[string]string{}}
				byTitle[title] = e
				order = append(order, e)
			}
			link := ""
			if m.FullURL != "" {
				link = m.FullURL + "/" + normalize.Slugify(title)
			}
			e.links[code] = link
		}
	}

	for _, e := range order {
		item := Item{Title: e.title, Links: make([]Link, 0, len(e.links))}
		for code, url := range e.links {
			item.Links = append(item.Links, Link{Type: code, URL: url})
		}
		sort.Slice(item.Links, func(i, j int) bool { return item.Links[i].Type < item.Links[j].Type })
		if e.consent {
			view.Consent = append(view.Consent, item)
		} else {
			view.Discussion = append(view.Discussion, item)
		}
	}

	if d, ok := GroupMeetingDate(view.Meetings, now); ok {
		view.GroupMeeting = &d
	}
	return view
}

// GroupMeetingDate returns the Tuesday of the week holding the first upcoming
// council or opinion-forming meeting, falling back to the latest past one.
func GroupMeetingDate(meetings []MeetingRef, now time.Time) (time.Time, bool) {
	today := normalize.Day(now)
	decisive := func(m MeetingRef) bool {
		return strings.Contains(m.Label, "Raad") || strings.Contains(m.Label, "Oordeelsvormend")
	}

	var target time.Time
	for _, m := range meetings {
		if !normalize.Day(m.Date).Before(today) && decisive(m) {
			target = m.Date
			break
		}
	}
	if target.IsZero() {
		for i := len(meetings) - 1; i >= 0; i-- {
			if decisive(meetings[i]) {
				target = meetings[i].Date
				break
			}
		}
	}
	if target.IsZero() {
		return time.Time{}, false
	}

	day := normalize.Day(target)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, 1-offset), true
}

func excluded(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
