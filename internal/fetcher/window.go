package fetcher

import (
	"time"

	"github.com/DeafMist/raad-monitor/internal/normalize"
)

// Window is an inclusive range of calendar dates.
type Window struct {
	From time.Time
	To   time.Time
}

// NewWindow builds the window [now-back, now+ahead] truncated to days.
func NewWindow(now time.Time, back, ahead time.Duration) Window {
	return Window{
		From: normalize.Day(now.Add(-back)),
		To:   normalize.Day(now.Add(ahead)),
	}
}

// Contains reports whether the calendar date of d lies inside the window.
func (w Window) Contains(d time.Time) bool {
	day := normalize.Day(d)
	return !day.Before(w.From) && !day.After(w.To)
}

// Windows pairs the list-level window with the narrower sync window that
// receives detail fetches.
type Windows struct {
	List Window
	Sync Window
}
