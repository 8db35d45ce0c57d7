package dispatch

import (
	"context"
	"log/slog"

	"github.com/DeafMist/raad-monitor/internal/logger"
	"github.com/DeafMist/raad-monitor/internal/models"
)

// Notifier is a notification-class channel. A nil error means the attempt
// completed without a locally detected fault.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, ev models.Event) error
}

// Mirror is the document-store channel.
type Mirror interface {
	UpsertMeeting(ctx context.Context, m models.Meeting) error
	UpsertDocument(ctx context.Context, d models.Document) error
}

// Outcome records the delivery result of one event per channel.
type Outcome struct {
	Event     models.Event
	Delivered []string
	Failed    map[string]error
}

// Notified reports whether at least one notification channel accepted the
// event.
func (o Outcome) Notified() bool {
	return len(o.Delivered) > 0
}

// Report summarises a dispatch phase.
type Report struct {
	Outcomes []Outcome
}

// Notified counts the events accepted by at least one channel.
func (r Report) Notified() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Notified() {
			n++
		}
	}
	return n
}

// MirrorReport summarises a mirror pass.
type MirrorReport struct {
	Upserted int
	Failed   map[string]error
}

// Router fans events out to the configured channels. A router without
// notifiers still mirrors but never marks anything as notified.
type Router struct {
	notifiers []Notifier
	mirror    Mirror
	log       *slog.Logger
}

// NewRouter builds a router. mirror may be nil.
func NewRouter(notifiers []Notifier, mirror Mirror, log *slog.Logger) *Router {
	if log == nil {
		log = logger.Discard()
	}
	return &Router{notifiers: notifiers, mirror: mirror, log: log}
}

// HasNotifiers reports whether any notification channel is configured.
func (r *Router) HasNotifiers() bool {
	return len(r.notifiers) > 0
}

// HasMirror reports whether the document-store channel is configured.
func (r *Router) HasMirror() bool {
	return r.mirror != nil
}

// Dispatch delivers every event to every notifier. Channels are attempted
// independently; a failure is logged and recorded, never retried here.
func (r *Router) Dispatch(ctx context.Context, events []models.Event) Report {
	report := Report{Outcomes: make([]Outcome, 0, len(events))}
	for _, ev := range events {
		out := Outcome{Event: ev, Failed: map[string]error{}}
		for _, n := range r.notifiers {
			if err := ctx.Err(); err != nil {
				out.Failed[n.Name()] = err
				continue
			}
			if err := n.Notify(ctx, ev); err != nil {
				r.log.Warn("notification failed",
					slog.String("channel", n.Name()),
					slog.String("key", ev.Key()),
					slog.Any("err", err),
				)
				out.Failed[n.Name()] = err
				continue
			}
			out.Delivered = append(out.Delivered, n.Name())
		}
		report.Outcomes = append(report.Outcomes, out)
	}
	return report
}

// MirrorAll upserts every meeting. Failures are contained per meeting.
func (r *Router) MirrorAll(ctx context.Context, meetings []models.Meeting) MirrorReport {
	report := MirrorReport{Failed: map[string]error{}}
	if r.mirror == nil {
		return report
	}
	for _, m := range meetings {
		if err := ctx.Err(); err != nil {
			report.Failed[m.ID] = err
			continue
		}
		if err := r.mirror.UpsertMeeting(ctx, m); err != nil {
			r.log.Warn("mirror upsert failed", slog.String("meeting_id", m.ID), slog.Any("err", err))
			report.Failed[m.ID] = err
			continue
		}
		report.Upserted++
	}
	return report
}

// MirrorDocuments upserts swept documents. Failures are contained per
// document.
func (r *Router) MirrorDocuments(ctx context.Context, docs []models.Document) MirrorReport {
	report := MirrorReport{Failed: map[string]error{}}
	if r.mirror == nil {
		return report
	}
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			report.Failed[d.ID] = err
			continue
		}
		if err := r.mirror.UpsertDocument(ctx, d); err != nil {
			r.log.Warn("document mirror failed", slog.String("document_id", d.ID), slog.Any("err", err))
			report.Failed[d.ID] = err
			continue
		}
		report.Upserted++
	}
	return report
}
