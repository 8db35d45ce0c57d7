// Package pipeline runs one change-detection cycle: list, detail, evaluate,
// mirror, dispatch and persist.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/DeafMist/raad-monitor/internal/config"
	"github.com/DeafMist/raad-monitor/internal/dedupe"
	"github.com/DeafMist/raad-monitor/internal/delta"
	"github.com/DeafMist/raad-monitor/internal/dispatch"
	"github.com/DeafMist/raad-monitor/internal/fetcher"
	"github.com/DeafMist/raad-monitor/internal/logger"
	"github.com/DeafMist/raad-monitor/internal/models"
	"github.com/DeafMist/raad-monitor/internal/state"
)

// Source is the upstream side of a cycle.
type Source interface {
	ListMeetings(ctx context.Context, w fetcher.Window) ([]models.Meeting, error)
	Details(ctx context.Context, meetings []models.Meeting) map[string]fetcher.DetailResult
	ListDocuments(ctx context.Context, limit int) ([]models.Document, error)
}

// Options tune the cycle.
type Options struct {
	ListLookback         time.Duration
	SyncLookback         time.Duration
	Lookahead            time.Duration
	GlobalDocuments      bool
	GlobalDocumentsLimit int
	Now                  func() time.Time
}

// OptionsFromConfig maps the monitor configuration onto cycle options.
func OptionsFromConfig(c *config.Monitor) Options {
	return Options{
		ListLookback:         c.ListLookback,
		SyncLookback:         c.SyncLookback,
		Lookahead:            c.Lookahead,
		GlobalDocuments:      c.GlobalDocumentsEnabled,
		GlobalDocumentsLimit: c.GlobalDocumentsLimit,
	}
}

// Summary describes what one cycle did.
type Summary struct {
	CycleID   string
	Listed    int
	Synced    int
	Skipped   int
	Events    int
	Notified  int
	Mirrored  int
	SweepNew  int
	Persisted bool
}

// Pipeline wires the fetcher, delta engine, router and state stores.
type Pipeline struct {
	source   Source
	engine   *delta.Engine
	router   *dispatch.Router
	seen     *state.SeenStore
	notified *state.NotifiedStore
	opts     Options
	log      *slog.Logger
}

// New creates a pipeline.
func New(source Source, engine *delta.Engine, router *dispatch.Router, seen *state.SeenStore, notified *state.NotifiedStore, opts Options, log *slog.Logger) *Pipeline {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.GlobalDocumentsLimit <= 0 {
		opts.GlobalDocumentsLimit = 20
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Pipeline{
		source:   source,
		engine:   engine,
		router:   router,
		seen:     seen,
		notified: notified,
		opts:     opts,
		log:      log,
	}
}

// Windows computes the list and sync windows around now.
func (p *Pipeline) Windows(now time.Time) fetcher.Windows {
	return fetcher.Windows{
		List: fetcher.NewWindow(now, p.opts.ListLookback, p.opts.Lookahead),
		Sync: fetcher.NewWindow(now, p.opts.SyncLookback, p.opts.Lookahead),
	}
}

// Run executes one cycle. An error means the list call failed and no state
// was touched; every other failure is contained and logged.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	sum := Summary{CycleID: uuid.NewString()}
	log := p.log.With(slog.String("cycle_id", sum.CycleID))
	windows := p.Windows(p.opts.Now())

	listed, err := p.source.ListMeetings(ctx, windows.List)
	if err != nil {
		log.Error("list call failed, aborting cycle", slog.Any("err", err))
		return sum, fmt.Errorf("run cycle: %w", err)
	}
	sum.Listed = len(listed)

	seen := p.seen.Load()
	notified := p.notified.Load()

	toSync := make([]models.Meeting, 0, len(listed))
	for _, m := range listed {
		if windows.Sync.Contains(m.Date) {
			toSync = append(toSync, m)
		}
	}

	details := p.source.Details(ctx, toSync)
	detailed := make(map[string]models.Meeting, len(details))
	claimed := dedupe.NewSet(0)
	var events []models.Event
	for _, m := range toSync {
		res, ok := details[m.ID]
		if !ok {
			continue
		}
		if _, done := detailed[m.ID]; done {
			continue
		}
		if res.Err != nil {
			sum.Skipped++
			log.Warn("detail fetch failed, skipping meeting until next cycle",
				slog.String("meeting_id", m.ID),
				slog.Any("err", res.Err),
			)
			continue
		}
		detailed[m.ID] = res.Meeting
		if ev, raise := p.engine.Event(res.Meeting, seen, notified, claimed); raise {
			events = append(events, ev)
		}
	}
	sum.Synced = len(detailed)
	sum.Events = len(events)

	if p.router.HasMirror() {
		mirrored := make([]models.Meeting, 0, len(listed))
		for _, m := range listed {
			if full, ok := detailed[m.ID]; ok {
				m = full
			}
			mirrored = append(mirrored, m)
		}
		mr := p.router.MirrorAll(ctx, mirrored)
		sum.Mirrored = mr.Upserted
		if len(mr.Failed) > 0 {
			log.Warn("mirror incomplete", slog.Int("failed", len(mr.Failed)))
		}
	}

	if len(events) > 0 && !p.router.HasNotifiers() {
		log.Warn("no notification channel, events stay pending", slog.Int("events", len(events)))
	}
	report := p.router.Dispatch(ctx, events)
	sum.Notified = p.record(report, notified)

	if p.opts.GlobalDocuments {
		sum.SweepNew = p.sweep(ctx, log, notified, claimed)
	}

	if ctx.Err() != nil {
		log.Warn("cycle interrupted, state not persisted", slog.Any("err", ctx.Err()))
		return sum, nil
	}

	seenErr := p.seen.Save(seen)
	if seenErr != nil {
		log.Error("save seen state", slog.Any("err", seenErr))
	}
	notifiedErr := p.notified.Save(notified)
	if notifiedErr != nil {
		log.Error("save notified state", slog.Any("err", notifiedErr))
	}
	sum.Persisted = seenErr == nil && notifiedErr == nil

	log.Info("cycle completed",
		slog.String("granularity", string(p.engine.Granularity())),
		slog.Int("listed", sum.Listed),
		slog.Int("synced", sum.Synced),
		slog.Int("skipped", sum.Skipped),
		slog.Int("events", sum.Events),
		slog.Int("notified", sum.Notified),
		slog.Int("mirrored", sum.Mirrored),
		slog.Int("sweep_new", sum.SweepNew),
		slog.Int("claimed_documents", claimed.Len()),
	)
	return sum, nil
}

func (p *Pipeline) record(report dispatch.Report, notified state.Notified) int {
	n := 0
	for _, out := range report.Outcomes {
		if !out.Notified() {
			continue
		}
		n++
		for _, key := range p.engine.NotifiedKeys(out.Event) {
			notified.Add(key)
		}
	}
	return n
}

// sweep announces recently published documents that no meeting event has
// covered yet, as one batched event. Fresh documents are written to the
// document store before the notification goes out.
func (p *Pipeline) sweep(ctx context.Context, log *slog.Logger, notified state.Notified, claimed *dedupe.Set) int {
	docs, err := p.source.ListDocuments(ctx, p.opts.GlobalDocumentsLimit)
	if err != nil {
		log.Warn("document sweep failed", slog.Any("err", err))
		return 0
	}

	var fresh []models.Document
	for _, doc := range docs {
		if !notified.Has(doc.ID) && claimed.Claim(doc.ID) {
			fresh = append(fresh, doc)
		}
	}
	if len(fresh) == 0 {
		return 0
	}

	if p.router.HasMirror() {
		mr := p.router.MirrorDocuments(ctx, fresh)
		if len(mr.Failed) > 0 {
			log.Warn("document mirror incomplete", slog.Int("failed", len(mr.Failed)))
		}
	}

	ev := models.Event{Kind: models.EventNew, NewDocuments: fresh}
	report := p.router.Dispatch(ctx, []models.Event{ev})
	if p.record(report, notified) == 0 {
		log.Warn("document sweep not delivered", slog.Int("documents", len(fresh)))
	}
	return len(fresh)
}
