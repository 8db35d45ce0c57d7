package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/DeafMist/raad-monitor/internal/agenda"
	"github.com/DeafMist/raad-monitor/internal/config"
	"github.com/DeafMist/raad-monitor/internal/elasticsearch"
	"github.com/DeafMist/raad-monitor/internal/logger"
	"github.com/DeafMist/raad-monitor/internal/models"
)

// agendaMeetings is how many upcoming synced meetings feed the agenda view.
const agendaMeetings = 15

type meetingSearcher interface {
	Health(ctx context.Context) error
	SearchMeetings(ctx context.Context, params elasticsearch.SearchParams) (*elasticsearch.SearchResult, error)
}

func main() {
	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	rules := agenda.Rules{Exclude: cfg.AgendaExclude}
	if cfg.AgendaRulesFile != "" {
		rules, err = agenda.LoadRules(cfg.AgendaRulesFile, rules)
		if err != nil {
			log.Error("load agenda rules", slog.Any("err", err))
			os.Exit(1)
		}
	}

	srv := &server{log: log, cfg: cfg, es: esClient, rules: rules, now: time.Now}
	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		log.Info("api server starting", slog.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

type server struct {
	log   *slog.Logger
	cfg   *config.API
	es    meetingSearcher
	rules agenda.Rules
	now   func() time.Time
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/meetings", s.handleMeetings)
	r.Get("/agenda", s.handleAgenda)
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.es.Health(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleMeetings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q := r.URL.Query()
	params := elasticsearch.SearchParams{
		Query:      strings.TrimSpace(q.Get("q")),
		SyncedOnly: q.Get("synced") == "true",
		From:       clampInt(q.Get("from"), 0, 10_000),
		Size:       clampInt(q.Get("size"), s.cfg.DefaultPage, s.cfg.MaxPage),
		Sort:       strings.TrimSpace(q.Get("sort")),
		Start:      parseDate(q.Get("start")),
		End:        parseDate(q.Get("end")),
	}

	result, err := s.es.SearchMeetings(ctx, params)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleAgenda(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	now := s.now()
	start := now
	if d := parseDate(r.URL.Query().Get("from")); d != nil {
		start = *d
	}

	result, err := s.es.SearchMeetings(ctx, elasticsearch.SearchParams{
		SyncedOnly: true,
		Size:       agendaMeetings,
		Sort:       "date:asc",
		Start:      &start,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	meetings := make([]models.Meeting, 0, len(result.Items))
	for _, item := range result.Items {
		meetings = append(meetings, item.Meeting)
	}

	writeJSON(w, http.StatusOK, agenda.Build(meetings, s.rules, now))
}

func parseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return &ts
	}
	if ts, err := time.ParseInLocation("2006-01-02", raw, time.Local); err == nil {
		return &ts
	}
	return nil
}

func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	if value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
