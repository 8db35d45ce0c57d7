package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/raad-monitor/internal/agenda"
	"github.com/DeafMist/raad-monitor/internal/config"
	"github.com/DeafMist/raad-monitor/internal/elasticsearch"
	"github.com/DeafMist/raad-monitor/internal/logger"
	"github.com/DeafMist/raad-monitor/internal/models"
)

type stubSearcher struct {
	healthErr error
	result    *elasticsearch.SearchResult
	params    []elasticsearch.SearchParams
}

func (s *stubSearcher) Health(context.Context) error { return s.healthErr }

func (s *stubSearcher) SearchMeetings(_ context.Context, p elasticsearch.SearchParams) (*elasticsearch.SearchResult, error) {
	s.params = append(s.params, p)
	if s.result == nil {
		return nil, errors.New("index missing")
	}
	return s.result, nil
}

func newServer(es *stubSearcher) *server {
	return &server{
		log:   logger.Discard(),
		cfg:   &config.API{DefaultPage: 20, MaxPage: 100},
		es:    es,
		rules: agenda.Rules{Exclude: []string{"opening"}},
		now:   func() time.Time { return time.Date(2025, 6, 10, 9, 0, 0, 0, time.Local) },
	}
}

func TestHealth(t *testing.T) {
	srv := newServer(&stubSearcher{})
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	srv = newServer(&stubSearcher{healthErr: errors.New("red")})
	rec = httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMeetingsForwardsParams(t *testing.T) {
	es := &stubSearcher{result: &elasticsearch.SearchResult{Total: 0, Items: []elasticsearch.StoredMeeting{}}}
	srv := newServer(es)

	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/meetings?q=begroting&synced=true&size=500&start=2025-06-01", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, es.params, 1)
	p := es.params[0]
	require.Equal(t, "begroting", p.Query)
	require.True(t, p.SyncedOnly)
	require.Equal(t, 100, p.Size)
	require.NotNil(t, p.Start)
	require.Equal(t, "2025-06-01", p.Start.Format("2006-01-02"))
	require.Nil(t, p.End)
}

func TestMeetingsSearchFailure(t *testing.T) {
	srv := newServer(&stubSearcher{})
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/meetings", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAgendaConsolidatesSyncedMeetings(t *testing.T) {
	es := &stubSearcher{result: &elasticsearch.SearchResult{Total: 1, Items: []elasticsearch.StoredMeeting{{
		Meeting: models.Meeting{
			ID:      "1",
			DateRaw: "2025-06-12",
			Type:    "Raad",
			FullURL: "https://raad.example/raad",
			Items:   []models.AgendaItem{{Title: "Opening"}, {Title: "Kadernota"}},
		},
		Synced: true,
	}}}}
	srv := newServer(es)

	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/agenda", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	require.True(t, es.params[0].SyncedOnly)
	require.Equal(t, agendaMeetings, es.params[0].Size)

	var view agenda.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Len(t, view.Discussion, 1)
	require.Equal(t, "Kadernota", view.Discussion[0].Title)
	require.NotNil(t, view.GroupMeeting)
}

func TestClampInt(t *testing.T) {
	require.Equal(t, 20, clampInt("", 20, 100))
	require.Equal(t, 20, clampInt("abc", 20, 100))
	require.Equal(t, 20, clampInt("-1", 20, 100))
	require.Equal(t, 100, clampInt("1000", 20, 100))
	require.Equal(t, 42, clampInt("42", 20, 100))
}
