package push_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/DeafMist/raad-monitor/internal/config"
	"github.com/DeafMist/raad-monitor/internal/models"
	"github.com/DeafMist/raad-monitor/internal/push"
)

type stubWriter struct {
	msgs []kafka.Message
	err  error
}

func (s *stubWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if s.err != nil {
		return s.err
	}
	s.msgs = append(s.msgs, msgs...)
	return nil
}

func docs(names ...string) []models.Document {
	out := make([]models.Document, 0, len(names))
	for i, name := range names {
		out = append(out, models.Document{ID: string(rune('a' + i)), Filename: name})
	}
	return out
}

func TestComposeSingleDocument(t *testing.T) {
	msg := push.Compose(models.Event{NewDocuments: docs("motie.pdf")}, "raad_updates", config.GranularityDocument)
	require.Equal(t, push.Message{Topic: "raad_updates", Title: "Nieuw raadstuk", Body: "motie.pdf"}, msg)
}

func TestComposeMultipleDocuments(t *testing.T) {
	ev := models.Event{
		Meeting:      &models.Meeting{ID: "m1", Type: "Raad"},
		NewDocuments: docs("a.pdf", "b.pdf", "c.pdf"),
	}
	msg := push.Compose(ev, "raad_updates", config.GranularityDocument)
	require.Equal(t, "Nieuwe stukken: Raad", msg.Title)
	require.Equal(t, "Er zijn 3 nieuwe stukken. Laatste: c.pdf", msg.Body)

	require.Equal(t, msg, push.Compose(ev, "raad_updates", config.GranularityDocument))
}

func TestComposeSweepNamesHighestDocument(t *testing.T) {
	// The documents endpoint lists newest first.
	ev := models.Event{Kind: models.EventNew, NewDocuments: []models.Document{
		{ID: "1042", Filename: "raadsvoorstel.pdf"},
		{ID: "998", Filename: "bijlage.pdf"},
		{ID: "1007", Filename: "motie.pdf"},
	}}
	msg := push.Compose(ev, "raad_updates", config.GranularityDocument)
	require.Equal(t, "Nieuw raadstuk", msg.Title)
	require.Equal(t, "Er zijn 3 nieuwe stukken. Laatste: raadsvoorstel.pdf", msg.Body)
}

func TestComposeMeetingMode(t *testing.T) {
	ev := models.Event{
		Meeting:      &models.Meeting{ID: "m1", Type: "Commissie", DateRaw: "2025-05-01 19:30:00"},
		NewDocuments: docs("a.pdf", "b.pdf"),
	}
	msg := push.Compose(ev, "raad_updates", config.GranularityMeeting)
	require.Equal(t, "Nieuwe agenda: Commissie", msg.Title)
	require.Equal(t, "Datum: 2025-05-01 met 2 documenten beschikbaar.", msg.Body)
}

func TestNotifyWritesKeyedMessage(t *testing.T) {
	w := &stubWriter{}
	s := push.New(w, "raad_updates", config.GranularityDocument, nil)
	require.Equal(t, "push", s.Name())

	ev := models.Event{Kind: models.EventNew, Meeting: &models.Meeting{ID: "m1", Type: "Raad"}, NewDocuments: docs("a.pdf")}
	require.NoError(t, s.Notify(context.Background(), ev))
	require.Len(t, w.msgs, 1)
	require.Equal(t, "m1", string(w.msgs[0].Key))

	var got push.Message
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	require.Equal(t, "raad_updates", got.Topic)
	require.Equal(t, "a.pdf", got.Body)
}

func TestNotifyPropagatesWriterError(t *testing.T) {
	s := push.New(&stubWriter{err: errors.New("broker down")}, "raad_updates", config.GranularityDocument, nil)
	require.Error(t, s.Notify(context.Background(), models.Event{NewDocuments: docs("a.pdf")}))
}
