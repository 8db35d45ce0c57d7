package normalize_test

import (
	"testing"
	"time"

	"github.com/DeafMist/raad-monitor/internal/normalize"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelopeVariants(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		shape string
		ids   []string
	}{
		{name: "result documents", body: `{"result":{"documents":[{"id":1},{"id":2}]}}`, shape: "result.documents", ids: []string{"1", "2"}},
		{name: "result meetings", body: `{"result":{"meetings":[{"id":"m1"}]}}`, shape: "result.meetings", ids: []string{"m1"}},
		{name: "result items", body: `{"result":{"items":[{"id":"a"}]}}`, shape: "result.items", ids: []string{"a"}},
		{name: "top documents", body: `{"documents":[{"id":3}]}`, shape: "documents", ids: []string{"3"}},
		{name: "top items", body: `{"items":[{"id":4},"junk",null]}`, shape: "items", ids: []string{"4"}},
		{name: "array", body: `[{"id":5},{"id":6}]`, shape: "array", ids: []string{"5", "6"}},
		{name: "nested wins over top level", body: `{"result":{"items":[{"id":"n"}]},"items":[{"id":"t"}]}`, shape: "result.items", ids: []string{"n"}},
		{name: "unknown shape", body: `{"data":[{"id":1}]}`, shape: "", ids: nil},
		{name: "scalar", body: `42`, shape: "", ids: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, shape, err := normalize.Decode([]byte(tt.body))
			require.NoError(t, err)
			require.Equal(t, tt.shape, shape)

			var ids []string
			for _, rec := range records {
				ids = append(ids, normalize.String(rec, "id"))
			}
			require.Equal(t, tt.ids, ids)
		})
	}
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	_, _, err := normalize.Decode([]byte(`{"items":[`))
	require.Error(t, err)
}

func TestStringFallsBackThroughKeys(t *testing.T) {
	rec := normalize.Record{"fileName": "", "filename": "notulen.pdf", "id": float64(1234567)}
	require.Equal(t, "notulen.pdf", normalize.String(rec, "fileName", "filename"))
	require.Equal(t, "1234567", normalize.String(rec, "id"))
	require.Equal(t, "", normalize.String(rec, "missing"))
}

func TestParseDate(t *testing.T) {
	d, err := normalize.ParseDate("2025-03-04T19:30:00+01:00")
	require.NoError(t, err)
	require.Equal(t, 2025, d.Year())
	require.Equal(t, time.March, d.Month())
	require.Equal(t, 4, d.Day())

	_, err = normalize.ParseDate("2025-3-4")
	require.Error(t, err)
	_, err = normalize.ParseDate("")
	require.Error(t, err)
}

func TestSlugify(t *testing.T) {
	require.Equal(t, "Vaststellen-agenda-2025", normalize.Slugify("Vaststellen agenda (2025)"))
	require.Equal(t, "Agendapunt", normalize.Slugify("  !! "))
	require.Equal(t, "Financiele-positie-na-een-jaar", normalize.Slugify("Financiële positie na één jaar"))
}

func TestDocumentLinks(t *testing.T) {
	dl := normalize.DownloadURL("https://raad.example/api/v2/documents/", "77")
	require.Equal(t, "https://raad.example/api/v2/documents/77/download", dl)
	require.Equal(t,
		"https://docs.google.com/viewer?url=https%3A%2F%2Fraad.example%2Fapi%2Fv2%2Fdocuments%2F77%2Fdownload&embedded=true",
		normalize.ViewerURL(dl))
}

func TestMeetingFromListRecord(t *testing.T) {
	rec := normalize.Record{
		"id":           float64(42),
		"date":         "2025-05-01 20:00:00",
		"dmu":          map[string]any{"name": "Raad"},
		"meetingLabel": map[string]any{"value": "Besluitvormend"},
		"startTime":    "20:00",
	}
	m, err := normalize.Meeting(rec)
	require.NoError(t, err)
	require.Equal(t, "42", m.ID)
	require.Equal(t, "Raad - Besluitvormend", m.Type)
	require.Equal(t, "Onbekend", m.Location)
	require.Equal(t, "20:00", m.StartTime)
	require.False(t, m.HasDetail)

	_, err = normalize.Meeting(normalize.Record{"date": "2025-05-01"})
	require.ErrorIs(t, err, normalize.ErrMissingID)

	_, err = normalize.Meeting(normalize.Record{"id": "x"})
	require.Error(t, err)
}

func TestApplyDetail(t *testing.T) {
	links := normalize.Links{SiteURL: "https://raad.example", DocumentsURL: "https://raad.example/api/v2/documents"}
	m, err := normalize.Meeting(normalize.Record{"id": "9", "date": "2025-05-01"})
	require.NoError(t, err)

	detail := normalize.Record{
		"fullUrl":  "/vergaderingen/9",
		"location": "Raadzaal",
		"agenda_items": []any{
			map[string]any{
				"number":      float64(1),
				"title":       "Opening",
				"description": "",
				"explanation": "  Toelichting  ",
				"documents": []any{
					map[string]any{"id": float64(100), "fileName": "agenda.pdf"},
					map[string]any{"filename": "zonder-id.pdf"},
				},
			},
			map[string]any{"documents": []any{map[string]any{"id": "101"}}},
		},
	}

	m = normalize.ApplyDetail(m, detail, links)
	require.True(t, m.HasDetail)
	require.Equal(t, "https://raad.example/vergaderingen/9", m.FullURL)
	require.Equal(t, "Raadzaal", m.Location)
	require.Len(t, m.Items, 2)
	require.Equal(t, "1", m.Items[0].Number)
	require.Equal(t, "Toelichting", m.Items[0].Description)
	require.Len(t, m.Items[0].Documents, 1)
	require.Equal(t, "agenda.pdf", m.Items[0].Documents[0].Filename)
	require.Equal(t, "https://raad.example/api/v2/documents/100/download", m.Items[0].Documents[0].DownloadURL)
	require.Equal(t, "Agendapunt", m.Items[1].Title)
	require.Equal(t, "Naamloos document", m.Items[1].Documents[0].Filename)
	require.Equal(t, 2, m.DocumentCount())
}
