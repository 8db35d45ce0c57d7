package normalize

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const dateLayout = "2006-01-02"

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// foldDiacritics turns "financiële" into "financiele".
func foldDiacritics(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return out
}

// String returns the first non-empty value among keys, formatting numbers
// and booleans the way they appear on the wire.
func String(rec Record, keys ...string) string {
	for _, key := range keys {
		if s := stringify(rec[key]); s != "" {
			return s
		}
	}
	return ""
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case map[string]any, []any:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

// Object returns the nested object stored under key, or nil.
func Object(rec Record, key string) Record {
	obj, _ := rec[key].(map[string]any)
	return obj
}

// Objects returns the object entries of the first key holding a non-empty
// array. Non-object entries are dropped.
func Objects(rec Record, keys ...string) []Record {
	for _, key := range keys {
		list, ok := rec[key].([]any)
		if !ok || len(list) == 0 {
			continue
		}
		out := make([]Record, 0, len(list))
		for _, raw := range list {
			if obj, ok := raw.(map[string]any); ok {
				out = append(out, obj)
			}
		}
		return out
	}
	return nil
}

// ParseDate reads the calendar date from the first ten characters of an
// ISO-like timestamp.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) < len(dateLayout) {
		return time.Time{}, fmt.Errorf("date %q too short", raw)
	}
	d, err := time.ParseInLocation(dateLayout, raw[:len(dateLayout)], time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	return d, nil
}

// Day truncates t to midnight in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Slugify turns an agenda item title into the path segment used by the
// public site.
func Slugify(text string) string {
	slug := strings.Trim(nonAlnum.ReplaceAllString(foldDiacritics(text), "-"), "-")
	if slug == "" {
		return "Agendapunt"
	}
	return slug
}

// DownloadURL derives the download link of a document.
func DownloadURL(documentsBase, id string) string {
	return strings.TrimRight(documentsBase, "/") + "/" + id + "/download"
}

// ViewerURL wraps a download link in the embedded document viewer.
func ViewerURL(downloadURL string) string {
	return "https://docs.google.com/viewer?url=" + url.QueryEscape(downloadURL) + "&embedded=true"
}

// AbsoluteURL joins relative site paths onto siteURL.
func AbsoluteURL(siteURL, raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "/") {
		return strings.TrimRight(siteURL, "/") + raw
	}
	return raw
}
