package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutorcal/internal/model"
)

var jst = time.FixedZone("JST", 9*60*60)

const holidayFeed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//holidays//JA\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:kodomo@test\r\n" +
	"DTSTART;VALUE=DATE:20250505\r\n" +
	"DTEND;VALUE=DATE:20250506\r\n" +
	"SUMMARY:こどもの日\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:obon@test\r\n" +
	"DTSTART;VALUE=DATE:20250813\r\n" +
	"DTEND;VALUE=DATE:20250816\r\n" +
	"SUMMARY:お盆休み\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:meeting@test\r\n" +
	"DTSTART:20250507T010000Z\r\n" +
	"DTEND:20250507T020000Z\r\n" +
	"SUMMARY:timed meeting\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParseHolidaysKeepsAllDayEvents(t *testing.T) {
	table, err := ParseHolidays(strings.NewReader(holidayFeed), jst)
	require.NoError(t, err)

	label, ok := table.LookupKey("2025-05-05")
	assert.True(t, ok)
	assert.Equal(t, "こどもの日", label)

	for _, day := range []string{"2025-08-13", "2025-08-14", "2025-08-15"} {
		label, ok := table.LookupKey(day)
		assert.True(t, ok, day)
		assert.Equal(t, "お盆休み", label)
	}
	_, ok = table.LookupKey("2025-08-16")
	assert.False(t, ok, "DTEND is exclusive")

	_, ok = table.LookupKey("2025-05-07")
	assert.False(t, ok, "timed events are not holidays")
	assert.Equal(t, 4, table.Len())
}

func TestParseHolidaysRejectsGarbage(t *testing.T) {
	_, err := ParseHolidays(strings.NewReader("not a calendar"), jst)
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	events := []model.CalendarEvent{
		{ID: 12, Title: "数学", Start: time.Date(2025, 5, 29, 16, 0, 0, 0, jst), End: time.Date(2025, 5, 29, 17, 0, 0, 0, jst), Description: "二次関数", Color: "#D4FFC1"},
		{ID: 13, Title: "英語", Start: time.Date(2025, 5, 30, 10, 0, 0, 0, jst), End: time.Date(2025, 5, 30, 11, 0, 0, 0, jst)},
		{Title: "unsaved"},
	}
	out := Export(events, "")

	assert.Contains(t, out, "PRODID:"+DefaultProdID)
	assert.Contains(t, out, "UID:lesson-12@tutorcal")
	assert.Contains(t, out, "UID:lesson-13@tutorcal")
	assert.Contains(t, out, "DTSTART:20250529T070000Z")
	assert.Contains(t, out, "SUMMARY:数学")
	assert.Contains(t, out, "X-TUTORCAL-COLOR:#D4FFC1")
	assert.Contains(t, out, "X-TUTORCAL-COLOR:"+model.ChipColor)
	assert.NotContains(t, out, "unsaved")
	assert.Equal(t, 2, strings.Count(out, "BEGIN:VEVENT"))
}

func TestFetcherRevalidatesAndFallsBack(t *testing.T) {
	var hits atomic.Int32
	var down atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if down.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(holidayFeed))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), time.Second)
	ctx := context.Background()

	body, fromCache, err := f.Fetch(ctx, srv.URL+"/holidays.ics")
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, holidayFeed, string(body))

	body, fromCache, err = f.Fetch(ctx, srv.URL+"/holidays.ics")
	require.NoError(t, err)
	assert.True(t, fromCache, "304 serves the cached body")
	assert.Equal(t, holidayFeed, string(body))

	down.Store(true)
	body, fromCache, err = f.Fetch(ctx, srv.URL+"/holidays.ics")
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Equal(t, holidayFeed, string(body))
	assert.Equal(t, int32(3), hits.Load())

	_, _, err = f.Fetch(ctx, srv.URL+"/other.ics")
	assert.Error(t, err, "no cache to fall back on")
}

func TestLoadHolidaysFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "holidays.ics")
	require.NoError(t, os.WriteFile(path, []byte(holidayFeed), 0o600))

	table, err := LoadHolidays(context.Background(), nil, path, jst)
	require.NoError(t, err)
	_, ok := table.LookupKey("2025-05-05")
	assert.True(t, ok)

	_, err = LoadHolidays(context.Background(), nil, filepath.Join(t.TempDir(), "missing.ics"), jst)
	assert.Error(t, err)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://calendar.example.com/...(redacted)", redactURL("https://calendar.example.com/private/abc.ics?token=x"))
	assert.Equal(t, "ics://...(redacted)", redactURL("not a url"))
}
