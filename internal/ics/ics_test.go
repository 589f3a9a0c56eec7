package ics

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartcal/internal/model"
)

func TestExportWritesAllDayEvents(t *testing.T) {
	trip := model.Personal{
		Meta:            model.Meta{ID: "e1", Owner: "u1", Title: "출장"},
		Start:           model.MustParseDate("2026-09-21"),
		End:             model.MustParseDate("2026-09-30"),
		ExcludeSaturday: true,
		ExcludeSunday:   true,
	}
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, "smartcal", []model.Event{trip}))
	out := buf.String()

	assert.Contains(t, out, "UID:e1@smartcal")
	assert.Contains(t, out, "DTSTART;VALUE=DATE:20260921")
	assert.Contains(t, out, "DTEND;VALUE=DATE:20260922")
	assert.Contains(t, out, "FREQ=DAILY")
	assert.Contains(t, out, "BYDAY=MO,TU,WE,TH,FR")
	assert.Contains(t, out, "X-SMARTCAL-TYPE:personal")
}

func TestExportThenParseKeepsMeaning(t *testing.T) {
	events := []model.Event{
		model.Personal{
			Meta:          model.Meta{ID: "e1", Title: "출장", Description: "부산"},
			Start:         model.MustParseDate("2026-09-21"),
			End:           model.MustParseDate("2026-09-30"),
			ExcludeSunday: true,
			Completed:     true,
		},
		model.Personal{
			Meta:  model.Meta{ID: "e2", Title: "휴가"},
			Start: model.MustParseDate("2026-12-30"),
			End:   model.MustParseDate("2027-01-02"),
		},
		model.Contact{
			Meta:        model.Meta{ID: "c1", Title: "치과"},
			Date:        model.MustParseDate("2026-10-07"),
			PhoneNumber: "02-123-4567",
		},
		model.Holiday{Meta: model.Meta{ID: "h2026-10-09", Title: "한글날"}, Date: model.MustParseDate("2026-10-09")},
	}
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, "", events))

	recs, skipped, err := Parse(buf.Bytes(), "u2")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	require.Len(t, skipped, 1)
	assert.ErrorIs(t, skipped[0].Reason, model.ErrHolidayReadOnly)

	byTitle := map[string]model.Record{}
	for _, r := range recs {
		assert.Equal(t, "u2", r.UserID)
		assert.Empty(t, r.ID)
		byTitle[r.Title] = r
	}

	trip := byTitle["출장"]
	assert.Equal(t, "2026-09-21", trip.StartDate)
	assert.Equal(t, "2026-09-30", trip.EndDate)
	assert.True(t, trip.ExcludeSunday)
	assert.False(t, trip.ExcludeSaturday)
	assert.True(t, trip.Completed)
	assert.Equal(t, "부산", trip.Description)

	vacation := byTitle["휴가"]
	assert.Equal(t, "2026-12-30", vacation.StartDate)
	assert.Equal(t, "2027-01-02", vacation.EndDate)

	dentist := byTitle["치과"]
	assert.Equal(t, model.KindContact, dentist.Type)
	assert.Equal(t, "2026-10-07", dentist.EndDate)
	assert.Equal(t, "02-123-4567", dentist.PhoneNumber)
}

const foreign = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Example//EN
BEGIN:VEVENT
UID:timed-1
DTSTAMP:20260101T000000Z
DTSTART:20261015T090000Z
DTEND:20261015T100000Z
SUMMARY:Standup
END:VEVENT
BEGIN:VEVENT
UID:weekly-1
DTSTAMP:20260101T000000Z
DTSTART;VALUE=DATE:20261001
RRULE:FREQ=WEEKLY;COUNT=4
SUMMARY:Yoga
END:VEVENT
BEGIN:VEVENT
UID:untitled
DTSTAMP:20260101T000000Z
DTSTART;VALUE=DATE:20261001
END:VEVENT
END:VCALENDAR
`

func TestParseForeignCalendar(t *testing.T) {
	recs, skipped, err := Parse([]byte(strings.ReplaceAll(foreign, "\n", "\r\n")), "u1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Standup", recs[0].Title)
	assert.Equal(t, "2026-10-15", recs[0].StartDate)
	assert.Equal(t, "2026-10-15", recs[0].EndDate)
	assert.Equal(t, model.KindPersonal, recs[0].Type)

	require.Len(t, skipped, 2)
	reasons := map[string]error{}
	for _, s := range skipped {
		reasons[s.UID] = s.Reason
	}
	assert.ErrorIs(t, reasons["weekly-1"], ErrUnsupportedRule)
	assert.ErrorIs(t, reasons["untitled"], model.ErrEmptyTitle)
}

func TestParseRejectsEmpty(t *testing.T) {
	_, _, err := Parse([]byte("  "), "u1")
	assert.Error(t, err)
}

func TestFetcherRevalidatesAndFallsBack(t *testing.T) {
	var calls atomic.Int32
	var down atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if down.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(foreign))
	}))
	defer srv.Close()

	fs := afero.NewMemMapFs()
	f := NewFetcher(fs, "/cache", srv.Client())
	ctx := context.Background()
	feed := srv.URL + "/private.ics?token=secret"

	res, err := f.Fetch(ctx, feed)
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, foreign, string(res.Body))

	res, err = f.Fetch(ctx, feed)
	require.NoError(t, err)
	assert.True(t, res.FromCache)

	down.Store(true)
	res, err = f.Fetch(ctx, feed)
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, int32(3), calls.Load())

	_, err = f.Fetch(ctx, srv.URL+"/other.ics")
	assert.Error(t, err)
}

func TestLoadReadsFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/in/cal.ics", []byte(foreign), 0o600))
	f := NewFetcher(fs, "/cache", &http.Client{Timeout: time.Second})

	body, err := f.Load(context.Background(), "/in/cal.ics")
	require.NoError(t, err)
	assert.Equal(t, foreign, string(body))
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://example.com/...(redacted)", redactURL("https://example.com/a/b.ics?token=x"))
	assert.Equal(t, "ics://...(redacted)", redactURL("not a url"))
}
