package web_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartcal/internal/config"
	"smartcal/internal/model"
	"smartcal/internal/notify"
	"smartcal/internal/scratch"
	"smartcal/internal/sqlite"
	"smartcal/internal/store"
	"smartcal/internal/weather"
	"smartcal/internal/web"
)

type stubWeather struct{}

func (stubWeather) Forecast(context.Context, float64, float64) (map[string]weather.Day, error) {
	return map[string]weather.Day{"2026-10-03": {MaxTemp: 21, MinTemp: 12, WeatherCode: 0, Icon: weather.Icon(0)}}, nil
}

type stubAI struct {
	label  string
	events int
}

func (s *stubAI) Summarize(_ context.Context, events []model.Event, label string) string {
	s.label, s.events = label, len(events)
	return "briefing"
}

func (s *stubAI) Chat(_ context.Context, prompt, label string) string {
	return prompt + "@" + label
}

type fixture struct {
	srv  *httptest.Server
	sink *notify.LogSink
	ai   *stubAI
}

func setup(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()
	dir := t.TempDir()
	ctx := context.Background()

	events, err := store.Open(filepath.Join(dir, "events"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = events.Close() })

	settings, err := sqlite.Open(ctx, filepath.Join(dir, "settings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = settings.Close() })

	kv, err := scratch.Open(filepath.Join(dir, "scratch"))
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	loc, err := cfg.Location()
	require.NoError(t, err)

	sink := notify.NewLogSink()
	runner := notify.NewRunner(settings, events, notify.NewDedup(kv), sink, notify.WithLocation(loc))
	assistant := &stubAI{}

	s := web.NewServer(cfg, web.Deps{
		Events:   events,
		Settings: settings,
		Theme:    kv,
		Notifier: runner,
		Weather:  stubWeather{},
		AI:       assistant,
		Now:      func() time.Time { return time.Date(2026, 10, 2, 9, 0, 0, 0, loc) },
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, sink: sink, ai: assistant}
}

func (f *fixture) do(t *testing.T, method, path, owner, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if owner != "" {
		req.Header.Set(web.OwnerHeader, owner)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	f := setup(t, nil)
	resp := f.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBasicAuthExemptsHealth(t *testing.T) {
	f := setup(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	})

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", "", "").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/events", "u1", "").StatusCode)

	req, err := http.NewRequest(http.MethodGet, f.srv.URL+"/api/events", nil)
	require.NoError(t, err)
	req.SetBasicAuth("admin", "secret")
	req.Header.Set(web.OwnerHeader, "u1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMissingOwner(t *testing.T) {
	f := setup(t, nil)
	resp := f.do(t, http.MethodGet, "/api/events", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEventLifecycle(t *testing.T) {
	f := setup(t, nil)

	resp := f.do(t, http.MethodPost, "/api/events", "u1",
		`{"title":" 출장 ","type":"personal","startDate":"2026-10-09","endDate":"2026-10-12","excludeSunday":true,"userId":"someone-else"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[model.Record](t, resp)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "u1", created.UserID)
	assert.Equal(t, "출장", created.Title)

	list := decode[[]model.Record](t, f.do(t, http.MethodGet, "/api/events", "u1", ""))
	require.Len(t, list, 1)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/events/"+created.ID, "u2", "").StatusCode)

	resp = f.do(t, http.MethodPatch, "/api/events/"+created.ID, "u1", `{"endDate":"2026-10-01"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPatch, "/api/events/"+created.ID, "u1", `{"completed":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[model.Record](t, resp).Completed)

	share := decode[map[string]string](t, f.do(t, http.MethodGet, "/api/events/"+created.ID+"/share", "u1", ""))
	assert.Equal(t, "[완료] 일정 안내\n기간: 2026-10-09 ~ 2026-10-12 (일요일 제외)\n제목: 출장", share["text"])

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/events/"+created.ID, "u1", "").StatusCode)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/events/"+created.ID, "u1", "").StatusCode)
}

func TestCreateRejections(t *testing.T) {
	f := setup(t, nil)

	resp := f.do(t, http.MethodPost, "/api/events", "u1", `{"title":"설날","type":"holiday","startDate":"2026-02-17"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/events", "u1", `{"title":"x","type":"personal","startDate":"2026/10/01"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/events", "u1", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

type day struct {
	Date           string         `json:"date"`
	IsCurrentMonth bool           `json:"isCurrentMonth"`
	IsToday        bool           `json:"isToday"`
	Holiday        *model.Record  `json:"holiday"`
	Events         []model.Record `json:"events"`
	Weather        *weather.Day   `json:"weather"`
}

func TestMonth(t *testing.T) {
	f := setup(t, nil)
	resp := f.do(t, http.MethodPost, "/api/events", "u1", `{"title":"병원","type":"personal","startDate":"2026-10-03"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	month := decode[struct {
		Label string `json:"label"`
		Days  []day  `json:"days"`
	}](t, f.do(t, http.MethodGet, "/api/month?year=2026&month=10", "u1", ""))

	assert.Equal(t, "2026년 10월", month.Label)
	require.Len(t, month.Days, 42)
	assert.Equal(t, "2026-09-27", month.Days[0].Date)
	assert.False(t, month.Days[0].IsCurrentMonth)
	assert.Nil(t, month.Days[0].Holiday)

	oct2, oct3 := month.Days[5], month.Days[6]
	assert.Equal(t, "2026-10-02", oct2.Date)
	assert.True(t, oct2.IsToday)
	require.NotNil(t, oct3.Holiday)
	assert.Equal(t, "개천절", oct3.Holiday.Title)
	require.Len(t, oct3.Events, 1)
	assert.Equal(t, "병원", oct3.Events[0].Title)
	require.NotNil(t, oct3.Weather)
	assert.Equal(t, 21.0, oct3.Weather.MaxTemp)
	assert.Nil(t, oct2.Weather)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/month?year=2026&month=13", "u1", "").StatusCode)
}

func TestDay(t *testing.T) {
	f := setup(t, nil)
	resp := f.do(t, http.MethodPost, "/api/events", "u1", `{"title":"여행","type":"personal","startDate":"2026-10-02","endDate":"2026-10-05","excludeSaturday":true}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	sat := decode[day](t, f.do(t, http.MethodGet, "/api/day/2026-10-03", "u1", ""))
	assert.Empty(t, sat.Events)
	require.NotNil(t, sat.Holiday)
	assert.Equal(t, "h2026-10-03", sat.Holiday.ID)

	sun := decode[day](t, f.do(t, http.MethodGet, "/api/day/2026-10-04", "u1", ""))
	require.Len(t, sun.Events, 1)
	assert.Nil(t, sun.Holiday)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/day/2026-1-4", "u1", "").StatusCode)
}

func TestHolidays(t *testing.T) {
	f := setup(t, nil)
	hs := decode[[]model.Record](t, f.do(t, http.MethodGet, "/api/holidays/2026", "", ""))
	require.Len(t, hs, 17)
	assert.Equal(t, "신정", hs[0].Title)
	assert.Equal(t, model.KindHoliday, hs[0].Type)
	assert.Empty(t, hs[0].UserID)
}

func TestSettings(t *testing.T) {
	f := setup(t, nil)

	got := decode[model.NotificationSettings](t, f.do(t, http.MethodGet, "/api/settings", "u1", ""))
	assert.Equal(t, model.DefaultSettings(), got)

	resp := f.do(t, http.MethodPatch, "/api/settings", "u1", `{"field":"advanceDays","value":3}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, decode[model.NotificationSettings](t, resp).AdvanceDays)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPatch, "/api/settings", "u1", `{"field":"advanceDays","value":-1}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPatch, "/api/settings", "u1", `{"field":"color","value":1}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/api/settings", "u1", `{"advanceDays":-2}`).StatusCode)

	resp = f.do(t, http.MethodPut, "/api/settings", "u1", `{"advanceDays":0,"notifyHolidays":false,"notifyPersonal":true,"enabled":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got = decode[model.NotificationSettings](t, f.do(t, http.MethodGet, "/api/settings", "u1", ""))
	assert.Equal(t, 0, got.AdvanceDays)
	assert.False(t, got.NotifyHolidays)
}

type check struct {
	Fired        bool `json:"fired"`
	Notification *struct {
		Title      string `json:"title"`
		Body       string `json:"body"`
		TargetDate string `json:"targetDate"`
		DedupKey   string `json:"dedupKey"`
	} `json:"notification"`
}

func TestNotifyCheckFiresOnce(t *testing.T) {
	f := setup(t, nil)
	resp := f.do(t, http.MethodPost, "/api/events", "u1", `{"title":"등산","type":"personal","startDate":"2026-10-03"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	first := decode[check](t, f.do(t, http.MethodPost, "/api/notify/check", "u1", ""))
	require.True(t, first.Fired)
	assert.Equal(t, "1일 후 일정 안내", first.Notification.Title)
	assert.Equal(t, "일정: 등산\n공휴일: 개천절", first.Notification.Body)
	assert.Equal(t, "2026-10-03", first.Notification.TargetDate)
	assert.Equal(t, "notified_for_2026-10-03_adv1", first.Notification.DedupKey)

	second := decode[check](t, f.do(t, http.MethodPost, "/api/notify/check", "u1", ""))
	assert.False(t, second.Fired)
	assert.Nil(t, second.Notification)
	assert.Len(t, f.sink.Sent(), 1)

	// Another owner has its own dedup record.
	other := decode[check](t, f.do(t, http.MethodPost, "/api/notify/check", "u2", ""))
	assert.True(t, other.Fired)
}

func TestNotifyPermission(t *testing.T) {
	f := setup(t, nil)
	f.sink.SetPermission(notify.PermissionDefault)

	got := decode[map[string]string](t, f.do(t, http.MethodGet, "/api/notify/permission", "", ""))
	assert.Equal(t, "default", got["permission"])

	res := decode[check](t, f.do(t, http.MethodPost, "/api/notify/check", "u1", ""))
	assert.False(t, res.Fired)

	got = decode[map[string]string](t, f.do(t, http.MethodPost, "/api/notify/permission", "", ""))
	assert.Equal(t, "granted", got["permission"])
}

func TestTheme(t *testing.T) {
	f := setup(t, nil)
	assert.Equal(t, "light", decode[map[string]string](t, f.do(t, http.MethodGet, "/api/theme", "", ""))["theme"])
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPut, "/api/theme", "", `{"theme":"dark"}`).StatusCode)
	assert.Equal(t, "dark", decode[map[string]string](t, f.do(t, http.MethodGet, "/api/theme", "", ""))["theme"])
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/api/theme", "", `{"theme":"blue"}`).StatusCode)
}

func TestSummaryAndAssistant(t *testing.T) {
	f := setup(t, nil)
	for _, body := range []string{
		`{"title":"보고서","type":"personal","startDate":"2026-10-05","endDate":"2026-10-07","completed":true}`,
		`{"title":"엄마","type":"contact","startDate":"2026-10-20","phoneNumber":"010-1234-5678"}`,
		`{"title":"다음달","type":"personal","startDate":"2026-11-02"}`,
	} {
		require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/events", "u1", body).StatusCode)
	}

	sum := decode[struct {
		Label string `json:"label"`
		Stats struct {
			Total, Completed, Pending, Rate int
		} `json:"stats"`
		Items []struct {
			Event          model.Record `json:"event"`
			OccurrenceDays []string     `json:"occurrenceDays"`
		} `json:"items"`
	}](t, f.do(t, http.MethodGet, "/api/summary?year=2026&month=10", "u1", ""))

	assert.Equal(t, "2026년 10월", sum.Label)
	assert.Equal(t, 2, sum.Stats.Total)
	assert.Equal(t, 1, sum.Stats.Completed)
	assert.Equal(t, 50, sum.Stats.Rate)
	require.Len(t, sum.Items, 2)
	assert.Equal(t, []string{"2026-10-05", "2026-10-06", "2026-10-07"}, sum.Items[0].OccurrenceDays)

	text := decode[map[string]string](t, f.do(t, http.MethodPost, "/api/summary/ai?year=2026&month=10", "u1", ""))
	assert.Equal(t, "briefing", text["text"])
	assert.Equal(t, "2026년 10월", f.ai.label)
	assert.Equal(t, 2, f.ai.events)

	text = decode[map[string]string](t, f.do(t, http.MethodPost, "/api/ai/chat", "u1", `{"prompt":"추천"}`))
	assert.Equal(t, "추천@2026-10-02", text["text"])
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/ai/chat", "u1", `{"prompt":" "}`).StatusCode)
}

func TestExportAndPrint(t *testing.T) {
	f := setup(t, nil)
	require.Equal(t, http.StatusCreated,
		f.do(t, http.MethodPost, "/api/events", "u1", `{"title":"병원","type":"personal","startDate":"2026-10-03"}`).StatusCode)

	resp := f.do(t, http.MethodGet, "/api/calendar.ics", "u1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/calendar")
	raw := new(strings.Builder)
	_, err := io.Copy(raw, resp.Body)
	require.NoError(t, err)
	assert.Contains(t, raw.String(), "SUMMARY:병원")

	resp = f.do(t, http.MethodGet, "/print?year=2026&month=10&owner=u1", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := new(strings.Builder)
	_, err = io.Copy(page, resp.Body)
	require.NoError(t, err)
	assert.Contains(t, page.String(), `data-ready="true"`)
	assert.Contains(t, page.String(), "2026년 10월")
	assert.Contains(t, page.String(), "개천절")
	assert.Contains(t, page.String(), "병원")
}
