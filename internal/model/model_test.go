package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "2026-2-16", "2026/02/16", "20260216", "2026-02-30", "2026-02-16T00:00:00Z", " 2026-02-16"} {
		_, err := ParseDate(in)
		assert.ErrorIs(t, err, ErrInvalidDate, "input %q", in)
	}

	d, err := ParseDate("2026-02-16")
	require.NoError(t, err)
	assert.Equal(t, "2026-02-16", d.String())
	assert.Equal(t, time.Monday, d.Weekday())
}

func TestAddDaysRollsOverMonthAndYear(t *testing.T) {
	assert.Equal(t, "2027-01-01", MustParseDate("2026-12-31").AddDays(1).String())
	assert.Equal(t, "2026-03-01", MustParseDate("2026-02-28").AddDays(1).String())
	assert.Equal(t, "2028-02-29", MustParseDate("2028-02-22").AddDays(7).String())
	assert.Equal(t, "2026-03-29", MustParseDate("2026-03-28").AddDays(1).String())
	assert.Equal(t, 7, MustParseDate("2026-12-28").DaysUntil(MustParseDate("2027-01-04")))
}

func TestDateOfUsesWallClockDay(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)
	instant := time.Date(2026, 2, 15, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "2026-02-16", DateOf(instant.In(seoul)).String())
	assert.Equal(t, "2026-02-15", DateOf(instant).String())
}

func TestDateJSON(t *testing.T) {
	type wrapper struct {
		On Date `json:"on"`
	}
	b, err := json.Marshal(wrapper{On: MustParseDate("2026-09-24")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"on":"2026-09-24"}`, string(b))

	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"on":"2026-09-25"}`), &w))
	assert.Equal(t, "2026-09-25", w.On.String())

	assert.ErrorIs(t, json.Unmarshal([]byte(`{"on":"2026-9-25"}`), &w), ErrInvalidDate)
}

func TestRecordEventPersonal(t *testing.T) {
	ev, err := Record{
		ID:              "e1",
		UserID:          "u1",
		StartDate:       "2026-09-24",
		EndDate:         "2026-09-26",
		Title:           "  여행  ",
		Type:            KindPersonal,
		ExcludeSaturday: true,
	}.Event()
	require.NoError(t, err)

	p, ok := ev.(Personal)
	require.True(t, ok)
	assert.Equal(t, "여행", p.Title)
	assert.Equal(t, "u1", p.Owner)
	assert.True(t, p.Ranged())
	assert.True(t, p.ExcludeSaturday)
}

func TestRecordEventRejectsEndBeforeStart(t *testing.T) {
	_, err := Record{StartDate: "2026-09-26", EndDate: "2026-09-24", Title: "x", Type: KindPersonal}.Event()
	assert.ErrorIs(t, err, ErrEndBeforeStart)
	assert.True(t, IsValidation(err))

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "endDate", ve.Field)
}

func TestRecordEventRejectsMissingTitleAndBadKind(t *testing.T) {
	_, err := Record{StartDate: "2026-09-24", Type: KindPersonal}.Event()
	assert.ErrorIs(t, err, ErrEmptyTitle)

	_, err = Record{StartDate: "2026-09-24", Title: "x", Type: "meeting"}.Event()
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = Record{StartDate: "24.09.2026", Title: "x", Type: KindPersonal}.Event()
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestContactHasNoEndDate(t *testing.T) {
	rec, err := Record{
		StartDate:       "2026-05-08",
		EndDate:         "2026-05-20",
		Title:           "엄마",
		Type:            KindContact,
		PhoneNumber:     "010-0000-0000",
		ExcludeSaturday: true,
	}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "2026-05-08", rec.EndDate)
	assert.False(t, rec.ExcludeSaturday)
	assert.Equal(t, "010-0000-0000", rec.PhoneNumber)
}

func TestSingleDayPersonalDropsExclusions(t *testing.T) {
	rec, err := Record{StartDate: "2026-09-26", EndDate: "2026-09-26", Title: "x", Type: KindPersonal, ExcludeSaturday: true, ExcludeSunday: true}.Normalize()
	require.NoError(t, err)
	assert.False(t, rec.ExcludeSaturday)
	assert.False(t, rec.ExcludeSunday)
}

func TestRecordApplyPatch(t *testing.T) {
	base := Record{ID: "e1", UserID: "u1", StartDate: "2026-03-02", EndDate: "2026-03-06", Title: "sprint", Type: KindPersonal}

	done := true
	title := "sprint 1"
	got, err := base.Apply(EventPatch{Title: &title, Completed: &done})
	require.NoError(t, err)
	assert.Equal(t, "sprint 1", got.Title)
	assert.True(t, got.Completed)
	assert.Equal(t, "e1", got.ID)

	bad := "2026-03-01"
	_, err = base.Apply(EventPatch{EndDate: &bad})
	assert.ErrorIs(t, err, ErrEndBeforeStart)

	_, err = Record{Type: KindHoliday, StartDate: "2026-01-01", Title: "신정"}.Apply(EventPatch{Title: &title})
	assert.ErrorIs(t, err, ErrHolidayReadOnly)
}

func TestSettingsApply(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, NotificationSettings{AdvanceDays: 1, NotifyHolidays: true, NotifyPersonal: true, Enabled: true}, s)

	next, err := s.Apply(SetAdvanceDays(7))
	require.NoError(t, err)
	assert.Equal(t, 7, next.AdvanceDays)
	assert.Equal(t, 1, s.AdvanceDays)

	kept, err := next.Apply(SetAdvanceDays(-1))
	assert.ErrorIs(t, err, ErrInvalidAdvanceDays)
	assert.Equal(t, next, kept)

	next, err = next.Apply(SetEnabled(false))
	require.NoError(t, err)
	assert.False(t, next.Enabled)

	next, err = next.Apply(ReplaceSettings(DefaultSettings()))
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), next)
}

func TestParseSettingsUpdate(t *testing.T) {
	u, err := ParseSettingsUpdate("advanceDays", json.RawMessage(`3`))
	require.NoError(t, err)
	assert.Equal(t, SetAdvanceDays(3), u)

	u, err = ParseSettingsUpdate("notifyHolidays", json.RawMessage(`false`))
	require.NoError(t, err)
	assert.Equal(t, SetNotifyHolidays(false), u)

	_, err = ParseSettingsUpdate("advanceDays", json.RawMessage(`"three"`))
	assert.True(t, IsValidation(err))

	_, err = ParseSettingsUpdate("theme", json.RawMessage(`"dark"`))
	assert.ErrorIs(t, err, ErrUnknownSetting)
}

func TestShareText(t *testing.T) {
	ev := Personal{
		Meta:            Meta{Title: "워크숍", Description: "본사 3층"},
		Start:           MustParseDate("2026-09-21"),
		End:             MustParseDate("2026-09-27"),
		ExcludeSaturday: true,
		ExcludeSunday:   true,
	}
	assert.Equal(t, "[진행중] 일정 안내\n기간: 2026-09-21 ~ 2026-09-27 (주말 제외)\n제목: 워크숍\n설명: 본사 3층", ShareText(ev))

	ev.Completed = true
	ev.End = ev.Start
	ev.Description = ""
	assert.Equal(t, "[완료] 일정 안내\n기간: 2026-09-21\n제목: 워크숍", ShareText(ev))
}
