package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "smartcal/internal/log"
	"smartcal/internal/model"
)

// ErrUnsupportedRule is returned for recurrences that cannot be expressed as
// a single date range with optional weekend exclusion.
var ErrUnsupportedRule = errors.New("ics: unsupported recurrence rule")

// Skipped describes a VEVENT that was not imported.
type Skipped struct {
	UID    string
	Reason error
}

// Parse reads an iCalendar document and returns one record per importable
// VEVENT, owned by owner and without an id. Holidays and recurrences that do
// not fit the event model are skipped and reported.
func Parse(body []byte, owner string) ([]model.Record, []Skipped, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil, errors.New("ics: empty body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("ics: parse: %w", err)
	}

	records := make([]model.Record, 0)
	skipped := make([]Skipped, 0)
	for _, ve := range cal.Events() {
		rec, err := parseVEvent(ve)
		if err != nil {
			appLog.Error("ics vevent skipped", err, "uid", ve.Id())
			skipped = append(skipped, Skipped{UID: ve.Id(), Reason: err})
			continue
		}
		rec.UserID = owner
		records = append(records, rec)
	}

	appLog.Info("ics parse completed", "events", len(records), "skipped", len(skipped))
	return records, skipped, nil
}

func propValue(ve *ical.VEvent, p ical.ComponentProperty) string {
	if prop := ve.GetProperty(p); prop != nil {
		return strings.TrimSpace(prop.Value)
	}
	return ""
}

func parseVEvent(ve *ical.VEvent) (model.Record, error) {
	rec := model.Record{
		Title:       propValue(ve, ical.ComponentPropertySummary),
		Description: propValue(ve, ical.ComponentPropertyDescription),
		Color:       propValue(ve, ical.ComponentPropertyColor),
		Type:        model.KindPersonal,
	}

	if k := model.Kind(strings.ToLower(propValue(ve, propKind))); k != "" {
		if k == model.KindHoliday {
			return rec, model.ErrHolidayReadOnly
		}
		rec.Type = k
	}
	rec.Completed, _ = strconv.ParseBool(propValue(ve, propCompleted))
	rec.PhoneNumber = propValue(ve, propPhone)
	if loc := propValue(ve, ical.ComponentPropertyLocation); loc != "" && rec.Description == "" {
		rec.Description = loc
	}

	start, end, err := span(ve)
	if err != nil {
		return rec, err
	}

	if raw := propValue(ve, ical.ComponentPropertyRrule); raw != "" {
		last, exSat, exSun, err := rangeOf(raw, start)
		if err != nil {
			return rec, err
		}
		end = last
		rec.ExcludeSaturday, rec.ExcludeSunday = exSat, exSun
	}

	rec.StartDate = start.String()
	rec.EndDate = end.String()
	return rec.Normalize()
}

// span returns the inclusive first and last day of a VEVENT.
func span(ve *ical.VEvent) (model.Date, model.Date, error) {
	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return model.Date{}, model.Date{}, errors.New("ics: missing DTSTART")
	}
	allDay := isAllDay(dtStart)

	startAt, err := ve.GetStartAt()
	if err != nil {
		return model.Date{}, model.Date{}, fmt.Errorf("ics: DTSTART: %w", err)
	}
	start := model.DateOf(startAt)
	if allDay {
		start = dateOfValue(dtStart.Value, start)
	}

	end := start
	if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
		endAt, err := ve.GetEndAt()
		if err != nil {
			return model.Date{}, model.Date{}, fmt.Errorf("ics: DTEND: %w", err)
		}
		if allDay {
			// Exclusive end date.
			end = dateOfValue(dtEnd.Value, model.DateOf(endAt)).AddDays(-1)
		} else {
			end = model.DateOf(endAt)
			// An event ending exactly at midnight does not touch that day.
			if endAt.Equal(time.Date(endAt.Year(), endAt.Month(), endAt.Day(), 0, 0, 0, 0, endAt.Location())) {
				end = end.AddDays(-1)
			}
		}
		if end.Before(start) {
			end = start
		}
	}
	return start, end, nil
}

func isAllDay(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// dateOfValue reads a bare YYYYMMDD value without any timezone shift.
func dateOfValue(v string, fallback model.Date) model.Date {
	t, err := time.Parse("20060102", strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return model.DateOf(t)
}

// rangeOf maps a daily rule back to a range: the last occurrence and which
// weekend days the BYDAY filter leaves out.
func rangeOf(raw string, start model.Date) (model.Date, bool, bool, error) {
	opt, err := rrule.StrToROption(raw)
	if err != nil {
		return model.Date{}, false, false, fmt.Errorf("%w: %v", ErrUnsupportedRule, err)
	}
	if opt.Freq != rrule.DAILY || opt.Interval > 1 || (opt.Until.IsZero() && opt.Count == 0) {
		return model.Date{}, false, false, fmt.Errorf("%w: %s", ErrUnsupportedRule, raw)
	}

	exSat, exSun := false, false
	if len(opt.Byweekday) > 0 {
		has := map[int]bool{}
		for _, wd := range opt.Byweekday {
			has[wd.Day()] = true
		}
		for _, wd := range []rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR} {
			if !has[wd.Day()] {
				return model.Date{}, false, false, fmt.Errorf("%w: %s", ErrUnsupportedRule, raw)
			}
		}
		exSat, exSun = !has[rrule.SA.Day()], !has[rrule.SU.Day()]
	}

	opt.Dtstart = start.Time
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return model.Date{}, false, false, fmt.Errorf("%w: %v", ErrUnsupportedRule, err)
	}
	all := r.All()
	if len(all) == 0 {
		return model.Date{}, false, false, fmt.Errorf("%w: no occurrences", ErrUnsupportedRule)
	}
	return model.DateOf(all[len(all)-1]), exSat, exSun, nil
}
