// Package occurrence decides which events are active on a calendar day and
// lays out the month grid.
//
// Everything here is a pure function of its arguments. Callers pass a fresh
// snapshot of events on every call; nothing is cached between calls.
package occurrence

import (
	"time"

	"smartcal/internal/model"
)

// OccursOn reports whether ev is active on day.
//
//   - the day must lie within the event's inclusive [start, end] span
//   - ranged personal events skip Saturdays/Sundays when excluded
//   - contacts and holidays are single-day, exclusions never apply
func OccursOn(day model.Date, ev model.Event) bool {
	switch e := ev.(type) {
	case model.Personal:
		if day.Before(e.Start) || day.After(e.End) {
			return false
		}
		if !e.Ranged() {
			return true
		}
		switch day.Weekday() {
		case time.Saturday:
			return !e.ExcludeSaturday
		case time.Sunday:
			return !e.ExcludeSunday
		}
		return true
	case model.Contact:
		return day.Equal(e.Date)
	case model.Holiday:
		return day.Equal(e.Date)
	}
	return false
}

// OccurrencesForDay filters events down to those active on day, keeping
// their input order.
func OccurrencesForDay(day model.Date, events []model.Event) []model.Event {
	out := make([]model.Event, 0)
	for _, ev := range events {
		if OccursOn(day, ev) {
			out = append(out, ev)
		}
	}
	return out
}

// ResolveDay is OccurrencesForDay for a day given as a YYYY-MM-DD string.
func ResolveDay(day string, events []model.Event) ([]model.Event, error) {
	d, err := model.ParseDate(day)
	if err != nil {
		return nil, err
	}
	return OccurrencesForDay(d, events), nil
}
