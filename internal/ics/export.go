// Package ics exchanges events with other calendar applications as
// iCalendar (RFC 5545) documents.
package ics

import (
	"io"
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"

	"smartcal/internal/model"
	"smartcal/internal/occurrence"
)

const productID = "-//smartcal//smartcal 1.0//KO"

// Non-standard properties carrying what VEVENT has no field for.
const (
	propKind      = ical.ComponentProperty("X-SMARTCAL-TYPE")
	propCompleted = ical.ComponentProperty("X-SMARTCAL-COMPLETED")
	propPhone     = ical.ComponentProperty("X-SMARTCAL-PHONE")
)

// Calendar builds an all-day calendar from events. A ranged personal event
// with weekend exclusions becomes a one-day VEVENT repeated by a daily RRULE;
// every other event is a single VEVENT spanning its days.
func Calendar(name string, events []model.Event, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, ev := range events {
		m := ev.Info()
		start, end := ev.Span()

		ve := cal.AddEvent(uid(ev))
		ve.SetDtStampTime(stamp)
		ve.SetSummary(m.Title)
		if m.Description != "" {
			ve.SetDescription(m.Description)
		}
		if m.Color != "" {
			ve.SetProperty(ical.ComponentPropertyColor, m.Color)
		}
		ve.SetProperty(propKind, ev.Kind().String())
		ve.SetAllDayStartAt(start.Time)

		switch e := ev.(type) {
		case model.Personal:
			ve.SetProperty(propCompleted, strconv.FormatBool(e.Completed))
			if e.Ranged() && (e.ExcludeSaturday || e.ExcludeSunday) {
				ve.SetAllDayEndAt(start.AddDays(1).Time)
				ve.AddRrule(occurrence.RRuleFor(e))
				continue
			}
		case model.Contact:
			if e.PhoneNumber != "" {
				ve.SetProperty(propPhone, e.PhoneNumber)
			}
		}
		// DTEND is exclusive for all-day events.
		ve.SetAllDayEndAt(end.AddDays(1).Time)
	}
	return cal
}

func uid(ev model.Event) string {
	return ev.Info().ID + "@smartcal"
}

// Export writes events as an iCalendar document.
func Export(w io.Writer, name string, events []model.Event) error {
	return Calendar(name, events, time.Now().UTC()).SerializeTo(w)
}
