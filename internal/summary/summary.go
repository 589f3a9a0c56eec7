// Package summary computes the per-month overview of a user's events.
package summary

import (
	"fmt"
	"math"
	"sort"
	"time"

	"smartcal/internal/model"
	"smartcal/internal/occurrence"
)

// Stats counts a month's events by completion.
type Stats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
	// Rate is the completed share in whole percent, 0 for an empty month.
	Rate int `json:"rate"`
}

// Item is one event in the overview with the days it is active within the
// month.
type Item struct {
	Event          model.Event
	OccurrenceDays []model.Date
}

type Summary struct {
	Year  int
	Month time.Month
	Label string
	Items []Item
	Stats Stats
}

// Events returns the events of s in order.
func (s Summary) Events() []model.Event {
	out := make([]model.Event, len(s.Items))
	for i, it := range s.Items {
		out[i] = it.Event
	}
	return out
}

// Label is the heading used for a month, e.g. "2026년 10월".
func Label(year int, month time.Month) string {
	return fmt.Sprintf("%d년 %d월", year, int(month))
}

func inMonth(d model.Date, year int, month time.Month) bool {
	return d.Year() == year && d.Month() == month
}

// ForMonth picks the user events that start or end in the given month,
// sorted by start date. Holidays are not part of a summary. An event that
// spans the whole month without starting or ending in it is left out.
func ForMonth(events []model.Event, year, month int) (Summary, error) {
	if month < 1 || month > 12 {
		return Summary{}, fmt.Errorf("%w: %d", occurrence.ErrInvalidMonth, month)
	}
	m := time.Month(month)
	first := model.NewDate(year, m, 1)
	last := model.NewDate(year, m, model.DaysIn(year, m))

	picked := make([]model.Event, 0)
	for _, ev := range events {
		if ev.Kind() == model.KindHoliday {
			continue
		}
		start, end := ev.Span()
		if inMonth(start, year, m) || inMonth(end, year, m) {
			picked = append(picked, ev)
		}
	}
	sort.SliceStable(picked, func(i, j int) bool {
		a, _ := picked[i].Span()
		b, _ := picked[j].Span()
		return a.Before(b)
	})

	s := Summary{Year: year, Month: m, Label: Label(year, m), Items: make([]Item, 0, len(picked))}
	for _, ev := range picked {
		s.Items = append(s.Items, Item{Event: ev, OccurrenceDays: occurrence.ExpandDates(ev, first, last)})
		if p, ok := ev.(model.Personal); ok && p.Completed {
			s.Stats.Completed++
		}
	}
	s.Stats.Total = len(picked)
	s.Stats.Pending = s.Stats.Total - s.Stats.Completed
	if s.Stats.Total > 0 {
		s.Stats.Rate = int(math.Round(float64(s.Stats.Completed) / float64(s.Stats.Total) * 100))
	}
	return s, nil
}
