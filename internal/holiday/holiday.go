// Package holiday generates the public holiday calendar.
//
// Solar holidays fall on the same date every year. Lunar holidays and
// substitute days would need a lunar calendar conversion, so they are only
// known for the years listed in lunarByYear.
package holiday

import (
	"fmt"
	"sort"
	"time"

	"smartcal/internal/model"
)

// Color is the presentational tag attached to every generated holiday.
const Color = "bg-red-100 text-red-800 border-red-200"

type fixed struct {
	month time.Month
	day   int
	title string
}

var solar = []fixed{
	{time.January, 1, "신정"},
	{time.March, 1, "삼일절"},
	{time.May, 5, "어린이날"},
	{time.June, 6, "현충일"},
	{time.August, 15, "광복절"},
	{time.October, 3, "개천절"},
	{time.October, 9, "한글날"},
	{time.December, 25, "크리스마스"},
}

var lunarByYear = map[int][]fixed{
	2026: {
		{time.February, 16, "설날 연휴"},
		{time.February, 17, "설날"},
		{time.February, 18, "설날 연휴"},
		{time.March, 2, "대체공휴일(삼일절)"},
		{time.May, 24, "부처님오신날"},
		{time.May, 25, "대체공휴일(부처님오신날)"},
		{time.September, 24, "추석 연휴"},
		{time.September, 25, "추석"},
		{time.September, 26, "추석 연휴"},
	},
}

// ID is the deterministic identifier of the holiday on d.
func ID(d model.Date) string {
	return "h" + d.String()
}

// ForYear returns the holidays of year ordered by date. Calling it twice
// yields identical results.
func ForYear(year int) []model.Holiday {
	out := make([]model.Holiday, 0, len(solar)+len(lunarByYear[year]))
	for _, list := range [][]fixed{solar, lunarByYear[year]} {
		for _, f := range list {
			d := model.NewDate(year, f.month, f.day)
			out = append(out, model.Holiday{
				Meta: model.Meta{
					ID:    ID(d),
					Title: f.title,
					Color: Color,
				},
				Date: d,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// ForRange returns the holidays falling in [from, to], across year
// boundaries.
func ForRange(from, to model.Date) []model.Holiday {
	out := make([]model.Holiday, 0)
	for year := from.Year(); year <= to.Year(); year++ {
		for _, h := range ForYear(year) {
			if h.Date.Before(from) || h.Date.After(to) {
				continue
			}
			out = append(out, h)
		}
	}
	return out
}

// Lookup returns the first holiday on day.
func Lookup(holidays []model.Holiday, day model.Date) (model.Holiday, bool) {
	for _, h := range holidays {
		if h.Date.Equal(day) {
			return h, true
		}
	}
	return model.Holiday{}, false
}

// HasLunarData reports whether lunar holidays are known for year.
func HasLunarData(year int) bool {
	_, ok := lunarByYear[year]
	return ok
}

// Describe is a one-line label used by the CLI listing.
func Describe(h model.Holiday) string {
	return fmt.Sprintf("%s (%s) %s", h.Date, h.Date.Weekday().String()[:3], h.Title)
}
