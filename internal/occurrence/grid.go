package occurrence

import (
	"errors"
	"fmt"
	"time"

	"smartcal/internal/model"
)

// GridCells is the fixed size of a month view: six weeks of seven days.
const GridCells = 42

var ErrInvalidMonth = errors.New("month must be between 1 and 12")

// DayCell is one square of the month grid.
type DayCell struct {
	Date           model.Date
	DateString     string
	IsCurrentMonth bool
	IsToday        bool

	// Holiday is the first generated holiday on this date, if any.
	Holiday *model.Holiday

	Events []model.Event
}

// GridStart returns the Sunday on or before the first of the month.
func GridStart(year int, month time.Month) model.Date {
	first := model.NewDate(year, month, 1)
	return first.AddDays(-int(first.Weekday()))
}

// MonthOccurrences lays out 42 cells starting at GridStart, whatever the
// length of the month. today is the caller's notion of the current date;
// holidays are matched by date only and never filtered by exclusion rules.
func MonthOccurrences(year, month int, today model.Date, events []model.Event, holidays []model.Holiday) ([]DayCell, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMonth, month)
	}

	m := time.Month(month)
	start := GridStart(year, m)

	cells := make([]DayCell, GridCells)
	for i := range cells {
		day := start.AddDays(i)
		cell := DayCell{
			Date:           day,
			DateString:     day.String(),
			IsCurrentMonth: day.Year() == year && day.Month() == m,
			IsToday:        day.Equal(today),
			Events:         OccurrencesForDay(day, events),
		}
		if h, ok := lookupHoliday(holidays, day); ok {
			cell.Holiday = &h
		}
		cells[i] = cell
	}
	return cells, nil
}

func lookupHoliday(holidays []model.Holiday, day model.Date) (model.Holiday, bool) {
	for _, h := range holidays {
		if OccursOn(day, h) {
			return h, true
		}
	}
	return model.Holiday{}, false
}
