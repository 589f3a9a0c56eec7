package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"smartcal/internal/holiday"
	"smartcal/internal/occurrence"
	"smartcal/internal/summary"
)

// maxCellEvents is how many event titles fit under a day number.
const maxCellEvents = 2

func addMonth(topLevel *cobra.Command, v *viper.Viper) {
	var (
		owner       string
		year, month int
	)
	cmd := &cobra.Command{
		Use:   "month",
		Short: "Print a month grid with holidays and events.",
		Example: `
smartcal month --owner u1
smartcal month --owner u1 --year 2026 --month 2
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := openApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			today := a.today()
			if year == 0 {
				year = today.Year()
			}
			if month == 0 {
				month = int(today.Month())
			}
			if month < 1 || month > 12 {
				return occurrence.ErrInvalidMonth
			}

			events, err := a.events.Events(ctx, owner)
			if err != nil {
				return err
			}
			start := occurrence.GridStart(year, time.Month(month))
			cells, err := occurrence.MonthOccurrences(year, month, today, events,
				holiday.ForRange(start, start.AddDays(occurrence.GridCells-1)))
			if err != nil {
				return err
			}
			printMonth(color.Output, summary.Label(year, time.Month(month)), cells)
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "User id whose events are shown")
	cmd.Flags().IntVar(&year, "year", 0, "Year (default: current)")
	cmd.Flags().IntVar(&month, "month", 0, "Month 1-12 (default: current)")

	topLevel.AddCommand(cmd)
}

// printMonth renders cells as a 7-column table. Sundays and holidays are
// red, today is bold and days outside the month are faint.
func printMonth(w io.Writer, label string, cells []occurrence.DayCell) {
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	faint := color.New(color.Faint)

	fmt.Fprintln(w, bold.Sprint(label))

	tbl := uitable.New()
	tbl.Separator = " │ "
	tbl.MaxColWidth = 14
	tbl.Wrap = true

	header := make([]any, len(weekdayHeader))
	for i, h := range weekdayHeader {
		if i == 0 {
			header[i] = red.Sprint(h)
			continue
		}
		header[i] = bold.Sprint(h)
	}
	tbl.AddRow(header...)

	for week := 0; week < len(cells)/7; week++ {
		row := make([]any, 7)
		for i, c := range cells[week*7 : week*7+7] {
			row[i] = cellText(c, i == 0, bold, red, faint)
		}
		tbl.AddRow(row...)
	}
	fmt.Fprintln(w, tbl)
}

var weekdayHeader = []string{"일", "월", "화", "수", "목", "금", "토"}

func cellText(c occurrence.DayCell, sunday bool, bold, red, faint *color.Color) string {
	day := fmt.Sprintf("%2d", c.Date.Day())
	switch {
	case !c.IsCurrentMonth:
		day = faint.Sprint(day)
	case c.Holiday != nil || sunday:
		day = red.Sprint(day)
	}
	if c.IsToday {
		day = bold.Sprint("[" + day + "]")
	}

	lines := []string{day}
	if c.Holiday != nil {
		lines = append(lines, red.Sprint(c.Holiday.Title))
	}
	for i, ev := range c.Events {
		if i == maxCellEvents {
			lines = append(lines, fmt.Sprintf("+%d", len(c.Events)-maxCellEvents))
			break
		}
		lines = append(lines, "· "+ev.Info().Title)
	}
	return strings.Join(lines, " ")
}
