package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"smartcal/internal/holiday"
)

func addHolidays(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "holidays [year]",
		Short: "List the public holidays of a year.",
		Example: `
smartcal holidays 2026
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			year := time.Now().Year()
			if len(args) == 1 {
				y, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid year %q", args[0])
				}
				year = y
			}

			tbl := uitable.New()
			tbl.Separator = "  "
			tbl.AddRow(color.New(color.Bold).Sprint("Holiday"))
			for _, h := range holiday.ForYear(year) {
				tbl.AddRow(color.RedString(holiday.Describe(h)))
			}
			fmt.Fprintln(cmd.OutOrStdout(), tbl)
			if !holiday.HasLunarData(year) {
				fmt.Fprintln(cmd.OutOrStdout(), color.YellowString("lunar holidays are not available for %d; only fixed dates are listed", year))
			}
			return nil
		},
	}
	topLevel.AddCommand(cmd)
}
