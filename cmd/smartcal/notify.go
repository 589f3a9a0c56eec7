package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"smartcal/internal/model"
)

func addNotify(topLevel *cobra.Command, v *viper.Viper) {
	var (
		owner string
		today model.Date
	)
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Run one notification pass now.",
		Example: `
smartcal notify
smartcal notify --owner u1 --today 2026-02-15
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

			if today.IsZero() {
				today = a.today()
			}

			if owner == "" {
				sent, err := a.runner.RunAll(ctx, today)
				fmt.Fprintf(color.Output, "%s %d notification(s) sent for %s\n", color.GreenString("✓"), sent, today)
				return err
			}

			req, err := a.runner.RunOnce(ctx, owner, today)
			if err != nil {
				return err
			}
			if req == nil {
				fmt.Fprintln(color.Output, color.YellowString("nothing to notify"))
				return nil
			}
			fmt.Fprintf(color.Output, "%s\n%s\n", color.New(color.Bold).Sprint(req.Title), req.Body)
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Only run for this user id")
	cmd.Flags().Var(&today, "today", "Pretend today is this date (YYYY-MM-DD)")

	topLevel.AddCommand(cmd)
}
