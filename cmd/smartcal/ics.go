package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"smartcal/internal/ics"
	appLog "smartcal/internal/log"
)

func addImport(topLevel *cobra.Command, v *viper.Viper) {
	var owner string
	cmd := &cobra.Command{
		Use:   "import <file.ics|url>",
		Short: "Import events from an iCalendar file or feed.",
		Example: `
smartcal import ~/Downloads/work.ics --owner u1
smartcal import https://example.com/cal.ics --owner u1
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if owner == "" {
				return errors.New("--owner is required")
			}
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

			cacheDir, err := cfg.DataPath("ics-cache")
			if err != nil {
				return err
			}
			fetcher := ics.NewFetcher(afero.NewOsFs(), cacheDir, &http.Client{Timeout: 15 * time.Second})
			body, err := fetcher.Load(ctx, args[0])
			if err != nil {
				return err
			}
			recs, skipped, err := ics.Parse(body, owner)
			if err != nil {
				return err
			}

			imported := 0
			for _, rec := range recs {
				if _, err := a.events.Create(ctx, rec); err != nil {
					appLog.Error("failed to import event", err, "title", rec.Title)
					continue
				}
				imported++
			}
			for _, s := range skipped {
				fmt.Fprintf(color.Output, "%s %s: %v\n", color.YellowString("skipped"), s.UID, s.Reason)
			}
			fmt.Fprintf(color.Output, "%s imported %d of %d event(s)\n", color.GreenString("✓"), imported, len(recs)+len(skipped))
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "User id the events belong to")

	topLevel.AddCommand(cmd)
}

func addExport(topLevel *cobra.Command, v *viper.Viper) {
	var owner, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a user's events as iCalendar.",
		Example: `
smartcal export --owner u1 --out calendar.ics
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if owner == "" {
				return errors.New("--owner is required")
			}
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

			events, err := a.events.Events(ctx, owner)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := afero.NewOsFs().Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return ics.Export(w, "SmartCal", events)
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "User id whose events are exported")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default: stdout)")

	topLevel.AddCommand(cmd)
}
