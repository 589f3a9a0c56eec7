package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"smartcal/internal/ai"
	appLog "smartcal/internal/log"
	"smartcal/internal/model"
	"smartcal/internal/weather"
	"smartcal/internal/web"
)

func addServe(topLevel *cobra.Command, v *viper.Viper) {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled notification pass.",
		Long: `Run the HTTP API and the scheduled notification pass.

Event changes are re-checked live for every owner with stored settings.
Owners first seen after startup join once their settings are read or written.`,
		Example: `
smartcal serve --listen :8080
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			a, err := openApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			appLog.Info("effective config",
				"listen", cfg.Listen,
				"timezone", cfg.Timezone,
				"data_dir", cfg.DataDir,
				"notify_cron", cfg.NotifyCron,
				"pushover", cfg.Pushover.Enabled(),
				"ai", cfg.AI.APIKey != "",
			)

			if err := a.runner.Start(ctx, cfg.NotifyCron); err != nil {
				return err
			}
			watches := newOwnerWatches(ctx, a.runner.Watch)
			watches.startKnown(ctx, a.settings)

			httpc := &http.Client{Timeout: 20 * time.Second}
			srv := web.NewServer(cfg, web.Deps{
				Events:   a.events,
				Settings: watchedSettings{SettingsStore: a.settings, watches: watches},
				Theme:    a.scratch,
				Notifier: a.runner,
				Weather: weather.NewOpenMeteo(httpc,
					weather.WithForecastDays(cfg.Weather.ForecastDays),
					weather.WithCacheTTL(time.Duration(cfg.Weather.CacheMinutes)*time.Minute),
				),
				AI: ai.NewGemini(cfg.AI.APIKey, cfg.AI.Model, nil),
			})
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().String("listen", "", "HTTP listen address, overrides the config (env SMARTCAL_LISTEN)")
	_ = v.BindPFlag("listen", cmd.Flags().Lookup("listen"))

	topLevel.AddCommand(cmd)
}

// ownerWatches runs one live notification check loop per owner. Owners
// known at startup are watched right away; new ones start on their first
// settings access.
type ownerWatches struct {
	ctx   context.Context
	watch func(ctx context.Context, owner string) error

	mu      sync.Mutex
	started map[string]struct{}
}

func newOwnerWatches(ctx context.Context, watch func(context.Context, string) error) *ownerWatches {
	return &ownerWatches{ctx: ctx, watch: watch, started: make(map[string]struct{})}
}

// ensure starts the loop for owner unless it is already running.
func (w *ownerWatches) ensure(owner string) {
	if owner == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.started[owner]; ok {
		return
	}
	w.started[owner] = struct{}{}
	go func() {
		if err := w.watch(w.ctx, owner); err != nil {
			appLog.Error("live notification checks stopped", err, "owner", owner)
		}
	}()
}

func (w *ownerWatches) startKnown(ctx context.Context, settings interface {
	Owners(ctx context.Context) ([]string, error)
}) {
	owners, err := settings.Owners(ctx)
	if err != nil {
		appLog.Error("failed to list owners for live checks", err)
		return
	}
	for _, owner := range owners {
		w.ensure(owner)
	}
}

// watchedSettings starts live checks for every owner whose settings are
// read or written through the API.
type watchedSettings struct {
	web.SettingsStore
	watches *ownerWatches
}

func (s watchedSettings) GetOrCreate(ctx context.Context, owner string) (model.NotificationSettings, error) {
	ns, err := s.SettingsStore.GetOrCreate(ctx, owner)
	if err == nil {
		s.watches.ensure(owner)
	}
	return ns, err
}

func (s watchedSettings) Put(ctx context.Context, owner string, ns model.NotificationSettings) error {
	err := s.SettingsStore.Put(ctx, owner, ns)
	if err == nil {
		s.watches.ensure(owner)
	}
	return err
}

func (s watchedSettings) Update(ctx context.Context, owner string, u model.SettingsUpdate) (model.NotificationSettings, error) {
	ns, err := s.SettingsStore.Update(ctx, owner, u)
	if err == nil {
		s.watches.ensure(owner)
	}
	return ns, err
}
