package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"smartcal/internal/config"
	appLog "smartcal/internal/log"
	"smartcal/internal/model"
	"smartcal/internal/notify"
	"smartcal/internal/scratch"
	"smartcal/internal/sqlite"
	"smartcal/internal/store"
)

const defaultConfigPath = "~/.smartcal/config.yaml"

func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("SMARTCAL")
	v.AutomaticEnv()
	v.SetDefault("config", defaultConfigPath)

	cmd := &cobra.Command{
		Use:           "smartcal",
		Short:         "Personal calendar with holidays, advance notifications and a printable month view.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().String("config", defaultConfigPath, "Path to the YAML config file (env SMARTCAL_CONFIG)")
	cmd.PersistentFlags().String("log-level", "", "Override log level: debug, info or error (env SMARTCAL_LOG_LEVEL)")
	_ = v.BindPFlag("config", cmd.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("log_level", cmd.PersistentFlags().Lookup("log-level"))

	addServe(cmd, v)
	addNotify(cmd, v)
	addMonth(cmd, v)
	addHolidays(cmd)
	addImport(cmd, v)
	addExport(cmd, v)
	addPrint(cmd, v)
	addVersion(cmd)
	return cmd
}

// loadConfig reads the config file and applies environment and flag
// overrides bound in v.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	path := v.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	for key, dst := range map[string]*string{
		"listen":    &cfg.Listen,
		"timezone":  &cfg.Timezone,
		"data_dir":  &cfg.DataDir,
		"log_level": &cfg.Log.Level,
	} {
		if s := v.GetString(key); s != "" {
			*dst = s
		}
	}
	cfg.Normalize()

	logFile, err := cfg.LogFile()
	if err != nil {
		return nil, err
	}
	appLog.Configure(appLog.Options{
		Level:      cfg.Log.Level,
		File:       logFile,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	return cfg, nil
}

// app holds the opened stores and the notification runner.
type app struct {
	cfg      *config.Config
	loc      *time.Location
	events   *store.Store
	settings *sqlite.Storage
	scratch  *scratch.Store
	runner   *notify.Runner
}

func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", cfg.Timezone, err)
	}
	paths := map[string]string{}
	for _, name := range []string{"events", "settings.db", "scratch"} {
		p, err := cfg.DataPath(name)
		if err != nil {
			return nil, err
		}
		paths[name] = p
	}

	events, err := store.Open(paths["events"])
	if err != nil {
		return nil, err
	}
	settings, err := sqlite.Open(ctx, paths["settings.db"])
	if err != nil {
		events.Close()
		return nil, err
	}
	kv, err := scratch.Open(paths["scratch"])
	if err != nil {
		events.Close()
		settings.Close()
		return nil, err
	}

	a := &app{cfg: cfg, loc: loc, events: events, settings: settings, scratch: kv}
	a.runner = notify.NewRunner(settings, events, notify.NewDedup(kv), newSink(cfg),
		notify.WithLocation(loc),
		notify.WithRetention(cfg.DedupRetentionDays),
	)
	return a, nil
}

func (a *app) Close() {
	if err := a.events.Close(); err != nil {
		appLog.Error("failed to close event store", err)
	}
	if err := a.settings.Close(); err != nil {
		appLog.Error("failed to close settings store", err)
	}
}

func (a *app) today() model.Date {
	return model.Today(a.loc)
}

// newSink picks Pushover when credentials are configured and the log
// otherwise.
func newSink(cfg *config.Config) notify.Sink {
	if cfg.Pushover.Enabled() {
		return notify.NewPushoverSink(cfg.Pushover.Token, cfg.Pushover.User, &http.Client{Timeout: 15 * time.Second})
	}
	return notify.NewLogSink()
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
