// Package config holds the YAML configuration of the calendar service,
// created with defaults on first run.
package config

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	DefaultListen     = "127.0.0.1:8080"
	DefaultTimezone   = "Asia/Seoul"
	DefaultDataDir    = "~/.smartcal"
	DefaultNotifyCron = "0 8 * * *"
	DefaultRetention  = 30
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

type LogConfig struct {
	// Level is one of debug, info, error.
	Level string `yaml:"level" json:"level"`
	// File, when set, receives the log with size-based rotation.
	File       string `yaml:"file" json:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" json:"max_age_days"`
}

type WeatherConfig struct {
	Latitude     float64 `yaml:"latitude" json:"latitude"`
	Longitude    float64 `yaml:"longitude" json:"longitude"`
	ForecastDays int     `yaml:"forecast_days" json:"forecast_days"`
	CacheMinutes int     `yaml:"cache_minutes" json:"cache_minutes"`
}

type AIConfig struct {
	APIKey string `yaml:"api_key" json:"-"`
	Model  string `yaml:"model" json:"model"`
}

type PushoverConfig struct {
	Token string `yaml:"token" json:"-"`
	User  string `yaml:"user" json:"-"`
}

// Enabled reports whether notifications should go to Pushover instead of
// the log.
func (p PushoverConfig) Enabled() bool {
	return p.Token != "" && p.User != ""
}

// Config is the top-level application configuration.
type Config struct {
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone that decides what "today" is.
	Timezone string `yaml:"timezone" json:"timezone"`

	// DataDir holds the event documents, the settings database and the
	// scratch store. A leading ~ is expanded.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// NotifyCron is the schedule of the notification pass.
	NotifyCron string `yaml:"notify_cron" json:"notify_cron"`

	// DedupRetentionDays is how long "already notified" markers are kept
	// after their target date. Negative keeps them forever.
	DedupRetentionDays int `yaml:"dedup_retention_days" json:"dedup_retention_days"`

	Log      LogConfig      `yaml:"log" json:"log"`
	Weather  WeatherConfig  `yaml:"weather" json:"weather"`
	AI       AIConfig       `yaml:"ai" json:"ai"`
	Pushover PushoverConfig `yaml:"pushover" json:"pushover"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:             DefaultListen,
		Timezone:           DefaultTimezone,
		DataDir:            DefaultDataDir,
		NotifyCron:         DefaultNotifyCron,
		DedupRetentionDays: DefaultRetention,
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Weather: WeatherConfig{
			Latitude:     37.5665,
			Longitude:    126.9780,
			ForecastDays: 7,
			CacheMinutes: 30,
		},
		AI: AIConfig{Model: "gemini-2.5-flash"},
	}
}

// Normalize fills in missing values so partially-filled configs behave.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.DataDir == "" {
		c.DataDir = d.DataDir
	}
	if strings.TrimSpace(c.NotifyCron) == "" {
		c.NotifyCron = d.NotifyCron
	}
	if c.DedupRetentionDays == 0 {
		c.DedupRetentionDays = d.DedupRetentionDays
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "error":
		c.Log.Level = strings.ToLower(c.Log.Level)
	default:
		c.Log.Level = d.Log.Level
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = d.Log.MaxSizeMB
	}
	if c.Weather.Latitude == 0 && c.Weather.Longitude == 0 {
		c.Weather.Latitude, c.Weather.Longitude = d.Weather.Latitude, d.Weather.Longitude
	}
	if c.Weather.ForecastDays <= 0 || c.Weather.ForecastDays > 16 {
		c.Weather.ForecastDays = d.Weather.ForecastDays
	}
	if c.Weather.CacheMinutes <= 0 {
		c.Weather.CacheMinutes = d.Weather.CacheMinutes
	}
	if c.AI.Model == "" {
		c.AI.Model = d.AI.Model
	}
	if c.BasicAuth != nil && c.BasicAuth.Username == "" && c.BasicAuth.Password == "" {
		c.BasicAuth = nil
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// DataPath returns name inside the expanded data directory.
func (c *Config) DataPath(name string) (string, error) {
	dir, err := homedir.Expand(c.DataDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// LogFile returns the expanded log file path, or "" for stderr.
func (c *Config) LogFile() (string, error) {
	if c.Log.File == "" {
		return "", nil
	}
	return homedir.Expand(c.Log.File)
}

// Load reads the YAML config at path from the OS filesystem.
func Load(path string) (*Config, error) {
	return LoadFs(afero.NewOsFs(), path)
}

// LoadFs reads the YAML config at path. A missing file is created with the
// defaults (0600) and the defaults are returned.
func LoadFs(fsys afero.Fs, path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			// Even if save fails, return cfg with the error so the caller can decide.
			return cfg, SaveFs(fsys, path, cfg)
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg to path on the OS filesystem.
func Save(path string, cfg *Config) error {
	return SaveFs(afero.NewOsFs(), path, cfg)
}

// SaveFs writes cfg atomically: a temp file in the same directory is
// written, chmod'ed to 0600 and renamed over path.
func SaveFs(fsys afero.Fs, path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	path, err := homedir.Expand(path)
	if err != nil {
		return err
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := afero.TempFile(fsys, dir, ".smartcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer fsys.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := fsys.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return fsys.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
