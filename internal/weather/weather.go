// Package weather fetches the daily forecast shown next to calendar days.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	appLog "smartcal/internal/log"
)

const openMeteoURL = "https://api.open-meteo.com/v1/forecast"

// Day is the forecast of one calendar day.
type Day struct {
	MaxTemp     float64 `json:"maxTemp"`
	MinTemp     float64 `json:"minTemp"`
	WeatherCode int     `json:"weatherCode"`
	Icon        string  `json:"icon"`
}

// Provider returns forecasts keyed by local date string (YYYY-MM-DD).
type Provider interface {
	Forecast(ctx context.Context, lat, lon float64) (map[string]Day, error)
}

// Degrade calls p and swallows failures: weather is decoration, so an
// error becomes an empty map.
func Degrade(ctx context.Context, p Provider, lat, lon float64) map[string]Day {
	if p == nil {
		return map[string]Day{}
	}
	days, err := p.Forecast(ctx, lat, lon)
	if err != nil {
		appLog.Error("weather forecast unavailable", err, "lat", lat, "lon", lon)
		return map[string]Day{}
	}
	return days
}

// OpenMeteo is a Provider backed by the Open-Meteo daily forecast API.
// Responses are cached per location for a fixed TTL.
type OpenMeteo struct {
	httpc    *http.Client
	baseURL  string
	days     int
	ttl      time.Duration
	attempts uint

	mu    sync.RWMutex
	cache map[string]cached
}

type cached struct {
	days      map[string]Day
	updatedAt time.Time
}

type Option func(*OpenMeteo)

func WithBaseURL(u string) Option { return func(o *OpenMeteo) { o.baseURL = u } }

func WithForecastDays(n int) Option {
	return func(o *OpenMeteo) {
		if n > 0 && n <= 16 {
			o.days = n
		}
	}
}

func WithCacheTTL(d time.Duration) Option { return func(o *OpenMeteo) { o.ttl = d } }

func WithAttempts(n uint) Option {
	return func(o *OpenMeteo) {
		if n > 0 {
			o.attempts = n
		}
	}
}

func NewOpenMeteo(httpc *http.Client, opts ...Option) *OpenMeteo {
	if httpc == nil {
		httpc = &http.Client{Timeout: 10 * time.Second}
	}
	o := &OpenMeteo{
		httpc:    httpc,
		baseURL:  openMeteoURL,
		days:     7,
		ttl:      30 * time.Minute,
		attempts: 3,
		cache:    make(map[string]cached),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type forecastResponse struct {
	Daily struct {
		Time        []string  `json:"time"`
		WeatherCode []int     `json:"weather_code"`
		MaxTemp     []float64 `json:"temperature_2m_max"`
		MinTemp     []float64 `json:"temperature_2m_min"`
	} `json:"daily"`
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

func (o *OpenMeteo) Forecast(ctx context.Context, lat, lon float64) (map[string]Day, error) {
	key := fmt.Sprintf("%.4f,%.4f", lat, lon)

	o.mu.RLock()
	c, ok := o.cache[key]
	o.mu.RUnlock()
	if ok && time.Since(c.updatedAt) < o.ttl {
		return c.days, nil
	}

	q := url.Values{
		"latitude":      {strconv.FormatFloat(lat, 'f', 4, 64)},
		"longitude":     {strconv.FormatFloat(lon, 'f', 4, 64)},
		"daily":         {"weather_code,temperature_2m_max,temperature_2m_min"},
		"timezone":      {"auto"},
		"forecast_days": {strconv.Itoa(o.days)},
	}
	endpoint := o.baseURL + "?" + q.Encode()

	fr, err := retry.DoWithData(
		func() (forecastResponse, error) {
			return o.fetch(ctx, endpoint)
		},
		retry.Context(ctx),
		retry.Attempts(o.attempts),
		retry.Delay(300*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		// A stale forecast beats none.
		if ok {
			appLog.Error("weather fetch failed, using cached forecast", err, "age", time.Since(c.updatedAt).Round(time.Second).String())
			return c.days, nil
		}
		return nil, err
	}

	days, err := fr.toDays()
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.cache[key] = cached{days: days, updatedAt: time.Now()}
	o.mu.Unlock()
	appLog.Debug("weather forecast fetched", "location", key, "days", len(days))
	return days, nil
}

func (o *OpenMeteo) fetch(ctx context.Context, endpoint string) (forecastResponse, error) {
	var fr forecastResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fr, retry.Unrecoverable(err)
	}
	resp, err := o.httpc.Do(req)
	if err != nil {
		return fr, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fr, err
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return fr, fmt.Errorf("open-meteo: status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &fr); err != nil {
		return fr, retry.Unrecoverable(fmt.Errorf("open-meteo: decode: %w", err))
	}
	if resp.StatusCode != http.StatusOK || fr.Error {
		return fr, retry.Unrecoverable(fmt.Errorf("open-meteo: status %d: %s", resp.StatusCode, fr.Reason))
	}
	return fr, nil
}

func (fr forecastResponse) toDays() (map[string]Day, error) {
	d := fr.Daily
	n := len(d.Time)
	if len(d.WeatherCode) != n || len(d.MaxTemp) != n || len(d.MinTemp) != n {
		return nil, errors.New("open-meteo: daily arrays have different lengths")
	}
	out := make(map[string]Day, n)
	for i, date := range d.Time {
		out[date] = Day{
			MaxTemp:     d.MaxTemp[i],
			MinTemp:     d.MinTemp[i],
			WeatherCode: d.WeatherCode[i],
			Icon:        Icon(d.WeatherCode[i]),
		}
	}
	return out, nil
}

// Icon maps a WMO weather code to an emoji.
func Icon(code int) string {
	switch {
	case code == 0:
		return "☀️"
	case code == 1 || code == 2:
		return "🌤️"
	case code == 3:
		return "☁️"
	case code == 45 || code == 48:
		return "🌫️"
	case code >= 51 && code <= 67:
		return "🌧️"
	case code >= 71 && code <= 77:
		return "❄️"
	case code >= 80 && code <= 82:
		return "🌦️"
	case code == 85 || code == 86:
		return "🌨️"
	case code >= 95:
		return "⛈️"
	}
	return "🌡️"
}
