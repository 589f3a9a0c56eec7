package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `{
  "daily": {
    "time": ["2026-10-15", "2026-10-16"],
    "weather_code": [0, 61],
    "temperature_2m_max": [21.4, 17.0],
    "temperature_2m_min": [10.2, 12.5]
  }
}`

func TestForecastParsesAndCaches(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "37.5665", r.URL.Query().Get("latitude"))
		assert.Equal(t, "7", r.URL.Query().Get("forecast_days"))
		_, _ = w.Write([]byte(sample))
	}))
	defer srv.Close()

	p := NewOpenMeteo(srv.Client(), WithBaseURL(srv.URL))
	days, err := p.Forecast(context.Background(), 37.5665, 126.9780)
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, Day{MaxTemp: 21.4, MinTemp: 10.2, WeatherCode: 0, Icon: "☀️"}, days["2026-10-15"])
	assert.Equal(t, "🌧️", days["2026-10-16"].Icon)

	_, err = p.Forecast(context.Background(), 37.5665, 126.9780)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestForecastRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(sample))
	}))
	defer srv.Close()

	p := NewOpenMeteo(srv.Client(), WithBaseURL(srv.URL))
	days, err := p.Forecast(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Len(t, days, 2)
	assert.Equal(t, int32(2), calls.Load())
}

func TestForecastFallsBackToStaleCache(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":true,"reason":"bad"}`))
			return
		}
		_, _ = w.Write([]byte(sample))
	}))
	defer srv.Close()

	p := NewOpenMeteo(srv.Client(), WithBaseURL(srv.URL), WithCacheTTL(time.Nanosecond))
	_, err := p.Forecast(context.Background(), 1, 2)
	require.NoError(t, err)

	fail.Store(true)
	days, err := p.Forecast(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Len(t, days, 2)

	_, err = p.Forecast(context.Background(), 3, 4)
	assert.Error(t, err)
}

type brokenProvider struct{}

func (brokenProvider) Forecast(context.Context, float64, float64) (map[string]Day, error) {
	return nil, errors.New("offline")
}

func TestDegradeReturnsEmptyMap(t *testing.T) {
	days := Degrade(context.Background(), brokenProvider{}, 0, 0)
	assert.NotNil(t, days)
	assert.Empty(t, days)
	assert.Empty(t, Degrade(context.Background(), nil, 0, 0))
}

func TestIcon(t *testing.T) {
	assert.Equal(t, "☁️", Icon(3))
	assert.Equal(t, "❄️", Icon(73))
	assert.Equal(t, "⛈️", Icon(95))
	assert.Equal(t, "🌡️", Icon(42))
}
