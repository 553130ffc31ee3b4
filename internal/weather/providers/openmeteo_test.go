package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-gateway/internal/weather"
)

// Visibility and cloud_cover are absent; the first daily UV value is null.
const openMeteoFixture = `{
  "latitude": 40.71,
  "longitude": -74.01,
  "current": {
    "time": 1700000000,
    "temperature_2m": 11.2,
    "relative_humidity_2m": 64,
    "apparent_temperature": 9.8,
    "precipitation": 0.2,
    "weather_code": 61,
    "wind_speed_10m": 13.7,
    "wind_direction_10m": 250,
    "pressure_msl": 1012.4
  },
  "hourly": {
    "time": [1700000000, 1700003600],
    "temperature_2m": [11.2, null],
    "apparent_temperature": [9.8, 9.1],
    "weather_code": [61, null],
    "precipitation": [0.2, null],
    "relative_humidity_2m": [64, 66],
    "wind_speed_10m": [13.7, 12.1],
    "pressure_msl": [1012.4, 1012.9]
  },
  "daily": {
    "time": [1699920000, 1700006400],
    "weather_code": [63, 3],
    "temperature_2m_max": [13.1, 12.0],
    "temperature_2m_min": [7.4, 6.2],
    "precipitation_sum": [4.1, null],
    "wind_speed_10m_max": [22.3, 18.0],
    "relative_humidity_2m_max": [91, 84],
    "uv_index_max": [null, 2.5]
  }
}`

func TestOpenMeteo_Fetch(t *testing.T) {
	up := newUpstream(t, http.StatusOK, openMeteoFixture)
	p := NewOpenMeteoProvider(testClient())
	p.baseURL = up.srv.URL

	report, err := p.Fetch(context.Background(), 40.7128, -74.006)
	require.NoError(t, err)

	q := up.lastQuery()
	assert.Equal(t, "40.7128", q.Get("latitude"))
	assert.Equal(t, "-74.006", q.Get("longitude"))
	assert.Equal(t, "unixtime", q.Get("timeformat"))
	assert.Equal(t, "kmh", q.Get("wind_speed_unit"))
	assert.Equal(t, "7", q.Get("forecast_days"))
	assert.Contains(t, q.Get("daily"), "uv_index_max")

	assert.Equal(t, weather.ProviderOpenMeteo, report.Provider)
	assert.Nil(t, report.CachedAt)

	cur := report.Current
	assert.Equal(t, 11.2, cur.Temperature)
	assert.Equal(t, 9.8, cur.FeelsLike)
	assert.Equal(t, 13.7, cur.WindSpeed)
	assert.Equal(t, 250.0, cur.WindDirection)
	assert.Equal(t, "Slight rain", cur.Condition)
	assert.Equal(t, 61, cur.ConditionCode)
	assert.Equal(t, 1012.4, cur.Pressure)
	assert.Equal(t, 0.2, cur.Precipitation)
	assert.Equal(t, int64(1700000000), cur.Timestamp)
	assert.Equal(t, weather.DefaultVisibility, cur.Visibility, "missing visibility defaults to 10 km")
	assert.Equal(t, 0.0, cur.CloudCover)
	assert.Equal(t, 0.0, cur.UVIndex, "null uv_index_max[0] defaults to 0")

	require.Len(t, report.Hourly, 2)
	assert.Equal(t, 0.0, report.Hourly[1].Temperature)
	assert.Equal(t, "Unknown", report.Hourly[1].Condition)
	assert.Equal(t, 0.0, report.Hourly[1].Precipitation)

	require.Len(t, report.Daily, 2)
	assert.Equal(t, "Moderate rain", report.Daily[0].Condition)
	assert.Equal(t, 0.0, report.Daily[0].UVIndex)
	assert.Equal(t, 2.5, report.Daily[1].UVIndex)
	assert.Equal(t, 0.0, report.Daily[1].Precipitation)

	assert.NotNil(t, report.Alerts)
	assert.Empty(t, report.Alerts)
}

func TestOpenMeteo_TruncatesSeries(t *testing.T) {
	const hours, days = 168, 10

	hourly := map[string][]any{}
	for i := 0; i < hours; i++ {
		hourly["time"] = append(hourly["time"], 1700000000+int64(i)*3600)
		hourly["temperature_2m"] = append(hourly["temperature_2m"], float64(i))
		hourly["weather_code"] = append(hourly["weather_code"], 0)
	}
	daily := map[string][]any{}
	for i := 0; i < days; i++ {
		daily["time"] = append(daily["time"], 1699920000+int64(i)*86400)
		daily["weather_code"] = append(daily["weather_code"], 3)
		daily["temperature_2m_max"] = append(daily["temperature_2m_max"], float64(i))
	}
	body, err := json.Marshal(map[string]any{
		"current": map[string]any{"time": 1700000000, "temperature_2m": 5.0, "weather_code": 0},
		"hourly":  hourly,
		"daily":   daily,
	})
	require.NoError(t, err)

	up := newUpstream(t, http.StatusOK, string(body))
	p := NewOpenMeteoProvider(testClient())
	p.baseURL = up.srv.URL

	report, err := p.Fetch(context.Background(), 1, 2)
	require.NoError(t, err)

	require.Len(t, report.Hourly, weather.MaxHourly)
	require.Len(t, report.Daily, weather.MaxDaily)
	for i := 1; i < len(report.Hourly); i++ {
		assert.Less(t, report.Hourly[i-1].Timestamp, report.Hourly[i].Timestamp)
	}
	assert.Equal(t, 47.0, report.Hourly[47].Temperature)
	assert.Equal(t, 6.0, report.Daily[6].MaxTemperature)
}

func TestOpenMeteo_UpstreamError(t *testing.T) {
	up := newUpstream(t, http.StatusServiceUnavailable, `{"error":true,"reason":"down"}`)
	p := NewOpenMeteoProvider(testClient())
	p.baseURL = up.srv.URL

	_, err := p.Fetch(context.Background(), 1, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamStatus)
	assert.Contains(t, err.Error(), "open-meteo")
}

func TestOpenMeteoCondition(t *testing.T) {
	assert.Equal(t, "Clear sky", openMeteoCondition(0))
	assert.Equal(t, "Thunderstorm with heavy hail", openMeteoCondition(99))
	assert.Equal(t, "Unknown", openMeteoCondition(42))
	assert.Equal(t, "Unknown", openMeteoConditionOrUnknown(0, false))
}
