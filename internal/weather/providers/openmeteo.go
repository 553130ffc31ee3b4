package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-gateway/internal/weather"
)

var (
	openMeteoCurrentFields = []string{
		"temperature_2m", "relative_humidity_2m", "apparent_temperature", "precipitation",
		"weather_code", "wind_speed_10m", "wind_direction_10m", "pressure_msl", "cloud_cover", "visibility",
	}
	openMeteoHourlyFields = []string{
		"temperature_2m", "apparent_temperature", "weather_code", "precipitation",
		"relative_humidity_2m", "wind_speed_10m", "pressure_msl",
	}
	openMeteoDailyFields = []string{
		"weather_code", "temperature_2m_max", "temperature_2m_min", "precipitation_sum",
		"wind_speed_10m_max", "relative_humidity_2m_max", "uv_index_max",
	}
)

// OpenMeteoProvider implements the weather.Provider interface for Open-Meteo.
// It needs no API key and natively reports km/h, hPa and meters.
type OpenMeteoProvider struct {
	baseURL string
	client  *resty.Client
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *resty.Client) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		baseURL: "https://api.open-meteo.com/v1/forecast",
		client:  client,
		circuit: newCircuitBreaker(weather.ProviderOpenMeteo),
	}
}

func (p *OpenMeteoProvider) Name() weather.ProviderName {
	return weather.ProviderOpenMeteo
}

// openMeteoResponse mirrors the forecast payload requested with
// timeformat=unixtime. Hourly and daily data arrive as parallel arrays.
type openMeteoResponse struct {
	Current *openMeteoCurrent `json:"current" validate:"required"`
	Hourly  openMeteoHourly   `json:"hourly"`
	Daily   openMeteoDaily    `json:"daily"`
}

type openMeteoCurrent struct {
	Time                int64    `json:"time"`
	Temperature         *float64 `json:"temperature_2m" validate:"required"`
	ApparentTemperature *float64 `json:"apparent_temperature"`
	Humidity            *float64 `json:"relative_humidity_2m"`
	Precipitation       *float64 `json:"precipitation"`
	WeatherCode         *int     `json:"weather_code" validate:"required"`
	WindSpeed           *float64 `json:"wind_speed_10m"`
	WindDirection       *float64 `json:"wind_direction_10m"`
	Pressure            *float64 `json:"pressure_msl"`
	CloudCover          *float64 `json:"cloud_cover"`
	Visibility          *float64 `json:"visibility"`
}

type openMeteoHourly struct {
	Time                []int64    `json:"time"`
	Temperature         []*float64 `json:"temperature_2m"`
	ApparentTemperature []*float64 `json:"apparent_temperature"`
	WeatherCode         []*int     `json:"weather_code"`
	Precipitation       []*float64 `json:"precipitation"`
	Humidity            []*float64 `json:"relative_humidity_2m"`
	WindSpeed           []*float64 `json:"wind_speed_10m"`
	Pressure            []*float64 `json:"pressure_msl"`
}

type openMeteoDaily struct {
	Time             []int64    `json:"time"`
	WeatherCode      []*int     `json:"weather_code"`
	TemperatureMax   []*float64 `json:"temperature_2m_max"`
	TemperatureMin   []*float64 `json:"temperature_2m_min"`
	PrecipitationSum []*float64 `json:"precipitation_sum"`
	WindSpeedMax     []*float64 `json:"wind_speed_10m_max"`
	HumidityMax      []*float64 `json:"relative_humidity_2m_max"`
	UVIndexMax       []*float64 `json:"uv_index_max"`
}

func (p *OpenMeteoProvider) Fetch(ctx context.Context, lat, lon float64) (weather.Report, error) {
	params := map[string]string{
		"latitude":        formatCoord(lat),
		"longitude":       formatCoord(lon),
		"current":         strings.Join(openMeteoCurrentFields, ","),
		"hourly":          strings.Join(openMeteoHourlyFields, ","),
		"daily":           strings.Join(openMeteoDailyFields, ","),
		"timezone":        "auto",
		"timeformat":      "unixtime",
		"forecast_days":   "7",
		"wind_speed_unit": "kmh",
	}

	var payload openMeteoResponse
	if err := fetchJSON(ctx, p.client, p.circuit, p.baseURL, params, &payload); err != nil {
		return weather.Report{}, fmt.Errorf("open-meteo: %w", err)
	}

	return normalizeOpenMeteo(payload), nil
}

func normalizeOpenMeteo(payload openMeteoResponse) weather.Report {
	cur := payload.Current
	temp := *cur.Temperature
	code := *cur.WeatherCode

	current := weather.Current{
		Temperature:   temp,
		FeelsLike:     valueOr(cur.ApparentTemperature, temp),
		Humidity:      valueOr(cur.Humidity, 0),
		WindSpeed:     valueOr(cur.WindSpeed, 0),
		WindDirection: valueOr(cur.WindDirection, 0),
		Condition:     openMeteoCondition(code),
		ConditionCode: code,
		Pressure:      valueOr(cur.Pressure, 0),
		UVIndex:       floatAt(payload.Daily.UVIndexMax, 0, 0),
		Visibility:    valueOr(cur.Visibility, weather.DefaultVisibility),
		Precipitation: valueOr(cur.Precipitation, 0),
		CloudCover:    valueOr(cur.CloudCover, 0),
		Timestamp:     cur.Time,
	}

	h := payload.Hourly
	hourly := make([]weather.Hourly, 0, min(len(h.Time), weather.MaxHourly))
	for i, ts := range h.Time {
		if i >= weather.MaxHourly {
			break
		}
		t := floatAt(h.Temperature, i, 0)
		code, ok := intAt(h.WeatherCode, i)
		hourly = append(hourly, weather.Hourly{
			Timestamp:     ts,
			Temperature:   t,
			FeelsLike:     floatAt(h.ApparentTemperature, i, t),
			Condition:     openMeteoConditionOrUnknown(code, ok),
			ConditionCode: code,
			Precipitation: floatAt(h.Precipitation, i, 0),
			Humidity:      floatAt(h.Humidity, i, 0),
			WindSpeed:     floatAt(h.WindSpeed, i, 0),
			Pressure:      floatAt(h.Pressure, i, 0),
		})
	}

	d := payload.Daily
	daily := make([]weather.Daily, 0, min(len(d.Time), weather.MaxDaily))
	for i, ts := range d.Time {
		if i >= weather.MaxDaily {
			break
		}
		code, ok := intAt(d.WeatherCode, i)
		daily = append(daily, weather.Daily{
			Timestamp:      ts,
			MaxTemperature: floatAt(d.TemperatureMax, i, 0),
			MinTemperature: floatAt(d.TemperatureMin, i, 0),
			Condition:      openMeteoConditionOrUnknown(code, ok),
			ConditionCode:  code,
			Precipitation:  floatAt(d.PrecipitationSum, i, 0),
			WindSpeed:      floatAt(d.WindSpeedMax, i, 0),
			Humidity:       floatAt(d.HumidityMax, i, 0),
			UVIndex:        floatAt(d.UVIndexMax, i, 0),
		})
	}

	// Open-Meteo has no alerts endpoint on the forecast API.
	return weather.Report{
		Current:  current,
		Hourly:   hourly,
		Daily:    daily,
		Alerts:   []weather.Alert{},
		Provider: weather.ProviderOpenMeteo,
	}
}

// WMO weather interpretation codes as documented by Open-Meteo.
var openMeteoConditions = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Foggy",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	56: "Light freezing drizzle",
	57: "Dense freezing drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	66: "Light freezing rain",
	67: "Heavy freezing rain",
	71: "Slight snow",
	73: "Moderate snow",
	75: "Heavy snow",
	77: "Snow grains",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	85: "Slight snow showers",
	86: "Heavy snow showers",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

func openMeteoCondition(code int) string {
	if c, ok := openMeteoConditions[code]; ok {
		return c
	}
	return "Unknown"
}

func openMeteoConditionOrUnknown(code int, ok bool) string {
	if !ok {
		return "Unknown"
	}
	return openMeteoCondition(code)
}
