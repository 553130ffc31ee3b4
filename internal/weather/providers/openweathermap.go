package providers

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-gateway/internal/weather"
)

// OpenWeatherMapProvider implements the weather.Provider interface for the
// OpenWeatherMap One Call API.
type OpenWeatherMapProvider struct {
	apiKey  string
	baseURL string
	client  *resty.Client
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherMapProvider(client *resty.Client, apiKey string) *OpenWeatherMapProvider {
	return &OpenWeatherMapProvider{
		apiKey:  apiKey,
		baseURL: "https://api.openweathermap.org/data/3.0/onecall",
		client:  client,
		circuit: newCircuitBreaker(weather.ProviderOpenWeatherMap),
	}
}

func (p *OpenWeatherMapProvider) Name() weather.ProviderName {
	return weather.ProviderOpenWeatherMap
}

type owmResponse struct {
	Current *owmCurrent `json:"current" validate:"required"`
	Hourly  []owmHourly `json:"hourly"`
	Daily   []owmDaily  `json:"daily"`
	Alerts  []owmAlert  `json:"alerts"`
}

type owmCondition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
}

type owmRain struct {
	OneHour *float64 `json:"1h"`
}

type owmCurrent struct {
	Dt         int64          `json:"dt"`
	Temp       *float64       `json:"temp" validate:"required"`
	FeelsLike  *float64       `json:"feels_like"`
	Pressure   *float64       `json:"pressure"`
	Humidity   *float64       `json:"humidity"`
	UVI        *float64       `json:"uvi"`
	Clouds     *float64       `json:"clouds"`
	Visibility *float64       `json:"visibility"`
	WindSpeed  *float64       `json:"wind_speed"` // m/s with units=metric
	WindDeg    *float64       `json:"wind_deg"`
	Rain       *owmRain       `json:"rain"`
	Weather    []owmCondition `json:"weather"`
}

type owmHourly struct {
	Dt        int64          `json:"dt"`
	Temp      *float64       `json:"temp"`
	FeelsLike *float64       `json:"feels_like"`
	Pressure  *float64       `json:"pressure"`
	Humidity  *float64       `json:"humidity"`
	WindSpeed *float64       `json:"wind_speed"`
	Rain      *owmRain       `json:"rain"`
	Weather   []owmCondition `json:"weather"`
}

type owmDaily struct {
	Dt   int64 `json:"dt"`
	Temp struct {
		Min *float64 `json:"min"`
		Max *float64 `json:"max"`
	} `json:"temp"`
	Humidity  *float64       `json:"humidity"`
	WindSpeed *float64       `json:"wind_speed"`
	UVI       *float64       `json:"uvi"`
	Rain      *float64       `json:"rain"` // daily volume, mm
	Weather   []owmCondition `json:"weather"`
}

type owmAlert struct {
	SenderName  string   `json:"sender_name"`
	Event       string   `json:"event"`
	Start       int64    `json:"start"`
	End         int64    `json:"end"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

func (p *OpenWeatherMapProvider) Fetch(ctx context.Context, lat, lon float64) (weather.Report, error) {
	if p.apiKey == "" {
		return weather.Report{}, fmt.Errorf("openweathermap: %w", ErrMissingAPIKey)
	}

	params := map[string]string{
		"lat":     formatCoord(lat),
		"lon":     formatCoord(lon),
		"appid":   p.apiKey,
		"units":   "metric",
		"exclude": "minutely",
	}

	var payload owmResponse
	if err := fetchJSON(ctx, p.client, p.circuit, p.baseURL, params, &payload); err != nil {
		return weather.Report{}, fmt.Errorf("openweathermap: %w", err)
	}

	return normalizeOpenWeatherMap(payload), nil
}

func normalizeOpenWeatherMap(payload owmResponse) weather.Report {
	cur := payload.Current
	temp := *cur.Temp
	cond, code := owmConditionOf(cur.Weather)

	current := weather.Current{
		Temperature:   temp,
		FeelsLike:     valueOr(cur.FeelsLike, temp),
		Humidity:      valueOr(cur.Humidity, 0),
		WindSpeed:     metersPerSecondToKmh(valueOr(cur.WindSpeed, 0)),
		WindDirection: valueOr(cur.WindDeg, 0),
		Condition:     cond,
		ConditionCode: code,
		Pressure:      valueOr(cur.Pressure, 0),
		UVIndex:       valueOr(cur.UVI, 0),
		Visibility:    valueOr(cur.Visibility, weather.DefaultVisibility),
		Precipitation: owmRainLastHour(cur.Rain),
		CloudCover:    valueOr(cur.Clouds, 0),
		Timestamp:     cur.Dt,
	}

	hourly := make([]weather.Hourly, 0, min(len(payload.Hourly), weather.MaxHourly))
	for _, h := range payload.Hourly {
		if len(hourly) == weather.MaxHourly {
			break
		}
		t := valueOr(h.Temp, 0)
		cond, code := owmConditionOf(h.Weather)
		hourly = append(hourly, weather.Hourly{
			Timestamp:     h.Dt,
			Temperature:   t,
			FeelsLike:     valueOr(h.FeelsLike, t),
			Condition:     cond,
			ConditionCode: code,
			Precipitation: owmRainLastHour(h.Rain),
			Humidity:      valueOr(h.Humidity, 0),
			WindSpeed:     metersPerSecondToKmh(valueOr(h.WindSpeed, 0)),
			Pressure:      valueOr(h.Pressure, 0),
		})
	}

	daily := make([]weather.Daily, 0, min(len(payload.Daily), weather.MaxDaily))
	for _, d := range payload.Daily {
		if len(daily) == weather.MaxDaily {
			break
		}
		cond, code := owmConditionOf(d.Weather)
		daily = append(daily, weather.Daily{
			Timestamp:      d.Dt,
			MaxTemperature: valueOr(d.Temp.Max, 0),
			MinTemperature: valueOr(d.Temp.Min, 0),
			Condition:      cond,
			ConditionCode:  code,
			Precipitation:  valueOr(d.Rain, 0),
			WindSpeed:      metersPerSecondToKmh(valueOr(d.WindSpeed, 0)),
			Humidity:       valueOr(d.Humidity, 0),
			UVIndex:        valueOr(d.UVI, 0),
		})
	}

	alerts := make([]weather.Alert, 0, len(payload.Alerts))
	for _, a := range payload.Alerts {
		// One Call alerts carry no severity.
		alerts = append(alerts, weather.Alert{
			ID:          a.Event,
			Title:       a.Event,
			Description: a.Description,
			Severity:    weather.SeverityModerate,
			Start:       unixToRFC3339(a.Start),
			End:         unixToRFC3339(a.End),
		})
	}

	return weather.Report{
		Current:  current,
		Hourly:   hourly,
		Daily:    daily,
		Alerts:   alerts,
		Provider: weather.ProviderOpenWeatherMap,
	}
}

func owmConditionOf(items []owmCondition) (string, int) {
	if len(items) == 0 {
		return "Unknown", 0
	}
	if items[0].Main == "" {
		return "Unknown", items[0].ID
	}
	return items[0].Main, items[0].ID
}

func owmRainLastHour(r *owmRain) float64 {
	if r == nil {
		return 0
	}
	return valueOr(r.OneHour, 0)
}
