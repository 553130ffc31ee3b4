package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-gateway/internal/weather"
)

// WeatherAPIProvider implements the weather.Provider interface for WeatherAPI.com.
type WeatherAPIProvider struct {
	apiKey  string
	baseURL string
	client  *resty.Client
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *resty.Client, apiKey string) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		apiKey:  apiKey,
		baseURL: "https://api.weatherapi.com/v1/forecast.json",
		client:  client,
		circuit: newCircuitBreaker(weather.ProviderWeatherAPI),
	}
}

func (p *WeatherAPIProvider) Name() weather.ProviderName {
	return weather.ProviderWeatherAPI
}

type weatherAPIResponse struct {
	Current  *weatherAPICurrent `json:"current" validate:"required"`
	Forecast struct {
		Forecastday []weatherAPIForecastDay `json:"forecastday"`
	} `json:"forecast"`
	Alerts struct {
		Alert []weatherAPIAlert `json:"alert"`
	} `json:"alerts"`
}

type weatherAPICondition struct {
	Text string `json:"text"`
	Code int    `json:"code"`
}

type weatherAPICurrent struct {
	LastUpdatedEpoch int64                `json:"last_updated_epoch"`
	TempC            *float64             `json:"temp_c" validate:"required"`
	FeelslikeC       *float64             `json:"feelslike_c"`
	Humidity         *float64             `json:"humidity"`
	WindKph          *float64             `json:"wind_kph"`
	WindDegree       *float64             `json:"wind_degree"`
	PressureMb       *float64             `json:"pressure_mb"`
	PrecipMm         *float64             `json:"precip_mm"`
	Cloud            *float64             `json:"cloud"`
	VisKm            *float64             `json:"vis_km"`
	UV               *float64             `json:"uv"`
	Condition        *weatherAPICondition `json:"condition"`
}

type weatherAPIForecastDay struct {
	DateEpoch int64 `json:"date_epoch"`
	Day       struct {
		MaxtempC      *float64             `json:"maxtemp_c"`
		MintempC      *float64             `json:"mintemp_c"`
		MaxwindKph    *float64             `json:"maxwind_kph"`
		TotalprecipMm *float64             `json:"totalprecip_mm"`
		Avghumidity   *float64             `json:"avghumidity"`
		UV            *float64             `json:"uv"`
		Condition     *weatherAPICondition `json:"condition"`
	} `json:"day"`
	Hour []weatherAPIHour `json:"hour"`
}

type weatherAPIHour struct {
	TimeEpoch  int64                `json:"time_epoch"`
	TempC      *float64             `json:"temp_c"`
	FeelslikeC *float64             `json:"feelslike_c"`
	Humidity   *float64             `json:"humidity"`
	WindKph    *float64             `json:"wind_kph"`
	PressureMb *float64             `json:"pressure_mb"`
	PrecipMm   *float64             `json:"precip_mm"`
	Condition  *weatherAPICondition `json:"condition"`
}

type weatherAPIAlert struct {
	Headline  string `json:"headline"`
	Severity  string `json:"severity"`
	Event     string `json:"event"`
	Desc      string `json:"desc"`
	Effective string `json:"effective"`
	Expires   string `json:"expires"`
}

func (p *WeatherAPIProvider) Fetch(ctx context.Context, lat, lon float64) (weather.Report, error) {
	if p.apiKey == "" {
		return weather.Report{}, fmt.Errorf("weatherapi: %w", ErrMissingAPIKey)
	}

	params := map[string]string{
		"key":    p.apiKey,
		"q":      formatCoord(lat) + "," + formatCoord(lon),
		"days":   "7",
		"aqi":    "no",
		"alerts": "yes",
	}

	var payload weatherAPIResponse
	if err := fetchJSON(ctx, p.client, p.circuit, p.baseURL, params, &payload); err != nil {
		return weather.Report{}, fmt.Errorf("weatherapi: %w", err)
	}

	return normalizeWeatherAPI(payload), nil
}

// normalizeWeatherAPI maps the forecast payload. WeatherAPI speeds are
// already km/h and are used as-is.
func normalizeWeatherAPI(payload weatherAPIResponse) weather.Report {
	cur := payload.Current
	temp := *cur.TempC
	cond, code := weatherAPIConditionOf(cur.Condition)

	visibility := weather.DefaultVisibility
	if cur.VisKm != nil {
		visibility = *cur.VisKm * 1000
	}

	current := weather.Current{
		Temperature:   temp,
		FeelsLike:     valueOr(cur.FeelslikeC, temp),
		Humidity:      valueOr(cur.Humidity, 0),
		WindSpeed:     valueOr(cur.WindKph, 0),
		WindDirection: valueOr(cur.WindDegree, 0),
		Condition:     cond,
		ConditionCode: code,
		Pressure:      valueOr(cur.PressureMb, 0),
		UVIndex:       valueOr(cur.UV, 0),
		Visibility:    visibility,
		Precipitation: valueOr(cur.PrecipMm, 0),
		CloudCover:    valueOr(cur.Cloud, 0),
		Timestamp:     cur.LastUpdatedEpoch,
	}

	days := payload.Forecast.Forecastday

	// Hours are nested per day; flatten in order until the cap is reached.
	hourly := make([]weather.Hourly, 0, weather.MaxHourly)
flatten:
	for _, day := range days {
		for _, h := range day.Hour {
			if len(hourly) == weather.MaxHourly {
				break flatten
			}
			t := valueOr(h.TempC, 0)
			cond, code := weatherAPIConditionOf(h.Condition)
			hourly = append(hourly, weather.Hourly{
				Timestamp:     h.TimeEpoch,
				Temperature:   t,
				FeelsLike:     valueOr(h.FeelslikeC, t),
				Condition:     cond,
				ConditionCode: code,
				Precipitation: valueOr(h.PrecipMm, 0),
				Humidity:      valueOr(h.Humidity, 0),
				WindSpeed:     valueOr(h.WindKph, 0),
				Pressure:      valueOr(h.PressureMb, 0),
			})
		}
	}

	daily := make([]weather.Daily, 0, min(len(days), weather.MaxDaily))
	for _, d := range days {
		if len(daily) == weather.MaxDaily {
			break
		}
		cond, code := weatherAPIConditionOf(d.Day.Condition)
		daily = append(daily, weather.Daily{
			Timestamp:      d.DateEpoch,
			MaxTemperature: valueOr(d.Day.MaxtempC, 0),
			MinTemperature: valueOr(d.Day.MintempC, 0),
			Condition:      cond,
			ConditionCode:  code,
			Precipitation:  valueOr(d.Day.TotalprecipMm, 0),
			WindSpeed:      valueOr(d.Day.MaxwindKph, 0),
			Humidity:       valueOr(d.Day.Avghumidity, 0),
			UVIndex:        valueOr(d.Day.UV, 0),
		})
	}

	alerts := make([]weather.Alert, 0, len(payload.Alerts.Alert))
	for _, a := range payload.Alerts.Alert {
		alerts = append(alerts, weather.Alert{
			ID:          a.Headline,
			Title:       a.Headline,
			Description: a.Desc,
			Severity:    weatherAPISeverity(a.Severity),
			Start:       a.Effective,
			End:         a.Expires,
		})
	}

	return weather.Report{
		Current:  current,
		Hourly:   hourly,
		Daily:    daily,
		Alerts:   alerts,
		Provider: weather.ProviderWeatherAPI,
	}
}

func weatherAPIConditionOf(c *weatherAPICondition) (string, int) {
	if c == nil {
		return "Unknown", 0
	}
	if c.Text == "" {
		return "Unknown", c.Code
	}
	return c.Text, c.Code
}

// weatherAPISeverityWords is checked in order; the first entry whose keyword
// appears in the CAP severity text wins.
var weatherAPISeverityWords = []struct {
	severity weather.Severity
	keywords []string
}{
	{weather.SeverityExtreme, []string{"extreme"}},
	{weather.SeveritySevere, []string{"severe", "high"}},
	{weather.SeverityMinor, []string{"minor", "low"}},
}

// weatherAPISeverity maps the CAP severity text WeatherAPI forwards from
// national agencies. Anything unrecognised, including empty, is moderate.
func weatherAPISeverity(s string) weather.Severity {
	s = strings.ToLower(s)
	for _, entry := range weatherAPISeverityWords {
		for _, kw := range entry.keywords {
			if strings.Contains(s, kw) {
				return entry.severity
			}
		}
	}
	return weather.SeverityModerate
}
