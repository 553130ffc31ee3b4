package weather

import (
	"fmt"
	"slices"
)

// ProviderName tags which upstream produced a Report.
type ProviderName string

const (
	ProviderOpenMeteo      ProviderName = "open-meteo"
	ProviderOpenWeatherMap ProviderName = "openweathermap"
	ProviderWeatherAPI     ProviderName = "weatherapi"
)

// Severity is the coarse alert severity shared by all providers.
type Severity string

const (
	SeverityExtreme  Severity = "extreme"
	SeveritySevere   Severity = "severe"
	SeverityModerate Severity = "moderate"
	SeverityMinor    Severity = "minor"
)

const (
	// MaxHourly and MaxDaily bound the forecast series of a Report.
	MaxHourly = 48
	MaxDaily  = 7

	// DefaultVisibility is used when a provider omits visibility (meters).
	DefaultVisibility = 10000.0
)

// Coordinates is a latitude/longitude pair. Ranges are checked at the
// boundaries (HTTP and config), never inside the Service.
type Coordinates struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.4f,%.4f", c.Latitude, c.Longitude)
}

// Current holds the observation at request time.
type Current struct {
	Temperature   float64 `json:"temperature"`
	FeelsLike     float64 `json:"feelsLike"`
	Humidity      float64 `json:"humidity"`
	WindSpeed     float64 `json:"windSpeed"` // km/h
	WindDirection float64 `json:"windDirection"`
	Condition     string  `json:"condition"`
	ConditionCode int     `json:"conditionCode"` // provider-native, not comparable across providers
	Pressure      float64 `json:"pressure"`      // hPa
	UVIndex       float64 `json:"uvIndex"`
	Visibility    float64 `json:"visibility"`    // meters
	Precipitation float64 `json:"precipitation"` // mm, last hour
	CloudCover    float64 `json:"cloudCover"`
	Timestamp     int64   `json:"timestamp"` // unix seconds
}

// Hourly is one point of the hourly forecast.
type Hourly struct {
	Timestamp     int64   `json:"timestamp"`
	Temperature   float64 `json:"temperature"`
	FeelsLike     float64 `json:"feelsLike"`
	Condition     string  `json:"condition"`
	ConditionCode int     `json:"conditionCode"`
	Precipitation float64 `json:"precipitation"`
	Humidity      float64 `json:"humidity"`
	WindSpeed     float64 `json:"windSpeed"`
	Pressure      float64 `json:"pressure"`
}

// Daily is one day of the daily forecast.
type Daily struct {
	Timestamp      int64   `json:"timestamp"`
	MaxTemperature float64 `json:"maxTemperature"`
	MinTemperature float64 `json:"minTemperature"`
	Condition      string  `json:"condition"`
	ConditionCode  int     `json:"conditionCode"`
	Precipitation  float64 `json:"precipitation"`
	WindSpeed      float64 `json:"windSpeed"`
	Humidity       float64 `json:"humidity"`
	UVIndex        float64 `json:"uvIndex"`
}

// Alert is a weather warning issued for the requested area.
type Alert struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
}

// Report is the normalized weather view, identical in shape whichever
// provider answered.
type Report struct {
	Current  Current      `json:"current"`
	Hourly   []Hourly     `json:"hourly"`
	Daily    []Daily      `json:"daily"`
	Alerts   []Alert      `json:"alerts"`
	Provider ProviderName `json:"provider"`

	// CachedAt is the unix time of the cache write; nil on fresh results.
	CachedAt *int64 `json:"cachedAt,omitempty"`
}

// Clone returns a deep copy of r so cached values are never shared with callers.
func (r Report) Clone() Report {
	out := r
	out.Hourly = slices.Clone(r.Hourly)
	out.Daily = slices.Clone(r.Daily)
	out.Alerts = slices.Clone(r.Alerts)
	if r.CachedAt != nil {
		v := *r.CachedAt
		out.CachedAt = &v
	}
	return out
}
