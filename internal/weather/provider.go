package weather

import (
	"context"
)

// Provider abstracts a weather data source (Open-Meteo, OpenWeatherMap, WeatherAPI).
// Implementations return a fully populated Report or an error, never a partial one.
type Provider interface {
	Name() ProviderName
	Fetch(ctx context.Context, lat, lon float64) (Report, error)
}

// Cache is the contract the Service needs from its result cache.
type Cache interface {
	GetCachedWeather(lat, lon float64) (Report, bool)
	SetCachedWeather(lat, lon float64, report Report)
}
