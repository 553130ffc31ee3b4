package httpapi

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-gateway/internal/weather"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"name":      serviceName,
			"version":   version,
			"providers": service.Providers(),
			"endpoints": fiber.Map{
				"health":  "/health",
				"metrics": "/metrics",
				"weather": "GET /api/v1/weather?lat={latitude}&lon={longitude}",
			},
		})
	})

	v1 := app.Group("/api/v1")

	v1.Get("/weather", func(c *fiber.Ctx) error {
		coords, err := parseCoordinatesQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		report, err := service.GetWeather(c.UserContext(), coords.Latitude, coords.Longitude)
		if err != nil {
			if errors.Is(err, weather.ErrAllProvidersFailed) {
				return fiber.NewError(fiber.StatusServiceUnavailable, "unable to fetch weather data from any provider")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather data")
		}

		return c.JSON(report)
	})
}

var (
	errMissingCoordinates = errors.New("missing required parameters: lat and lon")
	errInvalidCoordinates = errors.New("invalid latitude or longitude")
)

// parseCoordinatesQuery reads lat/lon and checks their ranges.
func parseCoordinatesQuery(c *fiber.Ctx) (weather.Coordinates, error) {
	latStr := c.Query("lat")
	lonStr := c.Query("lon")
	if latStr == "" || lonStr == "" {
		return weather.Coordinates{}, errMissingCoordinates
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return weather.Coordinates{}, errInvalidCoordinates
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return weather.Coordinates{}, errInvalidCoordinates
	}

	coords := weather.Coordinates{Latitude: lat, Longitude: lon}
	if err := validate.Struct(coords); err != nil {
		return weather.Coordinates{}, errors.New("latitude must be between -90 and 90, longitude between -180 and 180")
	}
	return coords, nil
}
