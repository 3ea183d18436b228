// Package weather snapshots current conditions for a new post. The snapshot
// is captured once at authoring time and stored on the post, never refreshed.
package weather

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pixelblog/backend/internal/logger"
	"github.com/pixelblog/backend/internal/models"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.openweathermap.org"

// Client fetches current weather from OpenWeatherMap
type Client struct {
	http     *resty.Client
	apiKey   string
	lat      float64
	lon      float64
	location string
}

// NewClient creates a weather client. An empty apiKey disables fetching;
// Current then always returns the fallback snapshot.
func NewClient(apiKey string, lat, lon float64, location string) *Client {
	http := resty.New()
	http.SetBaseURL(defaultBaseURL)
	http.SetTimeout(5 * time.Second)
	http.SetHeader("User-Agent", "pixelblog-backend/1.0")

	return &Client{
		http:     http,
		apiKey:   apiKey,
		lat:      lat,
		lon:      lon,
		location: location,
	}
}

// SetBaseURL overrides the API endpoint, used by tests
func (c *Client) SetBaseURL(url string) {
	c.http.SetBaseURL(url)
}

// currentResponse is the subset of the OpenWeatherMap payload we keep
type currentResponse struct {
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Name string `json:"name"`
}

// conditionIcons maps OpenWeatherMap condition groups to the emoji shown on
// the post card
var conditionIcons = map[string]string{
	"Clear":        "☀️",
	"Clouds":       "☁️",
	"Rain":         "🌧️",
	"Drizzle":      "🌦️",
	"Thunderstorm": "⛈️",
	"Snow":         "❄️",
	"Mist":         "🌫️",
	"Fog":          "🌫️",
	"Haze":         "🌫️",
}

// Fallback is the snapshot used when the weather service is unreachable or
// unconfigured. A post always gets some weather.
func (c *Client) Fallback() *models.WeatherSnapshot {
	location := c.location
	if location == "" {
		location = "Toronto"
	}
	return &models.WeatherSnapshot{
		Temp:      18,
		Condition: "clear",
		Icon:      "☀️",
		Location:  location,
	}
}

// Current fetches the weather at the configured coordinates. Any failure
// degrades to the fallback snapshot; authoring never blocks on weather.
func (c *Client) Current(ctx context.Context) *models.WeatherSnapshot {
	if c.apiKey == "" {
		return c.Fallback()
	}

	var result currentResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("lat", fmt.Sprintf("%g", c.lat)).
		SetQueryParam("lon", fmt.Sprintf("%g", c.lon)).
		SetQueryParam("units", "metric").
		SetQueryParam("appid", c.apiKey).
		SetResult(&result).
		Get("/data/2.5/weather")

	if err != nil {
		logger.WarnWithError("Weather fetch failed, using fallback", err)
		return c.Fallback()
	}
	if resp.StatusCode() != 200 || len(result.Weather) == 0 {
		logger.Log.Warn("Weather fetch returned unusable payload, using fallback",
			zap.Int("status", resp.StatusCode()))
		return c.Fallback()
	}

	condition := result.Weather[0].Description
	if condition == "" {
		condition = result.Weather[0].Main
	}

	icon, ok := conditionIcons[result.Weather[0].Main]
	if !ok {
		icon = "🌡️"
	}

	location := result.Name
	if location == "" {
		location = c.location
	}

	return &models.WeatherSnapshot{
		Temp:      int(math.Round(result.Main.Temp)),
		Condition: condition,
		Icon:      icon,
		Location:  location,
	}
}
