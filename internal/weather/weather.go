// Package weather looks up current city temperatures from OpenWeatherMap.
package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/BTreeMap/HydroPipe/internal/httpkit"
	"github.com/BTreeMap/HydroPipe/internal/models"
	"github.com/tidwall/gjson"
)

// DefaultBaseURL is the OpenWeatherMap API root.
const DefaultBaseURL = "https://api.openweathermap.org"

// ErrCityNotFound is returned when the service does not know the city.
var ErrCityNotFound = errors.New("city not found")

// Opts holds configuration options for the weather client.
type Opts struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// Option defines a configuration option for the weather client.
type Option func(*Opts)

// WithAPIKey sets the OpenWeatherMap API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL overrides the API root, mainly for tests.
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = u }
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client queries the current-weather endpoint in metric units.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a weather client.
func NewClient(opts ...Option) *Client {
	cfg := Opts{BaseURL: DefaultBaseURL}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = httpkit.NewClient()
	}
	return &Client{apiKey: cfg.APIKey, baseURL: strings.TrimRight(cfg.BaseURL, "/"), http: cfg.HTTPClient}
}

// Temperature returns the current temperature in °C for city.
func (c *Client) Temperature(ctx context.Context, city string) (float64, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return 0, ErrCityNotFound
	}
	if c.apiKey == "" {
		return 0, fmt.Errorf("%w: weather api key not configured", models.ErrLookupUnavailable)
	}

	q := url.Values{}
	q.Set("q", city)
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")
	body, err := httpkit.GetBody(ctx, c.http, c.baseURL+"/data/2.5/weather?"+q.Encode())
	if err != nil {
		var se *httpkit.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return 0, fmt.Errorf("%w: %s", ErrCityNotFound, city)
		}
		slog.Warn("Weather.Temperature: request failed", "city", city, "error", err)
		return 0, fmt.Errorf("%w: weather request: %v", models.ErrLookupUnavailable, err)
	}

	temp := gjson.GetBytes(body, "main.temp")
	if !temp.Exists() || temp.Type != gjson.Number {
		return 0, fmt.Errorf("%w: weather response has no main.temp", models.ErrLookupUnavailable)
	}
	slog.Debug("Weather.Temperature: lookup succeeded", "city", city, "temp", temp.Float())
	return temp.Float(), nil
}
