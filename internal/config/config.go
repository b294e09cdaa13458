// Package config handles HydroPipe configuration files.
//
// A YAML file is optional. Environment variables and command-line flags,
// applied by the binary after Load, take precedence over its values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Transports understood by the binary.
const (
	TransportWhatsApp = "whatsapp"
	TransportTwilio   = "twilio"
	TransportHTTP     = "http"
)

// ErrNoConfig is returned by FindConfig when no file exists on the search path.
var ErrNoConfig = errors.New("no config file found")

// DefaultSearchPaths returns the config file search order:
// ./hydropipe.yaml, ~/.config/hydropipe/config.yaml, /etc/hydropipe/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"hydropipe.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "hydropipe", "config.yaml"))
	}
	return append(paths, "/etc/hydropipe/config.yaml")
}

// FindConfig locates a config file. An explicit path must exist; otherwise
// the first existing entry of DefaultSearchPaths is returned.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}
	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w (searched: %v)", ErrNoConfig, DefaultSearchPaths())
}

// Config holds all HydroPipe settings.
type Config struct {
	Transport   string `yaml:"transport"`
	StateDir    string `yaml:"state_dir"`
	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`
	Timezone    string `yaml:"timezone"`
	LogLevel    string `yaml:"log_level"`

	API      APIConfig      `yaml:"api"`
	Weather  WeatherConfig  `yaml:"weather"`
	Food     FoodConfig     `yaml:"food"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Twilio   TwilioConfig   `yaml:"twilio"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`

	// Workouts overrides kcal-per-minute rates; a rate of 0 removes the kind.
	Workouts map[string]float64 `yaml:"workouts"`
}

// APIConfig configures the HTTP server.
type APIConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// PublicURL is where Twilio can reach the server to fetch chart images.
	PublicURL string `yaml:"public_url"`
}

// WeatherConfig configures the OpenWeatherMap client.
type WeatherConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// FoodConfig configures the OpenFoodFacts client.
type FoodConfig struct {
	BaseURL string `yaml:"base_url"`
}

// OpenAIConfig configures food name suggestions.
type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// TwilioConfig holds Twilio credentials.
type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	From       string `yaml:"from"`
}

// WhatsAppConfig configures the whatsmeow client.
type WhatsAppConfig struct {
	DBDSN       string `yaml:"db_dsn"`
	QRPath      string `yaml:"qr_path"`
	NumericCode bool   `yaml:"numeric_code"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Transport: TransportHTTP,
		StateDir:  "/var/lib/hydropipe",
		Timezone:  "UTC",
		LogLevel:  "info",
		API:       APIConfig{Addr: ":8080"},
	}
}

// Load reads a YAML file over Default. ${VAR} references are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the settings that cannot be defaulted later.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Transport) {
	case TransportWhatsApp, TransportTwilio, TransportHTTP:
	default:
		return fmt.Errorf("unknown transport %q (want %s, %s or %s)", c.Transport, TransportWhatsApp, TransportTwilio, TransportHTTP)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	for kind, rate := range c.Workouts {
		if rate < 0 {
			return fmt.Errorf("workout %q: negative rate %v", kind, rate)
		}
	}
	return nil
}

// Location resolves Timezone; empty means UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
