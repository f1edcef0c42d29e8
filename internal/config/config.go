package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr  string `yaml:"http_addr"`
	LogLevel  string `yaml:"log_level"`
	LogPretty bool   `yaml:"log_pretty"`

	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Routing    RoutingConfig    `yaml:"routing"`
	Geocoder   GeocoderConfig   `yaml:"geocoder"`
	Position   PositionConfig   `yaml:"position"`

	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`
}

type DispatcherConfig struct {
	URL               string        `yaml:"url"`
	DriverName        string        `yaml:"driver_name"`
	ReconnectMaxDelay time.Duration `yaml:"reconnect_max_backoff"`
}

type RoutingConfig struct {
	Provider      string        `yaml:"provider"`
	ORSAPIKey     string        `yaml:"ors_api_key"`
	GoogleAPIKey  string        `yaml:"google_api_key"`
	QueryTimeout  time.Duration `yaml:"query_timeout"`
	MaxInFlight   int           `yaml:"max_in_flight"`
	RatePerSecond float64       `yaml:"rate_per_sec"`
	Burst         int           `yaml:"burst"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
}

type GeocoderConfig struct {
	Provider string        `yaml:"provider"`
	Country  string        `yaml:"country"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type PositionConfig struct {
	Lat         *float64      `yaml:"lat"`
	Lon         *float64      `yaml:"lon"`
	RedisKey    string        `yaml:"redis_key"`
	RedisMember string        `yaml:"redis_member"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	Refresh     time.Duration `yaml:"refresh"`
}

func defaults() Config {
	return Config{
		HTTPAddr: ":8080",
		LogLevel: "info",
		Dispatcher: DispatcherConfig{
			DriverName:        "courier",
			ReconnectMaxDelay: 30 * time.Second,
		},
		Routing: RoutingConfig{
			Provider:     "ors",
			QueryTimeout: 10 * time.Second,
			MaxInFlight:  8,
			Burst:        1,
			CacheTTL:     7 * 24 * time.Hour,
		},
		Geocoder: GeocoderConfig{
			Provider: "ors",
			CacheTTL: 24 * time.Hour,
		},
		Position: PositionConfig{
			RetryDelay: time.Second,
		},
	}
}

// Load reads .env (if present), then the YAML file named by CONFIG_FILE (if set),
// then applies environment overrides.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("load config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config: parse %q: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.HTTPAddr = Get("HTTP_ADDR", cfg.HTTPAddr)
	cfg.LogLevel = Get("LOG_LEVEL", cfg.LogLevel)
	cfg.DatabaseURL = Get("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = Get("REDIS_URL", cfg.RedisURL)

	cfg.Dispatcher.URL = Get("DISPATCHER_URL", cfg.Dispatcher.URL)
	cfg.Dispatcher.DriverName = Get("DRIVER_NAME", cfg.Dispatcher.DriverName)

	cfg.Routing.Provider = strings.ToLower(Get("ROUTING_PROVIDER", cfg.Routing.Provider))
	cfg.Routing.ORSAPIKey = Get("ORS_API_KEY", cfg.Routing.ORSAPIKey)
	cfg.Routing.GoogleAPIKey = Get("GOOGLE_MAPS_API_KEY", cfg.Routing.GoogleAPIKey)

	cfg.Geocoder.Provider = strings.ToLower(Get("GEOCODER_PROVIDER", cfg.Geocoder.Provider))
	cfg.Geocoder.Country = Get("GEOCODER_COUNTRY", cfg.Geocoder.Country)

	cfg.Position.RedisKey = Get("POSITION_REDIS_KEY", cfg.Position.RedisKey)
	cfg.Position.RedisMember = Get("POSITION_REDIS_MEMBER", cfg.Position.RedisMember)

	var err error
	if cfg.LogPretty, err = getBool("LOG_PRETTY", cfg.LogPretty); err != nil {
		return err
	}
	if cfg.Dispatcher.ReconnectMaxDelay, err = getDuration("RECONNECT_MAX_BACKOFF", cfg.Dispatcher.ReconnectMaxDelay); err != nil {
		return err
	}
	if cfg.Routing.QueryTimeout, err = getDuration("ROUTING_QUERY_TIMEOUT", cfg.Routing.QueryTimeout); err != nil {
		return err
	}
	if cfg.Routing.CacheTTL, err = getDuration("ROUTING_CACHE_TTL", cfg.Routing.CacheTTL); err != nil {
		return err
	}
	if cfg.Routing.MaxInFlight, err = getInt("ROUTING_MAX_IN_FLIGHT", cfg.Routing.MaxInFlight); err != nil {
		return err
	}
	if cfg.Routing.Burst, err = getInt("ROUTING_BURST", cfg.Routing.Burst); err != nil {
		return err
	}
	if cfg.Routing.RatePerSecond, err = getFloat("ROUTING_RATE_PER_SEC", cfg.Routing.RatePerSecond); err != nil {
		return err
	}
	if cfg.Geocoder.CacheTTL, err = getDuration("GEOCODE_CACHE_TTL", cfg.Geocoder.CacheTTL); err != nil {
		return err
	}
	if cfg.Position.RetryDelay, err = getDuration("POSITION_RETRY_DELAY", cfg.Position.RetryDelay); err != nil {
		return err
	}
	if cfg.Position.Refresh, err = getDuration("POSITION_REFRESH", cfg.Position.Refresh); err != nil {
		return err
	}
	if cfg.Position.Lat, err = getFloatPtr("POSITION_LAT", cfg.Position.Lat); err != nil {
		return err
	}
	if cfg.Position.Lon, err = getFloatPtr("POSITION_LON", cfg.Position.Lon); err != nil {
		return err
	}

	return nil
}

// Validate checks that the selected providers have credentials.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Dispatcher.URL) == "" {
		errs = append(errs, errors.New("DISPATCHER_URL is required"))
	}

	needORS := c.Routing.Provider == "ors" || c.Geocoder.Provider == "ors"
	needGoogle := c.Routing.Provider == "google" || c.Geocoder.Provider == "google"

	switch c.Routing.Provider {
	case "ors", "google":
	default:
		errs = append(errs, fmt.Errorf("unknown routing provider %q", c.Routing.Provider))
	}
	switch c.Geocoder.Provider {
	case "ors", "google":
	default:
		errs = append(errs, fmt.Errorf("unknown geocoder provider %q", c.Geocoder.Provider))
	}

	if needORS && strings.TrimSpace(c.Routing.ORSAPIKey) == "" {
		errs = append(errs, errors.New("ORS_API_KEY is required"))
	}
	if needGoogle && strings.TrimSpace(c.Routing.GoogleAPIKey) == "" {
		errs = append(errs, errors.New("GOOGLE_MAPS_API_KEY is required"))
	}
	if c.Routing.QueryTimeout <= 0 {
		errs = append(errs, errors.New("routing query timeout must be positive"))
	}
	if (c.Position.Lat == nil) != (c.Position.Lon == nil) {
		errs = append(errs, errors.New("POSITION_LAT and POSITION_LON must be set together"))
	}

	return errors.Join(errs...)
}

func Get(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := Get(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := Get(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := Get(key, "")
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func getFloatPtr(key string, fallback *float64) (*float64, error) {
	v := Get(key, "")
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return &f, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := Get(key, "")
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
