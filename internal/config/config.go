package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverMemory = "memory"
	DriverMongo  = "mongo"
	DriverNATS   = "nats"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Telemetry TelemetryConfig
	Store     StoreConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string
}

// TelemetryConfig toggles the OTLP exporters. The exporters read their
// endpoints from the standard OTEL_EXPORTER_OTLP_* variables.
type TelemetryConfig struct {
	Enabled     bool
	ServiceName string
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver           string
	MongoURI         string
	MongoDBName      string
	NATSURL          string
	TemplateCacheTTL time.Duration
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance. A missing env file is not an error.
func Load(envFile string) (*Config, error) {
	var err error
	if envFile != "" {
		err = godotenv.Load(envFile)
	} else {
		err = godotenv.Load()
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	return FromEnv()
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getenvWithDefault("APP_PORT", "8080"),
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level: strings.ToLower(getenvWithDefault("LOG_LEVEL", "info")),
		},
		Telemetry: TelemetryConfig{
			Enabled:     true,
			ServiceName: getenvWithDefault("OTEL_SERVICE_NAME", "construct-calc"),
		},
		Store: StoreConfig{
			Driver:           strings.ToLower(getenvWithDefault("STORE_DRIVER", DriverMemory)),
			MongoURI:         os.Getenv("MONGODB_URI"),
			MongoDBName:      getenvWithDefault("MONGODB_DB_NAME", "construct_calc"),
			NATSURL:          os.Getenv("NATS_URL"),
			TemplateCacheTTL: 5 * time.Minute,
		},
	}

	var err error
	if cfg.Telemetry.Enabled, err = getenvBool("TELEMETRY_ENABLED", cfg.Telemetry.Enabled); err != nil {
		return nil, err
	}
	if cfg.Store.TemplateCacheTTL, err = getenvDuration("TEMPLATE_CACHE_TTL", cfg.Store.TemplateCacheTTL); err != nil {
		return nil, err
	}
	if cfg.Server.ShutdownTimeout, err = getenvDuration("SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("APP_PORT must be numeric, got %q", c.Server.Port)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.Log.Level)
	}

	if c.Telemetry.ServiceName == "" {
		return errors.New("OTEL_SERVICE_NAME must not be empty")
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverMongo:
		if c.Store.MongoURI == "" {
			return errors.New("MONGODB_URI must be provided when STORE_DRIVER=mongo")
		}
		if c.Store.MongoDBName == "" {
			return errors.New("MONGODB_DB_NAME must not be empty")
		}
	case DriverNATS:
		if c.Store.NATSURL == "" {
			return errors.New("NATS_URL must be provided when STORE_DRIVER=nats")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be one of memory, mongo, nats, got %q", c.Store.Driver)
	}

	if c.Store.TemplateCacheTTL < 0 {
		return errors.New("TEMPLATE_CACHE_TTL must not be negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}

	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Server.Port
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvBool(key string, fallback bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, raw)
	}
	return v, nil
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration, got %q", key, raw)
	}
	return v, nil
}
