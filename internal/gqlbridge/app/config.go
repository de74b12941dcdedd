package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	httpapi "github.com/aussiebroadwan/gqlbridge/internal/gqlbridge/http"
	"github.com/aussiebroadwan/gqlbridge/pkg/bridge"
)

type Config struct {
	ConfigFile          string        // Optional: YAML file with clients and pages (default: ./gqlbridge.yaml)
	LocalStore          string        // Optional: SQLite file backing localStorage in hydrate mode (default: in-memory)
	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

// LoadConfig reads the environment, after loading ./.env when present.
func LoadConfig() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	return Config{
		ConfigFile:          getEnvOrDefault("GQLBRIDGE_CONFIG_FILE", "gqlbridge.yaml"),
		LocalStore:          os.Getenv("GQLBRIDGE_LOCALSTORE"),
		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

// Site is everything the config file describes.
type Site struct {
	Clients bridge.Config
	Pages   []httpapi.Page
}

// LoadSite reads the config file. The client settings are parsed by
// bridge.ParseConfig, which ignores the pages key.
func LoadSite(path string) (*Site, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseSite(data)
}

func ParseSite(data []byte) (*Site, error) {
	clients, err := bridge.ParseConfig(data)
	if err != nil {
		return nil, err
	}

	var doc struct {
		Pages []httpapi.Page `yaml:"pages"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse pages: %w", err)
	}
	return &Site{Clients: clients, Pages: doc.Pages}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}

	return defaultValue
}
