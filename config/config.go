package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"sjsage522/flooringscraper/pkg/errors"
)

// Store drivers
const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

// Config represents the application configuration
type Config struct {
	Environment string

	// Persistence
	StoreDriver      string
	DatabaseURL      string
	DatabasePassword string
	SQLitePath       string

	// Memcache configuration, empty means in-process cache
	MemcacheAddr string

	// Redis outcome stream, empty address disables publishing
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamMaxLength int

	// Anti-bot fetch chain
	FlareSolverrURL   string
	FlareSolverrProxy string
	BrowserFallback   bool
	BrowserControlURL string
	BlockTime         time.Duration

	// Directory of extra site definitions for HTML vendors
	SitesDir string

	// Admin API
	ServerAddr string
	ScrapePIN  string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	return Config{
		Environment:          getEnv("SCRAPER_ENVIRONMENT", "development"),
		StoreDriver:          strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		DatabasePassword:     os.Getenv("DATABASE_PASSWORD"),
		SQLitePath:           getEnv("SQLITE_PATH", "catalog.db"),
		MemcacheAddr:         os.Getenv("MEMCACHE_ADDR"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "scrape:outcomes"),
		RedisStreamMaxLength: getEnvInt("REDIS_STREAM_MAX_LENGTH", 1000),
		FlareSolverrURL:      os.Getenv("FLARESOLVERR_URL"),
		FlareSolverrProxy:    os.Getenv("FLARESOLVERR_PROXY"),
		BrowserFallback:      getEnvBool("BROWSER_FALLBACK", true),
		BrowserControlURL:    os.Getenv("BROWSER_CONTROL_URL"),
		BlockTime:            time.Duration(getEnvInt("BLOCK_TIME_SECONDS", 600)) * time.Second,
		SitesDir:             os.Getenv("SITES_DIR"),
		ServerAddr:           getEnv("SERVER_ADDR", ":8080"),
		ScrapePIN:            getEnv("SCRAPE_PIN", "5293"),
	}
}

// Validate checks the settings the batch cannot run without
func (c Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return errors.NewConfiguration("", "DATABASE_URL is required for the postgres store", nil)
		}
		if c.DatabasePassword == "" {
			return errors.NewConfiguration("", "DATABASE_PASSWORD is required for the postgres store", nil)
		}
	case StoreDriverSQLite:
		if c.SQLitePath == "" {
			return errors.NewConfiguration("", "SQLITE_PATH is required for the sqlite store", nil)
		}
	default:
		return errors.NewConfiguration("", "unknown STORE_DRIVER "+strconv.Quote(c.StoreDriver), nil)
	}

	if c.RedisAddr != "" && c.RedisStreamMaxLength <= 0 {
		return errors.NewConfiguration("", "REDIS_STREAM_MAX_LENGTH must be positive", nil)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}
