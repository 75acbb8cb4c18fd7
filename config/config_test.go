package config

import (
	"testing"
	"time"

	"sjsage522/flooringscraper/pkg/errors"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	// Test with default values
	config := LoadConfig()
	assert.Equal(t, StoreDriverPostgres, config.StoreDriver)
	assert.Equal(t, "scrape:outcomes", config.RedisStream)
	assert.Equal(t, 1000, config.RedisStreamMaxLength)
	assert.Equal(t, 600*time.Second, config.BlockTime)
	assert.Equal(t, "5293", config.ScrapePIN)
	assert.True(t, config.BrowserFallback)
	assert.Empty(t, config.MemcacheAddr)

	// Test with environment variables
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("SQLITE_PATH", "/tmp/test.db")
	t.Setenv("REDIS_ADDR", "redis.example.com:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("MEMCACHE_ADDR", "memcache.example.com:11211")
	t.Setenv("BLOCK_TIME_SECONDS", "30")
	t.Setenv("BROWSER_FALLBACK", "false")
	t.Setenv("REDIS_STREAM_MAX_LENGTH", "oops")

	config = LoadConfig()
	assert.Equal(t, StoreDriverSQLite, config.StoreDriver)
	assert.Equal(t, "/tmp/test.db", config.SQLitePath)
	assert.Equal(t, "redis.example.com:6379", config.RedisAddr)
	assert.Equal(t, 2, config.RedisDB)
	assert.Equal(t, "memcache.example.com:11211", config.MemcacheAddr)
	assert.Equal(t, 30*time.Second, config.BlockTime)
	assert.False(t, config.BrowserFallback)
	assert.Equal(t, 1000, config.RedisStreamMaxLength)
}

func TestValidate(t *testing.T) {
	cfg := Config{StoreDriver: StoreDriverPostgres}
	err := cfg.Validate()
	assert.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfiguration))
	assert.Contains(t, err.Error(), "DATABASE_URL")

	cfg.DatabaseURL = "postgres://scraper@db.example.com/catalog"
	err = cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_PASSWORD")

	cfg.DatabasePassword = "secret"
	assert.NoError(t, cfg.Validate())

	assert.NoError(t, Config{StoreDriver: StoreDriverSQLite, SQLitePath: ":memory:"}.Validate())
	assert.Error(t, Config{StoreDriver: "mongo"}.Validate())
	assert.Error(t, Config{StoreDriver: StoreDriverSQLite, SQLitePath: "x", RedisAddr: "localhost:6379"}.Validate())
}
