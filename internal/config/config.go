package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	App struct {
		Env      string
		TimeZone string
	}

	Log struct {
		Level     string
		Format    string
		Component string
		Source    bool
	}

	DB struct {
		DSN      string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	HTTP struct {
		Host string
		Port string
	}

	Quota struct {
		// FailOpenKinds lists activity kinds that are allowed through when
		// storage is unreachable. Everything else fails closed.
		FailOpenKinds []string

		// LimitOverrides replaces single cells of the default limit table.
		// Keyed "tier.kind" (lowercase), value -1 means unlimited.
		LimitOverrides map[string]int64
	}
}

// New builds the config from the environment. A .env file in the working
// directory is loaded first if present; real env vars win over it.
func New() *Config {
	_ = godotenv.Load()

	cfg := &Config{}

	// App
	cfg.App.Env = getEnvDefault("APP_ENV", "development")
	cfg.App.TimeZone = getEnvDefault("APP_TIMEZONE", "UTC")

	// Logger
	cfg.Log.Level = getEnvDefault("LOG_LEVEL", "info")
	cfg.Log.Format = getEnvDefault("LOG_FORMAT", "text")
	cfg.Log.Component = getEnvDefault("LOG_COMPONENT", "engine")
	cfg.Log.Source = isTruthy(os.Getenv("LOG_SOURCE"))

	// Database
	cfg.DB.DSN = os.Getenv("MYSQL_DSN")
	if cfg.DB.DSN == "" {
		cfg.DB.Host = getEnvDefault("DB_HOST", "localhost")
		cfg.DB.Port = getEnvDefault("DB_PORT", "3306")
		cfg.DB.User = getEnvDefault("DB_USER", "root")
		cfg.DB.Password = getEnvDefault("DB_PASSWORD", "root")
		cfg.DB.Name = getEnvDefault("DB_NAME", "rishta")

		cfg.DB.DSN = fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
		)
	}

	// Redis
	cfg.Redis.Addr = getEnvDefault("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnvDefault("REDIS_PASSWORD", "")
	if dbStr := getEnvDefault("REDIS_DB", "0"); dbStr != "" {
		if dbInt, err := strconv.Atoi(dbStr); err == nil {
			cfg.Redis.DB = dbInt
		}
	}

	// HTTP
	cfg.HTTP.Host = getEnvDefault("HTTP_HOST", "127.0.0.1")
	cfg.HTTP.Port = getEnvDefault("HTTP_PORT", "8080")

	// Quota policy
	cfg.Quota.FailOpenKinds = splitList(os.Getenv("QUOTA_FAIL_OPEN_KINDS"))
	cfg.Quota.LimitOverrides = parseLimitOverrides(os.Environ())

	return cfg
}

// parseLimitOverrides collects QUOTA_LIMIT_<TIER>_<KIND>=<n> vars into a
// "tier.kind" -> ceiling map, e.g. QUOTA_LIMIT_FREE_PROFILE_VIEWS=70.
// The tier never contains an underscore, so the first "_" splits the key.
func parseLimitOverrides(environ []string) map[string]int64 {
	const prefix = "QUOTA_LIMIT_"
	overrides := make(map[string]int64)
	for _, kv := range environ {
		if !strings.HasPrefix(kv, prefix) {
			continue
		}
		key, val, ok := strings.Cut(strings.TrimPrefix(kv, prefix), "=")
		if !ok {
			continue
		}
		tier, kind, ok := strings.Cut(strings.ToLower(key), "_")
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			continue
		}
		overrides[tier+"."+kind] = n
	}
	return overrides
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
