package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultPort     = "8080"
	DefaultDBDriver = "sqlite"
	DefaultDBDSN    = "inkwell.db"
	DefaultPageSize = 6
)

// Config holds the server settings read from the environment
type Config struct {
	Port               string
	DBDriver           string
	DBDSN              string
	LogLevel           string
	CORSAllowedOrigins []string
	PageSize           int
	GinMode            string
}

// Load reads configuration from the environment, after loading a .env file
// if one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getenv("PORT", DefaultPort),
		DBDriver:           strings.ToLower(getenv("INKWELL_DB_DRIVER", DefaultDBDriver)),
		DBDSN:              getenv("INKWELL_DB_DSN", DefaultDBDSN),
		LogLevel:           getenv("INKWELL_LOG_LEVEL", "info"),
		CORSAllowedOrigins: splitAndTrim(os.Getenv("INKWELL_CORS_ALLOWED_ORIGINS")),
		PageSize:           getInt("INKWELL_PAGE_SIZE", DefaultPageSize),
		GinMode:            os.Getenv("GIN_MODE"),
	}

	switch cfg.DBDriver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("invalid INKWELL_DB_DRIVER: %s", cfg.DBDriver)
	}

	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("INKWELL_PAGE_SIZE must be positive, got %d", cfg.PageSize)
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func splitAndTrim(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
