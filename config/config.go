package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ============================================================================
// CONFIGURATION
// ============================================================================
// All runtime settings come from the environment; a .env file at the working
// directory is loaded by the command entrypoint before this package reads
// anything.
// ============================================================================

const (
	defaultAddr         = ":8000"
	defaultModel        = "claude-sonnet-4-20250514"
	defaultUploadDir    = "uploaded_files"
	defaultQueryTimeout = 60 * time.Second
	defaultLogLevel     = "info"
)

// Config holds the resolved runtime settings for the service.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string

	// DatabaseURL is a postgres connection string. Empty means the service
	// runs on the in-memory store.
	DatabaseURL string

	// AnthropicModel names the model used for classification and synthesis.
	// The API key comes from ANTHROPIC_API_KEY, read by the SDK itself.
	AnthropicModel string

	// UploadDir is where uploaded dataset files are stored.
	UploadDir string

	// AllowedOrigins lists CORS origins, comma separated in the environment.
	AllowedOrigins []string

	// QueryTimeout bounds each model call inside a query.
	QueryTimeout time.Duration

	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// Load reads configuration from the environment, applying defaults for
// anything unset.
func Load() (*Config, error) {
	cfg := &Config{
		Addr:           envOr("LISTEN_ADDR", defaultAddr),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		AnthropicModel: envOr("ANTHROPIC_MODEL", defaultModel),
		UploadDir:      envOr("UPLOAD_DIR", defaultUploadDir),
		QueryTimeout:   defaultQueryTimeout,
		LogLevel:       strings.ToLower(envOr("LOG_LEVEL", defaultLogLevel)),
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	} else {
		cfg.AllowedOrigins = []string{"http://localhost:3000"}
	}

	if raw := os.Getenv("QUERY_TIMEOUT_SECONDS"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("invalid QUERY_TIMEOUT_SECONDS %q", raw)
		}
		cfg.QueryTimeout = time.Duration(secs) * time.Second
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid LOG_LEVEL %q", cfg.LogLevel)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
