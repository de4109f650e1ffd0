package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	Port        int
	LogLevel    string
	LogFormat   string
	ServiceName string
	Version     string
	Environment string

	// BitrixBaseURL is the inbound-webhook REST base, e.g.
	// https://example.bitrix24.ru/rest/1/abc123. Authentication is baked
	// into the URL; the OAuth flow is out of scope.
	BitrixBaseURL string

	// APIKey protects the recipe authoring endpoints
	APIKey string

	// RecipesPath points at the tech card JSON store
	RecipesPath string

	// BitrixTimeout bounds every outbound CRM call
	BitrixTimeout time.Duration

	// StageCacheTTL bounds staleness of the cached deal-stage list
	StageCacheTTL time.Duration

	// TrustedProxies are the only sources whose X-Forwarded-For is believed
	TrustedProxies []string
}

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists, but don't fail if it doesn't (could be real env vars)
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
		ServiceName:   getEnv("SERVICE_NAME", "techcard-service"),
		Version:       getEnv("SERVICE_VERSION", "dev"),
		Environment:   getEnv("ENVIRONMENT", "dev"),
		BitrixBaseURL: getEnv("BITRIX_WEBHOOK_URL", ""),
		APIKey:        getEnv("API_KEY", ""),
		RecipesPath:   getEnv("RECIPES_PATH", "data/recipes.json"),
	}

	portStr := getEnv("PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT value: %w", err)
	}
	cfg.Port = port

	timeoutStr := getEnv("BITRIX_TIMEOUT_SECONDS", "30")
	timeoutSec, err := strconv.Atoi(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid BITRIX_TIMEOUT_SECONDS value: %w", err)
	}
	cfg.BitrixTimeout = time.Duration(timeoutSec) * time.Second

	ttlStr := getEnv("STAGE_CACHE_TTL_SECONDS", "300")
	ttlSec, err := strconv.Atoi(ttlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid STAGE_CACHE_TTL_SECONDS value: %w", err)
	}
	cfg.StageCacheTTL = time.Duration(ttlSec) * time.Second

	if proxies := getEnv("TRUSTED_PROXIES", ""); proxies != "" {
		for _, p := range strings.Split(proxies, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.TrustedProxies = append(cfg.TrustedProxies, p)
			}
		}
	}

	if cfg.BitrixBaseURL == "" {
		return nil, fmt.Errorf("BITRIX_WEBHOOK_URL environment variable must be set")
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API_KEY environment variable must be set for security")
	}

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
