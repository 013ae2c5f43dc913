package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config carries every process-level setting. It is loaded once at startup
// and injected; nothing reads the environment after that.
type Config struct {
	Environment string
	HTTPAddr    string

	// ServerURL is the externally reachable base URL of this deployment. The
	// Tally sync path posts back to it, mirroring the receiver indirection.
	ServerURL string

	DatabaseDSN string
	MediaRoot   string

	OpenAIAPIKey    string
	OpenAIModel     string
	OpenAIMaxTokens int

	ZohoAPIBase     string
	ZohoAccountsURL string

	HTTPClientTimeout time.Duration

	// TokenRefreshCron gates the background Zoho token keep-warm job.
	// Empty disables it.
	TokenRefreshCron string
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Load reads .env when present and builds the Config from the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:       getenv("BM_ENVIRONMENT", "development"),
		HTTPAddr:          getenv("BM_HTTP_ADDR", ":8000"),
		ServerURL:         strings.TrimRight(getenv("BM_SERVER_URL", "http://localhost:8000"), "/"),
		DatabaseDSN:       getenv("BM_DATABASE_DSN", ""),
		MediaRoot:         getenv("BM_MEDIA_ROOT", "media"),
		OpenAIAPIKey:      getenv("BM_OPENAI_API_KEY", ""),
		OpenAIModel:       getenv("BM_OPENAI_MODEL", "gpt-4o"),
		OpenAIMaxTokens:   getenvInt("BM_OPENAI_MAX_TOKENS", 1000),
		ZohoAPIBase:       strings.TrimRight(getenv("BM_ZOHO_API_BASE", "https://www.zohoapis.in"), "/"),
		ZohoAccountsURL:   getenv("BM_ZOHO_ACCOUNTS_URL", "https://accounts.zoho.in/oauth/v2/token"),
		HTTPClientTimeout: getenvDuration("BM_HTTP_CLIENT_TIMEOUT", 60*time.Second),
		TokenRefreshCron:  getenv("BM_TOKEN_REFRESH_CRON", ""),
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

var Module = fx.Module("config",
	fx.Provide(Load),
)
