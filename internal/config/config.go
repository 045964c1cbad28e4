package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process-wide configuration, assembled once at startup
// from environment variables (optionally seeded by a .env file).
type Config struct {
	AppEnv  string
	AppName string

	// Database
	DBHost            string
	DBPort            string
	DBUser            string
	DBPassword        string
	DBName            string
	DBSSLMode         string
	DBMaxConnections  int
	DBIdleConnections int
	DBConnLifetime    time.Duration
	DatabaseURL       string

	// Polling (Change Detector backup layer)
	Polling struct {
		Interval    time.Duration
		BatchLimit  int
		CronSeconds string
	}

	// Dispatcher
	Dispatcher struct {
		WakeInterval time.Duration
	}

	// Retry (Dispatcher backoff)
	Retry struct {
		BaseDelay  time.Duration
		MaxDelay   time.Duration
		Multiplier float64
		MaxRetries int
	}

	// Rate limiting (Dispatcher outbound)
	RateLimit struct {
		RequestsPerSecond int
		MinSpacing        time.Duration
	}

	// ERP (UPSERT Client)
	ERP struct {
		SigningPassphrase string
		ConsumerKey       string
		TokenKey          string
		UpsertURLProd     string
		UpsertURLNonProd  string
		Environment       string // "prod" | the configured default non-prod name
		ScriptID          string
		DeploymentID      string
		DefaultTaxSchedID string
		UpsertTimeout     time.Duration
		BreakerThreshold  uint32
		BreakerTimeout    time.Duration
	}

	// Webhook (Webhook Applier inbound)
	Webhook struct {
		SigningSecret string
		RateLimit     time.Duration
	}

	// Supervisor
	Supervisor struct {
		LeaseTTL           time.Duration
		HealthCheckCron    string
		MaxAutoRestarts    int
		ShutdownGracePeriod time.Duration
	}

	// Logging
	Log struct {
		Level string
	}

	// Monitoring
	Monitoring struct {
		MetricsEnabled bool
		MetricsPort    int
		MetricsPath    string
	}

	// Server (operational HTTP surface + webhook endpoint)
	Server struct {
		Port string
		Host string
	}
}

// Load reads environment variables (after trying to seed them from a
// per-environment .env file) into a Config with sensible defaults.
func Load() (*Config, error) {
	appEnv := getEnv("APP_ENV", "development")
	_ = godotenv.Load(".env." + appEnv)

	cfg := &Config{
		AppEnv:  appEnv,
		AppName: getEnv("APP_NAME", "opms-erp-sync"),

		DBHost:            getEnv("DB_HOST", "localhost"),
		DBPort:            getEnv("DB_PORT", "5432"),
		DBUser:            getEnv("DB_USER", "opms"),
		DBPassword:        getEnv("DB_PASSWORD", ""),
		DBName:            getEnv("DB_NAME", "opms"),
		DBSSLMode:         getEnv("DB_SSL_MODE", "disable"),
		DBMaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 25),
		DBIdleConnections: getEnvAsInt("DB_IDLE_CONNECTIONS", 5),
		DBConnLifetime:    parseDuration(getEnv("DB_CONNECTION_LIFETIME", "5m"), 5*time.Minute),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
	}

	cfg.Polling.Interval = parseDuration(getEnv("POLL_INTERVAL", "60s"), 60*time.Second)
	cfg.Polling.BatchLimit = getEnvAsInt("POLL_BATCH_LIMIT", 100)
	cfg.Polling.CronSeconds = getEnv("POLL_CRON", "@every 60s")

	cfg.Dispatcher.WakeInterval = parseDuration(getEnv("DISPATCHER_WAKE_INTERVAL", "5s"), 5*time.Second)

	cfg.Retry.BaseDelay = parseDuration(getEnv("RETRY_BASE_DELAY", "2s"), 2*time.Second)
	cfg.Retry.MaxDelay = parseDuration(getEnv("RETRY_MAX_DELAY", "30s"), 30*time.Second)
	cfg.Retry.Multiplier = getEnvAsFloat("RETRY_MULTIPLIER", 2.0)
	cfg.Retry.MaxRetries = getEnvAsInt("RETRY_MAX_RETRIES", 3)

	cfg.RateLimit.RequestsPerSecond = getEnvAsInt("RATE_LIMIT_RPS", 10)
	cfg.RateLimit.MinSpacing = parseDuration(getEnv("RATE_LIMIT_MIN_SPACING", "100ms"), 100*time.Millisecond)

	cfg.ERP.SigningPassphrase = getEnv("ERP_SIGNING_PASSPHRASE", "dev-signing-passphrase-change-me")
	cfg.ERP.ConsumerKey = getEnv("ERP_CONSUMER_KEY", "")
	cfg.ERP.TokenKey = getEnv("ERP_TOKEN_KEY", "")
	cfg.ERP.UpsertURLProd = getEnv("ERP_UPSERT_URL_PROD", "")
	cfg.ERP.UpsertURLNonProd = getEnv("ERP_UPSERT_URL_SANDBOX", "")
	cfg.ERP.Environment = getEnv("ERP_ENVIRONMENT", "sandbox")
	cfg.ERP.ScriptID = getEnv("ERP_SCRIPT_ID", "")
	cfg.ERP.DeploymentID = getEnv("ERP_DEPLOYMENT_ID", "")
	cfg.ERP.DefaultTaxSchedID = getEnv("ERP_DEFAULT_TAX_SCHEDULE_ID", "1")
	cfg.ERP.UpsertTimeout = parseDuration(getEnv("ERP_UPSERT_TIMEOUT", "30s"), 30*time.Second)
	cfg.ERP.BreakerThreshold = uint32(getEnvAsInt("ERP_BREAKER_CONSECUTIVE_FAILURES", 5))
	cfg.ERP.BreakerTimeout = parseDuration(getEnv("ERP_BREAKER_OPEN_TIMEOUT", "60s"), 60*time.Second)

	cfg.Webhook.SigningSecret = getEnv("WEBHOOK_SIGNING_SECRET", "dev-webhook-secret-change-me")
	cfg.Webhook.RateLimit = parseDuration(getEnv("WEBHOOK_RATE_LIMIT", "1s"), time.Second)

	cfg.Supervisor.LeaseTTL = parseDuration(getEnv("SUPERVISOR_LEASE_TTL", "10m"), 10*time.Minute)
	cfg.Supervisor.HealthCheckCron = getEnv("SUPERVISOR_HEALTH_CRON", "@every 30s")
	cfg.Supervisor.MaxAutoRestarts = getEnvAsInt("SUPERVISOR_MAX_AUTO_RESTARTS", 3)
	cfg.Supervisor.ShutdownGracePeriod = parseDuration(getEnv("SUPERVISOR_SHUTDOWN_GRACE", "30s"), 30*time.Second)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")

	cfg.Monitoring.MetricsEnabled = getEnvAsBool("METRICS_ENABLED", true)
	cfg.Monitoring.MetricsPort = getEnvAsInt("METRICS_PORT", 9090)
	cfg.Monitoring.MetricsPath = getEnv("METRICS_PATH", "/metrics")

	cfg.Server.Port = getEnv("SERVER_PORT", "8080")
	cfg.Server.Host = getEnv("SERVER_HOST", "0.0.0.0")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return defaultValue
}
