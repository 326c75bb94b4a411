package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	LogLevel    string
	HTTPAddr    string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Mail connection pool.
	PoolMin            int
	PoolMax            int
	PoolIdleTimeout    time.Duration
	PoolConnectTimeout time.Duration

	// Notification dispatch.
	QueueSize     int
	RetryAttempts int
	RetryDelay    time.Duration
	SendTimeout   time.Duration
	FanOutLimit   int

	// Pipeline.
	TenantID      string
	BatchSize     int
	StrictTxMode  bool
	FetchInterval time.Duration

	// Company resolution.
	AutoRegisterThreshold int

	SMSAPIURL       string
	SMSAPIKey       string
	SMSSender       string
	AlimtalkAPIURL  string
	AlimtalkAPIKey  string
	AdminWebhookURL string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "ordersignal"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "postgres"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		PoolMin:            getenvInt("POOL_MIN", 1),
		PoolMax:            getenvInt("POOL_MAX", 5),
		PoolIdleTimeout:    getenvDurationMs("POOL_IDLE_TIMEOUT_MS", 5*time.Minute),
		PoolConnectTimeout: getenvDurationMs("POOL_CONNECT_TIMEOUT_MS", 10*time.Second),

		QueueSize:     getenvInt("QUEUE_SIZE", 100),
		RetryAttempts: getenvInt("RETRY_ATTEMPTS", 3),
		RetryDelay:    getenvDurationMs("RETRY_DELAY_MS", 2*time.Second),
		SendTimeout:   getenvDurationMs("SEND_TIMEOUT_MS", 10*time.Second),
		FanOutLimit:   getenvInt("FANOUT_LIMIT", 10),

		TenantID:      getenv("TENANT_ID", "1"),
		BatchSize:     getenvInt("BATCH_SIZE", 10),
		StrictTxMode:  getenvBool("STRICT_TX_MODE", false),
		FetchInterval: getenvDurationMs("FETCH_INTERVAL_MS", 30*time.Second),

		AutoRegisterThreshold: getenvInt("AUTO_REGISTER_THRESHOLD", 3),

		SMSAPIURL:       getenv("SMS_API_URL", ""),
		SMSAPIKey:       getenv("SMS_API_KEY", ""),
		SMSSender:       getenv("SMS_SENDER", ""),
		AlimtalkAPIURL:  getenv("ALIMTALK_API_URL", ""),
		AlimtalkAPIKey:  getenv("ALIMTALK_API_KEY", ""),
		AdminWebhookURL: getenv("ADMIN_WEBHOOK_URL", ""),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvDurationMs(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return time.Duration(parsed) * time.Millisecond
}
