package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production
	HTTP HTTPConfig

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External APIs
	Broker     BrokerConfig
	MarketData MarketDataConfig
	News       NewsConfig
	Telegram   TelegramConfig

	// Trading
	Trading TradingConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool // /metrics on the API server
}

// HTTPConfig holds API server timeouts
type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration // in-flight 요청 drain 한도
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host      string
	Port      string
	Password  string
	DB        int
	Enabled   bool
	Namespace string // 키 접두어 (여러 배포가 한 인스턴스 공유 시)
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// BrokerConfig holds the brokerage REST API configuration
type BrokerConfig struct {
	BaseURL   string
	APIKey    string
	Paper     bool    // true: in-process paper broker, no HTTP
	PaperCash float64 // paper account starting cash
	Timeout   time.Duration
}

// MarketDataConfig holds the market data API configuration
type MarketDataConfig struct {
	BaseURL string
	APIKey  string
	RPS     float64 // 초당 요청 한도
	Burst   int
	Timeout time.Duration
}

// NewsConfig holds the headline source configuration
type NewsConfig struct {
	BaseURL      string
	PollInterval time.Duration // overrides news.poll_interval when > 0
}

// TelegramConfig holds Telegram Bot API configuration
type TelegramConfig struct {
	BotToken string
	ChatID   string
	BaseURL  string
}

// Enabled reports whether both token and chat id are set
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// TradingConfig holds runtime trading switches
type TradingConfig struct {
	StrategyConfigPath string
	StorageBackend     string // memory, postgres
	Timezone           string
	DryRun             bool // true: scans log decisions but do not place orders
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),
		HTTP: HTTPConfig{
			ReadTimeout:     getEnvAsDuration("HTTP_READ_TIMEOUT", "15s"),
			WriteTimeout:    getEnvAsDuration("HTTP_WRITE_TIMEOUT", "15s"),
			IdleTimeout:     getEnvAsDuration("HTTP_IDLE_TIMEOUT", "60s"),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", "30s"),
		},

		// Database
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "aegis_swing"),
			User:            getEnv("DB_USER", "aegis_swing"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:      getEnv("REDIS_HOST", "localhost"),
			Port:      getEnv("REDIS_PORT", "6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			Enabled:   getEnvAsBool("REDIS_ENABLED", false),
			Namespace: getEnv("REDIS_NAMESPACE", "aegis"),
		},

		// External APIs
		Broker: BrokerConfig{
			BaseURL:   getEnv("BROKER_BASE_URL", "https://paper-api.broker.local"),
			APIKey:    getEnv("BROKER_API_KEY", ""),
			Paper:     getEnvAsBool("BROKER_PAPER", true),
			PaperCash: getEnvAsFloat("BROKER_PAPER_CASH", 100_000),
			Timeout:   getEnvAsDuration("BROKER_TIMEOUT", "10s"),
		},

		MarketData: MarketDataConfig{
			BaseURL: getEnv("MARKETDATA_BASE_URL", "https://marketdata.local"),
			APIKey:  getEnv("MARKETDATA_API_KEY", ""),
			RPS:     getEnvAsFloat("MARKETDATA_RPS", 5),
			Burst:   getEnvAsInt("MARKETDATA_BURST", 5),
			Timeout: getEnvAsDuration("MARKETDATA_TIMEOUT", "15s"),
		},

		News: NewsConfig{
			BaseURL:      getEnv("NEWS_BASE_URL", "https://finviz.com"),
			PollInterval: getEnvAsDuration("NEWS_POLL_INTERVAL", "0s"), // 0 = strategy config
		},

		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
			BaseURL:  getEnv("TELEGRAM_BASE_URL", "https://api.telegram.org"),
		},

		Trading: TradingConfig{
			StrategyConfigPath: getEnv("STRATEGY_CONFIG", "config/strategy/us_swing.yaml"),
			StorageBackend:     getEnv("STORAGE_BACKEND", "memory"),
			Timezone:           getEnv("TRADING_TIMEZONE", "America/New_York"),
			DryRun:             getEnvAsBool("DRY_RUN", false),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.Trading.StorageBackend {
	case "memory":
	case "postgres":
		// Database URL is required for postgres
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be one of: memory, postgres")
	}

	if _, err := time.LoadLocation(c.Trading.Timezone); err != nil {
		return fmt.Errorf("TRADING_TIMEZONE invalid: %w", err)
	}

	if !c.Broker.Paper && c.Broker.APIKey == "" {
		return fmt.Errorf("BROKER_API_KEY is required when BROKER_PAPER=false")
	}

	if c.MarketData.RPS <= 0 {
		return fmt.Errorf("MARKETDATA_RPS must be > 0")
	}

	return nil
}

// Location returns the trading timezone (validated in Load)
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Trading.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
