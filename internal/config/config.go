package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string
	LogFormat   string
	Backend     BackendConfig
	Storage     StorageConfig
	Kafka       KafkaConfig
	Storefront  StorefrontConfig
}

type BackendConfig struct {
	BaseURL      string
	StaticToken  string
	ProxyPath    string
	Timeout      time.Duration
	MaxFailures  int
	BreakerReset time.Duration
}

type StorageConfig struct {
	Backend  string // memory, redis, postgres
	RedisURL string
	Database DatabaseConfig
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns the lib/pq connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type KafkaConfig struct {
	Brokers string
	GroupID string
}

// Enabled reports whether events should be published at all
func (k KafkaConfig) Enabled() bool {
	return strings.TrimSpace(k.Brokers) != ""
}

type StorefrontConfig struct {
	PublicMenuURL  string
	AllowedOrigins []string
	CurrencyEN     string
	CurrencyAR     string
	SecureCookies  bool
}

func Load() (*Config, error) {
	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")

	viper.SetDefault("STOREFRONT_PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.SetDefault("STORAGE_BACKEND", "memory")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// .env is optional
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	environment := getEnvOrViper("ENVIRONMENT", "development")
	menuURL := getEnvOrViper("PUBLIC_MENU_URL", "http://localhost:3000/menu")
	// production only trusts the menu's own origin unless told otherwise
	defaultOrigins := "*"
	if environment == "production" {
		defaultOrigins = originOf(menuURL)
	}

	cfg := &Config{
		Port:        getEnvOrViper("STOREFRONT_PORT", "8080"),
		Environment: environment,
		LogLevel:    getEnvOrViper("LOG_LEVEL", "info"),
		LogFormat:   getEnvOrViper("LOG_FORMAT", "json"),
		Backend: BackendConfig{
			BaseURL:      firstSet("API_BASE_URL", "NEXT_PUBLIC_API_BASE_URL"),
			StaticToken:  firstSet("API_TOKEN", "NEXT_PUBLIC_API_TOKEN"),
			ProxyPath:    getEnvOrViper("API_PROXY_PATH", "/backend"),
			Timeout:      getDurationOrDefault("API_TIMEOUT", 15*time.Second),
			MaxFailures:  getIntOrDefault("API_BREAKER_MAX_FAILURES", 5),
			BreakerReset: getDurationOrDefault("API_BREAKER_RESET", 30*time.Second),
		},
		Storage: StorageConfig{
			Backend:  strings.ToLower(getEnvOrViper("STORAGE_BACKEND", "memory")),
			RedisURL: getEnvOrViper("REDIS_ADDR", "localhost:6379"),
			Database: DatabaseConfig{
				Host:     getEnvOrViper("DB_HOST", "localhost"),
				Port:     getEnvOrViper("DB_PORT", "5432"),
				User:     getEnvOrViper("DB_USER", "storefront"),
				Password: getEnvOrViper("DB_PASSWORD", "storefront"),
				DBName:   getEnvOrViper("DB_NAME", "storefront"),
				SSLMode:  getEnvOrViper("DB_SSLMODE", "disable"),
			},
		},
		Kafka: KafkaConfig{
			Brokers: getEnvOrViper("KAFKA_BROKERS", ""),
			GroupID: getEnvOrViper("KAFKA_GROUP_ID", "storefront"),
		},
		Storefront: StorefrontConfig{
			PublicMenuURL:  menuURL,
			AllowedOrigins: splitList(getEnvOrViper("CORS_ALLOWED_ORIGINS", defaultOrigins)),
			CurrencyEN:     getEnvOrViper("CURRENCY_EN", "EGP"),
			CurrencyAR:     getEnvOrViper("CURRENCY_AR", "ج.م"),
			SecureCookies:  environment == "production",
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the fields the storefront cannot run without
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}
	if !strings.HasPrefix(c.Backend.BaseURL, "http://") && !strings.HasPrefix(c.Backend.BaseURL, "https://") {
		return fmt.Errorf("API_BASE_URL must be an http(s) URL, got %q", c.Backend.BaseURL)
	}
	switch c.Storage.Backend {
	case "memory", "redis", "postgres":
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.Storage.Backend)
	}
	if c.Environment == "production" {
		for _, origin := range c.Storefront.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf("CORS_ALLOWED_ORIGINS must list explicit origins in production")
			}
		}
	}
	return nil
}

// originOf returns scheme://host of raw, or "" when raw has neither.
func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}

func firstSet(keys ...string) string {
	for _, key := range keys {
		if val := getEnvOrViper(key, ""); val != "" {
			return val
		}
	}
	return ""
}

func getIntOrDefault(key string, defaultValue int) int {
	if n, err := strconv.Atoi(getEnvOrViper(key, "")); err == nil {
		return n
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(getEnvOrViper(key, "")); err == nil {
		return d
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
