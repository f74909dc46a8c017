// config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// CallbackPath is where the provider delivers STK results, relative to the public base URL.
const CallbackPath = "/api/v1/callbacks/mpesa/stk"

// Config is read once at startup and passed by value into constructors.
type Config struct {
	Server ServerConfig
	Mpesa  MpesaConfig
	Store  StoreConfig
	Redis  RedisConfig
	Kafka  KafkaConfig
}

type ServerConfig struct {
	Port string
	Env  string
	// PublicBaseURL is the externally reachable URL advertised to the provider.
	PublicBaseURL string
}

type MpesaConfig struct {
	Environment     string
	BaseURL         string
	ConsumerKey     string
	ConsumerSecret  string
	Passkey         string
	ShortCode       string
	TransactionType string
	Timeout         time.Duration
}

type StoreConfig struct {
	Driver      string
	DatabaseURL string
	Timeout     time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

const (
	StoreDriverPostgres = "postgres"
	StoreDriverRedis    = "redis"
)

// CallbackURL is the full URL the provider will POST results to.
func (c ServerConfig) CallbackURL() string {
	return strings.TrimRight(c.PublicBaseURL, "/") + CallbackPath
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// Load reads .env (if present) and the process environment.
// A missing CALLBACK_BASE_URL is fatal: without it no callback can ever arrive.
func Load(logger *zap.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, relying on system env vars")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:          getEnv("SERVER_PORT", "8027"),
			Env:           getEnv("ENVIRONMENT", "development"),
			PublicBaseURL: getEnv("CALLBACK_BASE_URL", ""),
		},
		Mpesa: MpesaConfig{
			Environment:     getEnv("MPESA_ENVIRONMENT", "sandbox"),
			BaseURL:         getEnv("MPESA_BASE_URL", ""),
			ConsumerKey:     getEnv("MPESA_CONSUMER_KEY", ""),
			ConsumerSecret:  getEnv("MPESA_CONSUMER_SECRET", ""),
			Passkey:         getEnv("MPESA_PASSKEY", ""),
			ShortCode:       getEnv("MPESA_SHORT_CODE", ""),
			TransactionType: getEnv("MPESA_TRANSACTION_TYPE", "CustomerPayBillOnline"),
			Timeout:         getEnvDuration("MPESA_HTTP_TIMEOUT", 15*time.Second),
		},
		Store: StoreConfig{
			Driver:      strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
			DatabaseURL: getEnv("DATABASE_URL", databaseURLFromParts()),
			Timeout:     getEnvDuration("STORE_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "redis:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvCSV("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TOPIC", "wallet.transactions"),
		},
	}

	if cfg.Mpesa.BaseURL == "" {
		cfg.Mpesa.BaseURL = "https://sandbox.safaricom.co.ke"
		if cfg.Mpesa.Environment == "production" {
			cfg.Mpesa.BaseURL = "https://api.safaricom.co.ke"
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error

	if c.Server.PublicBaseURL == "" {
		errs = append(errs, errors.New("CALLBACK_BASE_URL is required: the provider cannot deliver callbacks without it"))
	} else if u, err := url.Parse(c.Server.PublicBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("CALLBACK_BASE_URL %q is not an absolute url", c.Server.PublicBaseURL))
	}

	required := map[string]string{
		"MPESA_CONSUMER_KEY":    c.Mpesa.ConsumerKey,
		"MPESA_CONSUMER_SECRET": c.Mpesa.ConsumerSecret,
		"MPESA_PASSKEY":         c.Mpesa.Passkey,
		"MPESA_SHORT_CODE":      c.Mpesa.ShortCode,
	}
	for _, key := range []string{"MPESA_CONSUMER_KEY", "MPESA_CONSUMER_SECRET", "MPESA_PASSKEY", "MPESA_SHORT_CODE"} {
		if required[key] == "" {
			errs = append(errs, fmt.Errorf("%s is required", key))
		}
	}

	switch c.Store.Driver {
	case StoreDriverPostgres, StoreDriverRedis:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverRedis, c.Store.Driver))
	}

	if c.Mpesa.Timeout <= 0 {
		errs = append(errs, errors.New("MPESA_HTTP_TIMEOUT must be positive"))
	}
	if c.Store.Timeout <= 0 {
		errs = append(errs, errors.New("STORE_TIMEOUT must be positive"))
	}

	return errors.Join(errs...)
}

func databaseURLFromParts() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		getEnv("DB_USER", "postgres"),
		getEnv("DB_PASSWORD", ""),
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_NAME", "pesaflow"),
		getEnv("DB_SSL_MODE", "disable"),
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvCSV(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
