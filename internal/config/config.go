// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/validator.v2"

	"tradedesk-ledger/pkg/db"
)

// Store drivers.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	ServerPort  string `validate:"nonzero"`
	StoreDriver string `validate:"nonzero"`
	AutoMigrate bool
	DB          db.Config
	JWTSecret   string `validate:"min=16"`
	NATSURL     string
	LogLevel    string
	LogFile     string

	RateLimitRPS   float64 `validate:"min=0"`
	RateLimitBurst int     `validate:"min=1"`

	MinSignalStake  decimal.Decimal
	SignalCurrency  string `validate:"nonzero"`
	ExpirySweepCron string `validate:"nonzero"`
	SweepWorkers    int    `validate:"min=1"`
}

// LoadConfig loads configuration from environment variables, after reading a
// .env file if one is present. It returns an error if any variable is invalid.
func LoadConfig() (*AppConfig, error) {
	_ = godotenv.Load()

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	autoMigrate, err := strconv.ParseBool(getEnv("AUTO_MIGRATE", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTO_MIGRATE: %w", err)
	}
	minStake, err := decimal.NewFromString(getEnv("MIN_SIGNAL_STAKE", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid MIN_SIGNAL_STAKE: %w", err)
	}
	if !minStake.IsPositive() {
		return nil, fmt.Errorf("invalid MIN_SIGNAL_STAKE: must be positive, got %s", minStake)
	}

	rps, err := strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "20"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}
	burst, err := strconv.Atoi(getEnv("RATE_LIMIT_BURST", "50"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}
	workers, err := strconv.Atoi(getEnv("EXPIRY_SWEEP_WORKERS", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid EXPIRY_SWEEP_WORKERS: %w", err)
	}

	cfg := &AppConfig{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StorePostgres)),
		AutoMigrate: autoMigrate,
		DB: db.Config{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			DBName:   getEnv("DB_NAME", "ledgerdb"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWTSecret:       os.Getenv("JWT_SECRET"),
		NATSURL:         os.Getenv("NATS_URL"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFile:         os.Getenv("LOG_FILE"),
		RateLimitRPS:    rps,
		RateLimitBurst:  burst,
		MinSignalStake:  minStake,
		SignalCurrency:  strings.ToUpper(getEnv("SIGNAL_CURRENCY", "USD")),
		ExpirySweepCron: getEnv("EXPIRY_SWEEP_CRON", "0 * * * * *"),
		SweepWorkers:    workers,
	}

	if err := validator.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	switch cfg.StoreDriver {
	case StorePostgres, StoreMemory:
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER %q: want %q or %q", cfg.StoreDriver, StorePostgres, StoreMemory)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
