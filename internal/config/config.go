package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName         = "PocketLedger"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultBankTimeout     = 5 * time.Second
	defaultBalanceCacheTTL = 30 * time.Second

	// Default points at the mock settlement endpoint used by the original
	// bank integration. Real deployments override BANK_API_URL.
	defaultBankAPIURL = "http://www.mocky.io/v2/5acadd1b2e00005600bbaa36"
)

// Config captures application runtime configuration loaded from environment
// variables.
type Config struct {
	AppName         string
	AppEnv          string
	Port            string
	LogLevel        string
	DatabaseURL     string
	RedisURL        string
	BankAPIURL      string
	BankTimeout     time.Duration
	BalanceCacheTTL time.Duration
	ShutdownPeriod  time.Duration
}

// Load reads configuration values from the environment. DATABASE_URL is
// required; REDIS_URL is optional and disables the balance cache when empty.
func Load() (Config, error) {
	cfg := Config{
		AppName:         getEnv("APP_NAME", defaultAppName),
		AppEnv:          getEnv("APP_ENV", defaultAppEnv),
		Port:            getEnv("PORT", defaultPort),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		BankAPIURL:      getEnv("BANK_API_URL", defaultBankAPIURL),
		BankTimeout:     defaultBankTimeout,
		BalanceCacheTTL: defaultBalanceCacheTTL,
		ShutdownPeriod:  defaultShutdownDelay,
	}

	var err error
	if cfg.BankTimeout, err = durationEnv("BANK_TIMEOUT_SECONDS", "BANK_TIMEOUT", cfg.BankTimeout); err != nil {
		return Config{}, err
	}
	if cfg.BalanceCacheTTL, err = durationEnv("BALANCE_CACHE_TTL_SECONDS", "BALANCE_CACHE_TTL", cfg.BalanceCacheTTL); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownPeriod, err = durationEnv("SHUTDOWN_TIMEOUT_SECONDS", "SHUTDOWN_TIMEOUT", cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// durationEnv reads a duration from either a whole-seconds variable or a
// Go duration string variable, in that order of precedence.
func durationEnv(secondsVar, durationVar string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsVar, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(durationVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationVar, err)
		}
		return d, nil
	}
	return fallback, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
