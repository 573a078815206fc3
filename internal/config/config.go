// Package config loads process configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration. It is loaded once at startup;
// there is no runtime reconfiguration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	LogLevel    string

	DBType     string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateLimit RateLimitConfig

	Stripe StripeConfig

	// TrialDocumentLimit bounds document processing while an organization is
	// in trial, independent of its plan.
	TrialDocumentLimit int64
}

// RateLimitConfig bounds billing mutations and usage ingest per organization.
// Disabled unless a redis address is configured.
type RateLimitConfig struct {
	Enabled bool

	UsageRate  float64
	UsageBurst int

	BillingRate  float64
	BillingBurst int

	TransitionLockTTLSeconds int
}

// StripeConfig carries billing provider credentials and plan price bindings.
type StripeConfig struct {
	SecretKey          string
	StarterPriceID     string
	ProPriceID         string
	CheckoutSuccessURL string
	CheckoutCancelURL  string
	PortalReturnURL    string
}

// Load loads configuration from environment variables and an optional .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "docuflow"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		LogLevel:    getenv("LOG_LEVEL", "info"),

		DBType:     getenv("DATABASE_TYPE", "postgres"),
		DBHost:     getenv("DATABASE_HOST", "localhost"),
		DBPort:     getenv("DATABASE_PORT", "5432"),
		DBName:     getenv("DATABASE_NAME", "docuflow"),
		DBUser:     getenv("DATABASE_USER", "postgres"),
		DBPassword: getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:  getenv("DATABASE_SSLMODE", "disable"),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
		RedisDB:       int(getenvInt64("REDIS_DB", 0)),

		RateLimit: RateLimitConfig{
			Enabled:                  getenvBool("RATE_LIMIT_ENABLED", false),
			UsageRate:                getenvFloat("RATE_LIMIT_USAGE_RATE", 50),
			UsageBurst:               int(getenvInt64("RATE_LIMIT_USAGE_BURST", 100)),
			BillingRate:              getenvFloat("RATE_LIMIT_BILLING_RATE", 1),
			BillingBurst:             int(getenvInt64("RATE_LIMIT_BILLING_BURST", 5)),
			TransitionLockTTLSeconds: int(getenvInt64("RATE_LIMIT_TRANSITION_LOCK_TTL_SECONDS", 30)),
		},

		Stripe: StripeConfig{
			SecretKey:          strings.TrimSpace(getenv("STRIPE_SECRET_KEY", "")),
			StarterPriceID:     strings.TrimSpace(getenv("STRIPE_STARTER_PRICE_ID", "")),
			ProPriceID:         strings.TrimSpace(getenv("STRIPE_PRO_PRICE_ID", "")),
			CheckoutSuccessURL: getenv("CHECKOUT_SUCCESS_URL", "http://localhost:3000/billing?checkout=success"),
			CheckoutCancelURL:  getenv("CHECKOUT_CANCEL_URL", "http://localhost:3000/billing?checkout=canceled"),
			PortalReturnURL:    getenv("PORTAL_RETURN_URL", "http://localhost:3000/billing"),
		},

		TrialDocumentLimit: getenvInt64("TRIAL_DOCUMENT_LIMIT", 25),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}
