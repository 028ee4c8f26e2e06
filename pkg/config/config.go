package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port string
	Env  string

	// Database configuration
	DatabaseURL string

	// Redis configuration
	RedisURL      string
	RedisPassword string

	// JWT configuration
	JWTSecret                string
	AccessTokenExpireMinutes int

	// Bootstrap admin credentials (optional; used by the seed step)
	AdminEmail    string
	AdminPassword string

	// Treasury configuration
	ReserveInitialAmount decimal.Decimal
	AdminFundingCeiling  decimal.Decimal

	// Fund-engine operation deadline
	OperationTimeout time.Duration

	// Reconciliation worker
	ReconciliationInterval time.Duration

	// CORS
	AllowedOrigins []string

	// KYC document intake, consumed by the external document service
	KYCDocumentUploadDir  string
	MaxFileSize           int64
	AllowedFileExtensions []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:                     getEnv("PORT", "8080"),
		Env:                      getEnv("ENV", "development"),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		RedisURL:                 getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword:            getEnv("REDIS_PASSWORD", ""),
		JWTSecret:                getEnv("JWT_SECRET", ""),
		AccessTokenExpireMinutes: getEnvAsInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30),
		AdminEmail:               getEnv("ADMIN_EMAIL", ""),
		AdminPassword:            getEnv("ADMIN_PASSWORD", ""),
		ReserveInitialAmount:     getEnvAsDecimal("RESERVE_INITIAL_AMOUNT", decimal.NewFromInt(10_000_000)),
		AdminFundingCeiling:      getEnvAsDecimal("ADMIN_FUNDING_CEILING", decimal.NewFromInt(1_000_000)),
		OperationTimeout:         getEnvAsDuration("OPERATION_TIMEOUT", 5*time.Second),
		ReconciliationInterval:   getEnvAsDuration("RECONCILIATION_INTERVAL", 15*time.Minute),
		AllowedOrigins:           getEnvAsList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		KYCDocumentUploadDir:     getEnv("KYC_DOCUMENT_UPLOAD_DIR", "uploads/kyc_documents"),
		MaxFileSize:              int64(getEnvAsInt("MAX_FILE_SIZE", 10*1024*1024)),
		AllowedFileExtensions:    getEnvAsList("ALLOWED_FILE_EXTENSIONS", []string{".pdf", ".jpg", ".jpeg", ".png"}),
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures all required configuration is present
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}

	if !c.ReserveInitialAmount.IsPositive() {
		return fmt.Errorf("RESERVE_INITIAL_AMOUNT must be positive")
	}

	if !c.AdminFundingCeiling.IsPositive() {
		return fmt.Errorf("ADMIN_FUNDING_CEILING must be positive")
	}

	if c.OperationTimeout <= 0 {
		return fmt.Errorf("OPERATION_TIMEOUT must be positive")
	}

	if c.ReconciliationInterval <= 0 {
		return fmt.Errorf("RECONCILIATION_INTERVAL must be positive")
	}

	// Bootstrap credentials travel together.
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration gets an environment variable as a time.Duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsDecimal gets an environment variable as a decimal with a default value
func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsList gets a comma-separated environment variable with a default value
func getEnvAsList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
