package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	DatabaseURL        string   `env:"DATABASE_URL"`
	Port               string   `env:"PORT" envDefault:"8080"`
	GoEnv              string   `env:"GO_ENV" envDefault:"development"`
	Auth0Domain        string   `env:"AUTH0_DOMAIN"`
	Auth0Audience      string   `env:"AUTH0_AUDIENCE"`
	AWSRegion          string   `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSS3Bucket        string   `env:"AWS_S3_BUCKET"`
	AWSAccessKeyID     string   `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string   `env:"AWS_SECRET_ACCESS_KEY"`
	AWSS3Endpoint      string   `env:"AWS_S3_ENDPOINT"` // S3-compatible stores such as MinIO
	LogLevel           string   `env:"LOG_LEVEL" envDefault:"info"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	UploadDir          string   `env:"UPLOAD_DIR" envDefault:"uploads"`

	// Payment gateway webhook shared secret; required in production, signature check skipped when empty
	PaymentWebhookSecret string `env:"PAYMENT_WEBHOOK_SECRET"`

	// Ordering rules
	PickupMinAdvanceDays     int           `env:"PICKUP_MIN_ADVANCE_DAYS" envDefault:"2"`
	PickupMaxAdvanceDays     int           `env:"PICKUP_MAX_ADVANCE_DAYS" envDefault:"60"`
	DefaultDepositPercentage int           `env:"DEFAULT_DEPOSIT_PERCENTAGE" envDefault:"50"`
	ReturnPartialPercentage  int           `env:"RETURN_PARTIAL_PERCENTAGE" envDefault:"20"`
	OrderLockTimeout         time.Duration `env:"ORDER_LOCK_TIMEOUT" envDefault:"5s"`
}

var appConfig *Config

// Load loads the configuration from environment variables
// It automatically determines which .env file to load based on GO_ENV
func Load() (*Config, error) {
	// Determine which environment file to load
	goEnv := os.Getenv("GO_ENV")
	if goEnv == "" {
		goEnv = "development"
	}

	// Try to load environment-specific file first
	envFile := fmt.Sprintf(".env.%s", goEnv)
	if err := godotenv.Load(envFile); err != nil {
		// If environment-specific file doesn't exist, try .env
		if err := godotenv.Load(); err != nil {
			// In production, environment variables are set directly
			// so it's okay if .env files don't exist
			log.Printf("No .env file found, using system environment variables")
		}
	} else {
		log.Printf("Loaded configuration from %s", envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	appConfig = cfg
	return cfg, nil
}

// Validate checks that all required configuration values are set
func (c *Config) Validate() error {
	if c.DatabaseURL == "" && c.IsProduction() {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.PaymentWebhookSecret == "" && c.IsProduction() {
		return fmt.Errorf("PAYMENT_WEBHOOK_SECRET is required")
	}
	if _, ok := gormLogLevels[strings.ToLower(c.LogLevel)]; !ok && c.LogLevel != "" {
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error or silent")
	}
	if c.PickupMinAdvanceDays < 0 {
		return fmt.Errorf("PICKUP_MIN_ADVANCE_DAYS must not be negative")
	}
	if c.PickupMaxAdvanceDays < c.PickupMinAdvanceDays {
		return fmt.Errorf("PICKUP_MAX_ADVANCE_DAYS must be at least PICKUP_MIN_ADVANCE_DAYS")
	}
	if c.DefaultDepositPercentage < 0 || c.DefaultDepositPercentage > 100 {
		return fmt.Errorf("DEFAULT_DEPOSIT_PERCENTAGE must be between 0 and 100")
	}
	if c.ReturnPartialPercentage <= 0 || c.ReturnPartialPercentage > 100 {
		return fmt.Errorf("RETURN_PARTIAL_PERCENTAGE must be between 1 and 100")
	}
	return nil
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// IsTest returns true if the application is running in test mode
func (c *Config) IsTest() bool {
	return c.GoEnv == "test"
}

// UsesS3 reports whether payment proofs go to S3 rather than the local upload directory
func (c *Config) UsesS3() bool {
	return c.AWSS3Bucket != ""
}

// UsesSQLite reports whether the database URL points at a SQLite file or memory database
func (c *Config) UsesSQLite() bool {
	return isSQLiteURL(c.DatabaseURL)
}

// GetConfig returns the loaded configuration, falling back to defaults
func GetConfig() *Config {
	if appConfig == nil {
		cfg := &Config{}
		if err := env.Parse(cfg); err != nil {
			log.Printf("WARN: failed to parse environment, using zero config: %v", err)
		}
		appConfig = cfg
	}
	return appConfig
}

// SetConfig sets the configuration instance (primarily for testing)
func SetConfig(cfg *Config) {
	appConfig = cfg
}

func isSQLiteURL(url string) bool {
	return strings.HasPrefix(url, "sqlite:") || strings.HasPrefix(url, "file:") || url == ":memory:"
}
