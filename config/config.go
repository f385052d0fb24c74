package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	DatabaseURL string
	Port        string
	GoEnv       string
	LogLevel    string
	SiteURL     string

	Auth0Domain   string
	Auth0Audience string

	AWSRegion          string
	AWSS3Bucket        string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	// AWSS3PublicBaseURL overrides the bucket URL used to build public object links (CDN, minio).
	AWSS3PublicBaseURL string

	StripeSecretKey     string
	StripeWebhookSecret string
	StripeSuccessURL    string
	StripeCancelURL     string

	SquareAccessToken         string
	SquareLocationID          string
	SquareEnvironment         string
	SquareWebhookSignatureKey string
	SquareWebhookURL          string
	SquarePlanVariationID     string

	ResendAPIKey   string
	EmailFrom      string
	AdminEmail     string
	EmailQueueSize int
	EmailWorkers   int

	CORSAllowedOrigins []string
}

// Load loads the configuration from environment variables
// It automatically determines which .env file to load based on GO_ENV
func Load() (*Config, error) {
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	envFile := fmt.Sprintf(".env.%s", env)
	if err := godotenv.Load(envFile); err != nil {
		if err := godotenv.Load(); err != nil {
			// In production environment variables are set directly
			log.Printf("No .env file found, using system environment variables")
		}
	} else {
		log.Printf("Loaded configuration from %s", envFile)
	}

	siteURL := strings.TrimRight(getEnv("SITE_URL", "http://localhost:3000"), "/")

	config := &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		Port:        getEnv("PORT", "8080"),
		GoEnv:       getEnv("GO_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		SiteURL:     siteURL,

		Auth0Domain:   getEnv("AUTH0_DOMAIN", ""),
		Auth0Audience: getEnv("AUTH0_AUDIENCE", ""),

		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		AWSS3Bucket:        getEnv("AWS_S3_BUCKET", ""),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSS3PublicBaseURL: strings.TrimRight(getEnv("AWS_S3_PUBLIC_BASE_URL", ""), "/"),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripeSuccessURL:    getEnv("STRIPE_SUCCESS_URL", siteURL+"/checkout/success?session_id={CHECKOUT_SESSION_ID}"),
		StripeCancelURL:     getEnv("STRIPE_CANCEL_URL", siteURL+"/checkout"),

		SquareAccessToken:         getEnv("SQUARE_ACCESS_TOKEN", ""),
		SquareLocationID:          getEnv("SQUARE_LOCATION_ID", ""),
		SquareEnvironment:         getEnv("SQUARE_ENVIRONMENT", "sandbox"),
		SquareWebhookSignatureKey: getEnv("SQUARE_WEBHOOK_SIGNATURE_KEY", ""),
		SquareWebhookURL:          getEnv("SQUARE_WEBHOOK_URL", ""),
		SquarePlanVariationID:     getEnv("SQUARE_PLAN_VARIATION_ID", ""),

		ResendAPIKey:   getEnv("RESEND_API_KEY", ""),
		EmailFrom:      getEnv("EMAIL_FROM", "Memorial QR <noreply@memorialqr.com>"),
		AdminEmail:     getEnv("ADMIN_EMAIL", ""),
		EmailQueueSize: getEnvInt("EMAIL_QUEUE_SIZE", 100),
		EmailWorkers:   getEnvInt("EMAIL_WORKERS", 2),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{siteURL}),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks that all required configuration values are set
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.EmailQueueSize <= 0 {
		return fmt.Errorf("EMAIL_QUEUE_SIZE must be positive")
	}
	if c.EmailWorkers <= 0 {
		return fmt.Errorf("EMAIL_WORKERS must be positive")
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

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// SquareBaseURL returns the Square Connect API root for the configured environment
func (c *Config) SquareBaseURL() string {
	if c.SquareEnvironment == "production" {
		return "https://connect.squareup.com"
	}
	return "https://connect.squareupsandbox.com"
}

// S3PublicBaseURL returns the prefix public object URLs are built from
func (c *Config) S3PublicBaseURL() string {
	if c.AWSS3PublicBaseURL != "" {
		return c.AWSS3PublicBaseURL
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", c.AWSS3Bucket, c.AWSRegion)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid integer for %s, using default %d", key, defaultValue)
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty entries
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
