// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment  string
	Server       ServerConfig
	Database     DatabaseConfig
	JWT          JWTConfig
	AWS          AWSConfig
	Gateway      GatewayConfig
	Integrations IntegrationsConfig
	Email        EmailConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type JWTConfig struct {
	SecretKey      string
	AccessTokenTTL int // in hours
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
}

// GatewayConfig covers the inbound side: the shared webhook secret for
// soft signature verification and the platform fee applied to every
// settlement split. Both are injected, never embedded literals, so they are
// testable and auditable per deployment.
type GatewayConfig struct {
	WebhookSecret      string
	PlatformFeePercent float64
}

// IntegrationsConfig holds the base URLs of the downstream collaborators.
// An empty URL disables that collaborator. TimeoutSeconds bounds every
// outbound call so one slow integration cannot stall the fan-out.
type IntegrationsConfig struct {
	EnrollmentURL   string
	SubscriptionURL string
	PixelURL        string
	AnalyticsURL    string
	AnalyticsKey    string
	PushURL         string
	TimeoutSeconds  int
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	FromEmail    string
	FromName     string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "checkout"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
		},
		JWT: JWTConfig{
			SecretKey:      getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			AccessTokenTTL: getEnvAsInt("JWT_ACCESS_TTL", 24), // 24 hours
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3Bucket:        getEnv("AWS_S3_BUCKET", "checkout-webhook-archive"),
		},
		Gateway: GatewayConfig{
			WebhookSecret:      getEnv("GATEWAY_WEBHOOK_SECRET", ""),
			PlatformFeePercent: getEnvAsFloat("PLATFORM_FEE_PERCENT", 5.0),
		},
		Integrations: IntegrationsConfig{
			EnrollmentURL:   getEnv("ENROLLMENT_SERVICE_URL", ""),
			SubscriptionURL: getEnv("SUBSCRIPTION_SERVICE_URL", ""),
			PixelURL:        getEnv("AD_PIXEL_URL", ""),
			AnalyticsURL:    getEnv("ANALYTICS_SERVICE_URL", ""),
			AnalyticsKey:    getEnv("ANALYTICS_API_KEY", ""),
			PushURL:         getEnv("PUSH_SERVICE_URL", ""),
			TimeoutSeconds:  getEnvAsInt("INTEGRATION_TIMEOUT_SECONDS", 10),
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnv("SMTP_PORT", "587"),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			FromEmail:    getEnv("FROM_EMAIL", "noreply@sellgate.io"),
			FromName:     getEnv("FROM_NAME", "Sellgate"),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == "your-secret-key-change-in-production" && c.Environment == "production" {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	if c.Database.Password == "" && c.Environment == "production" {
		return fmt.Errorf("database password is required in production")
	}

	if c.Gateway.PlatformFeePercent < 0 || c.Gateway.PlatformFeePercent > 100 {
		return fmt.Errorf("platform fee percent must be between 0 and 100")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
