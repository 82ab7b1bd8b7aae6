package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	NATS       NATSConfig
	JWT        JWTConfig
	Pricing    PricingConfig
	Policy     PolicyConfig
	Directions DirectionsConfig
	Stripe     StripeConfig
	Twilio     TwilioConfig
	SMTP       SMTPConfig
	Resilience ResilienceConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string
	Environment  string
	ServiceName  string
	ReadTimeout  int
	WriteTimeout int
	CORSOrigins  string // Comma-separated list of allowed origins
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// NATSConfig holds NATS event bus configuration
type NATSConfig struct {
	URL     string
	Enabled bool
}

// JWTConfig holds JWT configuration for the admin surface
type JWTConfig struct {
	Secret     string
	Expiration int // in hours
}

// PricingConfig holds quote composition settings not owned by pricing rules
type PricingConfig struct {
	QuoteTTLMinutes    int
	TaxRatePct         float64
	AirportFee         float64
	ServiceRadiusMiles float64
	Currency           string
}

// QuoteTTL returns the quote validity window
func (c PricingConfig) QuoteTTL() time.Duration {
	if c.QuoteTTLMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.QuoteTTLMinutes) * time.Minute
}

// PolicyConfig holds booking lifecycle policy settings
type PolicyConfig struct {
	ModificationCutoffHours int
	FullRefundHours         float64
	PartialRefundHours      float64
	PartialRefundPct        float64
}

// DirectionsConfig holds distance oracle settings
type DirectionsConfig struct {
	GoogleAPIKey   string
	GoogleBaseURL  string
	TimeoutSeconds int
	AvgSpeedMph    float64 // haversine fallback speed
}

// StripeConfig holds Stripe payment handoff settings
type StripeConfig struct {
	APIKey  string
	Enabled bool
}

// TwilioConfig holds Twilio SMS settings
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	Enabled    bool
}

// SMTPConfig holds email settings
type SMTPConfig struct {
	Host      string
	Port      string
	Username  string
	Password  string
	FromEmail string
	FromName  string
	Enabled   bool
}

// ResilienceConfig groups runtime resilience controls
type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// CircuitBreakerConfig captures breaker tuning for outbound calls
type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	SuccessThreshold int
	TimeoutSeconds   int
	IntervalSeconds  int
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ServiceName:  serviceName,
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 10),
			CORSOrigins:  getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "chauffeur"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns: getEnvAsInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		NATS: NATSConfig{
			URL:     getEnv("NATS_URL", "nats://localhost:4222"),
			Enabled: getEnvAsBool("NATS_ENABLED", false),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			Expiration: getEnvAsInt("JWT_EXPIRATION", 24),
		},
		Pricing: PricingConfig{
			QuoteTTLMinutes:    getEnvAsInt("QUOTE_TTL_MINUTES", 30),
			TaxRatePct:         getEnvAsFloat("TAX_RATE_PCT", 8.5),
			AirportFee:         getEnvAsFloat("AIRPORT_FEE", 10.00),
			ServiceRadiusMiles: getEnvAsFloat("SERVICE_RADIUS_MILES", 150),
			Currency:           getEnv("CURRENCY", "USD"),
		},
		Policy: PolicyConfig{
			ModificationCutoffHours: getEnvAsInt("MODIFICATION_CUTOFF_HOURS", 4),
			FullRefundHours:         getEnvAsFloat("FULL_REFUND_HOURS", 24),
			PartialRefundHours:      getEnvAsFloat("PARTIAL_REFUND_HOURS", 1),
			PartialRefundPct:        getEnvAsFloat("PARTIAL_REFUND_PCT", 50),
		},
		Directions: DirectionsConfig{
			GoogleAPIKey:   getEnv("GOOGLE_MAPS_API_KEY", ""),
			GoogleBaseURL:  getEnv("GOOGLE_DIRECTIONS_BASE_URL", "https://maps.googleapis.com/maps/api"),
			TimeoutSeconds: getEnvAsInt("DIRECTIONS_TIMEOUT_SECONDS", 5),
			AvgSpeedMph:    getEnvAsFloat("DIRECTIONS_AVG_SPEED_MPH", 28),
		},
		Stripe: StripeConfig{
			APIKey:  getEnv("STRIPE_API_KEY", ""),
			Enabled: getEnvAsBool("STRIPE_ENABLED", false),
		},
		Twilio: TwilioConfig{
			AccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
			FromNumber: getEnv("TWILIO_FROM_NUMBER", ""),
			Enabled:    getEnvAsBool("TWILIO_ENABLED", false),
		},
		SMTP: SMTPConfig{
			Host:      getEnv("SMTP_HOST", ""),
			Port:      getEnv("SMTP_PORT", "587"),
			Username:  getEnv("SMTP_USERNAME", ""),
			Password:  getEnv("SMTP_PASSWORD", ""),
			FromEmail: getEnv("SMTP_FROM_EMAIL", "bookings@statelyrides.example"),
			FromName:  getEnv("SMTP_FROM_NAME", "Stately Rides"),
			Enabled:   getEnvAsBool("SMTP_ENABLED", false),
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          getEnvAsBool("CB_ENABLED", true),
				FailureThreshold: getEnvAsInt("CB_FAILURE_THRESHOLD", 5),
				SuccessThreshold: getEnvAsInt("CB_SUCCESS_THRESHOLD", 1),
				TimeoutSeconds:   getEnvAsInt("CB_TIMEOUT_SECONDS", 30),
				IntervalSeconds:  getEnvAsInt("CB_INTERVAL_SECONDS", 60),
			},
		},
	}

	if cfg.Policy.FullRefundHours <= cfg.Policy.PartialRefundHours {
		return nil, fmt.Errorf("FULL_REFUND_HOURS must be greater than PARTIAL_REFUND_HOURS")
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}
