package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Risk     RiskConfig
	LLM      LLMConfig
	Slack    SlackConfig
	Twilio   TwilioConfig
	Sentry   SentryConfig
	Tracing  TracingConfig
	Vault    VaultConfig
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

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret     string
	Expiration int // in hours
}

// RiskConfig holds risk screening configuration
type RiskConfig struct {
	ScreeningEnabled   bool
	AIScreeningEnabled bool
	ThresholdSoft      int
	ThresholdHard      int

	// TorExitIPs lists known Tor exit addresses checked by the IP analyzer.
	TorExitIPs []string
	// GeoTable maps CIDR prefixes to ISO country codes for geo mismatch
	// checks, e.g. "41.0.0.0/8=ZA,102.0.0.0/8=NG".
	GeoTable map[string]string
}

// LLMConfig holds configuration for the external model used by the risk advisor.
// An empty APIKey is not an error; the advisor falls back to rule-based scoring.
type LLMConfig struct {
	APIKey         string
	APIURL         string
	Model          string
	TimeoutSeconds int
	MaxTokens      int
}

// SlackConfig holds alerting webhook configuration
type SlackConfig struct {
	WebhookURL          string
	Channel             string
	SendLowRiskBookings bool
}

// TwilioConfig holds Twilio SMS configuration
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	Enabled    bool
}

// SentryConfig holds Sentry error reporting configuration
type SentryConfig struct {
	DSN     string
	Enabled bool
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Endpoint string
	Enabled  bool
}

// VaultConfig holds HashiCorp Vault configuration
type VaultConfig struct {
	Address string
	Token   string
	Enabled bool
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
			DBName:   getEnv("DB_NAME", "venuebooking"),
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
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			Expiration: getEnvAsInt("JWT_EXPIRATION", 24),
		},
		Risk: RiskConfig{
			ScreeningEnabled:   getEnvAsBool("RISK_SCREENING_ENABLED", true),
			AIScreeningEnabled: getEnvAsBool("AI_SCREENING_ENABLED", false),
			ThresholdSoft:      getEnvAsInt("RISK_THRESHOLD_SOFT", 30),
			ThresholdHard:      getEnvAsInt("RISK_THRESHOLD_HARD", 70),
			TorExitIPs:         getEnvAsSlice("RISK_TOR_EXIT_IPS"),
			GeoTable:           getEnvAsPairs("RISK_GEO_TABLE"),
		},
		LLM: LLMConfig{
			APIKey:         getEnv("LLM_API_KEY", ""),
			APIURL:         getEnv("LLM_API_URL", "https://api.openai.com/v1/chat/completions"),
			Model:          getEnv("LLM_MODEL", "gpt-4o-mini"),
			TimeoutSeconds: getEnvAsInt("LLM_TIMEOUT_SECONDS", 10),
			MaxTokens:      getEnvAsInt("LLM_MAX_TOKENS", 500),
		},
		Slack: SlackConfig{
			WebhookURL:          getEnv("SLACK_WEBHOOK_URL", ""),
			Channel:             getEnv("SLACK_CHANNEL", "#booking-risk"),
			SendLowRiskBookings: getEnvAsBool("SEND_LOW_RISK_BOOKINGS_TO_SLACK", false),
		},
		Twilio: TwilioConfig{
			AccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
			FromNumber: getEnv("TWILIO_FROM_NUMBER", ""),
			Enabled:    getEnvAsBool("TWILIO_ENABLED", false),
		},
		Sentry: SentryConfig{
			DSN:     getEnv("SENTRY_DSN", ""),
			Enabled: getEnvAsBool("SENTRY_ENABLED", false),
		},
		Tracing: TracingConfig{
			Endpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Enabled:  getEnvAsBool("TRACING_ENABLED", false),
		},
		Vault: VaultConfig{
			Address: getEnv("VAULT_ADDR", ""),
			Token:   getEnv("VAULT_TOKEN", ""),
			Enabled: getEnvAsBool("VAULT_ENABLED", false),
		},
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

// URL returns the database connection string in URL form (used by migrations)
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
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

// getEnvAsSlice reads a comma-separated list. Blank entries are dropped.
func getEnvAsSlice(key string) []string {
	var values []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}

// getEnvAsPairs reads comma-separated key=value pairs into a map. Entries
// without a value are dropped.
func getEnvAsPairs(key string) map[string]string {
	pairs := make(map[string]string)
	for _, part := range getEnvAsSlice(key) {
		k, v, ok := strings.Cut(part, "=")
		if !ok || k == "" || v == "" {
			continue
		}
		pairs[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return pairs
}
