package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Orchestration modes accepted by ORCHESTRATION_MODE.
const (
	OrchestrationPipeline = "pipeline"
	OrchestrationTools    = "tools"
	OrchestrationAuto     = "auto"
)

// Config holds application configuration
type Config struct {
	Port        string
	Env         string
	LogLevel    string
	DatabaseURL string

	RedisAddr      string
	RedisPassword  string
	RedisTLS       bool
	SessionLockTTL time.Duration

	// LLM collaborators
	GeminiAPIKey        string
	GeminiModel         string
	GeminiFallbackModel string
	BedrockModelID      string
	LLMTimeout          time.Duration
	OrchestrationMode   string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	DefaultTimeZone string

	// Google Calendar OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	OAuthSuccessURL    string

	AdminJWTSecret     string
	AdminJWTAudience   string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	// SendGrid Email Configuration
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	SESConfigSet      string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisTLS:       getEnvAsBool("REDIS_TLS", false),
		SessionLockTTL: getEnvAsDuration("SESSION_LOCK_TTL", 30*time.Second),

		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiFallbackModel: getEnv("GEMINI_FALLBACK_MODEL", "gemini-1.5-flash"),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),
		LLMTimeout:          getEnvAsDuration("LLM_TIMEOUT", 8*time.Second),
		OrchestrationMode:   normalizeMode(getEnv("ORCHESTRATION_MODE", OrchestrationAuto)),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		DefaultTimeZone: getEnv("DEFAULT_TIMEZONE", "Asia/Kolkata"),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
		OAuthSuccessURL:    getEnv("OAUTH_SUCCESS_URL", "/"),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		AdminJWTAudience:   getEnv("ADMIN_JWT_AUDIENCE", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 10),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "TherapyMatch"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SESConfigSet:      getEnv("SES_CONFIGURATION_SET", ""),
	}
}

// CalendarOAuthConfigured reports whether therapists can connect Google Calendar.
func (c *Config) CalendarOAuthConfigured() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

func normalizeMode(mode string) string {
	switch m := strings.ToLower(strings.TrimSpace(mode)); m {
	case OrchestrationPipeline, OrchestrationTools:
		return m
	default:
		return OrchestrationAuto
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
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

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
