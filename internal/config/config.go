/**
 * @description
 * This file handles the configuration management for the TherapAI backend.
 * It uses the 'viper' library to load configuration from environment variables,
 * providing a centralized and consistent way to manage application settings.
 */
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`

	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	SupabaseJWTSecret string `mapstructure:"SUPABASE_JWT_SECRET"`

	// Server-side vendor keys. Users may override per request with their own keys.
	GeminiAPIKey     string `mapstructure:"GEMINI_API_KEY"`
	ElevenLabsAPIKey string `mapstructure:"ELEVENLABS_API_KEY"`
	TavusAPIKey      string `mapstructure:"TAVUS_API_KEY"`

	RevenueCatAPIKey        string `mapstructure:"REVENUECAT_API_KEY"`
	RevenueCatWebhookSecret string `mapstructure:"REVENUECAT_WEBHOOK_SECRET"`

	RabbitMQURL string `mapstructure:"RABBITMQ_URL"`
	RedisURL    string `mapstructure:"REDIS_URL"`

	S3Endpoint      string `mapstructure:"S3_ENDPOINT"`
	S3Region        string `mapstructure:"S3_REGION"`
	S3AccessKey     string `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey     string `mapstructure:"S3_SECRET_KEY"`
	S3Bucket        string `mapstructure:"S3_BUCKET"`
	S3PublicBaseURL string `mapstructure:"S3_PUBLIC_BASE_URL"`

	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (config Config, err error) {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("ALLOWED_ORIGINS", "*")
	viper.AutomaticEnv()

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	for _, key := range []string{
		"SERVER_PORT",
		"DATABASE_URL",
		"SUPABASE_JWT_SECRET",
		"GEMINI_API_KEY",
		"ELEVENLABS_API_KEY",
		"TAVUS_API_KEY",
		"REVENUECAT_API_KEY",
		"REVENUECAT_WEBHOOK_SECRET",
		"RABBITMQ_URL",
		"REDIS_URL",
		"S3_ENDPOINT",
		"S3_REGION",
		"S3_ACCESS_KEY",
		"S3_SECRET_KEY",
		"S3_BUCKET",
		"S3_PUBLIC_BASE_URL",
		"ALLOWED_ORIGINS",
	} {
		_ = viper.BindEnv(key)
	}

	err = viper.Unmarshal(&config)
	return
}

// Validate checks that the configuration required to serve requests is present.
// Vendor keys are intentionally optional: users can supply their own keys per
// request, and routes that need a missing server key fail at call time instead.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.SupabaseJWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}
	return nil
}

// S3Configured reports whether all settings needed for media uploads are set.
func (c Config) S3Configured() bool {
	return c.S3Bucket != "" && c.S3Region != "" && c.S3AccessKey != "" && c.S3SecretKey != "" && c.S3PublicBaseURL != ""
}
