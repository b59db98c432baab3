package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config carries every environment-supplied setting the service needs.
type Config struct {
	Env  string
	Port int

	DatabaseURL string

	JWTSecret string
	JWTExpiry time.Duration

	StripeSecretKey     string
	StripeWebhookSecret string

	FirebaseProjectID       string
	FirebaseCredentialsJSON string

	CommissionRate float64
	PushTimeout    time.Duration
}

// Load reads configuration from the environment, applying defaults for
// everything that is safe to default.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("PORT", 3000)
	v.SetDefault("JWT_EXPIRES_HOURS", 168)
	v.SetDefault("COMMISSION_RATE", 0.15)
	v.SetDefault("PUSH_TIMEOUT_SECONDS", 5)

	cfg := Config{
		Env:                     v.GetString("ENV"),
		Port:                    v.GetInt("PORT"),
		DatabaseURL:             v.GetString("DATABASE_URL"),
		JWTSecret:               v.GetString("JWT_SECRET"),
		JWTExpiry:               time.Duration(v.GetInt("JWT_EXPIRES_HOURS")) * time.Hour,
		StripeSecretKey:         v.GetString("STRIPE_SECRET_KEY"),
		StripeWebhookSecret:     v.GetString("STRIPE_WEBHOOK_SECRET"),
		FirebaseProjectID:       v.GetString("FIREBASE_PROJECT_ID"),
		FirebaseCredentialsJSON: v.GetString("FIREBASE_CREDENTIALS_JSON"),
		CommissionRate:          v.GetFloat64("COMMISSION_RATE"),
		PushTimeout:             time.Duration(v.GetInt("PUSH_TIMEOUT_SECONDS")) * time.Second,
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("config: DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("config: JWT_SECRET is required")
	}
	if cfg.CommissionRate <= 0 || cfg.CommissionRate >= 1 {
		return Config{}, fmt.Errorf("config: COMMISSION_RATE must be between 0 and 1")
	}

	return cfg, nil
}
