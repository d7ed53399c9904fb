package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env      string // development | production
	HTTPAddr string
	BaseURL  string

	DBDSN string

	JWT   JWTConfig
	SMTP  SMTPConfig
	Card  CardConfig
	Mpesa MpesaConfig
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

type SMTPConfig struct {
	Host          string
	Port          string
	User          string
	Pass          string
	TLSMode       string // "", "tls", "starttls"
	SkipVerifyTLS bool
	FromAddr      string
	FromName      string
}

type CardConfig struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
}

type MpesaConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
}

func Load() (Config, error) {
	cfg := Config{
		Env:      envOr("APP_ENV", "development"),
		HTTPAddr: ":" + envOr("PORT", "8080"),
		BaseURL:  envOr("BASE_URL", "http://localhost:8080"),
		DBDSN:    os.Getenv("DB_DSN"),
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
			TTL:    durationOr("JWT_TTL", 24*time.Hour),
		},
		SMTP: SMTPConfig{
			Host:          envOr("SMTP_HOST", "localhost"),
			Port:          envOr("SMTP_PORT", "1025"),
			User:          os.Getenv("SMTP_USER"),
			Pass:          os.Getenv("SMTP_PASS"),
			TLSMode:       os.Getenv("SMTP_TLS_MODE"),
			SkipVerifyTLS: boolOr("SMTP_SKIP_VERIFY_TLS", false),
			FromAddr:      envOr("MAIL_FROM_ADDR", "no-reply@safarifleet.local"),
			FromName:      envOr("MAIL_FROM_NAME", "SafariFleet"),
		},
		Card: CardConfig{
			BaseURL:       envOr("CARD_API_BASE_URL", "https://api.cardprocessor.example"),
			SecretKey:     os.Getenv("CARD_SECRET_KEY"),
			WebhookSecret: os.Getenv("CARD_WEBHOOK_SECRET"),
		},
		Mpesa: MpesaConfig{
			BaseURL:        envOr("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke"),
			ConsumerKey:    os.Getenv("MPESA_CONSUMER_KEY"),
			ConsumerSecret: os.Getenv("MPESA_CONSUMER_SECRET"),
			ShortCode:      os.Getenv("MPESA_SHORTCODE"),
			Passkey:        os.Getenv("MPESA_PASSKEY"),
			CallbackURL:    os.Getenv("MPESA_CALLBACK_URL"),
		},
	}

	if cfg.DBDSN == "" {
		return Config{}, fmt.Errorf("DB_DSN is required")
	}
	if cfg.JWT.Secret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	return cfg, nil
}

func (c Config) IsProduction() bool { return c.Env == "production" }

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func boolOr(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func durationOr(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
