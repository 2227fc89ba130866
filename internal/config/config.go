package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Port        string
	Host        string
	DataDir     string

	// Shared secret required on the cron trigger endpoint
	CronSecret string

	ExtractorAPIURL string
	ExtractorAPIKey string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	// Zero disables the internal scheduler; the batch then only runs when
	// the external trigger calls the cron endpoint.
	CheckInterval time.Duration
}

func Load() (*Config, error) {
	// Load .env file if exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		Environment:     getEnv("ENVIRONMENT", "development"),
		Port:            getEnv("PORT", "8080"),
		Host:            getEnv("HOST", "0.0.0.0"),
		DataDir:         getEnv("DATA_DIR", "./data"),
		CronSecret:      getEnv("CRON_SECRET", ""),
		ExtractorAPIURL: getEnv("EXTRACTOR_API_URL", "https://api.firecrawl.dev"),
		ExtractorAPIKey: getEnv("EXTRACTOR_API_KEY", ""),
		SMTPHost:        getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPUser:        getEnv("SMTP_USER", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:        getEnv("SMTP_FROM", "PriceWatch <noreply@example.com>"),
	}

	// Parse integer values
	if port := getEnv("SMTP_PORT", "587"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
		}
		cfg.SMTPPort = p
	}

	// Parse duration
	if interval := getEnv("CHECK_INTERVAL", "0"); interval != "" && interval != "0" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return nil, fmt.Errorf("invalid CHECK_INTERVAL: %w", err)
		}
		cfg.CheckInterval = d
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
