package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var ErrEmptyEnvironmentVariable = errors.New("empty environment variable")

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Twilio   TwilioConfig
	OpenAI   OpenAIConfig
	Dispatch DispatchConfig
	Server   ServerConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Username string
	Password string
	Name     string
}

// TwilioConfig holds Twilio account credentials and the outbound caller number
type TwilioConfig struct {
	AccountSID  string
	AuthToken   string
	PhoneNumber string
}

// OpenAIConfig holds the realtime speech endpoint credentials
type OpenAIConfig struct {
	APIKey string
}

// DispatchConfig holds the scheduled-call dispatch loop settings
type DispatchConfig struct {
	Interval time.Duration
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int
	// PublicHost is the externally reachable host Twilio uses for webhooks
	// and the media-stream websocket (e.g. an ngrok or load-balancer host).
	PublicHost string
}

// Load reads and validates all required environment variables
func Load() (*Config, error) {
	// Load env.local in non-production environments
	if os.Getenv("GO_ENV") != "production" {
		if err := godotenv.Load("env.local"); err != nil {
			return nil, fmt.Errorf("failed to load env.local: %w", err)
		}
	}

	cfg := &Config{}

	// Database configuration
	var err error
	if cfg.Database.Host, err = requireEnv("DB_HOST"); err != nil {
		return nil, err
	}
	if cfg.Database.Username, err = requireEnv("DB_USERNAME"); err != nil {
		return nil, err
	}
	if cfg.Database.Password, err = requireEnv("DB_PASSWORD"); err != nil {
		return nil, err
	}
	if cfg.Database.Name, err = requireEnv("DB_NAME"); err != nil {
		return nil, err
	}

	// Twilio configuration
	if cfg.Twilio.AccountSID, err = requireEnv("TWILIO_ACCOUNT_SID"); err != nil {
		return nil, err
	}
	if cfg.Twilio.AuthToken, err = requireEnv("TWILIO_AUTH_TOKEN"); err != nil {
		return nil, err
	}
	if cfg.Twilio.PhoneNumber, err = requireEnv("TWILIO_PHONE_NUMBER"); err != nil {
		return nil, err
	}

	// OpenAI configuration
	if cfg.OpenAI.APIKey, err = requireEnv("OPENAI_API_KEY"); err != nil {
		return nil, err
	}

	// Dispatch loop configuration
	intervalSeconds := getEnvWithDefault("DISPATCH_INTERVAL_SECONDS", "60")
	seconds, err := strconv.Atoi(intervalSeconds)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DISPATCH_INTERVAL_SECONDS: %w", err)
	}
	cfg.Dispatch.Interval = time.Duration(seconds) * time.Second

	// Server configuration
	serverPort, err := requireEnv("SERVER_PORT")
	if err != nil {
		return nil, err
	}
	cfg.Server.Port, err = strconv.Atoi(serverPort)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SERVER_PORT: %w", err)
	}
	if cfg.Server.PublicHost, err = requireEnv("PUBLIC_HOST"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s",
		c.Username, c.Password, c.Host, c.Name)
}

// requireEnv retrieves an environment variable or returns an error if empty
func requireEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s is not set: %w", key, ErrEmptyEnvironmentVariable)
	}
	return value, nil
}

// getEnvWithDefault retrieves an environment variable or returns a default value
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
