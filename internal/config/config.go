package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

var ErrEmptyEnvironmentVariable = errors.New("empty environment variable")

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Services  ServicesConfig
	Voice     VoiceConfig
	Recording RecordingConfig
	Server    ServerConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Username string
	Password string
	Name     string
}

// ServicesConfig holds external service API keys and configuration
type ServicesConfig struct {
	OpenAIAPIKey   string
	GoogleAIAPIKey string
	AgentProvider  string // "openai" (default) or "gemini"
	WebAppURI      string
}

// VoiceConfig holds telephony and speech settings
type VoiceConfig struct {
	// WebhookBaseURL is the public HTTPS base Twilio posts webhooks to.
	WebhookBaseURL string
	// StreamWSSURL is the public wss:// endpoint for Media Streams.
	StreamWSSURL string
	TTSVoice     string
	TwimlVoice   string
}

// RecordingConfig holds call recording persistence settings
type RecordingConfig struct {
	Dir string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int
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

	// Services configuration
	if cfg.Services.OpenAIAPIKey, err = requireEnv("OPENAI_API_KEY"); err != nil {
		return nil, err
	}
	cfg.Services.GoogleAIAPIKey = os.Getenv("GOOGLE_AI_API_KEY")
	cfg.Services.AgentProvider = getEnvWithDefault("AGENT_PROVIDER", "openai")
	cfg.Services.WebAppURI = getEnvWithDefault("WEBAPP_URI", "http://localhost:3000")

	// Voice configuration
	if cfg.Voice.WebhookBaseURL, err = requireEnv("WEBHOOK_BASE_URL"); err != nil {
		return nil, err
	}
	if cfg.Voice.StreamWSSURL, err = requireEnv("STREAM_WSS_URL"); err != nil {
		return nil, err
	}
	cfg.Voice.TTSVoice = getEnvWithDefault("TTS_VOICE", "fable")
	cfg.Voice.TwimlVoice = getEnvWithDefault("TWIML_VOICE", "Polly.Amy")

	// Recording configuration
	cfg.Recording.Dir = getEnvWithDefault("RECORDINGS_DIR", "recordings")

	// Server configuration
	serverPort, err := requireEnv("SERVER_PORT")
	if err != nil {
		return nil, err
	}
	cfg.Server.Port, err = strconv.Atoi(serverPort)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SERVER_PORT: %w", err)
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
