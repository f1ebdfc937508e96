package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config represents the main application configuration
type Config struct {
	DataDir     string           `json:"data_dir"`
	RulesPath   string           `json:"rules_path"`
	ServerPort  int              `json:"server_port"`
	Auth        AuthConfig       `json:"auth"`
	AIProviders AIProviderConfig `json:"ai_providers"`
	Embedding   EmbeddingConfig  `json:"embedding"`
	Events      EventsConfig     `json:"events"`
	Advisory    AdvisoryConfig   `json:"advisory"`
	JobWorkers  int              `json:"job_workers"`
}

// AuthConfig holds token and session secrets. Empty secrets disable
// authentication on the API.
type AuthConfig struct {
	JWTSecret  string `json:"jwt_secret"`
	SessionKey string `json:"session_key"`
}

// AIProviderConfig defines the configuration for generative fix providers
type AIProviderConfig struct {
	Cerebras ProviderCredentials `json:"cerebras"`
	Gemini   ProviderCredentials `json:"gemini"`

	FixProvider         string `json:"fix_provider"`
	EnableGenerativeFix bool   `json:"enable_generative_fix"`
}

// ProviderCredentials represents credentials for an AI provider
type ProviderCredentials struct {
	APIKey    string `json:"api_key"`
	Endpoint  string `json:"endpoint"`
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
}

// EmbeddingConfig represents configuration for the embedding backend
type EmbeddingConfig struct {
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"api_key"`
	UseLocal bool   `json:"use_local"`
}

// EventsConfig represents configuration for the Kafka event producer
type EventsConfig struct {
	Enable  bool     `json:"enable"`
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic"`
}

// AdvisoryConfig represents configuration for the remote advisory feed
type AdvisoryConfig struct {
	URL            string        `json:"url"`
	UpdateInterval time.Duration `json:"update_interval"`
}

// Load loads configuration from environment variables
func Load() *Config {
	dataDir := getEnv("DATA_DIR", ".codeguardian")

	return &Config{
		DataDir:    dataDir,
		RulesPath:  getEnv("RULES_PATH", filepath.Join(dataDir, "rules", "detection_rules.json")),
		ServerPort: getEnvInt("SERVER_PORT", 8080),
		Auth: AuthConfig{
			JWTSecret:  getEnv("JWT_SECRET", ""),
			SessionKey: getEnv("SESSION_KEY", ""),
		},
		AIProviders: AIProviderConfig{
			Cerebras: ProviderCredentials{
				APIKey:    getEnv("CEREBRAS_API_KEY", ""),
				Endpoint:  getEnv("CEREBRAS_ENDPOINT", "https://api.cerebras.ai/v1"),
				Model:     getEnv("CEREBRAS_MODEL", "llama3.3-70b"),
				MaxTokens: getEnvInt("CEREBRAS_MAX_TOKENS", 2048),
			},
			Gemini: ProviderCredentials{
				APIKey:    getEnv("GEMINI_API_KEY", ""),
				Endpoint:  getEnv("GEMINI_ENDPOINT", "https://generativelanguage.googleapis.com/v1"),
				Model:     getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
				MaxTokens: getEnvInt("GEMINI_MAX_TOKENS", 2048),
			},
			FixProvider:         getEnv("FIX_PROVIDER", "cerebras"),
			EnableGenerativeFix: getEnvBool("GENERATIVE_FIX_ENABLE", false),
		},
		Embedding: EmbeddingConfig{
			Endpoint: getEnv("EMBEDDING_ENDPOINT", "https://embeddings.knirv.com"),
			APIKey:   getEnv("EMBEDDING_API_KEY", ""),
			UseLocal: getEnvBool("USE_LOCAL_EMBEDDINGS", false),
		},
		Events: EventsConfig{
			Enable:  getEnvBool("KAFKA_ENABLE", false),
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			Topic:   getEnv("KAFKA_TOPIC", "codeguardian-events"),
		},
		Advisory: AdvisoryConfig{
			URL:            getEnv("ADVISORY_URL", ""),
			UpdateInterval: time.Duration(getEnvInt("ADVISORY_INTERVAL_HOURS", 24)) * time.Hour,
		},
		JobWorkers: getEnvInt("JOB_WORKERS", 5),
	}
}

// Validate checks the configuration for values that would break startup
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("server_port must be between 1 and 65535")
	}

	if c.AIProviders.EnableGenerativeFix {
		hasAPIKey := c.AIProviders.Cerebras.APIKey != "" ||
			c.AIProviders.Gemini.APIKey != ""
		if !hasAPIKey {
			return fmt.Errorf("generative fixes enabled but no AI provider API key configured")
		}

		validProviders := map[string]bool{
			"cerebras": true,
			"gemini":   true,
		}
		if !validProviders[c.AIProviders.FixProvider] {
			return fmt.Errorf("invalid fix_provider: %s", c.AIProviders.FixProvider)
		}
	}

	if c.Events.Enable && len(c.Events.Brokers) == 0 {
		return fmt.Errorf("kafka enabled but no brokers configured")
	}

	if c.JobWorkers < 1 {
		return fmt.Errorf("job_workers must be at least 1")
	}

	return nil
}

// getEnv retrieves environment variable with fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool retrieves boolean environment variable with fallback
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvInt retrieves integer environment variable with fallback
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
