package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "PHISHING_DETECTOR"

// DefaultInstructions is the system prompt sent to providers that accept one
const DefaultInstructions = `You are an email security analyst. You receive the sender, recipient, subject and body of one email message.
Decide whether the message is phishing or otherwise malicious spam.
Reply with a single JSON object and nothing else: {"spam": <true|false>, "details": "<one or two sentences explaining the decision>"}.`

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance from defaults, an optional
// config file, a .env file and the environment
func New() (*Config, error) {
	return NewFromFile("")
}

// NewFromFile is New with an explicit config file path; an empty path searches the default locations
func NewFromFile(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := NewEmptyViper()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/phishing-detector/")
		v.AddConfigPath("$HOME/.phishing-detector")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults and environment bindings
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// bare provider variables are honoured alongside the prefixed ones
	_ = v.BindEnv("mistral.api_key", envPrefix+"_MISTRAL_API_KEY", "MISTRAL_API_KEY")
	_ = v.BindEnv("openai.api_key", envPrefix+"_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("gemini.api_key", envPrefix+"_GEMINI_API_KEY", "GEMINI_API_KEY")

	return v
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// HTTP server
	v.SetDefault("server.listen_address", ":8000")
	v.SetDefault("server.max_upload_bytes", 10<<20)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.history_limit", 50)
	v.SetDefault("server.gin_mode", "release")

	// SMTP intake
	v.SetDefault("smtp.enabled", false)
	v.SetDefault("smtp.listen_address", "0.0.0.0:10025")
	v.SetDefault("smtp.domain", "localhost")
	v.SetDefault("smtp.max_message_bytes", 10<<20)
	v.SetDefault("smtp.block_suspicious", false)
	v.SetDefault("smtp.headers.status", "X-Phishing-Status")
	v.SetDefault("smtp.headers.reason", "X-Phishing-Reason")
	v.SetDefault("smtp.relay.enabled", false)
	v.SetDefault("smtp.relay.address", "localhost:10026")

	// Completion provider
	v.SetDefault("llm.provider", "mistral")
	v.SetDefault("llm.timeout", "30s")
	v.SetDefault("llm.max_body_size", 0)
	v.SetDefault("llm.instructions", DefaultInstructions)

	v.SetDefault("mistral.api_key", "")
	v.SetDefault("mistral.base_url", "https://api.mistral.ai")
	v.SetDefault("mistral.agent_id", "")

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model_name", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 500)
	v.SetDefault("openai.temperature", 0.1)
	v.SetDefault("openai.top_p", 0.9)

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-1.5-flash")
	v.SetDefault("gemini.max_tokens", 500)
	v.SetDefault("gemini.temperature", 0.1)
	v.SetDefault("gemini.top_p", 0.9)

	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-3-haiku-20240307-v1:0")
	v.SetDefault("bedrock.max_tokens", 500)
	v.SetDefault("bedrock.temperature", 0.1)
	v.SetDefault("bedrock.top_p", 0.9)

	// Verdict cache
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.cleanup_frequency", "1h")
	v.SetDefault("cache.sqlite_path", "/data/verdict_cache.db")
	v.SetDefault("cache.mysql_dsn", "user:password@tcp(localhost:3306)/phishing_detector")

	// Analysis history
	v.SetDefault("store.type", "none")
	v.SetDefault("store.sqlite_path", "/data/analyses.db")
	v.SetDefault("store.mysql_dsn", "user:password@tcp(localhost:3306)/phishing_detector")
	v.SetDefault("store.postgres_dsn", "host=localhost user=postgres dbname=phishing_detector sslmode=disable")
	v.SetDefault("store.debug", false)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Set overrides a configuration value
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetInt64 gets an int64 value from the configuration
func (c *Config) GetInt64(key string) int64 {
	return c.v.GetInt64(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	d, err := time.ParseDuration(c.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
