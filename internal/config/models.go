package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServerConfig represents the configuration of the HTTP intake
type ServerConfig struct {
	ListenAddress  string
	MaxUploadBytes int64
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	HistoryLimit   int
	GinMode        string
}

// SMTPConfig represents the configuration of the SMTP intake
type SMTPConfig struct {
	Enabled         bool
	ListenAddress   string
	Domain          string
	MaxMessageBytes int64
	BlockSuspicious bool
	StatusHeader    string
	ReasonHeader    string
	RelayEnabled    bool
	RelayAddress    string
}

// LLMConfig represents the provider-independent completion settings
type LLMConfig struct {
	Provider     string
	Timeout      time.Duration
	MaxBodySize  int
	Instructions string
}

// MistralConfig represents the configuration for the Mistral agents API
type MistralConfig struct {
	APIKey  string
	BaseURL string
	AgentID string
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// CacheConfig represents the verdict cache configuration
type CacheConfig struct {
	Enabled          bool
	Type             string
	TTL              time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
}

// StoreConfig represents the analysis history configuration
type StoreConfig struct {
	Type        string
	SQLitePath  string
	MySQLDSN    string
	PostgresDSN string
	Debug       bool
}

// durationOr returns the parsed duration, or fallback when the value is invalid.
// Validate reports invalid durations before any of these getters run at startup.
func (c *Config) durationOr(key string, fallback time.Duration) time.Duration {
	d, err := c.GetDuration(key)
	if err != nil {
		return fallback
	}
	return d
}

// GetServer returns the HTTP intake configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		ListenAddress:  c.GetString("server.listen_address"),
		MaxUploadBytes: c.GetInt64("server.max_upload_bytes"),
		ReadTimeout:    c.durationOr("server.read_timeout", 30*time.Second),
		WriteTimeout:   c.durationOr("server.write_timeout", 90*time.Second),
		HistoryLimit:   c.GetInt("server.history_limit"),
		GinMode:        c.GetString("server.gin_mode"),
	}
}

// GetSMTP returns the SMTP intake configuration
func (c *Config) GetSMTP() SMTPConfig {
	return SMTPConfig{
		Enabled:         c.GetBool("smtp.enabled"),
		ListenAddress:   c.GetString("smtp.listen_address"),
		Domain:          c.GetString("smtp.domain"),
		MaxMessageBytes: c.GetInt64("smtp.max_message_bytes"),
		BlockSuspicious: c.GetBool("smtp.block_suspicious"),
		StatusHeader:    c.GetString("smtp.headers.status"),
		ReasonHeader:    c.GetString("smtp.headers.reason"),
		RelayEnabled:    c.GetBool("smtp.relay.enabled"),
		RelayAddress:    c.GetString("smtp.relay.address"),
	}
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider:     strings.ToLower(c.GetString("llm.provider")),
		Timeout:      c.durationOr("llm.timeout", 30*time.Second),
		MaxBodySize:  c.GetInt("llm.max_body_size"),
		Instructions: c.GetString("llm.instructions"),
	}
}

// GetMistral returns the Mistral configuration
func (c *Config) GetMistral() MistralConfig {
	return MistralConfig{
		APIKey:  c.GetString("mistral.api_key"),
		BaseURL: c.GetString("mistral.base_url"),
		AgentID: c.GetString("mistral.agent_id"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		BaseURL:     c.GetString("openai.base_url"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
	}
}

// GetCache returns the verdict cache configuration
func (c *Config) GetCache() CacheConfig {
	return CacheConfig{
		Enabled:          c.GetBool("cache.enabled"),
		Type:             strings.ToLower(c.GetString("cache.type")),
		TTL:              c.durationOr("cache.ttl", 24*time.Hour),
		CleanupFrequency: c.durationOr("cache.cleanup_frequency", time.Hour),
		SQLitePath:       c.GetString("cache.sqlite_path"),
		MySQLDSN:         c.GetString("cache.mysql_dsn"),
	}
}

// GetStore returns the analysis history configuration
func (c *Config) GetStore() StoreConfig {
	return StoreConfig{
		Type:        strings.ToLower(c.GetString("store.type")),
		SQLitePath:  c.GetString("store.sqlite_path"),
		MySQLDSN:    c.GetString("store.mysql_dsn"),
		PostgresDSN: c.GetString("store.postgres_dsn"),
		Debug:       c.GetBool("store.debug"),
	}
}

// Validate checks that the selected provider is usable and that enumerated settings are known
func (c *Config) Validate() error {
	var errs []error

	for _, key := range []string{"server.read_timeout", "server.write_timeout", "llm.timeout", "cache.ttl", "cache.cleanup_frequency"} {
		if _, err := c.GetDuration(key); err != nil {
			errs = append(errs, err)
		}
	}

	switch provider := c.GetLLM().Provider; provider {
	case "mistral":
		m := c.GetMistral()
		if m.APIKey == "" {
			errs = append(errs, errors.New("mistral.api_key is required (set MISTRAL_API_KEY)"))
		}
		if m.AgentID == "" {
			errs = append(errs, errors.New("mistral.agent_id is required"))
		}
	case "openai":
		if c.GetOpenAI().APIKey == "" {
			errs = append(errs, errors.New("openai.api_key is required (set OPENAI_API_KEY)"))
		}
	case "gemini":
		if c.GetGemini().APIKey == "" {
			errs = append(errs, errors.New("gemini.api_key is required (set GEMINI_API_KEY)"))
		}
	case "bedrock":
		if c.GetBedrock().ModelID == "" {
			errs = append(errs, errors.New("bedrock.model_id is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported LLM provider: %s", provider))
	}

	if cache := c.GetCache(); cache.Enabled {
		switch cache.Type {
		case "memory", "sqlite", "mysql":
		default:
			errs = append(errs, fmt.Errorf("unsupported cache type: %s", cache.Type))
		}
	}

	switch store := c.GetStore().Type; store {
	case "none", "memory", "sqlite", "mysql", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unsupported store type: %s", store))
	}

	if c.GetSMTP().Enabled && c.GetSMTP().RelayEnabled && c.GetSMTP().RelayAddress == "" {
		errs = append(errs, errors.New("smtp.relay.address is required when relaying"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
