package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrConfiguration marks a server-side configuration problem, such as a missing
// or placeholder upstream credential.
var ErrConfiguration = errors.New("configuration error")

// DefaultSystemPrompt seeds every new conversation.
const DefaultSystemPrompt = "You are a helpful and friendly assistant. Provide concise and helpful answers, formatting your responses in Markdown. For code, use appropriate language identifiers in code fences."

// DefaultMaxBodyBytes caps a /chat request body. Full histories are sent on
// every turn, so the limit is generous.
const DefaultMaxBodyBytes int64 = 32 << 20

// Config holds the application configuration
type Config struct {
	LogLevel string        `mapstructure:"log_level"`
	LLM      LLMConfig     `mapstructure:"llm"`
	Gateway  GatewayConfig `mapstructure:"gateway"`
	Client   ClientConfig  `mapstructure:"client"`
}

// LLMConfig holds the upstream provider configuration used by the gateway.
type LLMConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// GatewayConfig holds the gateway HTTP server configuration
type GatewayConfig struct {
	Host           string   `mapstructure:"host"`
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	ModelsFile     string   `mapstructure:"models_file"`
	MaxBodyBytes   int64    `mapstructure:"max_body_bytes"`
}

// ClientConfig holds the chat client configuration
type ClientConfig struct {
	GatewayURL   string `mapstructure:"gateway_url"`
	ModelID      string `mapstructure:"model_id"`
	SystemPrompt string `mapstructure:"system_prompt"`
	StateBackend string `mapstructure:"state_backend"`
	StatePath    string `mapstructure:"state_path"`
}

// Addr returns the listen address of the gateway.
func (g GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%s", g.Host, g.Port)
}

var placeholderKeys = []string{"api_key_anda", "your-api-key", "your_api_key", "changeme", "sk-xxx"}

// CheckCredentials reports ErrConfiguration when the upstream API key is
// missing or still set to a placeholder value.
func (c LLMConfig) CheckCredentials() error {
	key := strings.TrimSpace(c.APIKey)
	if key == "" {
		return fmt.Errorf("%w: upstream API key is not set", ErrConfiguration)
	}
	lower := strings.ToLower(key)
	for _, p := range placeholderKeys {
		if lower == p {
			return fmt.Errorf("%w: upstream API key is a placeholder", ErrConfiguration)
		}
	}
	if strings.HasPrefix(key, "<") && strings.HasSuffix(key, ">") {
		return fmt.Errorf("%w: upstream API key is a placeholder", ErrConfiguration)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("llm.base_url", "https://api.lunos.tech/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "deepseek/deepseek-chat-v3-0324")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.timeout", "60s")

	v.SetDefault("gateway.host", "127.0.0.1")
	v.SetDefault("gateway.port", "8080")
	v.SetDefault("gateway.allowed_origins", []string{"http://127.0.0.1:5500", "http://localhost:5500"})
	v.SetDefault("gateway.models_file", "")
	v.SetDefault("gateway.max_body_bytes", DefaultMaxBodyBytes)

	v.SetDefault("client.gateway_url", "http://127.0.0.1:8080")
	v.SetDefault("client.model_id", "")
	v.SetDefault("client.system_prompt", DefaultSystemPrompt)
	v.SetDefault("client.state_backend", "file")
	v.SetDefault("client.state_path", "jarvis-chat.json")
}

// Load loads the configuration from config.yaml (or the file named by
// CONFIG_PATH). A missing config file is not an error; defaults and JARVIS_*
// environment variables still apply.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if p := os.Getenv("CONFIG_PATH"); p != "" {
		v.SetConfigFile(p)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("JARVIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.LLM.Timeout <= 0 {
		return nil, fmt.Errorf("%w: llm.timeout must be positive", ErrConfiguration)
	}
	if cfg.Gateway.MaxBodyBytes <= 0 {
		return nil, fmt.Errorf("%w: gateway.max_body_bytes must be positive", ErrConfiguration)
	}

	return &cfg, nil
}
