package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Hosted model providers.
const (
	ProviderAzureOpenAI = "azure-openai"
	ProviderGemini      = "gemini"
)

type Config struct {
	Port    string `mapstructure:"PORT"`
	Env     string `mapstructure:"ENV"`
	AppName string `mapstructure:"APP_NAME"`

	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	DBPoolMinSize int32  `mapstructure:"DB_POOL_MIN_SIZE"`
	DBPoolMaxSize int32  `mapstructure:"DB_POOL_MAX_SIZE"`

	// Azure AI Language, used by the database for PHI redaction.
	AzureAIEndpoint string `mapstructure:"AZURE_AI_ENDPOINT"`
	AzureAIKey      string `mapstructure:"AZURE_AI_KEY"`

	LLMProvider                    string  `mapstructure:"LLM_PROVIDER"`
	AzureOpenAIEndpoint            string  `mapstructure:"AZURE_OPENAI_ENDPOINT"`
	AzureOpenAIKey                 string  `mapstructure:"AZURE_OPENAI_KEY"`
	AzureOpenAIChatDeployment      string  `mapstructure:"AZURE_OPENAI_CHAT_DEPLOYMENT"`
	AzureOpenAIEmbeddingDeployment string  `mapstructure:"AZURE_OPENAI_EMBEDDING_DEPLOYMENT"`
	GeminiEndpoint                 string  `mapstructure:"GEMINI_ENDPOINT"`
	GeminiAPIKey                   string  `mapstructure:"GEMINI_API_KEY"`
	GeminiModel                    string  `mapstructure:"GEMINI_MODEL"`
	LLMRPS                         float64 `mapstructure:"LLM_RPS"`
	LLMBurst                       int     `mapstructure:"LLM_BURST"`

	DemoAllowRaw bool     `mapstructure:"DEMO_ALLOW_RAW"`
	CORSOrigins  []string `mapstructure:"CORS_ORIGINS"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	RequestTimeout    time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	RetrievalTimeout  time.Duration `mapstructure:"RETRIEVAL_TIMEOUT"`
	GenerationTimeout time.Duration `mapstructure:"GENERATION_TIMEOUT"`
	StreamDeltaDelay  time.Duration `mapstructure:"STREAM_DELTA_DELAY"`
}

var envKeys = []string{
	"PORT", "ENV", "APP_NAME",
	"DATABASE_URL", "DB_POOL_MIN_SIZE", "DB_POOL_MAX_SIZE",
	"AZURE_AI_ENDPOINT", "AZURE_AI_KEY",
	"LLM_PROVIDER",
	"AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_KEY",
	"AZURE_OPENAI_CHAT_DEPLOYMENT", "AZURE_OPENAI_EMBEDDING_DEPLOYMENT",
	"GEMINI_ENDPOINT", "GEMINI_API_KEY", "GEMINI_MODEL",
	"LLM_RPS", "LLM_BURST",
	"DEMO_ALLOW_RAW", "CORS_ORIGINS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"REQUEST_TIMEOUT", "RETRIEVAL_TIMEOUT", "GENERATION_TIMEOUT", "STREAM_DELTA_DELAY",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("APP_NAME", "Patient 360 API")
	v.SetDefault("DB_POOL_MIN_SIZE", 2)
	v.SetDefault("DB_POOL_MAX_SIZE", 10)
	v.SetDefault("LLM_PROVIDER", ProviderAzureOpenAI)
	v.SetDefault("AZURE_OPENAI_CHAT_DEPLOYMENT", "gpt-5.2")
	v.SetDefault("AZURE_OPENAI_EMBEDDING_DEPLOYMENT", "text-embedding-ada-002")
	v.SetDefault("GEMINI_ENDPOINT", "https://generativelanguage.googleapis.com/")
	v.SetDefault("GEMINI_MODEL", "gemini-2.0-flash")
	v.SetDefault("LLM_RPS", 0)
	v.SetDefault("LLM_BURST", 1)
	v.SetDefault("DEMO_ALLOW_RAW", false)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("REQUEST_TIMEOUT", "60s")
	v.SetDefault("RETRIEVAL_TIMEOUT", "10s")
	v.SetDefault("GENERATION_TIMEOUT", "90s")
	v.SetDefault("STREAM_DELTA_DELAY", "20ms")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() && cfg.DemoAllowRaw {
		log.Println("WARNING: DEMO_ALLOW_RAW is enabled; raw note text may be returned to clients.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// HasAzureAI reports whether the PHI redaction service is configured.
func (c *Config) HasAzureAI() bool {
	return c.AzureAIEndpoint != "" && c.AzureAIKey != ""
}

// HasHostedModel reports whether both an endpoint and a credential are
// configured for the selected hosted model provider. When false, answers are
// produced by the offline template generator.
func (c *Config) HasHostedModel() bool {
	switch c.LLMProvider {
	case ProviderGemini:
		return c.GeminiEndpoint != "" && c.GeminiAPIKey != ""
	default:
		return c.AzureOpenAIEndpoint != "" && c.AzureOpenAIKey != ""
	}
}

// HostedModelName returns the model identifier reported to clients when the
// hosted backend answers.
func (c *Config) HostedModelName() string {
	if c.LLMProvider == ProviderGemini {
		return c.GeminiModel
	}
	return c.AzureOpenAIChatDeployment
}

// Validate checks the pool bounds, the provider name and the timeouts.
func (c *Config) Validate() error {
	if c.DBPoolMinSize < 0 {
		return fmt.Errorf("DB_POOL_MIN_SIZE must not be negative, got %d", c.DBPoolMinSize)
	}
	if c.DBPoolMaxSize < 1 {
		return fmt.Errorf("DB_POOL_MAX_SIZE must be at least 1, got %d", c.DBPoolMaxSize)
	}
	if c.DBPoolMinSize > c.DBPoolMaxSize {
		return fmt.Errorf("DB_POOL_MIN_SIZE (%d) exceeds DB_POOL_MAX_SIZE (%d)", c.DBPoolMinSize, c.DBPoolMaxSize)
	}
	if c.LLMProvider != ProviderAzureOpenAI && c.LLMProvider != ProviderGemini {
		return fmt.Errorf("LLM_PROVIDER must be %q or %q, got %q", ProviderAzureOpenAI, ProviderGemini, c.LLMProvider)
	}
	if c.RetrievalTimeout <= 0 || c.GenerationTimeout <= 0 {
		return fmt.Errorf("RETRIEVAL_TIMEOUT and GENERATION_TIMEOUT must be positive")
	}
	if c.StreamDeltaDelay < 0 {
		return fmt.Errorf("STREAM_DELTA_DELAY must not be negative")
	}
	return nil
}
