package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Generation providers; a provider is enabled when its key (or host) is set.
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	DeepSeekAPIKey  string
	DeepSeekBaseURL string
	DeepSeekModel   string

	ZhipuAPIKey  string
	ZhipuBaseURL string
	ZhipuModel   string

	AnthropicAPIKey string
	AnthropicModel  string

	OllamaHost  string
	OllamaModel string

	DefaultModel string
	LLMRetries   int

	// Generation pipeline
	WorkerCount              int
	MaxQueueSize             int
	MaxConcurrentGenerations int
	MaxContextTokens         int
	GenerationTimeout        time.Duration

	// Editor
	HistoryLimit int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// PDF import
	PDFFallbackPdftotext bool
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("DOCPEN_API_KEY"),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: envOr("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:   envOr("OPENAI_MODEL", "gpt-4o-mini"),

		DeepSeekAPIKey:  os.Getenv("DEEPSEEK_API_KEY"),
		DeepSeekBaseURL: envOr("DEEPSEEK_BASE_URL", "https://api.deepseek.com/v1"),
		DeepSeekModel:   envOr("DEEPSEEK_MODEL", "deepseek-chat"),

		ZhipuAPIKey:  os.Getenv("ZHIPU_API_KEY"),
		ZhipuBaseURL: envOr("ZHIPU_BASE_URL", "https://open.bigmodel.cn/api/paas/v3"),
		ZhipuModel:   envOr("ZHIPU_MODEL", "chatglm_turbo"),

		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  envOr("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),

		OllamaHost:  os.Getenv("OLLAMA_HOST"),
		OllamaModel: envOr("OLLAMA_MODEL", "llama3.1"),

		DefaultModel: os.Getenv("DEFAULT_MODEL"),
		LLMRetries:   envInt("LLM_RETRIES", 3),

		WorkerCount:              envInt("WORKER_COUNT", 4),
		MaxQueueSize:             envInt("MAX_QUEUE_SIZE", 100),
		MaxConcurrentGenerations: envInt("MAX_CONCURRENT_GENERATIONS", 8),
		MaxContextTokens:         envInt("MAX_CONTEXT_TOKENS", 1500),
		GenerationTimeout:        envDuration("GENERATION_TIMEOUT", 5*time.Minute),

		HistoryLimit: envInt("HISTORY_LIMIT", 500),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if cfg.LLMRetries < 0 {
		cfg.LLMRetries = 0
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxConcurrentGenerations <= 0 {
		cfg.MaxConcurrentGenerations = 8
	}
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = 1500
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 5 * time.Minute
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 500
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

// HasProvider reports whether at least one generation provider is configured.
func (c Config) HasProvider() bool {
	return c.OpenAIAPIKey != "" || c.DeepSeekAPIKey != "" || c.ZhipuAPIKey != "" ||
		c.AnthropicAPIKey != "" || c.OllamaHost != ""
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("DOCPEN_API_KEY is required")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be numeric, got %q", c.Port)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
