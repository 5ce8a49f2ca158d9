package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config holds service configuration.
type Config struct {
	ServerAddr string
	LogLevel   string

	ModelProvider  string
	OllamaHost     string
	ModelName      string
	EmbeddingModel string
	ModelTimeout   time.Duration
	OpenAIAPIKey   string
	OpenAIBaseURL  string

	ChromaURL           string
	KnowledgeCollection string
	KnowledgeTopK       int

	MemoryWindow int
	RedisURL     string

	DatabaseURL   string
	SQLitePath    string
	MigrationsDir string

	AuthTokenHash string

	CommunicationWebhookURL string
	CalendarWebhookURL      string
	TasksWebhookURL         string
	IntegrationTimeout      time.Duration

	// APICallAllowedHosts lists hosts api_call steps may reach. Empty
	// disables outbound api_call steps.
	APICallAllowedHosts []string

	MaxBodyBytes int64

	SchedulerEnabled bool
}

var defaults = map[string]any{
	"server_addr":               "0.0.0.0:5000",
	"log_level":                 "info",
	"model_provider":            "ollama",
	"ollama_host":               "http://localhost:11434",
	"model_name":                "llama3.1:8b",
	"embedding_model":           "nomic-embed-text",
	"model_timeout":             "60s",
	"openai_api_key":            "",
	"openai_base_url":           "",
	"chroma_url":                "http://localhost:8000",
	"knowledge_collection":      "team_knowledge",
	"knowledge_top_k":           5,
	"memory_window":             10,
	"redis_url":                 "",
	"database_url":              "",
	"sqlite_path":               "data/executions.db",
	"migrations_dir":            "",
	"auth_token_hash":           "",
	"communication_webhook_url": "",
	"calendar_webhook_url":      "",
	"tasks_webhook_url":         "",
	"api_call_allowed_hosts":    "",
	"max_body_bytes":            10 << 20,
	"integration_timeout":       "15s",
	"scheduler_enabled":         false,
}

// Load reads configuration from the environment, layered over an optional
// YAML file named by TEAMSYNTH_CONFIG.
func Load() (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("TEAMSYNTH_CONFIG"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		ServerAddr:              v.GetString("server_addr"),
		LogLevel:                v.GetString("log_level"),
		ModelProvider:           v.GetString("model_provider"),
		OllamaHost:              v.GetString("ollama_host"),
		ModelName:               v.GetString("model_name"),
		EmbeddingModel:          v.GetString("embedding_model"),
		ModelTimeout:            v.GetDuration("model_timeout"),
		OpenAIAPIKey:            v.GetString("openai_api_key"),
		OpenAIBaseURL:           v.GetString("openai_base_url"),
		ChromaURL:               v.GetString("chroma_url"),
		KnowledgeCollection:     v.GetString("knowledge_collection"),
		KnowledgeTopK:           v.GetInt("knowledge_top_k"),
		MemoryWindow:            v.GetInt("memory_window"),
		RedisURL:                v.GetString("redis_url"),
		DatabaseURL:             v.GetString("database_url"),
		SQLitePath:              v.GetString("sqlite_path"),
		MigrationsDir:           v.GetString("migrations_dir"),
		AuthTokenHash:           v.GetString("auth_token_hash"),
		CommunicationWebhookURL: v.GetString("communication_webhook_url"),
		CalendarWebhookURL:      v.GetString("calendar_webhook_url"),
		TasksWebhookURL:         v.GetString("tasks_webhook_url"),
		IntegrationTimeout:      v.GetDuration("integration_timeout"),
		APICallAllowedHosts:     splitList(v.GetString("api_call_allowed_hosts")),
		MaxBodyBytes:            v.GetInt64("max_body_bytes"),
		SchedulerEnabled:        v.GetBool("scheduler_enabled"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the services cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.ModelTimeout <= 0 {
		errs = append(errs, errors.New("MODEL_TIMEOUT must be positive"))
	}
	if c.IntegrationTimeout <= 0 {
		errs = append(errs, errors.New("INTEGRATION_TIMEOUT must be positive"))
	}
	if c.KnowledgeTopK <= 0 {
		errs = append(errs, errors.New("KNOWLEDGE_TOP_K must be positive"))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("MAX_BODY_BYTES must be positive"))
	}
	if c.MemoryWindow <= 0 {
		errs = append(errs, errors.New("MEMORY_WINDOW must be positive"))
	}
	if c.ModelName == "" {
		errs = append(errs, errors.New("MODEL_NAME is required"))
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	return errors.Join(errs...)
}

// NewLogger returns the root logger at the configured level, writing JSON to w.
func (c *Config) NewLogger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// splitList parses a comma separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
