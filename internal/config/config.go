package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	// Knowledge base: local JSON file, or Postgres when DATABASE_URL is set.
	KnowledgeBasePath string `envconfig:"KB_PATH" default:"knowledge_base.json"`
	DatabaseURL       string `envconfig:"DATABASE_URL"`

	// OpenAI-compatible backend (local llama.cpp / Ollama server or the real API).
	OpenAIBaseURL       string `envconfig:"OPENAI_BASE_URL"`
	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	LLMModel            string `envconfig:"LLM_MODEL" default:"gemma3-1b-it"`

	// Sampling and generation limits.
	MaxTokens   int     `envconfig:"MAX_TOKENS" default:"800"`
	Temperature float32 `envconfig:"TEMPERATURE" default:"0.2"`
	TopP        float32 `envconfig:"TOP_P" default:"0.8"`
	TopK        int     `envconfig:"TOP_K" default:"20"`

	// Retrieval.
	RetrieveTopK int `envconfig:"RETRIEVE_TOP_K" default:"1"`

	// Optional artifact storage for pulling the knowledge base on startup.
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"wildguard-artifacts"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3KBKey     string `envconfig:"S3_KB_KEY"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("WILDGUARD", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != "" || c.OpenAIBaseURL != ""
}
