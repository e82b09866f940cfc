// Package config loads lectureqa settings from defaults, an optional YAML
// or TOML file, a .env file and LECTUREQA_* environment variables, in that
// order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/chitchi46/lectureqa/internal/llm"
	"github.com/chitchi46/lectureqa/internal/logger"
)

// Config is the root configuration. Field names in files match the
// recognized option names.
type Config struct {
	ChunkSize                int     `yaml:"chunk_size" toml:"chunk_size"`
	ChunkOverlap             int     `yaml:"chunk_overlap" toml:"chunk_overlap"`
	RetrievalK               int     `yaml:"retrieval_k" toml:"retrieval_k"`
	GenerationTimeoutSeconds int     `yaml:"generation_timeout_seconds" toml:"generation_timeout_seconds"`
	MaxAttemptsMultiplier    int     `yaml:"max_attempts_multiplier" toml:"max_attempts_multiplier"`
	MaxAttemptsCap           int     `yaml:"max_attempts_cap" toml:"max_attempts_cap"`
	DedupKeyLength           int     `yaml:"dedup_key_length" toml:"dedup_key_length"`
	DedupMinLength           int     `yaml:"dedup_min_length" toml:"dedup_min_length"`
	GradingKeywordThreshold  float64 `yaml:"grading_keyword_threshold" toml:"grading_keyword_threshold"`

	// Language of prompts and output markers: "en" or "ja".
	Language        string `yaml:"language" toml:"language"`
	DiscardFallback bool   `yaml:"discard_fallback" toml:"discard_fallback"`

	LLM       LLMConfig       `yaml:"llm" toml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding" toml:"embedding"`
	Index     IndexConfig     `yaml:"index" toml:"index"`
	OCR       OCRConfig       `yaml:"ocr" toml:"ocr"`
	Ingest    IngestConfig    `yaml:"ingest" toml:"ingest"`
}

// LLMConfig selects the completion provider. API keys come from the
// environment only.
type LLMConfig struct {
	Provider          string  `yaml:"provider" toml:"provider"`
	Model             string  `yaml:"model,omitempty" toml:"model,omitempty"`
	BaseURL           string  `yaml:"base_url,omitempty" toml:"base_url,omitempty"`
	Temperature       float64 `yaml:"temperature" toml:"temperature"`
	MaxTokens         int     `yaml:"max_tokens" toml:"max_tokens"`
	TimeoutSeconds    int     `yaml:"timeout_seconds" toml:"timeout_seconds"`
	RetryAttempts     int     `yaml:"retry_attempts" toml:"retry_attempts"`
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second"`
	Burst             int     `yaml:"burst" toml:"burst"`
	StructuredOutput  bool    `yaml:"structured_output" toml:"structured_output"`
}

// EmbeddingConfig selects the embedding backend.
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider" toml:"provider"`
	Model             string  `yaml:"model,omitempty" toml:"model,omitempty"`
	Dimension         int     `yaml:"dimension" toml:"dimension"`
	BatchSize         int     `yaml:"batch_size" toml:"batch_size"`
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second"`
	Burst             int     `yaml:"burst" toml:"burst"`
}

// IndexConfig selects where index artifacts are persisted.
type IndexConfig struct {
	// Backend is "fs" or "s3".
	Backend string   `yaml:"backend" toml:"backend"`
	Dir     string   `yaml:"dir,omitempty" toml:"dir,omitempty"`
	S3      S3Config `yaml:"s3" toml:"s3"`
}

// S3Config configures the S3 index backend. Credentials are read from
// LECTUREQA_AWS_ACCESS_KEY / LECTUREQA_AWS_SECRET_KEY when set, otherwise
// from the default AWS chain.
type S3Config struct {
	Bucket       string `yaml:"bucket,omitempty" toml:"bucket,omitempty"`
	Prefix       string `yaml:"prefix" toml:"prefix"`
	Region       string `yaml:"region" toml:"region"`
	Endpoint     string `yaml:"endpoint,omitempty" toml:"endpoint,omitempty"`
	UsePathStyle bool   `yaml:"use_path_style" toml:"use_path_style"`

	AccessKey string `yaml:"-" toml:"-"`
	SecretKey string `yaml:"-" toml:"-"`
}

// OCRConfig controls the scanned-PDF fallback.
type OCRConfig struct {
	Enabled       bool   `yaml:"enabled" toml:"enabled"`
	TextThreshold int    `yaml:"text_threshold" toml:"text_threshold"`
	OCRThreshold  int    `yaml:"ocr_threshold" toml:"ocr_threshold"`
	DPI           int    `yaml:"dpi" toml:"dpi"`
	Languages     string `yaml:"languages" toml:"languages"`
}

// IngestConfig sizes the background ingestion queue.
type IngestConfig struct {
	Workers   int `yaml:"workers" toml:"workers"`
	QueueSize int `yaml:"queue_size" toml:"queue_size"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ChunkSize:                1000,
		ChunkOverlap:             200,
		RetrievalK:               3,
		GenerationTimeoutSeconds: 120,
		MaxAttemptsMultiplier:    2,
		MaxAttemptsCap:           10,
		DedupKeyLength:           30,
		DedupMinLength:           5,
		GradingKeywordThreshold:  0.5,
		Language:                 "en",
		LLM: LLMConfig{
			Provider:          "openai",
			Temperature:       0.7,
			MaxTokens:         1024,
			TimeoutSeconds:    60,
			RetryAttempts:     3,
			RequestsPerSecond: 2,
			Burst:             4,
		},
		Embedding: EmbeddingConfig{
			Provider:          "local",
			Dimension:         512,
			BatchSize:         64,
			RequestsPerSecond: 5,
			Burst:             10,
		},
		Index: IndexConfig{
			Backend: "fs",
			S3:      S3Config{Prefix: "lectureqa/", Region: "us-east-1"},
		},
		OCR: OCRConfig{
			Enabled:       true,
			TextThreshold: 100,
			OCRThreshold:  50,
			DPI:           200,
			Languages:     "jpn+eng",
		},
		Ingest: IngestConfig{Workers: 2, QueueSize: 64},
	}
}

// GenerationTimeout is the wall-clock budget of one generation run.
func (c *Config) GenerationTimeout() time.Duration {
	return time.Duration(c.GenerationTimeoutSeconds) * time.Second
}

// MaxAttempts returns the attempt cap for n requested questions.
func (c *Config) MaxAttempts(n int) int {
	return min(c.MaxAttemptsMultiplier*n, c.MaxAttemptsCap)
}

// Load builds the configuration. path is the --config flag value and may
// be empty; see Resolve for the lookup order. A missing file yields the
// defaults. It returns the file path that was consulted.
func Load(path string) (*Config, string, error) {
	cfg := Default()

	path = Resolve(path)
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, path, err
		}
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, path, err
	}
	applyEnv(cfg)

	return cfg, path, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debug("config: %s not found, using defaults", path)
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("config %s: unsupported extension (use .yaml, .yml or .toml)", path)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	logger.Debug("config: loaded %s", path)
	return nil
}

// Resolve returns the config file path to use, in priority order:
// 1. explicit (the --config flag)
// 2. $LECTUREQA_CONFIG
// 3. ./lectureqa.yaml, ./lectureqa.yml or ./lectureqa.toml, whichever exists
// 4. $XDG_CONFIG_HOME/lectureqa/config.yaml (or ~/.config/...)
func Resolve(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv("LECTUREQA_CONFIG"); p != "" {
		return p
	}
	for _, name := range []string{"lectureqa.yaml", "lectureqa.yml", "lectureqa.toml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return UserConfigPath()
}

// UserConfigPath returns the per-user config file location, or "" when no
// home directory can be determined.
func UserConfigPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "lectureqa", "config.yaml")
}

// Save writes cfg to path in the format implied by its extension,
// creating directories as needed.
func Save(path string, cfg *Config) error {
	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	case ".toml":
		data, err = toml.Marshal(cfg)
	default:
		return fmt.Errorf("config %s: unsupported extension (use .yaml, .yml or .toml)", path)
	}
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	positive := []struct {
		name string
		v    int
	}{
		{"chunk_size", c.ChunkSize},
		{"retrieval_k", c.RetrievalK},
		{"generation_timeout_seconds", c.GenerationTimeoutSeconds},
		{"max_attempts_multiplier", c.MaxAttemptsMultiplier},
		{"max_attempts_cap", c.MaxAttemptsCap},
		{"dedup_key_length", c.DedupKeyLength},
		{"embedding.batch_size", c.Embedding.BatchSize},
		{"ingest.workers", c.Ingest.Workers},
		{"ingest.queue_size", c.Ingest.QueueSize},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.name, p.v)
		}
	}

	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk_overlap must be in [0, chunk_size), got %d", c.ChunkOverlap)
	}
	if c.DedupMinLength < 0 {
		return fmt.Errorf("dedup_min_length must not be negative, got %d", c.DedupMinLength)
	}
	if c.GradingKeywordThreshold <= 0 || c.GradingKeywordThreshold > 1 {
		return fmt.Errorf("grading_keyword_threshold must be in (0, 1], got %v", c.GradingKeywordThreshold)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 1 {
		return fmt.Errorf("llm.temperature must be in [0, 1], got %v", c.LLM.Temperature)
	}

	switch c.Language {
	case "en", "ja":
	default:
		return fmt.Errorf("unknown language %q (want en or ja)", c.Language)
	}

	switch c.LLM.Provider {
	case "anthropic", "openai", "gemini", "openrouter", "mock":
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.LLM.Provider)
	}

	switch c.Embedding.Provider {
	case "local":
		if c.Embedding.Dimension <= 0 {
			return fmt.Errorf("embedding.dimension must be positive, got %d", c.Embedding.Dimension)
		}
	case "openai", "gemini":
	default:
		return fmt.Errorf("unknown embedding provider: %q", c.Embedding.Provider)
	}

	switch c.Index.Backend {
	case "fs":
	case "s3":
		if c.Index.S3.Bucket == "" {
			return fmt.Errorf("index.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown index backend: %q", c.Index.Backend)
	}

	if c.OCR.TextThreshold < 0 || c.OCR.OCRThreshold < 0 {
		return fmt.Errorf("ocr thresholds must not be negative")
	}
	if c.OCR.Enabled && c.OCR.DPI <= 0 {
		return fmt.Errorf("ocr.dpi must be positive, got %d", c.OCR.DPI)
	}
	return nil
}

// LLMSettings converts the llm section into provider configuration, then
// applies LECTUREQA_* and standard API key variables.
func (c *Config) LLMSettings() llm.Config {
	out := llm.DefaultConfig()
	out.Provider = c.LLM.Provider
	if m := c.LLM.Model; m != "" {
		switch c.LLM.Provider {
		case "anthropic":
			out.Anthropic.Model = m
		case "openai":
			out.OpenAI.Model = m
		case "gemini":
			out.Gemini.Model = m
		case "openrouter":
			out.OpenRouter.Model = m
		}
	}
	if c.LLM.BaseURL != "" {
		out.OpenAI.BaseURL = c.LLM.BaseURL
		out.OpenRouter.BaseURL = c.LLM.BaseURL
	}
	out.MaxTokens = c.LLM.MaxTokens
	out.StructuredOutput = c.LLM.StructuredOutput
	out.Timeout = time.Duration(c.LLM.TimeoutSeconds) * time.Second
	out.Retry.MaxAttempts = c.LLM.RetryAttempts
	out.RateLimit = llm.RateLimitConfig{RequestsPerSecond: c.LLM.RequestsPerSecond, BurstSize: c.LLM.Burst}

	llm.ApplyEnv(&out)
	llm.DiscoverKeys(&out)
	return out
}

// EmbeddingSettings converts the embedding section into embedder
// configuration.
func (c *Config) EmbeddingSettings() llm.EmbeddingConfig {
	out := llm.DefaultEmbeddingConfig()
	out.Provider = c.Embedding.Provider
	out.Dimension = c.Embedding.Dimension
	out.BatchSize = c.Embedding.BatchSize
	if m := c.Embedding.Model; m != "" {
		out.OpenAI.Model = m
		out.Gemini.Model = m
	}
	out.RateLimit = llm.RateLimitConfig{RequestsPerSecond: c.Embedding.RequestsPerSecond, BurstSize: c.Embedding.Burst}
	return out
}
