package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/chitchi46/lectureqa/internal/logger"
)

// loadDotEnv loads path into the process environment. Variables that are
// already set win over the file. A missing file is not an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

// applyEnv overrides cfg with LECTUREQA_* variables.
func applyEnv(cfg *Config) {
	envInt("LECTUREQA_CHUNK_SIZE", &cfg.ChunkSize)
	envInt("LECTUREQA_CHUNK_OVERLAP", &cfg.ChunkOverlap)
	envInt("LECTUREQA_RETRIEVAL_K", &cfg.RetrievalK)
	envInt("LECTUREQA_GENERATION_TIMEOUT_SECONDS", &cfg.GenerationTimeoutSeconds)
	envInt("LECTUREQA_MAX_ATTEMPTS_MULTIPLIER", &cfg.MaxAttemptsMultiplier)
	envInt("LECTUREQA_MAX_ATTEMPTS_CAP", &cfg.MaxAttemptsCap)
	envInt("LECTUREQA_DEDUP_KEY_LENGTH", &cfg.DedupKeyLength)
	envInt("LECTUREQA_DEDUP_MIN_LENGTH", &cfg.DedupMinLength)
	envFloat("LECTUREQA_GRADING_KEYWORD_THRESHOLD", &cfg.GradingKeywordThreshold)
	envString("LECTUREQA_LANGUAGE", &cfg.Language)
	envBool("LECTUREQA_DISCARD_FALLBACK", &cfg.DiscardFallback)

	envString("LECTUREQA_LLM_PROVIDER", &cfg.LLM.Provider)
	envString("LECTUREQA_LLM_MODEL", &cfg.LLM.Model)
	envBool("LECTUREQA_LLM_STRUCTURED_OUTPUT", &cfg.LLM.StructuredOutput)

	envString("LECTUREQA_EMBEDDING_PROVIDER", &cfg.Embedding.Provider)
	envString("LECTUREQA_EMBEDDING_MODEL", &cfg.Embedding.Model)
	envInt("LECTUREQA_EMBEDDING_BATCH_SIZE", &cfg.Embedding.BatchSize)

	envString("LECTUREQA_INDEX_BACKEND", &cfg.Index.Backend)
	envString("LECTUREQA_INDEX_DIR", &cfg.Index.Dir)
	envString("LECTUREQA_S3_BUCKET", &cfg.Index.S3.Bucket)
	envString("LECTUREQA_S3_PREFIX", &cfg.Index.S3.Prefix)
	envString("LECTUREQA_S3_ENDPOINT", &cfg.Index.S3.Endpoint)
	envString("LECTUREQA_AWS_REGION", &cfg.Index.S3.Region)
	envString("LECTUREQA_AWS_ACCESS_KEY", &cfg.Index.S3.AccessKey)
	envString("LECTUREQA_AWS_SECRET_KEY", &cfg.Index.S3.SecretKey)

	envBool("LECTUREQA_OCR_ENABLED", &cfg.OCR.Enabled)
	envString("LECTUREQA_OCR_LANGUAGES", &cfg.OCR.Languages)

	envInt("LECTUREQA_INGEST_WORKERS", &cfg.Ingest.Workers)
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn("%s=%q is not an int, keeping %d", key, v, *dst)
		return
	}
	*dst = n
}

func envFloat(key string, dst *float64) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logger.Warn("%s=%q is not a number, keeping %v", key, v, *dst)
		return
	}
	*dst = f
}

func envBool(key string, dst *bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn("%s=%q is not a bool, keeping %v", key, v, *dst)
		return
	}
	*dst = b
}
