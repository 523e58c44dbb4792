// Package config defines service configuration structures and loading hooks.
package config

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreBolt   = "bolt"
	StoreMongo  = "mongo"
)

// Narrators.
const (
	NarratorAuto     = "auto"
	NarratorGemini   = "gemini"
	NarratorTemplate = "template"
	NarratorNone     = "none"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the report job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of report workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize and DedupeWindowMS bound the submission guard.
	DedupeSize     int `koanf:"dedupe_size"`
	DedupeWindowMS int `koanf:"dedupe_window_ms"`

	// MaxHistoryLimit caps GET /v1/users/{userID}/assessments?limit.
	MaxHistoryLimit int `koanf:"max_history_limit"`

	// MaxDatasetRows caps rows per analyzed dataset.
	MaxDatasetRows int `koanf:"max_dataset_rows"`

	// StoreBackend is one of memory, bolt or mongo.
	StoreBackend  string `koanf:"store_backend"`
	BoltPath      string `koanf:"bolt_path"`
	MongoURI      string `koanf:"mongo_uri"`
	MongoDatabase string `koanf:"mongo_database"`

	// Narrator is one of auto, gemini, template or none. auto picks gemini
	// when an API key is set and template otherwise.
	Narrator          string `koanf:"narrator"`
	GeminiAPIKey      string `koanf:"gemini_api_key"`
	GeminiModel       string `koanf:"gemini_model"`
	GeminiBaseURL     string `koanf:"gemini_base_url"`
	NarratorTimeoutMS int    `koanf:"narrator_timeout_ms"`
	NarratorRetries   int    `koanf:"narrator_retries"`

	// ModelWeights overrides individual weights of the risk model.
	ModelWeights map[string]float64 `koanf:"model_weights"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		QueueSize:         10_000,
		WorkerCount:       runtime.NumCPU(),
		DedupeSize:        50_000,
		DedupeWindowMS:    10_000,
		MaxHistoryLimit:   100,
		MaxDatasetRows:    5_000,
		StoreBackend:      StoreMemory,
		BoltPath:          "diarisk.db",
		MongoDatabase:     "diarisk",
		Narrator:          NarratorAuto,
		GeminiModel:       "gemini-1.5-flash",
		GeminiBaseURL:     "https://generativelanguage.googleapis.com",
		NarratorTimeoutMS: 30_000,
		NarratorRetries:   2,
	}
}

// DedupeWindow returns DedupeWindowMS as a duration.
func (c *Config) DedupeWindow() time.Duration {
	return time.Duration(c.DedupeWindowMS) * time.Millisecond
}

// NarratorTimeout returns NarratorTimeoutMS as a duration.
func (c *Config) NarratorTimeout() time.Duration {
	return time.Duration(c.NarratorTimeoutMS) * time.Millisecond
}

// ResolvedNarrator returns the narrator to build, resolving auto.
func (c *Config) ResolvedNarrator() string {
	if c.Narrator != NarratorAuto {
		return c.Narrator
	}
	if c.GeminiAPIKey != "" {
		return NarratorGemini
	}
	return NarratorTemplate
}

// Validate reports the first invalid setting.
func (c *Config) Validate(_ context.Context) error {
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	c.Narrator = strings.ToLower(strings.TrimSpace(c.Narrator))

	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format %q", ErrInvalidConfig, c.LogFormat)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.MaxHistoryLimit <= 0:
		return fmt.Errorf("%w: max_history_limit must be positive", ErrInvalidConfig)
	case c.MaxDatasetRows <= 0:
		return fmt.Errorf("%w: max_dataset_rows must be positive", ErrInvalidConfig)
	case c.DedupeWindowMS < 0:
		return fmt.Errorf("%w: dedupe_window_ms must not be negative", ErrInvalidConfig)
	case c.NarratorRetries < 0:
		return fmt.Errorf("%w: narrator_retries must not be negative", ErrInvalidConfig)
	}

	switch c.StoreBackend {
	case StoreMemory:
	case StoreBolt:
		if c.BoltPath == "" {
			return fmt.Errorf("%w: bolt_path is required for the bolt store", ErrInvalidConfig)
		}
	case StoreMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("%w: mongo_uri is required for the mongo store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store_backend %q", ErrInvalidConfig, c.StoreBackend)
	}

	switch c.Narrator {
	case NarratorAuto, NarratorTemplate, NarratorNone:
	case NarratorGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: gemini_api_key is required for the gemini narrator", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown narrator %q", ErrInvalidConfig, c.Narrator)
	}
	return nil
}
