package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// validate is a singleton validator instance
var validate = validator.New()

// Config holds the complete toporag configuration
type Config struct {
	Pipeline    PipelineConfig    `yaml:"pipeline" mapstructure:"pipeline"`
	Filter      FilterConfig      `yaml:"filter" mapstructure:"filter"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Gazetteer   GazetteerConfig   `yaml:"gazetteer" mapstructure:"gazetteer"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
}

// PipelineConfig holds the disambiguation knobs
type PipelineConfig struct {
	EnableFiltering       bool    `yaml:"enable_filtering" mapstructure:"enable_filtering"`
	FilterStrictMode      bool    `yaml:"filter_strict_mode" mapstructure:"filter_strict_mode"`
	MaxContextsPerCluster int     `yaml:"max_contexts_per_cluster" mapstructure:"max_contexts_per_cluster" validate:"min=1"`
	MaxCandidates         int     `yaml:"max_candidates" mapstructure:"max_candidates" validate:"min=1"`
	SimilarityThreshold   float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold" validate:"min=0,max=1"`
	MinConfidence         string  `yaml:"min_confidence" mapstructure:"min_confidence" validate:"oneof=high medium low"`
	ProximityWindowChars  int     `yaml:"proximity_window_chars" mapstructure:"proximity_window_chars" validate:"min=0"`
	ContextParagraphs     int     `yaml:"context_paragraphs" mapstructure:"context_paragraphs" validate:"min=0"`
	MinPositionSpacing    float64 `yaml:"min_position_spacing" mapstructure:"min_position_spacing" validate:"min=0,max=1"`
	CoherenceCheck        bool    `yaml:"coherence_check" mapstructure:"coherence_check"`
	CoherenceRadiusKm     float64 `yaml:"coherence_radius_km" mapstructure:"coherence_radius_km" validate:"gt=0"`
}

// FilterConfig configures the rule-based toponym filter
type FilterConfig struct {
	AmbiguousTermsFile string `yaml:"ambiguous_terms_file,omitempty" mapstructure:"ambiguous_terms_file"`
}

// LLMConfig holds judgment provider configuration
type LLMConfig struct {
	Provider          string        `yaml:"provider" mapstructure:"provider" validate:"omitempty,oneof=openai openrouter anthropic claude ollama"`
	Model             string        `yaml:"model" mapstructure:"model"`
	APIKey            string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL           string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout           int           `yaml:"timeout" mapstructure:"timeout" validate:"min=1"` // seconds, per call
	MaxTokens         int           `yaml:"max_tokens" mapstructure:"max_tokens" validate:"min=1"`
	Temperature       float64       `yaml:"temperature" mapstructure:"temperature" validate:"min=0,max=2"`
	MaxRetries        int           `yaml:"max_retries" mapstructure:"max_retries" validate:"min=0,max=10"`
	RetryBackoff      time.Duration `yaml:"retry_backoff" mapstructure:"retry_backoff" validate:"min=0"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second" validate:"gt=0"`
	Burst             int           `yaml:"burst" mapstructure:"burst" validate:"min=1"`
	HTTPProxy         string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy        string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy           string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// GazetteerConfig selects and configures the candidate gazetteer
type GazetteerConfig struct {
	Backend     string `yaml:"backend" mapstructure:"backend" validate:"oneof=neo4j static"`
	URI         string `yaml:"uri,omitempty" mapstructure:"uri" validate:"required_if=Backend neo4j"`
	User        string `yaml:"user,omitempty" mapstructure:"user"`
	Password    string `yaml:"password,omitempty" mapstructure:"password"`
	Database    string `yaml:"database,omitempty" mapstructure:"database"`
	File        string `yaml:"file,omitempty" mapstructure:"file" validate:"required_if=Backend static"`
	MaxPoolSize int    `yaml:"max_pool_size" mapstructure:"max_pool_size" validate:"min=1"`
}

// CacheConfig configures the gazetteer cache layers
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskDir   string        `yaml:"disk_dir" mapstructure:"disk_dir"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
	RedisAddr string        `yaml:"redis_addr,omitempty" mapstructure:"redis_addr"` // Replaces the disk layer when set
}

// ConcurrencyConfig bounds the worker pools
type ConcurrencyConfig struct {
	Documents int `yaml:"documents" mapstructure:"documents" validate:"min=1"`
	Judgments int `yaml:"judgments" mapstructure:"judgments" validate:"min=1"`
}

// OutputConfig controls report rendering and persistence
type OutputConfig struct {
	Dir                   string `yaml:"dir" mapstructure:"dir"`
	DBPath                string `yaml:"db_path,omitempty" mapstructure:"db_path"`
	ZeroMatchExport       string `yaml:"zero_match_export,omitempty" mapstructure:"zero_match_export"`
	ZeroMatchMinFrequency int    `yaml:"zero_match_min_frequency" mapstructure:"zero_match_min_frequency" validate:"min=1"`
	Verbose               bool   `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			EnableFiltering:       true,
			FilterStrictMode:      false,
			MaxContextsPerCluster: 3,
			MaxCandidates:         10,
			SimilarityThreshold:   0.3,
			MinConfidence:         "medium",
			ProximityWindowChars:  500,
			ContextParagraphs:     2,
			MinPositionSpacing:    0.1,
			CoherenceCheck:        true,
			CoherenceRadiusKm:     250,
		},
		LLM: LLMConfig{
			Provider:          "",
			Model:             "",
			Timeout:           60,
			MaxTokens:         1000,
			Temperature:       0.1,
			MaxRetries:        2,
			RetryBackoff:      time.Second,
			RequestsPerSecond: 2,
			Burst:             4,
		},
		Gazetteer: GazetteerConfig{
			Backend:     "neo4j",
			URI:         "bolt://localhost:7687",
			User:        "neo4j",
			Database:    "neo4j",
			MaxPoolSize: 20,
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: time.Hour,
			DiskDir:   defaultCacheDir(),
			DiskTTL:   7 * 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Documents: 2,
			Judgments: 4,
		},
		Output: OutputConfig{
			Dir:                   "./toporag-reports",
			ZeroMatchMinFrequency: 1,
		},
	}
}

func defaultCacheDir() string {
	return ".toporag-cache"
}

// MinConfidenceTier returns the acceptance threshold as a Tier
func (c *Config) MinConfidenceTier() Tier {
	t, err := ParseTier(c.Pipeline.MinConfidence)
	if err != nil {
		return TierHigh
	}
	return t
}

// Validate checks every field and returns an ErrInvalidConfig-wrapped error listing all problems
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, formatValidationError(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

// formatValidationError creates a human-readable error message
func formatValidationError(fe validator.FieldError) string {
	field := fe.Namespace()
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("%s must be >= %s (got %v)", field, fe.Param(), fe.Value())
	case "max":
		return fmt.Sprintf("%s must be <= %s (got %v)", field, fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be > %s (got %v)", field, fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got %q)", field, fe.Param(), fe.Value())
	case "required_if":
		return fmt.Sprintf("%s is required when %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
