// Package config loads cram settings from a TOML file.
//
// Settings are looked up in order: an explicit path, $CRAM_CONFIG,
// ~/.cram/config.toml. With no file every value takes its default.
// Keys missing from a file keep their defaults as well.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// EnvVar names the environment variable holding a config file path.
const EnvVar = "CRAM_CONFIG"

// Config holds every tunable of a run.
type Config struct {
	Strategy      string   `toml:"strategy"`
	Threshold     *float64 `toml:"threshold,omitempty"` // nil uses the strategy default
	ClusterTopics int      `toml:"cluster_topics"`
	SampleSize    int      `toml:"sample_size"`
	Seed          uint64   `toml:"seed"` // 0 seeds from the runtime
	Workers       int      `toml:"workers"`

	TFIDF     TFIDFConfig     `toml:"tfidf"`
	Embedding EmbeddingConfig `toml:"embedding"`
	OCR       OCRConfig       `toml:"ocr"`
	Syllabus  SyllabusConfig  `toml:"syllabus"`
}

// TFIDFConfig configures the lexical strategy.
type TFIDFConfig struct {
	Stem bool `toml:"stem"`
}

// EmbeddingConfig configures the semantic strategy.
type EmbeddingConfig struct {
	Provider    string `toml:"provider"`
	Model       string `toml:"model"`
	BaseURL     string `toml:"base_url"`
	APIKeyEnv   string `toml:"api_key_env"`
	CacheTopics bool   `toml:"cache_topics"`
	MaxTokens   int    `toml:"max_tokens"` // 0 disables truncation
	Counter     string `toml:"counter"`    // tokens or runes
}

// OCRConfig locates the OCR tools.
type OCRConfig struct {
	Tesseract   string `toml:"tesseract"`
	Pdftoppm    string `toml:"pdftoppm"`
	Lang        string `toml:"lang"`
	DPI         int    `toml:"dpi"`
	MaxPages    int    `toml:"max_pages"`
	MinPDFChars int    `toml:"min_pdf_chars"`
}

// SyllabusConfig tunes topic extraction from a syllabus.
type SyllabusConfig struct {
	DropBoilerplate bool `toml:"drop_boilerplate"`
	SplitSentences  bool `toml:"split_sentences"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Strategy:   "tfidf",
		SampleSize: 3,
		Workers:    4,
		Embedding: EmbeddingConfig{
			Provider:  "ollama",
			APIKeyEnv: "GEMINI_API_KEY",
			MaxTokens: 512,
			Counter:   "tokens",
		},
		OCR: OCRConfig{
			Tesseract:   "tesseract",
			Pdftoppm:    "pdftoppm",
			Lang:        "eng",
			DPI:         300,
			MinPDFChars: 50,
		},
		Syllabus: SyllabusConfig{
			DropBoilerplate: false,
			SplitSentences:  true,
		},
	}
}

// ResolvePath returns the config file to load, or "" when none applies.
// An explicit path is returned even if it does not exist so that Load
// can report it.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(EnvVar); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	p := filepath.Join(home, ".cram", "config.toml")
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

// Load reads the file at path over the defaults. An empty path returns the
// defaults. Unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return cfg, fmt.Errorf("unknown keys in config %s:\n%s", path, strict.String())
		}
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	switch c.Strategy {
	case "tfidf", "embedding":
	default:
		errs = append(errs, fmt.Errorf("strategy %q must be tfidf or embedding", c.Strategy))
	}
	if t := c.Threshold; t != nil && (*t < 0 || *t > 1) {
		errs = append(errs, fmt.Errorf("threshold %v must be within [0, 1]", *t))
	}
	if c.ClusterTopics < 0 {
		errs = append(errs, fmt.Errorf("cluster_topics %d must not be negative", c.ClusterTopics))
	}
	if c.SampleSize < 0 {
		errs = append(errs, fmt.Errorf("sample_size %d must not be negative", c.SampleSize))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers %d must be at least 1", c.Workers))
	}
	if c.Embedding.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("embedding.max_tokens %d must not be negative", c.Embedding.MaxTokens))
	}
	return errors.Join(errs...)
}

// APIKey returns the embedding API key from the configured variable.
func (c Config) APIKey() string {
	if c.Embedding.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Embedding.APIKeyEnv)
}

// Marshal renders the config as TOML, for writing a starter file.
func (c Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}
