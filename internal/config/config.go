// Package config provides configuration loading and structs for the matching server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// MemoryPath as bleve_index_path keeps the index in memory.
const MemoryPath = ":memory:"

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Index   IndexConfig   `yaml:"index"`
	Search  SearchConfig  `yaml:"search"`
	// WatchConfig reloads the search section when the config file changes.
	WatchConfig bool `yaml:"watch_config"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the index and the sync ledger.
type StorageConfig struct {
	BleveIndexPath string `yaml:"bleve_index_path"`
	LedgerPath     string `yaml:"ledger_path"`
}

// IndexConfig holds write path settings.
type IndexConfig struct {
	BatchSize int `yaml:"batch_size"`
}

// SearchConfig holds query tuning. Every field can be hot reloaded.
type SearchConfig struct {
	DefaultPageSize     int              `yaml:"default_page_size"`
	MaxPageSize         int              `yaml:"max_page_size"`
	TitleBoost          float64          `yaml:"title_boost"`
	ContentBoost        float64          `yaml:"content_boost"`
	TagsBoost           float64          `yaml:"tags_boost"`
	FragmentSize        int              `yaml:"fragment_size"`
	MaxFragments        int              `yaml:"max_fragments"`
	PreTag              string           `yaml:"pre_tag"`
	PostTag             string           `yaml:"post_tag"`
	SuggestionMinLength int              `yaml:"suggestion_min_length"`
	DefaultSuggestions  int              `yaml:"default_suggestions"`
	Similarity          SimilarityConfig `yaml:"similarity"`
}

// SimilarityConfig controls term selection for more-like-this queries.
type SimilarityConfig struct {
	MinTermFreq   int `yaml:"min_term_freq"`
	MinDocFreq    int `yaml:"min_doc_freq"`
	MinWordLength int `yaml:"min_word_length"`
	MaxQueryTerms int `yaml:"max_query_terms"`
	// MinShouldMatch is the fraction of selected terms a candidate must contain,
	// rounded down with a minimum of one term.
	MinShouldMatch float64 `yaml:"min_should_match"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Storage.LedgerPath = expandPath(cfg.Storage.LedgerPath, configDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Search.DefaultPageSize > c.Search.MaxPageSize {
		return fmt.Errorf("default_page_size %d exceeds max_page_size %d", c.Search.DefaultPageSize, c.Search.MaxPageSize)
	}
	if s := c.Search.Similarity.MinShouldMatch; s < 0 || s > 1 {
		return fmt.Errorf("similarity.min_should_match must be within [0, 1], got %v", s)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. MemoryPath is kept as is.
func expandPath(path string, configDir string) string {
	if path == MemoryPath || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
