// Package config loads the pipeline configuration file and the API keys
// the service clients need.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the immutable pipeline configuration, loaded once and passed
// down to the controller.
type Config struct {
	// CatalogPath points at the condition catalog CSV.
	CatalogPath string `yaml:"catalog"`

	// OutputDir is where per-condition directories are written.
	OutputDir string `yaml:"output_dir"`

	// RelevancePath points at the optional local-knowledge relevance
	// index. Empty or missing means the local-integration stage is
	// skipped.
	RelevancePath string `yaml:"relevance_index,omitempty"`

	// CachePath is the search-result cache database. Empty disables
	// caching.
	CachePath string `yaml:"cache,omitempty"`

	// Concurrency is how many conditions run at once.
	Concurrency int `yaml:"concurrency"`

	Model  ModelConfig  `yaml:"model"`
	Search SearchConfig `yaml:"search"`
}

// ModelConfig tunes the generative-model client.
type ModelConfig struct {
	// Name is the model identifier, e.g. "gemini-2.0-flash".
	Name string `yaml:"name"`

	// MaxAttempts bounds retries of transient model failures.
	MaxAttempts int `yaml:"max_attempts"`

	// RepairAttempts bounds re-prompts after malformed JSON output.
	RepairAttempts int `yaml:"repair_attempts"`

	// MaxInFlight caps concurrent model calls across all conditions.
	MaxInFlight int `yaml:"max_in_flight"`
}

// SearchConfig tunes the bibliographic search adapter.
type SearchConfig struct {
	// PerQueryLimit is how many results each service is asked for.
	PerQueryLimit int `yaml:"per_query_limit"`

	// TopPerQuery is how many ranked records survive per query.
	TopPerQuery int `yaml:"top_per_query"`

	// MinCitations rejects under-cited papers. Zero disables the floor.
	MinCitations int `yaml:"min_citations"`

	// CacheTTLDays is how long cached search results stay fresh.
	CacheTTLDays int `yaml:"cache_ttl_days"`
}

// Defaults applied when the file leaves a knob unset.
const (
	DefaultModelName      = "gemini-2.0-flash"
	DefaultConcurrency    = 3
	DefaultMaxAttempts    = 5
	DefaultRepairAttempts = 2
	DefaultMaxInFlight    = 4
	DefaultPerQueryLimit  = 5
	DefaultTopPerQuery    = 3
	DefaultMinCitations   = 10
	DefaultCacheTTLDays   = 7
)

// Load reads and validates the pipeline config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Model.Name == "" {
		c.Model.Name = DefaultModelName
	}
	if c.Model.MaxAttempts <= 0 {
		c.Model.MaxAttempts = DefaultMaxAttempts
	}
	if c.Model.RepairAttempts <= 0 {
		c.Model.RepairAttempts = DefaultRepairAttempts
	}
	if c.Model.MaxInFlight <= 0 {
		c.Model.MaxInFlight = DefaultMaxInFlight
	}
	if c.Search.PerQueryLimit <= 0 {
		c.Search.PerQueryLimit = DefaultPerQueryLimit
	}
	if c.Search.TopPerQuery <= 0 {
		c.Search.TopPerQuery = DefaultTopPerQuery
	}
	if c.Search.MinCitations < 0 {
		c.Search.MinCitations = DefaultMinCitations
	}
	if c.Search.CacheTTLDays <= 0 {
		c.Search.CacheTTLDays = DefaultCacheTTLDays
	}
}

func (c *Config) validate() error {
	if c.CatalogPath == "" {
		return fmt.Errorf("config must set 'catalog'")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("config must set 'output_dir'")
	}
	if c.Search.TopPerQuery > c.Search.PerQueryLimit {
		return fmt.Errorf("top_per_query (%d) cannot exceed per_query_limit (%d)",
			c.Search.TopPerQuery, c.Search.PerQueryLimit)
	}
	return nil
}

// ArticlePath returns where a condition's final article lives.
func (c *Config) ArticlePath(slug string) string {
	return filepath.Join(c.OutputDir, slug, "article.json")
}

// ConditionDir returns a condition's working directory under the output
// root.
func (c *Config) ConditionDir(slug string) string {
	return filepath.Join(c.OutputDir, slug)
}
