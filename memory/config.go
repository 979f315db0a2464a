package memory

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level memory configuration, covering all three tiers and
// the Manager around them.
type Config struct {
	Store      StoreConfig    `yaml:"store" json:"store"`
	Episodic   EpisodicConfig `yaml:"episodic" json:"episodic"`
	Semantic   SemanticConfig `yaml:"semantic" json:"semantic"`
	Categories CategoryConfig `yaml:"categories" json:"categories"`
	Manager    ManagerConfig  `yaml:"manager" json:"manager"`
}

// StoreConfig configures the flat MemoryStore.
type StoreConfig struct {
	Capacity int `yaml:"capacity" json:"capacity"`
}

// EpisodicConfig configures EpisodicMemory.
type EpisodicConfig struct {
	MaxEpisodes          int `yaml:"max_episodes" json:"max_episodes"`
	MaxEntriesPerEpisode int `yaml:"max_entries_per_episode" json:"max_entries_per_episode"`
}

// SemanticConfig configures SemanticMemory.
type SemanticConfig struct {
	Capacity int `yaml:"capacity" json:"capacity"`
}

// CategoryConfig wraps the MemoryStore in a CategorizedStore when enabled.
type CategoryConfig struct {
	Enabled       bool `yaml:"enabled" json:"enabled"`
	PriorityLimit int  `yaml:"priority_limit" json:"priority_limit"`
	CategoryLimit int  `yaml:"category_limit" json:"category_limit"`
}

// ManagerConfig configures TieredManager.
type ManagerConfig struct {
	// Enabled toggles recording and retrieval. Default: false (opt-in).
	Enabled bool `yaml:"enabled" json:"enabled"`

	// MinSimilarity drops similarity hits below this score [0.0-1.0].
	// Small local models score similar text around 0.35, so the default is low.
	MinSimilarity float64 `yaml:"min_similarity" json:"min_similarity"`

	// RecallLimit caps the entries included in one retrieval.
	RecallLimit int `yaml:"recall_limit" json:"recall_limit"`

	// EpisodeLimit caps the episodes summarised in one retrieval.
	EpisodeLimit int `yaml:"episode_limit" json:"episode_limit"`

	// CacheTTL is how long a formatted retrieval is reused. Recording
	// invalidates the cache regardless.
	CacheTTL time.Duration `yaml:"cache_ttl" json:"cache_ttl"`

	// CacheMaxCost bounds the cache size in bytes of formatted output.
	CacheMaxCost int64 `yaml:"cache_max_cost" json:"cache_max_cost"`
}

// DefaultConfig returns the defaults for every field.
func DefaultConfig() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Store.Capacity == 0 {
		c.Store.Capacity = DefaultStoreCapacity
	}
	if c.Episodic.MaxEpisodes == 0 {
		c.Episodic.MaxEpisodes = DefaultMaxEpisodes
	}
	if c.Episodic.MaxEntriesPerEpisode == 0 {
		c.Episodic.MaxEntriesPerEpisode = DefaultMaxEntriesPerEpisode
	}
	if c.Semantic.Capacity == 0 {
		c.Semantic.Capacity = DefaultSemanticCapacity
	}
	if c.Categories.PriorityLimit == 0 {
		c.Categories.PriorityLimit = DefaultPriorityLimit
	}
	if c.Categories.CategoryLimit == 0 {
		c.Categories.CategoryLimit = DefaultCategoryLimit
	}
	c.Manager.applyDefaults()
}

func (c *ManagerConfig) applyDefaults() {
	if c.MinSimilarity == 0 {
		c.MinSimilarity = 0.3
	}
	if c.RecallLimit == 0 {
		c.RecallLimit = 10
	}
	if c.EpisodeLimit == 0 {
		c.EpisodeLimit = 3
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 5 * time.Minute
	}
	if c.CacheMaxCost == 0 {
		c.CacheMaxCost = 1 << 20
	}
}

// Validate checks that every limit is usable.
func (c *Config) Validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"store.capacity", c.Store.Capacity},
		{"episodic.max_episodes", c.Episodic.MaxEpisodes},
		{"episodic.max_entries_per_episode", c.Episodic.MaxEntriesPerEpisode},
		{"semantic.capacity", c.Semantic.Capacity},
		{"categories.priority_limit", c.Categories.PriorityLimit},
		{"categories.category_limit", c.Categories.CategoryLimit},
		{"manager.recall_limit", c.Manager.RecallLimit},
		{"manager.episode_limit", c.Manager.EpisodeLimit},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%w: %s must be greater than 0, got %d", ErrInvalidConfig, p.name, p.value)
		}
	}

	if c.Manager.MinSimilarity < 0 || c.Manager.MinSimilarity > 1 {
		return fmt.Errorf("%w: manager.min_similarity must be in [0,1], got %g", ErrInvalidConfig, c.Manager.MinSimilarity)
	}
	if c.Manager.CacheTTL < 0 {
		return fmt.Errorf("%w: manager.cache_ttl cannot be negative, got %s", ErrInvalidConfig, c.Manager.CacheTTL)
	}
	if c.Manager.CacheMaxCost < 0 {
		return fmt.Errorf("%w: manager.cache_max_cost cannot be negative, got %d", ErrInvalidConfig, c.Manager.CacheMaxCost)
	}
	return nil
}

// LoadConfig reads a YAML config file. ${VAR} references are expanded from
// the environment before parsing; unset fields get their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML config data the same way LoadConfig does.
func ParseConfig(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse yaml: %v", ErrInvalidConfig, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
