package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dshills/catalog-search/internal/catalog"
	"github.com/dshills/catalog-search/internal/embedder"
)

// Environment variables that override the config file
const (
	EnvDBPath            = "CATALOG_DB_PATH"
	EnvEmbeddingProvider = "EMBEDDING_PROVIDER"
	EnvEmbeddingModel    = "EMBEDDING_MODEL"
	EnvEmbeddingCache    = "EMBEDDING_CACHE_SIZE"
	EnvLogLevel          = "LOG_LEVEL"
)

const (
	DefaultDBPath   = "catalog.db"
	DefaultLogLevel = "info"
)

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid configuration")

// DatabaseConfig locates the catalog source
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// EmbeddingConfig selects the query embedding provider
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
	Endpoint  string `yaml:"endpoint"`
	Dimension int    `yaml:"dimension"`
	CacheSize int    `yaml:"cache_size"`

	// APIKey is resolved from APIKeyEnv at load time
	APIKey string `yaml:"-"`
}

// SyntheticConfig derives one endpoint's category from two others.
// Endpoint names refer to entries in Endpoints, not raw category ids.
type SyntheticConfig struct {
	Endpoint       string `yaml:"endpoint"`
	BaseEndpoint   string `yaml:"base_endpoint"`
	SubsetEndpoint string `yaml:"subset_endpoint"`
	SubsetFlag     string `yaml:"subset_flag"`
}

// Config is the root application configuration
type Config struct {
	Database   DatabaseConfig    `yaml:"database"`
	Embedding  EmbeddingConfig   `yaml:"embedding"`
	LogLevel   string            `yaml:"log_level"`
	Synthetic  SyntheticConfig   `yaml:"synthetic"`
	Categories map[string]string `yaml:"categories"` // endpoint name -> category id
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: DefaultDBPath},
		Embedding: EmbeddingConfig{
			CacheSize: embedder.DefaultQueryCacheSize,
		},
		LogLevel: DefaultLogLevel,
		Synthetic: SyntheticConfig{
			Endpoint:       "flooring",
			BaseEndpoint:   "lvps",
			SubsetEndpoint: "tiles",
			SubsetFlag:     catalog.FlagFloor,
		},
		Categories: map[string]string{},
	}
}

// Load builds the configuration from, in increasing precedence: defaults,
// the YAML file at path, the dotenv file at envFile, the process environment.
// Missing files are skipped; an empty path skips that source. Empty
// environment values do not override.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	env := map[string]string{}
	if envFile != "" {
		fileEnv, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read env file %s: %w", envFile, err)
		}
		for k, v := range fileEnv {
			env[k] = v
		}
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && v != "" {
			env[k] = v
		}
	}

	if err := cfg.applyEnv(env); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(env map[string]string) error {
	if v := env[EnvDBPath]; v != "" {
		c.Database.Path = v
	}
	if v := env[EnvEmbeddingProvider]; v != "" {
		c.Embedding.Provider = v
	}
	if v := env[EnvEmbeddingModel]; v != "" {
		c.Embedding.Model = v
	}
	if v := env[EnvEmbeddingCache]; v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, EnvEmbeddingCache, v)
		}
		c.Embedding.CacheSize = size
	}
	if v := env[EnvLogLevel]; v != "" {
		c.LogLevel = v
	}
	if c.Embedding.APIKeyEnv != "" {
		c.Embedding.APIKey = env[c.Embedding.APIKeyEnv]
	}

	if c.Categories == nil {
		c.Categories = map[string]string{}
	}
	for _, e := range Endpoints {
		if v := env[e.EnvKey()]; v != "" {
			c.Categories[e.Name] = v
		}
	}
	return nil
}

// Validate checks that every endpoint has a category id and that the
// synthetic endpoint, if any, refers to known endpoints.
func (c *Config) Validate() error {
	var problems []string

	if c.Database.Path == "" {
		problems = append(problems, "database.path is empty")
	}
	if c.Embedding.Dimension < 0 {
		problems = append(problems, "embedding.dimension is negative")
	}
	switch strings.ToLower(c.Embedding.Provider) {
	case "", embedder.ProviderJina, embedder.ProviderOpenAI, embedder.ProviderLocal:
	default:
		problems = append(problems, fmt.Sprintf("embedding.provider %q is not supported", c.Embedding.Provider))
	}

	var missing []string
	for _, e := range Endpoints {
		if c.Categories[e.Name] == "" {
			missing = append(missing, e.EnvKey())
		}
	}
	if len(missing) > 0 {
		problems = append(problems, "missing category ids: "+strings.Join(missing, ", "))
	}

	var unknown []string
	for name := range c.Categories {
		if _, err := LookupEndpoint(name); err != nil {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		problems = append(problems, "unknown endpoints in categories: "+strings.Join(unknown, ", "))
	}

	if s := c.Synthetic; s.Endpoint != "" {
		for _, name := range []string{s.Endpoint, s.BaseEndpoint, s.SubsetEndpoint} {
			if _, err := LookupEndpoint(name); err != nil {
				problems = append(problems, fmt.Sprintf("synthetic: unknown endpoint %q", name))
			}
		}
		if s.SubsetFlag == "" {
			problems = append(problems, "synthetic.subset_flag is empty")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// CategoryID returns the category searched by endpoint
func (c *Config) CategoryID(endpoint string) (string, error) {
	if _, err := LookupEndpoint(endpoint); err != nil {
		return "", err
	}
	id := c.Categories[endpoint]
	if id == "" {
		return "", fmt.Errorf("%w: no category id for endpoint %s", ErrInvalidConfig, endpoint)
	}
	return id, nil
}

// SyntheticSpec resolves the synthetic endpoint names to category ids.
// The zero spec is returned when no synthetic endpoint is configured.
func (c *Config) SyntheticSpec() catalog.SyntheticSpec {
	s := c.Synthetic
	if s.Endpoint == "" {
		return catalog.SyntheticSpec{}
	}
	return catalog.SyntheticSpec{
		CategoryID:       c.Categories[s.Endpoint],
		BaseCategoryID:   c.Categories[s.BaseEndpoint],
		SubsetCategoryID: c.Categories[s.SubsetEndpoint],
		SubsetFlag:       s.SubsetFlag,
	}
}

// EmbedderConfig returns the settings for embedder.New
func (c *Config) EmbedderConfig() embedder.Config {
	return embedder.Config{
		Provider:  c.Embedding.Provider,
		Model:     c.Embedding.Model,
		APIKey:    c.Embedding.APIKey,
		Dimension: c.Embedding.Dimension,
		Endpoint:  c.Embedding.Endpoint,
	}
}
