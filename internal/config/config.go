package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the kbroute API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	Scorer    ScorerConfig    `yaml:"scorer"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Mapping   MappingConfig   `yaml:"mapping"`
	Search    SearchConfig    `yaml:"search"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Redis connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	DialTimeoutSec   int      `yaml:"dial_timeout_sec"`
	WriteTimeoutSec  int      `yaml:"write_timeout_sec"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// ScorerConfig holds the relevance scorer settings.
type ScorerConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	CacheTTLSec int     `yaml:"cache_ttl_sec"` // 0 disables the cache
}

// EmbeddingConfig holds query embedding settings. Without a model, retrieval falls back to BM25.
type EmbeddingConfig struct {
	APIKey           string `yaml:"api_key"`
	BaseURL          string `yaml:"base_url"`
	Model            string `yaml:"model"`
	Dimensions       int    `yaml:"dimensions"`
	QueryInstruction string `yaml:"query_instruction"`
	CacheTTLSec      int    `yaml:"cache_ttl_sec"`
}

// Enabled reports whether query embedding is configured.
func (e EmbeddingConfig) Enabled() bool { return e.Model != "" }

// MappingConfig holds knowledge base mapping defaults.
type MappingConfig struct {
	MinRelevance *float64 `yaml:"min_relevance"`
	MaxKBs       *int     `yaml:"max_kbs"` // 0 = unlimited
}

// SearchConfig holds per knowledge base search defaults.
type SearchConfig struct {
	Mode              string   `yaml:"mode"`
	MinRelevance      *float64 `yaml:"min_relevance"`
	MaxSegmentsPerDoc *int     `yaml:"max_segments_per_doc"` // 0 = unlimited
	AdaptiveRecall    *bool    `yaml:"adaptive_recall"`
	Concurrency       int      `yaml:"concurrency"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.DialTimeoutSec <= 0 {
		c.Database.DialTimeoutSec = 5
	}
	if c.Database.WriteTimeoutSec <= 0 {
		c.Database.WriteTimeoutSec = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "kbroute:"
	}
	if c.Scorer.Model == "" {
		c.Scorer.Model = "gpt-4o-mini"
	}
	if c.Mapping.MinRelevance == nil {
		c.Mapping.MinRelevance = ptr(0.6)
	}
	if c.Mapping.MaxKBs == nil {
		c.Mapping.MaxKBs = ptr(3)
	}
	if c.Search.Mode == "" {
		c.Search.Mode = "balanced"
	}
	if c.Search.MinRelevance == nil {
		c.Search.MinRelevance = ptr(0.6)
	}
	if c.Search.MaxSegmentsPerDoc == nil {
		c.Search.MaxSegmentsPerDoc = ptr(3)
	}
	if c.Search.AdaptiveRecall == nil {
		c.Search.AdaptiveRecall = ptr(true)
	}
	if c.Search.Concurrency == 0 {
		c.Search.Concurrency = 1
	}
}

// Validate checks the configuration for correctness. Call after ApplyDefaults.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Database.DB < 0 {
		return fmt.Errorf("database.db must be non-negative, got %d", c.Database.DB)
	}
	if c.Scorer.Temperature < 0 || c.Scorer.Temperature > 2 {
		return fmt.Errorf("scorer.temperature must be between 0 and 2, got %v", c.Scorer.Temperature)
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must be non-negative, got %d", c.Embedding.Dimensions)
	}
	if err := checkRelevance("mapping.min_relevance", c.Mapping.MinRelevance); err != nil {
		return err
	}
	if c.Mapping.MaxKBs != nil && *c.Mapping.MaxKBs < 0 {
		return fmt.Errorf("mapping.max_kbs must be non-negative, got %d", *c.Mapping.MaxKBs)
	}
	switch c.Search.Mode {
	case "precise", "balanced", "thorough", "exhaustive":
	default:
		return fmt.Errorf(
			"search.mode must be one of precise, balanced, thorough, exhaustive, got %q", c.Search.Mode,
		)
	}
	if err := checkRelevance("search.min_relevance", c.Search.MinRelevance); err != nil {
		return err
	}
	if c.Search.MaxSegmentsPerDoc != nil && *c.Search.MaxSegmentsPerDoc < 0 {
		return fmt.Errorf("search.max_segments_per_doc must be non-negative, got %d", *c.Search.MaxSegmentsPerDoc)
	}
	if c.Search.Concurrency < 1 {
		return fmt.Errorf("search.concurrency must be at least 1, got %d", c.Search.Concurrency)
	}
	return nil
}

func checkRelevance(name string, v *float64) error {
	if v != nil && (*v < 0 || *v > 1) {
		return fmt.Errorf("%s must be between 0 and 1, got %v", name, *v)
	}
	return nil
}

func ptr[T any](v T) *T { return &v }

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
