// Package config loads agent configuration from file, environment, and
// defaults via viper. Precedence: explicit flags, then SCOUT_* environment
// variables, then the config file, then defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LLMConfig selects and authenticates the language model.
type LLMConfig struct {
	Model       string `mapstructure:"model"`
	APIKey      string `mapstructure:"api_key"`
	BaseURL     string `mapstructure:"base_url"`
	TimeoutSecs int    `mapstructure:"timeout_seconds"`
}

// EmbeddingConfig selects the embedder. An empty APIKey falls back to the
// local hash embedder.
type EmbeddingConfig struct {
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Dimension int    `mapstructure:"dimension"`
	CacheSize int    `mapstructure:"cache_size"`
}

// SearchConfig holds web search credentials.
type SearchConfig struct {
	TavilyAPIKey string `mapstructure:"tavily_api_key"`
}

// MemoryConfig tunes persistence and the memory system.
type MemoryConfig struct {
	DataDir              string `mapstructure:"data_dir"`
	ReflectionInterval   int    `mapstructure:"reflection_interval"`
	MaxContextTokens     int    `mapstructure:"max_context_tokens"`
	AutoConsolidate      bool   `mapstructure:"auto_consolidate"`
	ConsolidationAgeDays int    `mapstructure:"consolidation_age_days"`
}

// AgentConfig tunes the control loop.
type AgentConfig struct {
	MaxIterations        int  `mapstructure:"max_iterations"`
	EnableAutoReflection bool `mapstructure:"enable_auto_reflection"`
}

// Config is the full application configuration.
type Config struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Search    SearchConfig    `mapstructure:"search"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	Agent     AgentConfig     `mapstructure:"agent"`
}

// ConsolidationAge returns the consolidation age as a duration.
func (c *Config) ConsolidationAge() time.Duration {
	return time.Duration(c.Memory.ConsolidationAgeDays) * 24 * time.Hour
}

// VectorPath returns where the vector store persists inside the data dir.
func (c *Config) VectorPath() string {
	if c.Memory.DataDir == "" {
		return ""
	}
	return filepath.Join(c.Memory.DataDir, "vectors.gob")
}

// Load reads configuration. configFile may be empty, in which case the
// default locations are searched; a missing config file is not an error.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout_seconds", 120)
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimension", 1536)
	v.SetDefault("embedding.cache_size", 10000)
	v.SetDefault("memory.data_dir", defaultDataDir())
	v.SetDefault("memory.reflection_interval", 5)
	v.SetDefault("memory.max_context_tokens", 4000)
	v.SetDefault("memory.auto_consolidate", true)
	v.SetDefault("memory.consolidation_age_days", 30)
	v.SetDefault("agent.max_iterations", 25)
	v.SetDefault("agent.enable_auto_reflection", true)

	v.SetEnvPrefix("SCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("scout")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".scout"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".scout"
	}
	return filepath.Join(home, ".scout", "data")
}
