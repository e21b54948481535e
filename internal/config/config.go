// Package config loads the orchestrator configuration from research.yaml
// with RESEARCH_-prefixed environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SearxNG configures the search transport.
type SearxNG struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RatePerSecond  float64       `mapstructure:"rate_per_second"`
	RateBurst      int           `mapstructure:"rate_burst"`
	DefaultLang    string        `mapstructure:"default_language"`
	SafeSearch     int           `mapstructure:"safe_search"`
}

// Coordination configures agent fan-out.
type Coordination struct {
	AgentTimeout time.Duration `mapstructure:"agent_timeout"`
}

// Research configures the recursive system.
type Research struct {
	MaxDepth int `mapstructure:"max_depth"`
}

// Redis configures the shared cache tier.
type Redis struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Cache configures result memoization.
type Cache struct {
	TTL           time.Duration `mapstructure:"ttl"`
	LocalCapacity int           `mapstructure:"local_capacity"`
}

// VectorDB configures the document index client.
type VectorDB struct {
	Enabled    bool          `mapstructure:"enabled"`
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	Collection string        `mapstructure:"collection"`
	TopK       int           `mapstructure:"top_k"`
	Threshold  float64       `mapstructure:"threshold"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// LLM configures the text-generation sidecar client.
type LLM struct {
	Enabled     bool          `mapstructure:"enabled"`
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
}

// Streaming configures the progress broadcaster and its endpoints.
type Streaming struct {
	RingCapacity      int           `mapstructure:"ring_capacity"`
	SubscriberBuffer  int           `mapstructure:"subscriber_buffer"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}

// Scoring points at the hot-reloadable weights file.
type Scoring struct {
	WeightsFile string `mapstructure:"weights_file"`
}

// Server configures the HTTP surface.
type Server struct {
	Port        int           `mapstructure:"port"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

// Logging configures zap.
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// Config is the full orchestrator configuration.
type Config struct {
	SearxNG      SearxNG      `mapstructure:"searxng"`
	Coordination Coordination `mapstructure:"coordination"`
	Research     Research     `mapstructure:"research"`
	Redis        Redis        `mapstructure:"redis"`
	Cache        Cache        `mapstructure:"cache"`
	VectorDB     VectorDB     `mapstructure:"vectordb"`
	LLM          LLM          `mapstructure:"llm"`
	Streaming    Streaming    `mapstructure:"streaming"`
	Scoring      Scoring      `mapstructure:"scoring"`
	Server       Server       `mapstructure:"server"`
	Logging      Logging      `mapstructure:"logging"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("searxng.base_url", "http://localhost:8080")
	v.SetDefault("searxng.timeout", "10s")
	v.SetDefault("searxng.rate_per_second", 5.0)
	v.SetDefault("searxng.rate_burst", 10)
	v.SetDefault("searxng.default_language", "en")
	v.SetDefault("searxng.safe_search", 1)

	v.SetDefault("coordination.agent_timeout", "30s")
	v.SetDefault("research.max_depth", 3)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.local_capacity", 128)

	v.SetDefault("vectordb.enabled", false)
	v.SetDefault("vectordb.host", "localhost")
	v.SetDefault("vectordb.port", 6333)
	v.SetDefault("vectordb.collection", "research_documents")
	v.SetDefault("vectordb.top_k", 5)
	v.SetDefault("vectordb.timeout", "5s")

	v.SetDefault("llm.enabled", false)
	v.SetDefault("llm.base_url", "http://localhost:8000")
	v.SetDefault("llm.timeout", "30s")
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.temperature", 0.3)

	v.SetDefault("streaming.ring_capacity", 256)
	v.SetDefault("streaming.subscriber_buffer", 64)
	v.SetDefault("streaming.heartbeat_interval", "15s")

	v.SetDefault("server.port", 8081)
	v.SetDefault("server.read_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Load reads research.yaml from CONFIG_PATH (or ./config/research.yaml),
// applies RESEARCH_ env overrides, and validates. A missing file is fine;
// defaults and env cover everything.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/research.yaml"
	}
	v.SetConfigFile(path)

	v.SetEnvPrefix("RESEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the orchestrator cannot run with.
func (c *Config) Validate() error {
	if c.SearxNG.BaseURL == "" {
		return fmt.Errorf("searxng.base_url must be set")
	}
	if c.Research.MaxDepth < 1 || c.Research.MaxDepth > 5 {
		return fmt.Errorf("research.max_depth must be within [1,5], got %d", c.Research.MaxDepth)
	}
	if c.Coordination.AgentTimeout < time.Second {
		return fmt.Errorf("coordination.agent_timeout must be at least 1s, got %s", c.Coordination.AgentTimeout)
	}
	if c.SearxNG.SafeSearch < 0 || c.SearxNG.SafeSearch > 2 {
		return fmt.Errorf("searxng.safe_search must be 0, 1 or 2, got %d", c.SearxNG.SafeSearch)
	}
	return nil
}
