// Package config loads service configuration from defaults, an optional YAML
// file, and AGENTGATE_* environment overrides, applied in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Server holds HTTP server settings.
type Server struct {
	Addr string `yaml:"addr"`
}

// Logging holds log output settings. Level is one of debug, info, warn,
// error; Format is text or json.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Model selects the LLM provider. APIKey is optional; when empty the
// provider SDK falls back to its own environment variable.
type Model struct {
	Provider string `yaml:"provider"`
	Name     string `yaml:"name"`
	APIKey   string `yaml:"apiKey"`
}

// Redis holds connection settings for the Redis-backed change queue. With
// Enabled false the service uses the in-memory queue.
type Redis struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	QueueKey string `yaml:"queueKey"`
}

// Publisher holds change publisher settings.
type Publisher struct {
	BufferSize int `yaml:"bufferSize"`
}

// MCPServer names one remote tool server.
type MCPServer struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Discovery holds tool discovery settings.
type Discovery struct {
	ResyncTimeoutSeconds int         `yaml:"resyncTimeoutSeconds"`
	Servers              []MCPServer `yaml:"servers"`
}

// ResyncTimeout returns the resync bound as a duration.
func (d Discovery) ResyncTimeout() time.Duration {
	return time.Duration(d.ResyncTimeoutSeconds) * time.Second
}

// Config is the root service configuration.
type Config struct {
	Server    Server    `yaml:"server"`
	Logging   Logging   `yaml:"logging"`
	Model     Model     `yaml:"model"`
	Redis     Redis     `yaml:"redis"`
	Publisher Publisher `yaml:"publisher"`
	Discovery Discovery `yaml:"discovery"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server:    Server{Addr: ":8000"},
		Logging:   Logging{Level: "info", Format: "text"},
		Model:     Model{Provider: "openai", Name: "gpt-4o-mini"},
		Redis:     Redis{Addr: "localhost:6379", QueueKey: "tools:updates"},
		Publisher: Publisher{BufferSize: 100},
		Discovery: Discovery{ResyncTimeoutSeconds: 10},
	}
}

// Load builds the effective configuration. An empty path skips the file
// step; a non-empty path must name a readable YAML file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = getEnv("AGENTGATE_ADDR", c.Server.Addr)
	c.Logging.Level = getEnv("AGENTGATE_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("AGENTGATE_LOG_FORMAT", c.Logging.Format)
	c.Model.Provider = getEnv("AGENTGATE_MODEL_PROVIDER", c.Model.Provider)
	c.Model.Name = getEnv("AGENTGATE_MODEL_NAME", c.Model.Name)
	c.Model.APIKey = getEnv("AGENTGATE_MODEL_API_KEY", c.Model.APIKey)
	c.Redis.Enabled = getEnvBool("AGENTGATE_REDIS_ENABLED", c.Redis.Enabled)
	c.Redis.Addr = getEnv("AGENTGATE_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("AGENTGATE_REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("AGENTGATE_REDIS_DB", c.Redis.DB)
	c.Redis.QueueKey = getEnv("AGENTGATE_REDIS_QUEUE_KEY", c.Redis.QueueKey)
	c.Publisher.BufferSize = getEnvInt("AGENTGATE_PUBLISH_BUFFER_SIZE", c.Publisher.BufferSize)
	c.Discovery.ResyncTimeoutSeconds = getEnvInt("AGENTGATE_RESYNC_TIMEOUT_SECONDS", c.Discovery.ResyncTimeoutSeconds)
}

func (c *Config) validate() error {
	switch c.Model.Provider {
	case "openai", "anthropic", "mock":
	default:
		return fmt.Errorf("unknown model provider %q (expected openai, anthropic or mock)", c.Model.Provider)
	}

	if c.Publisher.BufferSize <= 0 {
		return fmt.Errorf("publisher buffer size must be positive, got %d", c.Publisher.BufferSize)
	}

	if c.Discovery.ResyncTimeoutSeconds <= 0 {
		return fmt.Errorf("resync timeout must be positive, got %d", c.Discovery.ResyncTimeoutSeconds)
	}

	for i, srv := range c.Discovery.Servers {
		if srv.Name == "" || srv.URL == "" {
			return fmt.Errorf("mcp server %d: name and url are required", i)
		}
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}
