package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// RedisConfig holds Redis connection settings. Empty Addr means the
// in-memory store is used instead.
type RedisConfig struct {
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	TTL      Duration `yaml:"ttl"`
}

// WorkflowConfig holds engine tuning.
type WorkflowConfig struct {
	MaxErrors    int      `yaml:"max_errors"`
	InterruptTTL Duration `yaml:"interrupt_ttl"`
	LockTTL      Duration `yaml:"lock_ttl"`
}

// SecurityConfig holds the security chain tuning.
type SecurityConfig struct {
	MaxInputTokens    int     `yaml:"max_input_tokens"`
	DailyCeiling      float64 `yaml:"daily_ceiling"`
	CostPerKiloTokens float64 `yaml:"cost_per_kilo_tokens"`
	MaxChars          int     `yaml:"max_chars"`
	BlocklistPath     string  `yaml:"blocklist_path"`
}

// QueryConfig holds the query translation settings.
type QueryConfig struct {
	MaxRetries int `yaml:"max_retries"`
}

// LLMConfig holds the text generation backend settings. The API key is only
// read from the environment, never from the file.
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"-"`
}

// Config is the top-level configuration.
type Config struct {
	LogLevel string         `yaml:"log_level"`
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Security SecurityConfig `yaml:"security"`
	Query    QueryConfig    `yaml:"query"`
	LLM      LLMConfig      `yaml:"llm"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Server: ServerConfig{
			Addr: ":8080",
		},
		Workflow: WorkflowConfig{
			MaxErrors:    3,
			InterruptTTL: Duration(24 * time.Hour),
			LockTTL:      Duration(30 * time.Second),
		},
		Security: SecurityConfig{
			MaxInputTokens:    2000,
			DailyCeiling:      10.0,
			CostPerKiloTokens: 0.002,
			MaxChars:          1500,
		},
		Query: QueryConfig{
			MaxRetries: 3,
		},
		LLM: LLMConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
	}
}

// Load reads configuration from a YAML file, overlaying defaults. A missing
// file returns defaults. Environment variables override both.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ENROLLKIT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("ENROLLKIT_HTTP_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("ENROLLKIT_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("ENROLLKIT_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("ENROLLKIT_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = db
		}
	}
	if v := os.Getenv("ENROLLKIT_BLOCKLIST_PATH"); v != "" {
		c.Security.BlocklistPath = v
	}
	if v := os.Getenv("ENROLLKIT_LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("ENROLLKIT_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("ENROLLKIT_LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
}
