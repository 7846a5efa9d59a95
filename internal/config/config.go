// Package config loads server settings from flags, environment variables
// (BLINKY_ prefix) and an optional config file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "BLINKY"

type Config struct {
	Mode string `mapstructure:"mode"`
	Addr string `mapstructure:"addr"`

	DB struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"db"`

	LLM struct {
		Provider    string        `mapstructure:"provider"`
		BaseURL     string        `mapstructure:"base_url"`
		APIKey      string        `mapstructure:"api_key"`
		Model       string        `mapstructure:"model"`
		Temperature float64       `mapstructure:"temperature"`
		TopP        float64       `mapstructure:"top_p"`
		NumPredict  int           `mapstructure:"num_predict"`
		Timeout     time.Duration `mapstructure:"timeout"`
	} `mapstructure:"llm"`

	Context struct {
		Window      int    `mapstructure:"window"`
		TokenBudget int    `mapstructure:"token_budget"`
		Encoding    string `mapstructure:"encoding"`
	} `mapstructure:"context"`

	Personalities struct {
		SeedFile string `mapstructure:"seed_file"`
	} `mapstructure:"personalities"`

	RateLimit struct {
		PerSecond float64 `mapstructure:"per_second"`
		Burst     int     `mapstructure:"burst"`
	} `mapstructure:"ratelimit"`
}

func (c *Config) IsDev() bool {
	return c.Mode != "prod"
}

// SetDefaults registers every key with its default so env variables bind
// even when no config file mentions them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("mode", "prod")
	v.SetDefault("addr", ":8100")
	v.SetDefault("db.path", "blinky.db")

	v.SetDefault("llm.provider", "ollama")
	v.SetDefault("llm.base_url", "http://localhost:11434")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "llama3.1:8b")
	v.SetDefault("llm.temperature", 0.4)
	v.SetDefault("llm.top_p", 0.5)
	v.SetDefault("llm.num_predict", 128)
	v.SetDefault("llm.timeout", 60*time.Second)

	v.SetDefault("context.window", 8)
	v.SetDefault("context.token_budget", 0)
	v.SetDefault("context.encoding", "cl100k_base")

	v.SetDefault("personalities.seed_file", "")

	v.SetDefault("ratelimit.per_second", 1.0)
	v.SetDefault("ratelimit.burst", 5)
}

// BindFlags adds the most used settings as flags on fs and binds them.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	fs.String("config", "", "path to a config file (yaml, toml or json)")
	fs.String("mode", "prod", "dev or prod")
	fs.String("addr", ":8100", "HTTP listen address")
	fs.String("db", "blinky.db", "SQLite database path")
	fs.String("llm-provider", "ollama", "ollama, openai or langchain-ollama")
	fs.String("llm-base-url", "http://localhost:11434", "model endpoint base URL")
	fs.String("llm-model", "llama3.1:8b", "model identifier")
	fs.String("seed", "", "YAML file of personalities to upsert at startup")

	bindings := map[string]string{
		"mode":                    "mode",
		"addr":                    "addr",
		"db.path":                 "db",
		"llm.provider":            "llm-provider",
		"llm.base_url":            "llm-base-url",
		"llm.model":               "llm-model",
		"personalities.seed_file": "seed",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return err
		}
	}
	return nil
}

// Load reads configFile (if set) and the environment into a Config.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Context.Window <= 0 {
		errs = append(errs, fmt.Errorf("context.window must be positive, got %d", c.Context.Window))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 1 {
		errs = append(errs, fmt.Errorf("llm.temperature must be within [0,1], got %v", c.LLM.Temperature))
	}
	if c.LLM.TopP < 0 || c.LLM.TopP > 1 {
		errs = append(errs, fmt.Errorf("llm.top_p must be within [0,1], got %v", c.LLM.TopP))
	}
	if c.LLM.NumPredict <= 0 {
		errs = append(errs, fmt.Errorf("llm.num_predict must be positive, got %d", c.LLM.NumPredict))
	}
	if c.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}
	if c.RateLimit.PerSecond < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("ratelimit values must not be negative"))
	}
	return errors.Join(errs...)
}
