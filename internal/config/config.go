package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type StoreConfig struct {
	Driver      string `yaml:"driver"` // memory | postgres
	DatabaseURL string `yaml:"database_url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
	AdminUser     string        `yaml:"admin_user"`
	AdminPassword string        `yaml:"admin_password"`
}

type AIConfig struct {
	Provider     string `yaml:"provider"` // openai | gemini | noop
	OpenAIKey    string `yaml:"openai_key"`
	OpenAIModel  string `yaml:"openai_model"`
	GeminiKey    string `yaml:"gemini_key"`
	GeminiModel  string `yaml:"gemini_model"`
	MaxTokens    int    `yaml:"max_tokens"`    // completion budget per expert call
	PromptBudget int    `yaml:"prompt_budget"` // max tokens of context fed to an expert
}

type PipelineConfig struct {
	Workers        int           `yaml:"workers"`
	ExpertRetries  int           `yaml:"expert_retries"`
	RetryBackoff   time.Duration `yaml:"retry_backoff"`
	PersistRetries int           `yaml:"persist_retries"`
	TitleMaxLength int           `yaml:"title_max_length"`
	TitleStyle     string        `yaml:"title_style"` // engaging | technical | formal
}

type LimitsConfig struct {
	SubmitPerMinute int  `yaml:"submit_per_minute"`
	Enabled         bool `yaml:"enabled"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Store    StoreConfig    `yaml:"store"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	AI       AIConfig       `yaml:"ai"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Limits   LimitsConfig   `yaml:"limits"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig() (*Config, error) {
	var configPath string = ""
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()

	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "memory"
	}
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = 12 * time.Hour
	}
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "noop"
	}
	if cfg.AI.OpenAIModel == "" {
		cfg.AI.OpenAIModel = "gpt-4o-mini"
	}
	if cfg.AI.GeminiModel == "" {
		cfg.AI.GeminiModel = "gemini-2.0-flash"
	}
	if cfg.AI.MaxTokens <= 0 {
		cfg.AI.MaxTokens = 2048
	}
	if cfg.AI.PromptBudget <= 0 {
		cfg.AI.PromptBudget = 6000
	}
	if cfg.Pipeline.Workers <= 0 {
		cfg.Pipeline.Workers = 4
	}
	if cfg.Pipeline.ExpertRetries < 0 {
		cfg.Pipeline.ExpertRetries = 0
	}
	if cfg.Pipeline.RetryBackoff <= 0 {
		cfg.Pipeline.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.Pipeline.PersistRetries <= 0 {
		cfg.Pipeline.PersistRetries = 3
	}
	if cfg.Pipeline.TitleMaxLength <= 0 {
		cfg.Pipeline.TitleMaxLength = 80
	}
	if cfg.Pipeline.TitleStyle == "" {
		cfg.Pipeline.TitleStyle = "engaging"
	}
	if cfg.Limits.SubmitPerMinute <= 0 {
		cfg.Limits.SubmitPerMinute = 10
	}
}

func validate(cfg *Config) error {
	switch cfg.Store.Driver {
	case "memory":
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return errors.New("store.database_url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", cfg.Store.Driver)
	}
	switch cfg.AI.Provider {
	case "noop":
	case "openai":
		if cfg.AI.OpenAIKey == "" {
			return errors.New("ai.openai_key is required for the openai provider")
		}
	case "gemini":
		if cfg.AI.GeminiKey == "" {
			return errors.New("ai.gemini_key is required for the gemini provider")
		}
	default:
		return fmt.Errorf("unknown ai.provider %q", cfg.AI.Provider)
	}
	if cfg.Limits.Enabled && cfg.Redis.URL == "" {
		return errors.New("redis.url is required when rate limiting is enabled")
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if cfg.Auth.AdminUser == "" || cfg.Auth.AdminPassword == "" {
		return errors.New("auth.admin_user and auth.admin_password are required")
	}
	return nil
}
