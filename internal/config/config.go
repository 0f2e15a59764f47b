// Package config loads the application configuration once at startup and
// hands it to components as a plain value object. Nothing outside this
// package reads viper or the environment directly.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App     App     `mapstructure:"app"`
	LLM     LLM     `mapstructure:"llm"`
	Sources Sources `mapstructure:"sources"`
	Signals Signals `mapstructure:"signals"`
}

// App holds general application configuration.
type App struct {
	LogLevel string `mapstructure:"log_level"`
	DataDir  string `mapstructure:"data_dir"`
}

// LLM holds classifier configuration.
type LLM struct {
	Provider    string       `mapstructure:"provider"` // "gemini" or "openai"
	BatchSize   int          `mapstructure:"batch_size"`
	MinInterval string       `mapstructure:"min_interval"` // pause between classifier calls
	Timeout     string       `mapstructure:"timeout"`
	Gemini      GeminiConfig `mapstructure:"gemini"`
	OpenAI      OpenAIConfig `mapstructure:"openai"`

	minInterval time.Duration
	timeout     time.Duration
}

// GeminiConfig holds Google Gemini configuration.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// OpenAIConfig holds configuration for OpenAI-compatible endpoints.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// Sources holds per-adapter settings. Source-specific filters and feed lists
// live here, not in code.
type Sources struct {
	HackerNews HackerNewsConfig `mapstructure:"hackernews"`
	Substack   SubstackConfig   `mapstructure:"substack"`
	YouTube    YouTubeConfig    `mapstructure:"youtube"`
	Xueqiu     XueqiuConfig     `mapstructure:"xueqiu"`
}

// HackerNewsConfig drives the Algolia-backed Hacker News adapter.
type HackerNewsConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	BaseURL     string   `mapstructure:"base_url"`
	MinScore    int      `mapstructure:"min_score"`
	HitsPerPage int      `mapstructure:"hits_per_page"`
	Keywords    []string `mapstructure:"keywords"`
}

// SubstackConfig lists newsletter RSS feeds, name -> feed URL.
type SubstackConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	Feeds   map[string]string `mapstructure:"feeds"`
}

// YouTubeConfig lists channels, name -> channel id.
type YouTubeConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	Channels map[string]string `mapstructure:"channels"`
}

// XueqiuConfig drives the Xueqiu timeline adapter. The cookie is a secret
// and is normally supplied via XUEQIU_COOKIE.
type XueqiuConfig struct {
	Enabled    bool           `mapstructure:"enabled"`
	BaseURL    string         `mapstructure:"base_url"`
	Cookie     string         `mapstructure:"cookie"`
	Count      int            `mapstructure:"count"`
	Categories map[string]int `mapstructure:"categories"` // label -> category id
}

// Signals holds default window sizes for the signal report.
type Signals struct {
	WindowHours        int `mapstructure:"window_hours"`
	CompareWindowHours int `mapstructure:"compare_window_hours"`
}

// MinIntervalDuration returns the parsed pause between classifier calls.
func (l LLM) MinIntervalDuration() time.Duration { return l.minInterval }

// TimeoutDuration returns the parsed per-call classifier timeout.
func (l LLM) TimeoutDuration() time.Duration { return l.timeout }

// Load reads configuration from an optional .env file, a YAML config file,
// and the environment, in ascending precedence.
func Load(configFile string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "warning: error loading .env file: %v\n", err)
		}
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		v.SetConfigName(".parkintel")
		v.SetConfigType("yaml")
	}

	setDefaults(v)
	bindEnvironmentVariables(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := postProcess(cfg); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.data_dir", ".parkintel")

	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.batch_size", 10)
	v.SetDefault("llm.min_interval", "2s")
	v.SetDefault("llm.timeout", "120s")
	v.SetDefault("llm.gemini.model", "gemini-flash-lite-latest")
	v.SetDefault("llm.openai.model", "gpt-4o-mini")
	v.SetDefault("llm.openai.base_url", "https://api.openai.com/v1")

	v.SetDefault("sources.hackernews.enabled", true)
	v.SetDefault("sources.hackernews.base_url", "https://hn.algolia.com/api/v1")
	v.SetDefault("sources.hackernews.min_score", 50)
	v.SetDefault("sources.hackernews.hits_per_page", 50)
	v.SetDefault("sources.hackernews.keywords", []string{"crypto", "AI", "trading"})

	v.SetDefault("sources.substack.enabled", true)
	v.SetDefault("sources.substack.feeds", map[string]string{
		"The Pomp Letter":  "https://pomp.substack.com/feed",
		"Doomberg":         "https://doomberg.substack.com/feed",
		"One Useful Thing": "https://www.oneusefulthing.org/feed",
		"Interconnects":    "https://www.interconnects.ai/feed",
		"SemiAnalysis":     "https://semianalysis.substack.com/feed",
	})

	v.SetDefault("sources.youtube.enabled", false)
	v.SetDefault("sources.youtube.channels", map[string]string{})

	v.SetDefault("sources.xueqiu.enabled", false)
	v.SetDefault("sources.xueqiu.base_url", "https://xueqiu.com")
	v.SetDefault("sources.xueqiu.count", 20)
	v.SetDefault("sources.xueqiu.categories", map[string]int{
		"hot":    111,
		"stocks": 114,
	})

	v.SetDefault("signals.window_hours", 24)
	v.SetDefault("signals.compare_window_hours", 24)
}

// bindEnvironmentVariables maps well-known secret variables onto config keys
// so operators never have to put keys in YAML.
func bindEnvironmentVariables(v *viper.Viper) {
	_ = v.BindEnv("llm.gemini.api_key", "GEMINI_API_KEY", "GOOGLE_GEMINI_API_KEY")
	_ = v.BindEnv("llm.openai.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("sources.xueqiu.cookie", "XUEQIU_COOKIE")
}

func postProcess(cfg *Config) error {
	var err error
	cfg.LLM.minInterval, err = time.ParseDuration(cfg.LLM.MinInterval)
	if err != nil {
		return fmt.Errorf("invalid llm.min_interval %q: %w", cfg.LLM.MinInterval, err)
	}
	cfg.LLM.timeout, err = time.ParseDuration(cfg.LLM.Timeout)
	if err != nil {
		return fmt.Errorf("invalid llm.timeout %q: %w", cfg.LLM.Timeout, err)
	}
	return nil
}

func validate(cfg *Config) error {
	switch cfg.LLM.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("llm.provider must be \"gemini\" or \"openai\", got %q", cfg.LLM.Provider)
	}
	if cfg.LLM.BatchSize < 1 {
		return fmt.Errorf("llm.batch_size must be at least 1, got %d", cfg.LLM.BatchSize)
	}
	if cfg.Signals.WindowHours < 1 || cfg.Signals.CompareWindowHours < 1 {
		return fmt.Errorf("signals windows must be at least 1 hour")
	}
	return nil
}
