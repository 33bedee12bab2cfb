package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Sources  Sources  `yaml:"sources"`
	Momentum Momentum `yaml:"momentum"`
	Prices   Prices   `yaml:"prices"`
	Explain  Explain  `yaml:"explain"`
	Feeds    []Feed   `yaml:"feeds"`
	Output   Output   `yaml:"output"`
	Server   Server   `yaml:"server"`
}

type Sources struct {
	Forum     ForumConfig     `yaml:"forum"`
	News      NewsConfig      `yaml:"news"`
	Trends    TrendsConfig    `yaml:"trends"`
	Microblog MicroblogConfig `yaml:"microblog"`
}

type ForumConfig struct {
	Enabled       bool     `yaml:"enabled"`
	UserAgent     string   `yaml:"user_agent"`
	DefaultForums []string `yaml:"default_forums"`
}

type NewsConfig struct {
	Enabled     bool   `yaml:"enabled"`
	APIKeyEnv   string `yaml:"api_key_env"`
	DailyBudget int    `yaml:"daily_budget"`
}

type TrendsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type MicroblogConfig struct {
	Enabled     bool   `yaml:"enabled"`
	TokenEnv    string `yaml:"token_env"`
	DailyBudget int    `yaml:"daily_budget"`
}

// Momentum holds the scoring thresholds. Rising and falling must be
// symmetric around 100 (the no-change baseline) for the direction label
// to be meaningful.
type Momentum struct {
	RisingThreshold  float64 `yaml:"rising_threshold"`
	FallingThreshold float64 `yaml:"falling_threshold"`
}

type Prices struct {
	CacheCapacity int      `yaml:"cache_capacity"`
	CacheTTL      Duration `yaml:"cache_ttl"`
	BatchSize     int      `yaml:"batch_size"`
}

type Explain struct {
	Provider       string   `yaml:"provider"`
	AnthropicModel string   `yaml:"anthropic_model"`
	OpenAIModel    string   `yaml:"openai_model"`
	APIKeyEnv      string   `yaml:"api_key_env"`
	MaxTokens      int      `yaml:"max_tokens"`
	DailyQuestions int      `yaml:"daily_questions"`
	CacheCapacity  int      `yaml:"cache_capacity"`
	CacheTTL       Duration `yaml:"cache_ttl"`
}

// Duration wraps time.Duration so YAML values like "5m" or "24h" parse.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

// ConfigDir returns the XDG config directory for trendvest.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "trendvest")
}

// DataDir returns the XDG data directory for trendvest.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "trendvest")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/trendvest/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'trendvest init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults and validating
// the momentum thresholds.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Sources: Sources{
			Forum: ForumConfig{
				Enabled:       true,
				UserAgent:     "trendvest/1.0",
				DefaultForums: []string{"wallstreetbets", "stocks", "investing"},
			},
			News: NewsConfig{
				Enabled:     true,
				APIKeyEnv:   "NEWS_API_KEY",
				DailyBudget: 95,
			},
			Trends: TrendsConfig{Enabled: true},
			Microblog: MicroblogConfig{
				Enabled:     true,
				TokenEnv:    "X_BEARER_TOKEN",
				DailyBudget: 90,
			},
		},
		Momentum: Momentum{
			RisingThreshold:  120,
			FallingThreshold: 80,
		},
		Prices: Prices{
			CacheCapacity: 200,
			CacheTTL:      Duration(5 * time.Minute),
			BatchSize:     30,
		},
		Explain: Explain{
			Provider:       "anthropic",
			AnthropicModel: "claude-haiku-4-5-20251001",
			OpenAIModel:    "gpt-4o-mini",
			APIKeyEnv:      "ANTHROPIC_API_KEY",
			MaxTokens:      600,
			DailyQuestions: 3,
			CacheCapacity:  500,
			CacheTTL:       Duration(24 * time.Hour),
		},
		Server: Server{Port: 8000},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Momentum.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (m Momentum) validate() error {
	if m.RisingThreshold <= 100 || m.FallingThreshold >= 100 || m.FallingThreshold <= 0 {
		return fmt.Errorf("momentum thresholds must straddle 100: rising=%v falling=%v",
			m.RisingThreshold, m.FallingThreshold)
	}
	if m.RisingThreshold-100 != 100-m.FallingThreshold {
		return fmt.Errorf("momentum thresholds must be symmetric around 100: rising=%v falling=%v",
			m.RisingThreshold, m.FallingThreshold)
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
