package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"PstrykSentinel/internal/strategy"
)

const redacted = "**REDACTED**"

// Config holds all application configuration.
type Config struct {
	Pstryk struct {
		APIToken   string        `yaml:"api_token" json:"api_token"`
		BaseURL    string        `yaml:"base_url" json:"base_url"`
		Timeout    time.Duration `yaml:"timeout" json:"timeout"`
		Retries    int           `yaml:"retries" json:"retries"`
		RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
	} `yaml:"pstryk" json:"pstryk"`
	Schedule struct {
		RefreshInterval time.Duration `yaml:"refresh_interval" json:"refresh_interval"`
		RefreshCron     string        `yaml:"refresh_cron" json:"refresh_cron"`
		RepublishCron   string        `yaml:"republish_cron" json:"republish_cron"`
		ManualCooldown  time.Duration `yaml:"manual_cooldown" json:"manual_cooldown"`
	} `yaml:"schedule" json:"schedule"`
	Classification struct {
		Method              string  `yaml:"method" json:"method"`
		CheapPercentile     float64 `yaml:"cheap_percentile" json:"cheap_percentile"`
		ExpensivePercentile float64 `yaml:"expensive_percentile" json:"expensive_percentile"`
		CheapHours          int     `yaml:"cheap_hours" json:"cheap_hours"`
		ExpensiveHours      int     `yaml:"expensive_hours" json:"expensive_hours"`
	} `yaml:"classification" json:"classification"`
	Timezone string `yaml:"timezone" json:"timezone"`
	Cache    struct {
		File string `yaml:"file" json:"file"`
	} `yaml:"cache" json:"cache"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path" json:"sqlite_path"`
	} `yaml:"database" json:"database"`
	Telegram struct {
		BotToken string `yaml:"bot_token" json:"bot_token"`
		ChatID   string `yaml:"chat_id" json:"chat_id"`
	} `yaml:"telegram" json:"telegram"`
	HTTP struct {
		Listen string `yaml:"listen" json:"listen"`
	} `yaml:"http" json:"http"`
	Proxy string `yaml:"proxy" json:"proxy"`
	Debug bool   `yaml:"debug" json:"debug"`
}

// Default returns a Config populated with every default value.
func Default() *Config {
	cfg := &Config{}
	cfg.Pstryk.BaseURL = "https://api.pstryk.pl/integrations"
	cfg.Pstryk.Timeout = 10 * time.Second
	cfg.Pstryk.Retries = 1
	cfg.Pstryk.RetryDelay = 2 * time.Second
	cfg.Schedule.RefreshInterval = 30 * time.Minute
	cfg.Schedule.RepublishCron = "0 0 * * * *"
	cfg.Schedule.ManualCooldown = time.Minute
	cfg.Classification.Method = string(strategy.MethodPercentile)
	cfg.Classification.CheapPercentile = 20
	cfg.Classification.ExpensivePercentile = 80
	cfg.Classification.CheapHours = 5
	cfg.Classification.ExpensiveHours = 5
	cfg.Timezone = "Europe/Warsaw"
	cfg.Cache.File = "data/pstryk_cache.json"
	cfg.Database.SQLitePath = "data/pstryk_sentinel.db"
	cfg.HTTP.Listen = ":8080"
	return cfg
}

// LoadDotEnv loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads config from a YAML file over the defaults, then applies
// environment variable overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.Schedule.RefreshCron == "" && cfg.Schedule.RefreshInterval > 0 {
		cfg.Schedule.RefreshCron = "@every " + cfg.Schedule.RefreshInterval.String()
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"PSTRYK_API_TOKEN":   &c.Pstryk.APIToken,
		"PSTRYK_BASE_URL":    &c.Pstryk.BaseURL,
		"PSTRYK_TIMEZONE":    &c.Timezone,
		"CACHE_FILE":         &c.Cache.File,
		"SQLITE_PATH":        &c.Database.SQLitePath,
		"TELEGRAM_BOT_TOKEN": &c.Telegram.BotToken,
		"TELEGRAM_CHAT_ID":   &c.Telegram.ChatID,
		"HTTP_LISTEN":        &c.HTTP.Listen,
		"HTTPS_PROXY":        &c.Proxy,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("REFRESH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("REFRESH_INTERVAL: %w", err)
		}
		c.Schedule.RefreshInterval = d
	}
	floats := map[string]*float64{
		"CHEAP_PERCENTILE":     &c.Classification.CheapPercentile,
		"EXPENSIVE_PERCENTILE": &c.Classification.ExpensivePercentile,
	}
	for key, dst := range floats {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = f
		}
	}
	if v := os.Getenv("DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DEBUG: %w", err)
		}
		c.Debug = b
	}
	return nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Pstryk.APIToken == "" {
		return fmt.Errorf("pstryk.api_token is required")
	}
	if c.Pstryk.BaseURL == "" {
		return fmt.Errorf("pstryk.base_url is required")
	}
	if c.Pstryk.Timeout <= 0 {
		return fmt.Errorf("pstryk.timeout must be positive")
	}
	if c.Pstryk.Retries < 0 {
		return fmt.Errorf("pstryk.retries must not be negative")
	}
	if c.Schedule.RefreshInterval <= 0 {
		return fmt.Errorf("schedule.refresh_interval must be positive")
	}
	if c.Schedule.RepublishCron == "" {
		return fmt.Errorf("schedule.republish_cron is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if err := c.Rule().Validate(); err != nil {
		return fmt.Errorf("classification: %w", err)
	}
	if c.Cache.File == "" {
		return fmt.Errorf("cache.file is required")
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required when telegram.bot_token is set")
	}
	return nil
}

// Location resolves the configured IANA time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Rule converts the classification section.
func (c *Config) Rule() strategy.ThresholdRule {
	return strategy.ThresholdRule{
		Method:              strategy.Method(c.Classification.Method),
		CheapPercentile:     c.Classification.CheapPercentile,
		ExpensivePercentile: c.Classification.ExpensivePercentile,
		CheapHours:          c.Classification.CheapHours,
		ExpensiveHours:      c.Classification.ExpensiveHours,
	}
}

// Redacted returns a copy safe to expose in diagnostics.
func (c *Config) Redacted() Config {
	out := *c
	if out.Pstryk.APIToken != "" {
		out.Pstryk.APIToken = redacted
	}
	if out.Telegram.BotToken != "" {
		out.Telegram.BotToken = redacted
	}
	return out
}
