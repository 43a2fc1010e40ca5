package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds all process configuration. User-tunable scan settings live
// in the scanner config file, not here.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Dexscreener struct {
		BaseURL string        `yaml:"base_url"`
		ChainID string        `yaml:"chain_id"`
		Timeout time.Duration `yaml:"timeout"`
		ListRPM int           `yaml:"list_rpm"`
		PairRPM int           `yaml:"pair_rpm"`
	} `yaml:"dexscreener"`
	Schedule struct {
		ScanCron  string `yaml:"scan_cron"`
		Notify    bool   `yaml:"notify"`
		NotifyTop int    `yaml:"notify_top"`
	} `yaml:"schedule"`
	Store struct {
		ConfigFile string `yaml:"config_file"`
	} `yaml:"store"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Solana struct {
		RPCURL string `yaml:"rpc_url"`
	} `yaml:"solana"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("DEXSCREENER_BASE_URL"); v != "" {
		cfg.Dexscreener.BaseURL = v
	}
	if v := os.Getenv("DEXSCREENER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Dexscreener.Timeout = d
		}
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("SCAN_CRON"); v != "" {
		cfg.Schedule.ScanCron = v
	}
	if v := os.Getenv("SCANNER_CONFIG_FILE"); v != "" {
		cfg.Store.ConfigFile = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if _, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Addr = ":" + v
		}
	}
	if v := os.Getenv("SOLANA_RPC_URL"); v != "" {
		cfg.Solana.RPCURL = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Dexscreener.BaseURL == "" {
		cfg.Dexscreener.BaseURL = "https://api.dexscreener.com"
	}
	if cfg.Dexscreener.ChainID == "" {
		cfg.Dexscreener.ChainID = "solana"
	}
	if cfg.Dexscreener.Timeout == 0 {
		cfg.Dexscreener.Timeout = 12 * time.Second
	}
	if cfg.Dexscreener.ListRPM == 0 {
		cfg.Dexscreener.ListRPM = 60
	}
	if cfg.Dexscreener.PairRPM == 0 {
		cfg.Dexscreener.PairRPM = 300
	}
	if cfg.Schedule.ScanCron == "" {
		cfg.Schedule.ScanCron = "0 */2 * * * *"
	}
	if cfg.Schedule.NotifyTop == 0 {
		cfg.Schedule.NotifyTop = 5
	}
	if cfg.Store.ConfigFile == "" {
		cfg.Store.ConfigFile = "scanner_config.json"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/runnerradar.db"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8501"
	}
	if cfg.Solana.RPCURL == "" {
		cfg.Solana.RPCURL = "https://api.mainnet-beta.solana.com"
	}
}

// Validate checks the schedule and numeric limits. Telegram is optional but
// needs both fields when set.
func (c *Config) Validate() error {
	if _, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor).Parse(c.Schedule.ScanCron); err != nil {
		return fmt.Errorf("schedule.scan_cron %q: %w", c.Schedule.ScanCron, err)
	}
	if c.Dexscreener.Timeout < 0 {
		return fmt.Errorf("dexscreener.timeout must not be negative")
	}
	if c.Dexscreener.ListRPM < 0 || c.Dexscreener.PairRPM < 0 {
		return fmt.Errorf("dexscreener rate limits must not be negative")
	}
	if c.Schedule.NotifyTop < 0 {
		return fmt.Errorf("schedule.notify_top must not be negative")
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}

// TelegramEnabled reports whether notifications can be sent.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}
