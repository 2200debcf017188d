package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"StockScope/internal/model"
)

const dateLayout = "2006-01-02"

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token" toml:"bot_token"`
		ChatID   string `yaml:"chat_id" toml:"chat_id"`
	} `yaml:"telegram" toml:"telegram"`
	DataSource struct {
		Provider          string  `yaml:"provider" toml:"provider" validate:"oneof=yahoo rest mock"`
		BaseURL           string  `yaml:"base_url" toml:"base_url" validate:"required_if=Provider rest,omitempty,url"`
		APIKey            string  `yaml:"api_key" toml:"api_key"`
		RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second" validate:"gte=0"`
	} `yaml:"data_source" toml:"data_source"`
	Dashboard struct {
		Title           string `yaml:"title" toml:"title"`
		DefaultTickers  string `yaml:"default_tickers" toml:"default_tickers" validate:"required"`
		DefaultStart    string `yaml:"default_start" toml:"default_start" validate:"required,datetime=2006-01-02"`
		DefaultEnd      string `yaml:"default_end" toml:"default_end" validate:"omitempty,datetime=2006-01-02"`
		UpperCase       bool   `yaml:"upper_case" toml:"upper_case"`
		LookbackYears   int    `yaml:"lookback_years" toml:"lookback_years" validate:"gte=0,lte=50"`
		SMAWindow       int    `yaml:"sma_window" toml:"sma_window" validate:"gte=0"`
		Concurrency     int    `yaml:"concurrency" toml:"concurrency" validate:"gte=1,lte=32"`
		FetchTimeoutSec int    `yaml:"fetch_timeout_sec" toml:"fetch_timeout_sec" validate:"gte=-1"`
	} `yaml:"dashboard" toml:"dashboard"`
	Server struct {
		Port        int      `yaml:"port" toml:"port" validate:"min=1,max=65535"`
		CORSOrigins []string `yaml:"cors_origins" toml:"cors_origins"`
	} `yaml:"server" toml:"server"`
	Schedule struct {
		RefreshCron string `yaml:"refresh_cron" toml:"refresh_cron"`
	} `yaml:"schedule" toml:"schedule"`
	Database struct {
		Driver string `yaml:"driver" toml:"driver" validate:"omitempty,oneof=sqlite postgres"`
		DSN    string `yaml:"dsn" toml:"dsn" validate:"required_with=Driver"`
	} `yaml:"database" toml:"database"`
	Log struct {
		Level  string `yaml:"level" toml:"level" validate:"omitempty,oneof=debug info warn error"`
		Pretty bool   `yaml:"pretty" toml:"pretty"`
	} `yaml:"log" toml:"log"`
	Proxy string `yaml:"proxy" toml:"proxy"`
}

// Load reads config from a YAML or TOML file (by extension), then applies
// .env and environment variable overrides, then defaults. A missing file is
// not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".toml":
			err = toml.Unmarshal(data, cfg)
		default:
			err = yaml.Unmarshal(data, cfg)
		}
		if err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setString(&c.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	setString(&c.DataSource.Provider, "DATA_PROVIDER")
	setString(&c.DataSource.BaseURL, "DATA_BASE_URL")
	setString(&c.DataSource.APIKey, "DATA_API_KEY")
	setString(&c.Dashboard.DefaultTickers, "DEFAULT_TICKERS")
	setString(&c.Dashboard.DefaultStart, "DEFAULT_START")
	setString(&c.Dashboard.DefaultEnd, "DEFAULT_END")
	setString(&c.Schedule.RefreshCron, "CRON_REFRESH")
	setString(&c.Database.Driver, "DB_DRIVER")
	setString(&c.Database.DSN, "DB_DSN")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Proxy, "HTTPS_PROXY")
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("LOG_PRETTY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Log.Pretty = b
		}
	}
	if v := os.Getenv("FETCH_TIMEOUT_SEC"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil {
			c.Dashboard.FetchTimeoutSec = sec
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) applyDefaults() {
	if c.DataSource.Provider == "" {
		c.DataSource.Provider = "yahoo"
	}
	if c.DataSource.RequestsPerSecond == 0 {
		c.DataSource.RequestsPerSecond = 2
	}
	if c.Dashboard.DefaultTickers == "" {
		c.Dashboard.DefaultTickers = "LLY, ABT, MRNA, JNJ, BIIB, BMY, PFE, AMGN, WBA"
	}
	if c.Dashboard.DefaultStart == "" {
		c.Dashboard.DefaultStart = "2023-01-01"
	}
	if c.Dashboard.Concurrency == 0 {
		c.Dashboard.Concurrency = 4
	}
	if c.Dashboard.FetchTimeoutSec == 0 {
		c.Dashboard.FetchTimeoutSec = 20
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

var validate = validator.New()

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	if c.Dashboard.DefaultEnd != "" {
		if _, err := c.DefaultRange(time.Now()); err != nil {
			return err
		}
	}
	return nil
}

// FetchTimeout is the per-fetch deadline. Unset means 20s; -1 disables the
// deadline and returns zero.
func (c *Config) FetchTimeout() time.Duration {
	if c.Dashboard.FetchTimeoutSec < 0 {
		return 0
	}
	return time.Duration(c.Dashboard.FetchTimeoutSec) * time.Second
}

// TelegramEnabled reports whether the bot is configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// DefaultRange returns the configured default date range. An unset end date
// means today.
func (c *Config) DefaultRange(now time.Time) (model.DateRange, error) {
	start, err := time.Parse(dateLayout, c.Dashboard.DefaultStart)
	if err != nil {
		return model.DateRange{}, fmt.Errorf("dashboard.default_start: %w", err)
	}
	y, m, d := now.Date()
	end := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if c.Dashboard.DefaultEnd != "" {
		if end, err = time.Parse(dateLayout, c.Dashboard.DefaultEnd); err != nil {
			return model.DateRange{}, fmt.Errorf("dashboard.default_end: %w", err)
		}
	}
	if end.Before(start) {
		return model.DateRange{}, fmt.Errorf("dashboard.default_end is before default_start")
	}
	return model.DateRange{Start: start, End: end}, nil
}
