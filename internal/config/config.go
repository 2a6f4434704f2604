package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

type Config struct {
	Env       string `env:"APP_ENV" envDefault:"production"`
	ReportDir string `env:"REPORT_DIR" envDefault:"reports"`

	Telegram TelegramConfig `envPrefix:"TELEGRAM_"`
	Admin    AdminConfig    `envPrefix:"ADMIN_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Database DatabaseConfig `envPrefix:"DB_"`
	HTTP     HTTPConfig     `envPrefix:"HTTP_"`
	Backend  BackendConfig  `envPrefix:"BACKEND_"`
	Pricing  PricingConfig  `envPrefix:"PRICING_"`
}

type TelegramConfig struct {
	// Token is optional: without it only the HTTP API is served.
	Token string `env:"TOKEN"`
	Debug bool   `env:"DEBUG" envDefault:"false"`
}

type AdminConfig struct {
	ChatID    int64   `env:"CHAT_ID"`
	ChannelID int64   `env:"CHANNEL_ID"`
	IDs       []int64 `env:"IDS" envSeparator:","`
}

type RedisConfig struct {
	Addr     string        `env:"ADDR,required"`
	Password string        `env:"PASSWORD"`
	DB       int           `env:"DB" envDefault:"0"`
	StateTTL time.Duration `env:"STATE_TTL" envDefault:"24h"`
}

type DatabaseConfig struct {
	Host            string        `env:"HOST,required"`
	Port            int           `env:"PORT" envDefault:"5432"`
	User            string        `env:"USER,required"`
	Password        string        `env:"PASSWORD,required"`
	Name            string        `env:"NAME,required"`
	SSLMode         string        `env:"SSLMODE" envDefault:"disable"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"5m"`
	ConnMaxIdleTime time.Duration `env:"CONN_MAX_IDLE_TIME" envDefault:"2m"`
}

type HTTPConfig struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"20s"`
	SubmitLimit     int64         `env:"SUBMIT_LIMIT" envDefault:"5"`
	SubmitWindow    time.Duration `env:"SUBMIT_WINDOW" envDefault:"10m"`
	WebhookSecret   string        `env:"WEBHOOK_SECRET"`
}

type BackendConfig struct {
	BaseURL        string        `env:"BASE_URL"`
	APIKey         string        `env:"API_KEY"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	SyncMaxElapsed time.Duration `env:"SYNC_MAX_ELAPSED" envDefault:"1m"`
	// SyncInterval is how often unsynced quotes are pushed again. Zero disables it.
	SyncInterval time.Duration `env:"SYNC_INTERVAL" envDefault:"5m"`
}

type PricingConfig struct {
	// RateCardPath overrides the built-in rate card when set.
	RateCardPath string `env:"RATE_CARD_PATH"`
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Telegram.Token != "" && len(c.AdminIDs()) == 0 {
		return fmt.Errorf("at least one admin ID is required when the bot is enabled")
	}
	if c.Backend.BaseURL != "" && c.Backend.APIKey == "" {
		return fmt.Errorf("BACKEND_API_KEY is required when BACKEND_BASE_URL is set")
	}
	if c.HTTP.SubmitLimit < 1 {
		return fmt.Errorf("HTTP_SUBMIT_LIMIT must be positive")
	}
	return nil
}

// AdminIDs lists every chat allowed to run admin commands.
func (c *Config) AdminIDs() []int64 {
	ids := make([]int64, 0, len(c.Admin.IDs)+1)
	if c.Admin.ChatID != 0 {
		ids = append(ids, c.Admin.ChatID)
	}
	for _, id := range c.Admin.IDs {
		if id != 0 && id != c.Admin.ChatID {
			ids = append(ids, id)
		}
	}
	return ids
}

func (c *Config) IsAdmin(chatID int64) bool {
	for _, id := range c.AdminIDs() {
		if id == chatID {
			return true
		}
	}
	return false
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}
