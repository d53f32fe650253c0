package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           int      `yaml:"port"`
		APIKey         string   `yaml:"api_key"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		RateLimitRPS   float64  `yaml:"rate_limit_rps"`
		RateLimitBurst int      `yaml:"rate_limit_burst"`
		// TrustProxyHeaders takes the client address from X-Forwarded-For / X-Real-IP.
		TrustProxyHeaders     bool `yaml:"trust_proxy_headers"`
		RequestTimeoutSeconds int  `yaml:"request_timeout_seconds"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Address             string `yaml:"address"`
		Password            string `yaml:"password"`
		DB                  int    `yaml:"db"`
		SlotCacheTTLSeconds int    `yaml:"slot_cache_ttl_seconds"`
	} `yaml:"redis"`

	Booking struct {
		SlotDurationMinutes int    `yaml:"slot_duration_minutes"`
		MinAdvanceMinutes   int    `yaml:"min_advance_minutes"`
		MaxAdvanceDays      int    `yaml:"max_advance_days"`
		HidePastSlots       bool   `yaml:"hide_past_slots"`
		Timezone            string `yaml:"timezone"`
	} `yaml:"booking"`

	Providers struct {
		Path                string `yaml:"path"`
		WatchIntervalSecond int    `yaml:"watch_interval_seconds"`
	} `yaml:"providers"`

	Telegram struct {
		BotToken     string  `yaml:"bot_token"`
		StaffChatIDs []int64 `yaml:"staff_chat_ids"`
		Debug        bool    `yaml:"debug"`
	} `yaml:"telegram"`

	Jobs struct {
		CompleteSchedule   string `yaml:"complete_schedule"`
		CompleteAfterHours int    `yaml:"complete_after_hours"`
	} `yaml:"jobs"`

	Backup BackupConfig `yaml:"backup"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	StoragePath   string `yaml:"storage_path"`
	RetentionDays int    `yaml:"retention_days"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err = cfg.Validate(); err != nil {
		return nil, err
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RateLimitRPS <= 0 {
		c.Server.RateLimitRPS = 10
	}
	if c.Server.RateLimitBurst <= 0 {
		c.Server.RateLimitBurst = 20
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/dentaldesk.db"
	}
	if c.Booking.SlotDurationMinutes <= 0 {
		c.Booking.SlotDurationMinutes = 30
	}
	if c.Booking.Timezone == "" {
		c.Booking.Timezone = "Local"
	}
	if c.Providers.Path == "" {
		c.Providers.Path = "configs/providers.yaml"
	}
	if c.Jobs.CompleteAfterHours <= 0 {
		c.Jobs.CompleteAfterHours = 24
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "data/backups"
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
}

// Validate checks values that have no sensible default.
func (c *Config) Validate() error {
	if c.Booking.SlotDurationMinutes > 24*60 {
		return fmt.Errorf("booking.slot_duration_minutes must be at most 1440, got %d", c.Booking.SlotDurationMinutes)
	}
	if c.Booking.MinAdvanceMinutes < 0 {
		return fmt.Errorf("booking.min_advance_minutes cannot be negative")
	}
	if c.Booking.MaxAdvanceDays < 0 {
		return fmt.Errorf("booking.max_advance_days cannot be negative")
	}
	if _, err := time.LoadLocation(c.Booking.Timezone); err != nil {
		return fmt.Errorf("booking.timezone: %w", err)
	}
	if c.Backup.Enabled && c.Backup.Schedule == "" {
		return fmt.Errorf("backup.schedule is required when backup is enabled")
	}
	return nil
}

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Booking.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *Config) BookingMinAdvance() time.Duration {
	return time.Duration(c.Booking.MinAdvanceMinutes) * time.Minute
}

func (c *Config) BookingMaxAdvance() time.Duration {
	if c.Booking.MaxAdvanceDays <= 0 {
		return 90 * 24 * time.Hour
	}
	return time.Duration(c.Booking.MaxAdvanceDays) * 24 * time.Hour
}

func (c *Config) RequestTimeout() time.Duration {
	if c.Server.RequestTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

func (c *Config) SlotCacheTTL() time.Duration {
	return time.Duration(c.Redis.SlotCacheTTLSeconds) * time.Second
}

func (c *Config) ProvidersWatchInterval() time.Duration {
	if c.Providers.WatchIntervalSecond <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Providers.WatchIntervalSecond) * time.Second
}
