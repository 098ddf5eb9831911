// Package config provides YAML-based configuration loading for Gatehouse.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Gatehouse configuration, loaded from
// gatehouse.yaml.
type Config struct {
	Org       string          `yaml:"org"`
	DB        DBConfig        `yaml:"db"`
	HTTP      HTTPConfig      `yaml:"http"`
	Booking   BookingConfig   `yaml:"booking"`
	Notify    NotifyConfig    `yaml:"notify"`
	Calendar  CalendarConfig  `yaml:"calendar"`
	Storage   StorageConfig   `yaml:"storage"`
	Questions QuestionsConfig `yaml:"questions"`
}

// DBConfig holds connection settings for the MySQL server.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// HTTPConfig holds API server settings.
type HTTPConfig struct {
	Port      int             `yaml:"port"`
	JWTSecret string          `yaml:"jwt_secret"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig enables the Redis fixed-window limiter on write-heavy
// applicant endpoints. Disabled when Addr is empty.
type RateLimitConfig struct {
	Addr          string `yaml:"addr"`
	PerWindow     int    `yaml:"per_window"`
	WindowSeconds int    `yaml:"window_seconds"`
}

// BookingConfig holds slot-booking policy knobs.
type BookingConfig struct {
	CancelWindowHours int `yaml:"cancel_window_hours"`
	ReminderLeadHours int `yaml:"reminder_lead_hours"`
}

// NotifyConfig selects outbound notification channels. All channels are
// best-effort; an empty config disables delivery (rows stay pending).
type NotifyConfig struct {
	FlushSchedule string        `yaml:"flush_schedule"` // 5-field cron expression
	Slack         SlackConfig   `yaml:"slack"`
	Discord       DiscordConfig `yaml:"discord"`
}

// SlackConfig configures the Slack channel sender.
type SlackConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// DiscordConfig configures the Discord channel sender.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// CalendarConfig configures the Google Calendar invite client.
type CalendarConfig struct {
	CalendarID   string `yaml:"calendar_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
}

// StorageConfig configures the file/photo storage collaborator.
type StorageConfig struct {
	Dir string `yaml:"dir"`
}

// QuestionsConfig holds the per-track application question sets that
// submit validation runs against. Read-only configuration, not owned data.
type QuestionsConfig struct {
	Tracks map[string][]QuestionField `yaml:"tracks"`
}

// QuestionField is one application form field definition.
type QuestionField struct {
	Key       string `yaml:"key"`
	Type      string `yaml:"type"` // text, textarea, file, select
	Required  bool   `yaml:"required"`
	WordLimit int    `yaml:"word_limit"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.DB.Host == "" {
		c.DB.Host = "127.0.0.1"
	}
	if c.DB.Port == 0 {
		c.DB.Port = 3306
	}
	if c.DB.User == "" {
		c.DB.User = "root"
	}
	if c.DB.Database == "" && c.Org != "" {
		c.DB.Database = "gatehouse_" + c.Org
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.RateLimit.PerWindow == 0 {
		c.HTTP.RateLimit.PerWindow = 30
	}
	if c.HTTP.RateLimit.WindowSeconds == 0 {
		c.HTTP.RateLimit.WindowSeconds = 60
	}
	if c.Booking.CancelWindowHours == 0 {
		c.Booking.CancelWindowHours = 5
	}
	if c.Booking.ReminderLeadHours == 0 {
		c.Booking.ReminderLeadHours = 24
	}
	if c.Notify.FlushSchedule == "" {
		c.Notify.FlushSchedule = "* * * * *"
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "uploads"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Org == "" {
		errs = append(errs, "org is required")
	}
	if c.DB.Database == "" {
		errs = append(errs, "db.database is required")
	}
	for track, fields := range c.Questions.Tracks {
		for i, f := range fields {
			if f.Key == "" {
				errs = append(errs, fmt.Sprintf("questions.tracks.%s[%d].key is required", track, i))
			}
			if f.WordLimit < 0 {
				errs = append(errs, fmt.Sprintf("questions.tracks.%s[%d].word_limit must be >= 0", track, i))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
