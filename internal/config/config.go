// Package config provides YAML-based configuration loading for BEARTANK.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the top-level BEARTANK configuration, loaded from beartank.yaml.
type Config struct {
	Class     string          `yaml:"class"`
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
	Workflow  WorkflowConfig  `yaml:"workflow"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Stages    []StageConfig   `yaml:"stages"`
}

// DatabaseConfig selects the storage driver and its connection settings.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // sqlite (default) or mysql
	Path     string `yaml:"path"`   // sqlite file path
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port      int    `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret"`
}

// WorkflowConfig tunes the review workflow.
type WorkflowConfig struct {
	// ExplicitUnlocksOnly disables the title-based unlock fallback so only
	// unlock_stage_ids and next-order progression are used.
	ExplicitUnlocksOnly bool `yaml:"explicit_unlocks_only"`
}

// BroadcastConfig configures class chat channels that mirror review events.
type BroadcastConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
}

// SlackConfig holds Slack bot settings.
type SlackConfig struct {
	BotToken string `yaml:"bot_token"`
	Channel  string `yaml:"channel"`
}

// DiscordConfig holds Discord bot settings.
type DiscordConfig struct {
	BotToken string `yaml:"bot_token"`
	Channel  string `yaml:"channel"`
}

// SchedulerConfig holds cron expressions for the bulletin scheduler.
type SchedulerConfig struct {
	PublishCron string `yaml:"publish_cron"`
	DigestCron  string `yaml:"digest_cron"`
}

// StageConfig seeds one curriculum stage.
type StageConfig struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Order       int      `yaml:"order"`
	PointsTotal int      `yaml:"points_total"`
	Unlocks     []string `yaml:"unlocks"`
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
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv lets secrets come from the environment instead of the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("BEARTANK_JWT_SECRET"); v != "" {
		c.Server.JWTSecret = v
	}
	if v := os.Getenv("BEARTANK_DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("BEARTANK_SLACK_TOKEN"); v != "" {
		c.Broadcast.Slack.BotToken = v
	}
	if v := os.Getenv("BEARTANK_DISCORD_TOKEN"); v != "" {
		c.Broadcast.Discord.BotToken = v
	}
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "beartank.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
		if c.Database.Name == "" && c.Class != "" {
			c.Database.Name = "beartank_" + slug(c.Class)
		}
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Scheduler.PublishCron == "" {
		c.Scheduler.PublishCron = "*/5 * * * *"
	}
	if c.Scheduler.DigestCron == "" {
		c.Scheduler.DigestCron = "0 8 * * 1"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Class == "" {
		errs = append(errs, "class is required")
	}
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, mysql)", c.Database.Driver))
	}
	if c.Broadcast.Slack.BotToken != "" && c.Broadcast.Slack.Channel == "" {
		errs = append(errs, "broadcast.slack.channel is required when a bot token is set")
	}
	if c.Broadcast.Discord.BotToken != "" && c.Broadcast.Discord.Channel == "" {
		errs = append(errs, "broadcast.discord.channel is required when a bot token is set")
	}
	if _, err := cron.ParseStandard(c.Scheduler.PublishCron); err != nil {
		errs = append(errs, fmt.Sprintf("scheduler.publish_cron is invalid: %v", err))
	}
	if _, err := cron.ParseStandard(c.Scheduler.DigestCron); err != nil {
		errs = append(errs, fmt.Sprintf("scheduler.digest_cron is invalid: %v", err))
	}

	ids := make(map[string]bool)
	orders := make(map[int]string)
	for i, s := range c.Stages {
		if s.ID == "" {
			errs = append(errs, fmt.Sprintf("stages[%d].id is required", i))
		} else if ids[s.ID] {
			errs = append(errs, fmt.Sprintf("stages[%d].id %q is duplicated", i, s.ID))
		}
		ids[s.ID] = true
		if s.Title == "" {
			errs = append(errs, fmt.Sprintf("stages[%d].title is required", i))
		}
		if prev, ok := orders[s.Order]; ok {
			errs = append(errs, fmt.Sprintf("stages[%d].order %d is already used by %q", i, s.Order, prev))
		}
		orders[s.Order] = s.ID
	}
	for i, s := range c.Stages {
		for _, u := range s.Unlocks {
			if !ids[u] {
				errs = append(errs, fmt.Sprintf("stages[%d].unlocks references unknown stage %q", i, u))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
