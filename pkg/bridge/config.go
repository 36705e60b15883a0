// Copyright 2024-2026 Aiku AI

package bridge

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

//go:embed example-config.yaml
var ExampleConfig string

// Config holds the bridge configuration. Tokens may be left empty in the
// YAML file and provided via GITHUB_TOKEN / DISCORD_TOKEN instead.
type Config struct {
	// DryRun performs every read but replaces each mutating collaborator
	// call with a log line describing the would-be write.
	DryRun bool `yaml:"dry_run"`

	HTTP    HTTPConfig    `yaml:"http"`
	GitHub  GitHubConfig  `yaml:"github"`
	Discord DiscordConfig `yaml:"discord"`
	Limits  LimitsConfig  `yaml:"limits"`
}

// HTTPConfig holds the webhook server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns the webhook server listen address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// GitHubConfig identifies the bridged repository and discussion category.
type GitHubConfig struct {
	Token string `yaml:"token"`
	Owner string `yaml:"owner"`
	Repo  string `yaml:"repo"`
	// Category is the discussion category name; resolved to an ID at startup.
	Category string `yaml:"category"`
	// WebhookSecret verifies X-Hub-Signature-256 on inbound webhooks.
	WebhookSecret string `yaml:"webhook_secret"`
}

// Validate validates the GitHub configuration.
func (c *GitHubConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Owner, validation.Required),
		validation.Field(&c.Repo, validation.Required),
		validation.Field(&c.Category, validation.Required),
		validation.Field(&c.WebhookSecret, validation.Required),
	)
}

// DiscordConfig identifies the bridged forum channel and the bridge's own
// Discord identity for echo prevention.
type DiscordConfig struct {
	Token          string `yaml:"token"`
	GuildID        string `yaml:"guild_id"`
	ForumChannelID string `yaml:"forum_channel_id"`
	// BotUserID is this bridge's Discord user; its own messages are never
	// mirrored back.
	BotUserID string `yaml:"bot_user_id"`
}

// Validate validates the Discord configuration.
func (c *DiscordConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.GuildID, validation.Required),
		validation.Field(&c.ForumChannelID, validation.Required),
		validation.Field(&c.BotUserID, validation.Required),
	)
}

// LimitsConfig holds per-platform message ceilings and write pacing.
type LimitsConfig struct {
	// ThreadMessageMax is Discord's hard per-message size ceiling.
	ThreadMessageMax int `yaml:"thread_message_max"`
	// CommentMax is GitHub's per-comment size ceiling.
	CommentMax int `yaml:"comment_max"`
	// PacingInterval is the minimum spacing between mutating calls.
	PacingInterval time.Duration `yaml:"pacing_interval"`
	// PacingBurst > 1 switches pacing from a fixed delay to a token bucket
	// with that burst capacity.
	PacingBurst int `yaml:"pacing_burst"`
}

// Validate validates the limits configuration.
func (c *LimitsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ThreadMessageMax, validation.Min(1)),
		validation.Field(&c.CommentMax, validation.Min(1)),
		validation.Field(&c.PacingBurst, validation.Min(0)),
	)
}

// Validate validates the whole configuration.
func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http: %w", err)
	}
	if err := c.GitHub.Validate(); err != nil {
		return fmt.Errorf("github: %w", err)
	}
	if err := c.Discord.Validate(); err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	if err := c.Limits.Validate(); err != nil {
		return fmt.Errorf("limits: %w", err)
	}
	return nil
}

// PostProcess fills defaults and pulls tokens from the environment when the
// YAML left them empty. Missing tokens are fatal: the bridge cannot serve a
// single trigger without both platform credentials.
func (c *Config) PostProcess() error {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8090
	}
	if c.Limits.ThreadMessageMax == 0 {
		c.Limits.ThreadMessageMax = 2000
	}
	if c.Limits.CommentMax == 0 {
		c.Limits.CommentMax = 65536
	}
	if c.Limits.PacingInterval == 0 {
		c.Limits.PacingInterval = time.Second
	}
	if c.GitHub.Token == "" {
		c.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	}
	if c.Discord.Token == "" {
		c.Discord.Token = os.Getenv("DISCORD_TOKEN")
	}
	if c.GitHub.Token == "" {
		return fmt.Errorf("github token missing (set github.token or GITHUB_TOKEN)")
	}
	if c.Discord.Token == "" {
		return fmt.Errorf("discord token missing (set discord.token or DISCORD_TOKEN)")
	}
	return nil
}

// Pacer builds the configured pacing policy.
func (c *Config) Pacer() Pacer {
	if c.Limits.PacingBurst > 1 {
		return TokenBucket(c.Limits.PacingInterval, c.Limits.PacingBurst)
	}
	return FixedDelay(c.Limits.PacingInterval)
}

// LoadConfig reads and parses the YAML config at path.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
