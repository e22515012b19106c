package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"regexp"
	"time"

	"github.com/caarlos0/env/v6"
)

// Config is the top-level configuration structure.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Shortener ShortenerConfig `json:"shortener"`
	Gateway   GatewayConfig   `json:"gateway"`
	RateLimit RateLimitConfig `json:"rate_limit"`
}

type ServerConfig struct {
	Port     int    `json:"port" env:"PORT"`
	LogLevel string `json:"log_level" env:"LOG_LEVEL"`
}

type ShortenerConfig struct {
	BaseURL        string `json:"base_url" env:"API_BASE_URL"`
	ShortenPath    string `json:"shorten_path"`
	HealthPath     string `json:"health_path"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Timeout returns the request timeout as a duration.
func (c ShortenerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type GatewayConfig struct {
	Discord DiscordGatewayConfig `json:"discord"`
	Slack   SlackGatewayConfig   `json:"slack"`
	REST    RESTGatewayConfig    `json:"rest"`
}

type DiscordGatewayConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token" env:"DISCORD_TOKEN"`
	GuildID  string `json:"guild_id" env:"DISCORD_GUILD_ID"`
}

type SlackGatewayConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token" env:"SLACK_BOT_TOKEN"`
	AppToken string `json:"app_token" env:"SLACK_APP_TOKEN"`
}

type RESTGatewayConfig struct {
	Enabled bool `json:"enabled"`
}

type RateLimitConfig struct {
	Enabled       bool   `json:"enabled"`
	RedisURL      string `json:"redis_url" env:"REDIS_URL"`
	Limit         int    `json:"limit"`
	WindowSeconds int    `json:"window_seconds"`
}

// Window returns the rate limit window as a duration.
func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// defaultDocument is used when no config file exists, so a .env with
// API_BASE_URL and DISCORD_TOKEN is enough to run.
//
//go:embed default.json
var defaultDocument []byte

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file, substitutes environment variable
// references, then applies direct environment overrides. A missing file
// falls back to the embedded default document.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		data = defaultDocument
		path = "(default)"
	} else if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes a config document. name is only used in error messages.
func Parse(data []byte, name string) (*Config, error) {
	// Substitute ${VAR} and ${VAR:default} with environment values.
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		if v := os.Getenv(parts[1]); v != "" {
			return v
		}
		return parts[2]
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", name, err)
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Shortener.ShortenPath == "" {
		c.Shortener.ShortenPath = "/api/discord/shorten"
	}
	if c.Shortener.HealthPath == "" {
		c.Shortener.HealthPath = "/health"
	}
	if c.Shortener.TimeoutSeconds == 0 {
		c.Shortener.TimeoutSeconds = 10
	}
	if c.RateLimit.Limit == 0 {
		c.RateLimit.Limit = 5
	}
	if c.RateLimit.WindowSeconds == 0 {
		c.RateLimit.WindowSeconds = 60
	}
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Shortener.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("shortener.base_url must be an absolute http(s) URL, got %q", c.Shortener.BaseURL)
	}
	if c.Shortener.TimeoutSeconds < 0 {
		return fmt.Errorf("shortener.timeout_seconds must be positive, got %d", c.Shortener.TimeoutSeconds)
	}

	gw := c.Gateway
	if !gw.Discord.Enabled && !gw.Slack.Enabled && !gw.REST.Enabled {
		return errors.New("no gateway enabled")
	}
	if gw.Discord.Enabled && gw.Discord.BotToken == "" {
		return errors.New("gateway.discord.bot_token is required when discord is enabled")
	}
	if gw.Slack.Enabled && (gw.Slack.BotToken == "" || gw.Slack.AppToken == "") {
		return errors.New("gateway.slack.bot_token and app_token are required when slack is enabled")
	}

	if rl := c.RateLimit; rl.Enabled {
		if rl.RedisURL == "" {
			return errors.New("rate_limit.redis_url is required when rate limiting is enabled")
		}
		if rl.Limit < 0 || rl.WindowSeconds < 0 {
			return errors.New("rate_limit.limit and window_seconds must be positive")
		}
	}
	return nil
}
