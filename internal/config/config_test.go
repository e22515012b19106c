package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultDocument(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://shortener.internal:8001")
	t.Setenv("DISCORD_TOKEN", "token-123")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Shortener.BaseURL != "http://shortener.internal:8001" {
		t.Errorf("got base url %q", cfg.Shortener.BaseURL)
	}
	if cfg.Gateway.Discord.BotToken != "token-123" || !cfg.Gateway.Discord.Enabled {
		t.Errorf("unexpected discord config: %+v", cfg.Gateway.Discord)
	}
	if cfg.Shortener.Timeout() != 10*time.Second {
		t.Errorf("got timeout %s", cfg.Shortener.Timeout())
	}
	if cfg.Server.Port != 3210 {
		t.Errorf("got port %d", cfg.Server.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFileWithSubstitution(t *testing.T) {
	t.Setenv("LINKBOT_TEST_BASE", "https://sho.rt")
	t.Setenv("API_BASE_URL", "")
	t.Setenv("REDIS_URL", "")
	path := filepath.Join(t.TempDir(), "linkbot.json")
	doc := `{
		"shortener": {"base_url": "${LINKBOT_TEST_BASE}", "timeout_seconds": 3},
		"gateway": {"rest": {"enabled": true}},
		"rate_limit": {"enabled": true, "redis_url": "${LINKBOT_TEST_REDIS:redis://cache:6379}"}
	}`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Shortener.BaseURL != "https://sho.rt" {
		t.Errorf("got base url %q", cfg.Shortener.BaseURL)
	}
	if cfg.RateLimit.RedisURL != "redis://cache:6379" {
		t.Errorf("default not applied, got %q", cfg.RateLimit.RedisURL)
	}
	if cfg.Shortener.ShortenPath != "/api/discord/shorten" || cfg.Shortener.HealthPath != "/health" {
		t.Errorf("path defaults not applied: %+v", cfg.Shortener)
	}
	if cfg.RateLimit.Window() != time.Minute || cfg.RateLimit.Limit != 5 {
		t.Errorf("rate limit defaults not applied: %+v", cfg.RateLimit)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://from-env:9000")
	cfg, err := Parse([]byte(`{"shortener": {"base_url": "http://from-file"}}`), "inline")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Shortener.BaseURL != "http://from-env:9000" {
		t.Errorf("got %q", cfg.Shortener.BaseURL)
	}
}

func TestParseInvalidJSON(t *testing.T) {
	if _, err := Parse([]byte(`{`), "broken"); err == nil || !strings.Contains(err.Error(), "broken") {
		t.Errorf("expected parse error naming the source, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Shortener: ShortenerConfig{BaseURL: "http://localhost:8001", TimeoutSeconds: 10},
			Gateway:   GatewayConfig{REST: RESTGatewayConfig{Enabled: true}},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"ok", func(c *Config) {}, ""},
		{"relative base", func(c *Config) { c.Shortener.BaseURL = "localhost:8001" }, "base_url"},
		{"ftp base", func(c *Config) { c.Shortener.BaseURL = "ftp://x" }, "base_url"},
		{"no gateway", func(c *Config) { c.Gateway.REST.Enabled = false }, "no gateway"},
		{"discord without token", func(c *Config) { c.Gateway.Discord.Enabled = true }, "bot_token"},
		{"slack without tokens", func(c *Config) { c.Gateway.Slack.Enabled = true }, "app_token"},
		{"limit without redis", func(c *Config) { c.RateLimit.Enabled = true }, "redis_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.want == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %v, want error containing %q", err, tt.want)
			}
		})
	}
}
