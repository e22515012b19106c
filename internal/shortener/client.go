package shortener

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds every call to the shortening service.
const DefaultTimeout = 10 * time.Second

const maxBodySize = 1 << 20

// Config configures a Client.
type Config struct {
	BaseURL     string
	ShortenPath string
	HealthPath  string
	Timeout     time.Duration
}

// Client talks to the external shortening service. It holds no per-call
// state and is safe for concurrent use.
type Client struct {
	baseURL     string
	shortenPath string
	healthPath  string
	host        string
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewClient creates a Client. Empty paths default to /api/discord/shorten
// and /health, a zero timeout to DefaultTimeout.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.ShortenPath == "" {
		cfg.ShortenPath = "/api/discord/shorten"
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = "/health"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	host := base
	if u, err := url.Parse(base); err == nil && u.Host != "" {
		host = u.Host
	}
	return &Client{
		baseURL:     base,
		shortenPath: cfg.ShortenPath,
		healthPath:  cfg.HealthPath,
		host:        host,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		logger:      logger,
	}
}

// BaseURL returns the configured service base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// CheckHealth probes GET {base}{healthPath}. Any 2xx counts as connected.
func (c *Client) CheckHealth(ctx context.Context) error {
	endpoint := c.baseURL + c.healthPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("health: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("health probe failed", zap.String("endpoint", endpoint), zap.Error(err))
		return fmt.Errorf("health: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("health probe failed", zap.String("endpoint", endpoint), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("health: status %d", resp.StatusCode)
	}
	c.logger.Debug("health probe ok", zap.String("endpoint", endpoint))
	return nil
}

// Shorten submits one URL. Every failure is a *Error.
func (c *Client) Shorten(ctx context.Context, r Request) (*Result, error) {
	endpoint := c.baseURL + c.shortenPath
	c.logger.Info("calling shortening service", zap.String("endpoint", endpoint))

	body, err := json.Marshal(shortenPayload{
		URL:           r.URL,
		DiscordUserID: r.RequesterID,
		Custom:        r.CustomCode,
	})
	if err != nil {
		return nil, c.fail(&Error{Kind: KindTransport, Message: err.Error(), Err: err})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, c.fail(&Error{Kind: KindTransport, Message: err.Error(), Err: err})
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return nil, c.fail(connectionFailed(c.host, err))
		}
		return nil, c.fail(&Error{Kind: KindTransport, Message: err.Error(), Err: err})
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, c.fail(&Error{Kind: KindTransport, Message: err.Error(), Status: resp.StatusCode, Err: err})
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.fail(rejection(resp.StatusCode, data))
	}

	res, err := ParseResult(data, r.URL)
	if err != nil {
		return nil, c.fail(&Error{
			Kind:    KindRemoteRejected,
			Message: err.Error(),
			Status:  resp.StatusCode,
			Err:     err,
		})
	}

	c.logger.Info("shorten succeeded",
		zap.String("short_url", res.ShortURL),
		zap.Int("total_clicks", res.TotalClicks))
	return res, nil
}

// rejection classifies a non-2xx reply. The message comes from the body's
// error field, then its message field, then the status text.
func rejection(status int, data []byte) *Error {
	fallback := &Error{
		Kind:    KindTransport,
		Message: fmt.Sprintf("Request failed with status code %d", status),
		Status:  status,
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fallback
	}
	msg := firstString(fields, errorAliases)
	if msg == "" {
		return fallback
	}

	e := &Error{Kind: KindRemoteRejected, Message: msg, Status: status}
	if isValidationMessage(msg) {
		e.Kind = KindValidationFailed
		// Unreadable details leave Details nil; callers render a generic hint.
		e.Details, _ = decodeDetails(fields["details"])
	}
	return e
}

func (c *Client) fail(e *Error) *Error {
	c.logger.Warn("shorten failed",
		zap.String("kind", e.Kind.String()),
		zap.Int("status", e.Status),
		zap.String("error", e.Message),
		zap.Int("details", len(e.Details)))
	return e
}
