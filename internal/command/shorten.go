package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nidhogg/linkbot/internal/ratelimit"
	"github.com/nidhogg/linkbot/internal/shortener"
	"go.uber.org/zap"
)

// ShortenCommandName is the slash command registered with every platform.
const ShortenCommandName = "shortenurl"

// Shortener is the remote call the shorten command depends on.
type Shortener interface {
	Shorten(ctx context.Context, r shortener.Request) (*shortener.Result, error)
}

// ShortenHandler turns one /shortenurl invocation into one remote call and
// one reply. It keeps no per-invocation state between calls.
type ShortenHandler struct {
	client  Shortener
	limiter ratelimit.Limiter
	now     func() time.Time
	logger  *zap.Logger
}

// NewShortenHandler creates the handler. A nil limiter allows every call.
func NewShortenHandler(client Shortener, limiter ratelimit.Limiter, logger *zap.Logger) *ShortenHandler {
	if limiter == nil {
		limiter = ratelimit.Nop{}
	}
	return &ShortenHandler{
		client:  client,
		limiter: limiter,
		now:     time.Now,
		logger:  logger,
	}
}

// Command returns the /shortenurl definition bound to this handler.
func (h *ShortenHandler) Command() *Command {
	return &Command{
		Name:        ShortenCommandName,
		Description: "Shorten your required URL using your localhost API",
		Options: []Option{
			{Name: "url", Description: "The URL to shorten", Required: true},
			{Name: "custom", Description: "Custom Short Code"},
		},
		Handler: h.Handle,
	}
}

// Handle acknowledges first, then calls the shortening service and edits
// the acknowledgment into a success or error reply.
func (h *ShortenHandler) Handle(ctx context.Context, inv *Invocation, r Responder) error {
	req := shortener.Request{
		URL:         strings.TrimSpace(inv.Option("url")),
		RequesterID: inv.UserID,
		CustomCode:  strings.TrimSpace(inv.Option("custom")),
	}

	if err := r.Defer(ctx); err != nil {
		return fmt.Errorf("defer reply: %w", err)
	}

	h.logger.Info("shorten requested",
		zap.String("platform", inv.Platform),
		zap.String("user", inv.UserID),
		zap.String("url", req.URL),
		zap.String("custom", req.CustomCode))

	if err := h.checkLimit(ctx, inv); err != nil {
		return h.reply(ctx, r, ErrorReply(err))
	}

	res, err := h.client.Shorten(ctx, req)
	if err != nil {
		h.logger.Warn("shorten invocation failed",
			zap.String("user", inv.UserID), zap.Error(err))
		return h.reply(ctx, r, ErrorReply(err))
	}
	return h.reply(ctx, r, SuccessReply(res, h.now()))
}

// checkLimit returns an error only when the limiter denies the call.
// Limiter failures are logged and the call proceeds.
func (h *ShortenHandler) checkLimit(ctx context.Context, inv *Invocation) error {
	d, err := h.limiter.Allow(ctx, inv.Platform+":"+inv.UserID)
	if err != nil {
		h.logger.Warn("rate limiter unavailable", zap.Error(err))
		return nil
	}
	if d.Allowed {
		return nil
	}
	return &RateLimitedError{RetryAfter: d.RetryAfter}
}

// RateLimitedError is reported when a user exceeds the configured limit.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	wait := e.RetryAfter.Round(time.Second)
	if wait < time.Second {
		wait = time.Second
	}
	return fmt.Sprintf("You're shortening links too quickly. Try again in %s.", wait)
}

func (h *ShortenHandler) reply(ctx context.Context, r Responder, reply *Reply) error {
	if err := r.Reply(ctx, reply); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}
