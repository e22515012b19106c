package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nidhogg/linkbot/internal/command"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
	"go.uber.org/zap"
)

const slackAckText = "Working on it..."

// SlackAdapter implements Adapter for Slack slash commands over Socket Mode.
// Slack slash commands are declared in the app manifest, so this adapter
// only receives them.
type SlackAdapter struct {
	client      *slack.Client
	socket      *socketmode.Client
	handler     CommandHandler
	ready       ReadyHook
	commands    map[string]*command.Command
	connected   bool
	connectedAt time.Time
	lastError   string
	cancel      context.CancelFunc
	mu          sync.RWMutex
	logger      *zap.Logger
}

// NewSlackAdapter creates a Slack gateway adapter.
// botToken is the Bot User OAuth Token (xoxb-...).
// appToken is the App-Level Token (xapp-...) for Socket Mode.
func NewSlackAdapter(botToken, appToken string, logger *zap.Logger) *SlackAdapter {
	client := slack.New(botToken,
		slack.OptionAppLevelToken(appToken),
	)

	socket := socketmode.New(client,
		socketmode.OptionLog(zap.NewStdLog(logger)),
	)

	return &SlackAdapter{
		client:   client,
		socket:   socket,
		commands: make(map[string]*command.Command),
		logger:   logger,
	}
}

func (a *SlackAdapter) Platform() string { return "slack" }

func (a *SlackAdapter) OnCommand(h CommandHandler) { a.handler = h }

func (a *SlackAdapter) OnReady(h ReadyHook) { a.ready = h }

// SetCommands records definitions so free-text arguments can be mapped
// onto named options.
func (a *SlackAdapter) SetCommands(cmds []*command.Command) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, c := range cmds {
		a.commands[c.Name] = c
	}
}

// Connect starts the Socket Mode event loop in a background goroutine.
func (a *SlackAdapter) Connect(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	go a.handleEvents(ctx)
	go func() {
		if err := a.socket.RunContext(ctx); err != nil && ctx.Err() == nil {
			a.logger.Error("slack socket mode error", zap.Error(err))
			a.mu.Lock()
			a.connected = false
			a.lastError = err.Error()
			a.mu.Unlock()
		}
	}()
	a.logger.Info("slack adapter connecting via socket mode")
	return nil
}

// handleEvents processes incoming Socket Mode events.
func (a *SlackAdapter) handleEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-a.socket.Events:
			if !ok {
				return
			}
			a.processEvent(ctx, evt)
		}
	}
}

func (a *SlackAdapter) processEvent(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnected:
		a.mu.Lock()
		a.connected = true
		a.connectedAt = time.Now()
		a.lastError = ""
		a.mu.Unlock()
		a.logger.Info("slack socket mode connected")
		if a.ready != nil {
			go a.ready(ctx, a.Platform())
		}
	case socketmode.EventTypeConnectionError:
		a.mu.Lock()
		a.connected = false
		a.lastError = "connection error"
		a.mu.Unlock()
	case socketmode.EventTypeSlashCommand:
		cmd, ok := evt.Data.(slack.SlashCommand)
		if !ok || evt.Request == nil {
			return
		}
		req := *evt.Request
		resp := &slackResponder{
			ack: func(payload interface{}) {
				if payload == nil {
					a.socket.Ack(req)
					return
				}
				a.socket.Ack(req, payload)
			},
			post:        slack.PostWebhookContext,
			responseURL: cmd.ResponseURL,
		}
		// The remote call may outlast Slack's ack window; run off the event loop.
		go a.handleSlashCommand(ctx, cmd, resp)
	}
}

func (a *SlackAdapter) handleSlashCommand(ctx context.Context, cmd slack.SlashCommand, resp *slackResponder) {
	if a.handler == nil {
		resp.ack(nil)
		return
	}

	a.mu.RLock()
	def := a.commands[strings.TrimPrefix(cmd.Command, "/")]
	a.mu.RUnlock()

	inv := invocationFromSlash(cmd, def)
	if err := a.handler(ctx, inv, resp); err != nil {
		a.logger.Warn("slack command not answered",
			zap.String("command", cmd.Command), zap.Error(err))
	}
}

// invocationFromSlash normalizes a slash command. def may be nil for
// commands this bot does not know; the registry answers those.
func invocationFromSlash(cmd slack.SlashCommand, def *command.Command) *command.Invocation {
	inv := &command.Invocation{
		Platform:  "slack",
		ChannelID: cmd.ChannelID,
		UserID:    cmd.UserID,
		UserName:  cmd.UserName,
		Command:   strings.TrimPrefix(cmd.Command, "/"),
		Options:   map[string]string{},
	}
	if def != nil {
		inv.Options = command.ParseArgs(def, cmd.Text)
	}
	return inv
}

// slackResponder acks the slash command with a provisional message, then
// replaces it through the command's response_url.
type slackResponder struct {
	ack         func(payload interface{})
	post        func(ctx context.Context, url string, msg *slack.WebhookMessage) error
	responseURL string
	acked       bool
}

func (r *slackResponder) Defer(context.Context) error {
	r.ack(map[string]interface{}{
		"response_type": slack.ResponseTypeInChannel,
		"text":          slackAckText,
	})
	r.acked = true
	return nil
}

func (r *slackResponder) Reply(ctx context.Context, reply *command.Reply) error {
	msg := slackMessage(reply)
	if !r.acked {
		r.ack(msg)
		r.acked = true
		return nil
	}
	msg.ReplaceOriginal = true
	if err := r.post(ctx, r.responseURL, msg); err != nil {
		return fmt.Errorf("slack response_url: %w", err)
	}
	return nil
}

// slackMessage renders a reply in Slack mrkdwn; embeds become an attachment.
func slackMessage(reply *command.Reply) *slack.WebhookMessage {
	msg := &slack.WebhookMessage{
		ResponseType: slack.ResponseTypeInChannel,
		Text:         strings.ReplaceAll(reply.Content, "**", "*"),
	}
	if e := reply.Embed; e != nil {
		att := slack.Attachment{
			Color:  fmt.Sprintf("#%06x", e.Color),
			Title:  e.Title,
			Footer: e.Footer,
		}
		for _, f := range e.Fields {
			att.Fields = append(att.Fields, slack.AttachmentField{
				Title: f.Name,
				Value: f.Value,
				Short: f.Inline,
			})
		}
		if !e.Timestamp.IsZero() {
			att.Ts = json.Number(strconv.FormatInt(e.Timestamp.Unix(), 10))
		}
		msg.Attachments = []slack.Attachment{att}
		if msg.Text == "" {
			msg.Text = e.Title
		}
	}
	return msg
}

// Close stops the Socket Mode loop.
func (a *SlackAdapter) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	return nil
}

func (a *SlackAdapter) Status() AdapterStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := AdapterStatus{
		Platform:  "slack",
		Connected: a.connected,
		Error:     a.lastError,
	}
	if a.connected {
		t := a.connectedAt
		s.ConnectedAt = &t
		s.Details = fmt.Sprintf("commands=%d", len(a.commands))
	}
	return s
}
