package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/nidhogg/linkbot/internal/command"
	"go.uber.org/zap"
)

// discordContentLimit is the maximum message content length Discord accepts.
const discordContentLimit = 2000

// DiscordAdapter implements Adapter for Discord application commands.
type DiscordAdapter struct {
	token       string
	guildID     string
	session     *discordgo.Session
	handler     CommandHandler
	ready       ReadyHook
	commands    []*command.Command
	registered  int
	connected   bool
	connectedAt time.Time
	lastError   string
	mu          sync.RWMutex
	logger      *zap.Logger
}

// NewDiscordAdapter creates a Discord gateway adapter. With an empty
// guildID commands are registered globally for the application.
func NewDiscordAdapter(token, guildID string, logger *zap.Logger) *DiscordAdapter {
	return &DiscordAdapter{
		token:   token,
		guildID: guildID,
		logger:  logger,
	}
}

func (a *DiscordAdapter) Platform() string { return "discord" }

func (a *DiscordAdapter) OnCommand(h CommandHandler) { a.handler = h }

func (a *DiscordAdapter) OnReady(h ReadyHook) { a.ready = h }

func (a *DiscordAdapter) SetCommands(cmds []*command.Command) { a.commands = cmds }

// Connect opens the Discord gateway websocket. Command registration happens
// once the Ready event arrives.
func (a *DiscordAdapter) Connect(_ context.Context) error {
	session, err := discordgo.New("Bot " + a.token)
	if err != nil {
		a.setError(fmt.Sprintf("session create: %v", err))
		return fmt.Errorf("discord session: %w", err)
	}
	a.session = session

	a.session.Identify.Intents = discordgo.IntentsGuilds
	a.session.AddHandler(a.onReady)
	a.session.AddHandler(a.onInteractionCreate)

	if err := a.session.Open(); err != nil {
		a.setError(fmt.Sprintf("open failed: %v", err))
		return fmt.Errorf("discord open: %w", err)
	}

	a.mu.Lock()
	a.connected = true
	a.connectedAt = time.Now()
	a.lastError = ""
	a.mu.Unlock()
	return nil
}

func (a *DiscordAdapter) setError(msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastError = msg
	a.connected = false
}

// onReady probes dependencies through the ready hook, then overwrites the
// application's command set with ours.
func (a *DiscordAdapter) onReady(s *discordgo.Session, r *discordgo.Ready) {
	a.logger.Info("discord logged in",
		zap.String("user", r.User.Username),
		zap.Int("guilds", len(r.Guilds)))

	ctx := context.Background()
	if a.ready != nil {
		a.ready(ctx, a.Platform())
	}

	defs := applicationCommands(a.commands)
	created, err := s.ApplicationCommandBulkOverwrite(r.User.ID, a.guildID, defs, discordgo.WithContext(ctx))
	if err != nil {
		a.logger.Error("discord command registration failed", zap.Error(err))
		a.mu.Lock()
		a.lastError = fmt.Sprintf("register commands: %v", err)
		a.mu.Unlock()
		return
	}

	a.mu.Lock()
	a.registered = len(created)
	a.mu.Unlock()
	a.logger.Info("discord commands registered",
		zap.Int("count", len(created)),
		zap.String("guild", a.guildID))
}

// onInteractionCreate dispatches application command interactions.
func (a *DiscordAdapter) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if a.handler == nil {
		return
	}

	inv := invocationFromInteraction(i.Interaction)
	resp := &discordResponder{session: s, interaction: i.Interaction}
	if err := a.handler(context.Background(), inv, resp); err != nil {
		a.logger.Warn("discord interaction not answered",
			zap.String("interaction", i.ID), zap.Error(err))
	}
}

// applicationCommands converts command definitions to Discord's schema.
func applicationCommands(cmds []*command.Command) []*discordgo.ApplicationCommand {
	out := make([]*discordgo.ApplicationCommand, 0, len(cmds))
	for _, c := range cmds {
		opts := make([]*discordgo.ApplicationCommandOption, 0, len(c.Options))
		for _, o := range c.Options {
			opts = append(opts, &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        o.Name,
				Description: o.Description,
				Required:    o.Required,
			})
		}
		out = append(out, &discordgo.ApplicationCommand{
			Name:        c.Name,
			Description: c.Description,
			Options:     opts,
		})
	}
	return out
}

// invocationFromInteraction normalizes an application command interaction.
// Guild interactions carry the user on Member, DMs on User.
func invocationFromInteraction(i *discordgo.Interaction) *command.Invocation {
	data := i.ApplicationCommandData()

	user := i.User
	if i.Member != nil && i.Member.User != nil {
		user = i.Member.User
	}

	inv := &command.Invocation{
		Platform:  "discord",
		ChannelID: i.ChannelID,
		Command:   data.Name,
		Options:   make(map[string]string, len(data.Options)),
	}
	if user != nil {
		inv.UserID = user.ID
		inv.UserName = user.Username
	}
	for _, o := range data.Options {
		if o.Type == discordgo.ApplicationCommandOptionString {
			inv.Options[o.Name] = o.StringValue()
		}
	}
	return inv
}

// discordResponder answers one interaction: a deferred response followed
// by an edit, or a direct response when Defer was never called.
type discordResponder struct {
	session     *discordgo.Session
	interaction *discordgo.Interaction
	deferred    bool
}

func (r *discordResponder) Defer(ctx context.Context) error {
	err := r.session.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord defer: %w", err)
	}
	r.deferred = true
	return nil
}

func (r *discordResponder) Reply(ctx context.Context, reply *command.Reply) error {
	content := truncate(reply.Content, discordContentLimit)
	var embeds []*discordgo.MessageEmbed
	if reply.Embed != nil {
		embeds = []*discordgo.MessageEmbed{messageEmbed(reply.Embed)}
	}

	if !r.deferred {
		err := r.session.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{Content: content, Embeds: embeds},
		}, discordgo.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("discord respond: %w", err)
		}
		return nil
	}

	edit := &discordgo.WebhookEdit{}
	if content != "" {
		edit.Content = &content
	}
	if embeds != nil {
		edit.Embeds = &embeds
	}
	if _, err := r.session.InteractionResponseEdit(r.interaction, edit, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord edit reply: %w", err)
	}
	return nil
}

// messageEmbed renders an embed. Discord rejects empty field values, so
// blanks are sent as a zero-width space.
func messageEmbed(e *command.Embed) *discordgo.MessageEmbed {
	fields := make([]*discordgo.MessageEmbedField, 0, len(e.Fields))
	for _, f := range e.Fields {
		value := f.Value
		if value == "" {
			value = "\u200b"
		}
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  value,
			Inline: f.Inline,
		})
	}
	me := &discordgo.MessageEmbed{
		Title:  e.Title,
		Color:  e.Color,
		Fields: fields,
	}
	if e.Footer != "" {
		me.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	if !e.Timestamp.IsZero() {
		me.Timestamp = e.Timestamp.Format(time.RFC3339)
	}
	return me
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}

// Close shuts down the Discord session.
func (a *DiscordAdapter) Close() error {
	if a.session != nil {
		return a.session.Close()
	}
	return nil
}

func (a *DiscordAdapter) Status() AdapterStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := AdapterStatus{
		Platform:  "discord",
		Connected: a.connected,
		Error:     a.lastError,
	}
	if a.connected {
		t := a.connectedAt
		s.ConnectedAt = &t
		user := ""
		if a.session != nil && a.session.State != nil && a.session.State.User != nil {
			user = a.session.State.User.Username
		}
		s.Details = fmt.Sprintf("bot=%s, commands=%d", user, a.registered)
	}
	return s
}
