package command

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Command represents a slash command.
type Command struct {
	Name        string
	Description string
	Options     []Option
	Handler     CommandHandler
}

// Option is a named string argument of a command.
type Option struct {
	Name        string
	Description string
	Required    bool
}

// CommandHandler executes one invocation. It owns the reply: it must
// answer through r exactly once with Reply, optionally after Defer.
type CommandHandler func(ctx context.Context, inv *Invocation, r Responder) error

// Invocation is a normalized command call from any platform.
type Invocation struct {
	Platform  string
	ChannelID string
	UserID    string
	UserName  string
	Command   string
	Options   map[string]string
}

// Option returns the value of a named option, or "" when it was not given.
func (inv *Invocation) Option(name string) string {
	if inv.Options == nil {
		return ""
	}
	return inv.Options[name]
}

// Responder is the reply channel a platform hands to a handler.
type Responder interface {
	// Defer sends a provisional acknowledgment for replies that may take
	// longer than the platform's fast-response window.
	Defer(ctx context.Context) error
	// Reply sends the final reply, replacing the acknowledgment if any.
	Reply(ctx context.Context, reply *Reply) error
}

// Reply is a platform-neutral message. Adapters render Embed natively
// where the platform supports it.
type Reply struct {
	Content string `json:"content,omitempty"`
	Embed   *Embed `json:"embed,omitempty"`
}

// Embed is a titled panel of fields.
type Embed struct {
	Title     string       `json:"title"`
	Color     int          `json:"color"`
	Fields    []EmbedField `json:"fields"`
	Footer    string       `json:"footer,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// EmbedField is one name/value row of an Embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Registry holds all registered commands.
type Registry struct {
	commands map[string]*Command
	mu       sync.RWMutex
}

// NewRegistry creates an empty command registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]*Command)}
}

// Register adds a command to the registry.
func (r *Registry) Register(cmd *Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[cmd.Name] = cmd
}

// Get looks up a command by name.
func (r *Registry) Get(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[strings.TrimPrefix(name, "/")]
	return cmd, ok
}

// Dispatch executes the handler matching inv.Command. Unknown commands and
// missing required options are answered directly without a handler call.
func (r *Registry) Dispatch(ctx context.Context, inv *Invocation, resp Responder) error {
	cmd, ok := r.Get(inv.Command)
	if !ok {
		return resp.Reply(ctx, &Reply{
			Content: fmt.Sprintf("Unknown command: /%s", strings.TrimPrefix(inv.Command, "/")),
		})
	}

	for _, opt := range cmd.Options {
		if opt.Required && strings.TrimSpace(inv.Option(opt.Name)) == "" {
			return resp.Reply(ctx, &Reply{
				Content: fmt.Sprintf("Missing required option `%s`.\nUsage: %s", opt.Name, cmd.Usage()),
			})
		}
	}

	return cmd.Handler(ctx, inv, resp)
}

// List returns all registered commands sorted by name.
func (r *Registry) List() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		result = append(result, cmd)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// Usage renders "/name <required> [optional]".
func (c *Command) Usage() string {
	var b strings.Builder
	b.WriteString("/" + c.Name)
	for _, o := range c.Options {
		if o.Required {
			fmt.Fprintf(&b, " <%s>", o.Name)
		} else {
			fmt.Fprintf(&b, " [%s]", o.Name)
		}
	}
	return b.String()
}
