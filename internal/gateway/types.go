package gateway

import (
	"context"
	"time"

	"github.com/nidhogg/linkbot/internal/command"
)

// Adapter is a command front: it registers commands with one chat
// platform and feeds invocations to the gateway.
type Adapter interface {
	Platform() string
	Connect(ctx context.Context) error
	OnCommand(handler CommandHandler)
	Close() error
	Status() AdapterStatus
}

// CommandRegistrar is implemented by adapters that push command
// definitions to their platform.
type CommandRegistrar interface {
	SetCommands(cmds []*command.Command)
}

// ReadyNotifier is implemented by adapters that report when their
// platform session is ready.
type ReadyNotifier interface {
	OnReady(hook ReadyHook)
}

// CommandHandler processes one invocation from any platform.
type CommandHandler func(ctx context.Context, inv *command.Invocation, r command.Responder) error

// ReadyHook runs once a platform session is established.
type ReadyHook func(ctx context.Context, platform string)

// AdapterStatus describes the connection state of a platform adapter.
type AdapterStatus struct {
	Platform    string     `json:"platform"`
	Connected   bool       `json:"connected"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	Details     string     `json:"details,omitempty"`
}
