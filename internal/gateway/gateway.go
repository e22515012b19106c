package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/nidhogg/linkbot/internal/command"
	"go.uber.org/zap"
)

// Gateway manages all platform adapters and routes invocations.
type Gateway struct {
	adapters map[string]Adapter
	handler  CommandHandler
	ready    ReadyHook
	commands []*command.Command
	mu       sync.RWMutex
	logger   *zap.Logger
}

// NewGateway creates a gateway manager.
func NewGateway(logger *zap.Logger) *Gateway {
	return &Gateway{
		adapters: make(map[string]Adapter),
		logger:   logger,
	}
}

// SetHandler sets the callback for all inbound invocations.
func (g *Gateway) SetHandler(h CommandHandler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handler = h
}

// SetReadyHook sets the callback run when an adapter's session is ready.
func (g *Gateway) SetReadyHook(h ReadyHook) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ready = h
}

// SetCommands sets the command definitions pushed to platforms that
// support registration. Call before Register.
func (g *Gateway) SetCommands(cmds []*command.Command) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.commands = cmds
}

// Register adds an adapter and wires its handlers.
func (g *Gateway) Register(adapter Adapter) {
	g.mu.Lock()
	defer g.mu.Unlock()

	platform := adapter.Platform()
	g.adapters[platform] = adapter
	adapter.OnCommand(g.dispatch)
	if r, ok := adapter.(CommandRegistrar); ok {
		r.SetCommands(g.commands)
	}
	if n, ok := adapter.(ReadyNotifier); ok {
		n.OnReady(g.onReady)
	}
	g.logger.Info("registered gateway adapter", zap.String("platform", platform))
}

func (g *Gateway) dispatch(ctx context.Context, inv *command.Invocation, r command.Responder) error {
	g.mu.RLock()
	h := g.handler
	g.mu.RUnlock()
	if h == nil {
		return errors.New("gateway: no command handler")
	}

	err := h(ctx, inv, r)
	if err != nil {
		g.logger.Error("command handling failed",
			zap.String("platform", inv.Platform),
			zap.String("command", inv.Command),
			zap.Error(err))
	}
	return err
}

func (g *Gateway) onReady(ctx context.Context, platform string) {
	g.mu.RLock()
	h := g.ready
	g.mu.RUnlock()
	if h != nil {
		h(ctx, platform)
	}
}

// ConnectAll starts all registered adapters. A failing adapter is logged
// and skipped; an error is returned only when none connected.
func (g *Gateway) ConnectAll(ctx context.Context) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if len(g.adapters) == 0 {
		return errors.New("no gateway adapters registered")
	}

	var failed []string
	for platform, adapter := range g.adapters {
		if err := adapter.Connect(ctx); err != nil {
			g.logger.Error("adapter connect failed",
				zap.String("platform", platform), zap.Error(err))
			failed = append(failed, platform)
			continue
		}
		g.logger.Info("adapter connected", zap.String("platform", platform))
	}
	if len(failed) == len(g.adapters) {
		sort.Strings(failed)
		return fmt.Errorf("all adapters failed to connect: %v", failed)
	}
	return nil
}

// StatusAll returns the status of every adapter sorted by platform.
func (g *Gateway) StatusAll() []AdapterStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]AdapterStatus, 0, len(g.adapters))
	for _, a := range g.adapters {
		out = append(out, a.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform < out[j].Platform })
	return out
}

// Close shuts down all adapters.
func (g *Gateway) Close() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for platform, adapter := range g.adapters {
		if err := adapter.Close(); err != nil {
			g.logger.Error("adapter close failed",
				zap.String("platform", platform), zap.Error(err))
		}
	}
	return nil
}

// Adapters returns the list of registered platform names.
func (g *Gateway) Adapters() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.adapters))
	for p := range g.adapters {
		names = append(names, p)
	}
	sort.Strings(names)
	return names
}
