package command

import (
	"context"
	"strings"
	"sync"
	"testing"
)

// fakeResponder records the calls a handler makes.
type fakeResponder struct {
	mu       sync.Mutex
	deferred int
	replies  []*Reply
	events   []string
	deferErr error
}

func (f *fakeResponder) Defer(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deferred++
	f.events = append(f.events, "defer")
	return f.deferErr
}

func (f *fakeResponder) Reply(_ context.Context, r *Reply) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, r)
	f.events = append(f.events, "reply")
	return nil
}

func TestRegistryDispatch(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Command{
		Name:        "ping",
		Description: "Ping test",
		Options:     []Option{{Name: "text", Required: true}},
		Handler: func(ctx context.Context, inv *Invocation, r Responder) error {
			return r.Reply(ctx, &Reply{Content: "pong: " + inv.Option("text")})
		},
	})

	ctx := context.Background()

	// Test known command
	resp := &fakeResponder{}
	err := reg.Dispatch(ctx, &Invocation{Command: "ping", Options: map[string]string{"text": "hello"}}, resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.replies) != 1 || resp.replies[0].Content != "pong: hello" {
		t.Errorf("got %+v, want one reply %q", resp.replies, "pong: hello")
	}

	// Test unknown command
	resp = &fakeResponder{}
	if err := reg.Dispatch(ctx, &Invocation{Command: "/unknown"}, resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.replies) != 1 || !strings.Contains(resp.replies[0].Content, "Unknown command: /unknown") {
		t.Errorf("expected unknown command reply, got %+v", resp.replies)
	}

	// Test missing required option
	resp = &fakeResponder{}
	if err := reg.Dispatch(ctx, &Invocation{Command: "ping"}, resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.replies) != 1 || !strings.Contains(resp.replies[0].Content, "/ping <text>") {
		t.Errorf("expected usage reply, got %+v", resp.replies)
	}
}

func TestRegistryList(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Command{Name: "beta"})
	reg.Register(&Command{Name: "alpha"})

	list := reg.List()
	if len(list) != 2 {
		t.Fatalf("got %d commands, want 2", len(list))
	}
	if list[0].Name != "alpha" {
		t.Errorf("got %q first, want %q", list[0].Name, "alpha")
	}
}

func TestCommandUsage(t *testing.T) {
	cmd := &Command{Name: "shortenurl", Options: []Option{
		{Name: "url", Required: true},
		{Name: "custom"},
	}}
	if got := cmd.Usage(); got != "/shortenurl <url> [custom]" {
		t.Errorf("got %q", got)
	}
}

func TestParseArgs(t *testing.T) {
	cmd := &Command{Options: []Option{{Name: "url"}, {Name: "custom"}}}

	tests := []struct {
		text string
		want map[string]string
	}{
		{"https://example.com", map[string]string{"url": "https://example.com"}},
		{"https://example.com mycode", map[string]string{"url": "https://example.com", "custom": "mycode"}},
		{"custom:abc url:https://x.y", map[string]string{"url": "https://x.y", "custom": "abc"}},
		{"custom:abc https://x.y", map[string]string{"url": "https://x.y", "custom": "abc"}},
		{"  ", map[string]string{}},
	}
	for _, tt := range tests {
		got := ParseArgs(cmd, tt.text)
		if len(got) != len(tt.want) {
			t.Errorf("ParseArgs(%q) = %v, want %v", tt.text, got, tt.want)
			continue
		}
		for k, v := range tt.want {
			if got[k] != v {
				t.Errorf("ParseArgs(%q)[%s] = %q, want %q", tt.text, k, got[k], v)
			}
		}
	}
}
