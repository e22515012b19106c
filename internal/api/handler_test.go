package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nidhogg/linkbot/internal/command"
	"github.com/nidhogg/linkbot/internal/gateway"
	"github.com/nidhogg/linkbot/internal/shortener"
	"go.uber.org/zap"
)

type stubHealth struct{ err error }

func (s stubHealth) CheckHealth(context.Context) error { return s.err }

// newTestHandler wires the REST front to the real shorten command backed by
// a fake shortening service.
func newTestHandler(t *testing.T, upstream HealthChecker) *httptest.Server {
	t.Helper()
	logger := zap.NewNop()

	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"shortUrl":"https://s.example/abc","totalClicks":5}`)
	}))
	t.Cleanup(remote.Close)

	client := shortener.NewClient(shortener.Config{BaseURL: remote.URL}, logger)
	reg := command.NewRegistry()
	reg.Register(command.NewShortenHandler(client, nil, logger).Command())

	gw := gateway.NewGateway(logger)
	gw.SetCommands(reg.List())
	gw.SetHandler(reg.Dispatch)
	restGW := gateway.NewRESTAdapter(logger)
	gw.Register(restGW)

	h := NewHandler(gw, restGW, reg, upstream, logger)
	ts := httptest.NewServer(h.Router())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// --- Tests ---

func TestHealthCheck(t *testing.T) {
	ts := newTestHandler(t, stubHealth{})

	resp := getJSON(t, ts, "/api/health")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body healthResponse
	decodeJSON(t, resp, &body)
	if body.Status != "ok" || body.Upstream != "connected" {
		t.Errorf("unexpected health: %+v", body)
	}
}

func TestHealthCheckUpstreamDown(t *testing.T) {
	ts := newTestHandler(t, stubHealth{err: errors.New("connection refused")})

	resp := getJSON(t, ts, "/api/health")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body healthResponse
	decodeJSON(t, resp, &body)
	if body.Upstream != "unreachable" || body.Error == "" {
		t.Errorf("unexpected health: %+v", body)
	}
}

func TestListCommands(t *testing.T) {
	ts := newTestHandler(t, nil)

	var cmds []commandInfo
	decodeJSON(t, getJSON(t, ts, "/api/commands"), &cmds)
	if len(cmds) != 1 || cmds[0].Name != "shortenurl" || cmds[0].Usage != "/shortenurl <url> [custom]" {
		t.Errorf("unexpected commands: %+v", cmds)
	}
}

func TestGatewayStatus(t *testing.T) {
	ts := newTestHandler(t, nil)

	var statuses []gateway.AdapterStatus
	decodeJSON(t, getJSON(t, ts, "/api/gateway/status"), &statuses)
	if len(statuses) != 1 || statuses[0].Platform != "rest" || !statuses[0].Connected {
		t.Errorf("unexpected statuses: %+v", statuses)
	}
}

func TestShortenThroughREST(t *testing.T) {
	ts := newTestHandler(t, nil)

	b, _ := json.Marshal(map[string]interface{}{
		"user_id": "cli",
		"options": map[string]string{"url": "https://example.com/very/long/path"},
	})
	resp, err := http.Post(ts.URL+"/api/gateway/rest/commands/shortenurl", "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body gateway.CommandResponse
	decodeJSON(t, resp, &body)
	if !body.Deferred {
		t.Error("expected the shorten command to defer")
	}
	if body.Reply == nil || body.Reply.Embed == nil {
		t.Fatalf("expected embed reply, got %+v", body.Reply)
	}
	fields := map[string]string{}
	for _, f := range body.Reply.Embed.Fields {
		fields[f.Name] = f.Value
	}
	if fields["Original"] != "https://example.com/very/long/path" ||
		fields["Shortened"] != "https://s.example/abc" ||
		fields["Total Clicks"] != "5" {
		t.Errorf("unexpected fields: %v", fields)
	}
}

func TestShortenThroughRESTMissingURL(t *testing.T) {
	ts := newTestHandler(t, nil)

	b, _ := json.Marshal(map[string]interface{}{"user_id": "cli"})
	resp, err := http.Post(ts.URL+"/api/gateway/rest/commands/shortenurl", "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	var body gateway.CommandResponse
	decodeJSON(t, resp, &body)
	if body.Deferred || body.Reply == nil || body.Reply.Embed != nil {
		t.Errorf("expected an immediate usage reply, got %+v", body)
	}
}
