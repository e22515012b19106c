package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nidhogg/linkbot/internal/command"
	"go.uber.org/zap"
)

var errReplyAlreadySent = errors.New("reply already sent")

// restReplyTimeout bounds how long a REST caller waits for the final reply.
const restReplyTimeout = 60 * time.Second

// RESTAdapter implements Adapter for HTTP-based command invocation.
type RESTAdapter struct {
	handler  CommandHandler
	commands map[string]*command.Command
	timeout  time.Duration
	mu       sync.RWMutex
	logger   *zap.Logger
}

// NewRESTAdapter creates a REST gateway adapter.
func NewRESTAdapter(logger *zap.Logger) *RESTAdapter {
	return &RESTAdapter{
		commands: make(map[string]*command.Command),
		timeout:  restReplyTimeout,
		logger:   logger,
	}
}

func (a *RESTAdapter) Platform() string { return "rest" }

func (a *RESTAdapter) Connect(_ context.Context) error { return nil }

func (a *RESTAdapter) OnCommand(h CommandHandler) { a.handler = h }

func (a *RESTAdapter) Close() error { return nil }

// SetCommands records definitions so the "text" form can be parsed.
func (a *RESTAdapter) SetCommands(cmds []*command.Command) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, c := range cmds {
		a.commands[c.Name] = c
	}
}

func (a *RESTAdapter) Status() AdapterStatus {
	return AdapterStatus{Platform: "rest", Connected: true}
}

// Routes returns a chi router with REST gateway endpoints.
func (a *RESTAdapter) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/commands/{name}", a.handleCommand)
	return r
}

type commandRequest struct {
	UserID   string            `json:"user_id"`
	UserName string            `json:"user_name"`
	Options  map[string]string `json:"options"`
	Text     string            `json:"text"`
}

// CommandResponse is the JSON body returned for a REST invocation.
type CommandResponse struct {
	ID       string         `json:"id"`
	Deferred bool           `json:"deferred"`
	Reply    *command.Reply `json:"reply"`
}

// handleCommand runs one invocation and waits for its final reply.
func (a *RESTAdapter) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}
	if a.handler == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no command handler"})
		return
	}

	name := chi.URLParam(r, "name")
	opts := req.Options
	if opts == nil {
		opts = map[string]string{}
	}
	a.mu.RLock()
	def := a.commands[name]
	a.mu.RUnlock()
	if def != nil && req.Text != "" {
		for k, v := range command.ParseArgs(def, req.Text) {
			if _, set := opts[k]; !set {
				opts[k] = v
			}
		}
	}

	id := uuid.New().String()
	inv := &command.Invocation{
		Platform:  "rest",
		ChannelID: id,
		UserID:    req.UserID,
		UserName:  req.UserName,
		Command:   name,
		Options:   opts,
	}
	resp := &restResponder{replies: make(chan *command.Reply, 1)}

	done := make(chan error, 1)
	go func() {
		done <- a.handler(context.WithoutCancel(r.Context()), inv, resp)
	}()

	timer := time.NewTimer(a.timeout)
	defer timer.Stop()

	select {
	case reply := <-resp.replies:
		writeJSON(w, http.StatusOK, CommandResponse{ID: id, Deferred: resp.wasDeferred(), Reply: reply})
	case err := <-done:
		// The handler returned without replying.
		select {
		case reply := <-resp.replies:
			writeJSON(w, http.StatusOK, CommandResponse{ID: id, Deferred: resp.wasDeferred(), Reply: reply})
			return
		default:
		}
		msg := "command produced no reply"
		if err != nil {
			msg = err.Error()
		}
		a.logger.Warn("rest command produced no reply", zap.String("id", id), zap.String("error", msg))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msg})
	case <-timer.C:
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": "response timeout"})
	case <-r.Context().Done():
		return
	}
}

// restResponder hands the final reply to the waiting HTTP request.
type restResponder struct {
	replies  chan *command.Reply
	mu       sync.Mutex
	deferred bool
}

func (r *restResponder) Defer(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deferred = true
	return nil
}

func (r *restResponder) wasDeferred() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deferred
}

func (r *restResponder) Reply(_ context.Context, reply *command.Reply) error {
	select {
	case r.replies <- reply:
		return nil
	default:
		return errReplyAlreadySent
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
