package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/ludotime/go/internal/models"
	"github.com/mcdev12/ludotime/go/internal/session"
)

// Sessions is the part of the synchronizer the gateway reads from.
type Sessions interface {
	GetSession(ctx context.Context, code string) (models.Session, error)
	Watch(ctx context.Context, code string, handler session.Handler) (*session.Watcher, error)
}

// Source selects where a socket's events come from.
type Source string

const (
	// SourceWatch gives every socket its own session watcher.
	SourceWatch Source = "watch"
	// SourceBus feeds sockets from the JetStream event consumer.
	SourceBus Source = "bus"
)

const spectatorID = "spectator"

// WebSocketHandler upgrades session subscriptions and serves session state.
type WebSocketHandler struct {
	manager  *ConnectionManager
	sessions Sessions
	source   Source
}

func NewWebSocketHandler(cm *ConnectionManager, sessions Sessions, source Source) *WebSocketHandler {
	return &WebSocketHandler{manager: cm, sessions: sessions, source: source}
}

// HandleSession serves GET {path}/sessions/{code}. The optional player_id
// query parameter tags the connection; without it the client is a spectator.
func (h *WebSocketHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	code, sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	playerID := r.URL.Query().Get("player_id")
	if playerID == "" {
		playerID = spectatorID
	}

	conn, err := h.manager.Upgrade(w, r, playerID, code)
	if err != nil {
		log.Error().
			Err(err).
			Str("session_code", code).
			Str("player_id", playerID).
			Msg("failed to upgrade websocket connection")
		return
	}

	frame, err := StateFrame(sess, time.Now())
	if err == nil {
		err = h.manager.Send(conn, frame)
	}
	if err != nil {
		log.Error().Err(err).Str("connection_id", conn.ID).Msg("failed to send session state")
		h.manager.Close(conn)
		return
	}

	if h.source == SourceWatch {
		h.follow(conn)
	}
}

// follow streams derived events to conn until either side goes away.
func (h *WebSocketHandler) follow(conn *Connection) {
	ctx, cancel := context.WithCancel(context.Background())
	w, err := h.sessions.Watch(ctx, conn.SessionCode, func(ev session.Event) {
		frame, err := NewEventFrame(ev, time.Now())
		if err != nil {
			log.Error().Err(err).Str("connection_id", conn.ID).Msg("failed to build event frame")
			return
		}
		_ = h.manager.Send(conn, frame)
	})
	if err != nil {
		cancel()
		log.Error().Err(err).Str("connection_id", conn.ID).Msg("failed to watch session")
		h.manager.Close(conn)
		return
	}

	go func() {
		defer cancel()
		select {
		case <-conn.Done():
		case <-w.Done():
			h.manager.Close(conn)
		}
	}()
}

// HandleState serves GET /api/sessions/{code} with the current document.
func (h *WebSocketHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	_, sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// HandleStats serves connection counts.
func (h *WebSocketHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Stats())
}

// RegisterRoutes mounts the socket and stats routes under path and the state
// route under /api.
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux, path string) {
	path = strings.TrimSuffix(path, "/")
	mux.HandleFunc("GET "+path+"/sessions/{code}", h.HandleSession)
	mux.HandleFunc("GET "+path+"/stats", h.HandleStats)
	mux.HandleFunc("GET /api/sessions/{code}", h.HandleState)
}

func (h *WebSocketHandler) lookup(w http.ResponseWriter, r *http.Request) (string, models.Session, bool) {
	code := session.NormalizeCode(r.PathValue("code"))
	if !session.ValidCode(code) {
		http.Error(w, "invalid session code", http.StatusBadRequest)
		return "", models.Session{}, false
	}
	sess, err := h.sessions.GetSession(r.Context(), code)
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		http.Error(w, "session not found", http.StatusNotFound)
		return "", models.Session{}, false
	case err != nil:
		log.Error().Err(err).Str("session_code", code).Msg("failed to load session")
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		return "", models.Session{}, false
	}
	return code, sess, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write JSON response")
	}
}
