package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ConnectionManager tracks websocket connections grouped by session code and
// fans frames out to them.
type ConnectionManager struct {
	mu       sync.RWMutex
	sessions map[string]map[*Connection]struct{}

	upgrader    websocket.Upgrader
	config      ConnectionConfig
	broadcastCh chan broadcast
}

// Connection is one websocket client following a session.
type Connection struct {
	ID          string
	PlayerID    string
	SessionCode string
	ConnectedAt time.Time

	conn      *websocket.Conn
	send      chan []byte
	manager   *ConnectionManager
	done      chan struct{}
	closeOnce sync.Once
}

// ConnectionConfig holds websocket tunables.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBuffer      int
	CheckOrigin     func(r *http.Request) bool
}

type broadcast struct {
	code  string
	frame Frame
	close bool
}

// Stats summarises the open connections.
type Stats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveSessions   int            `json:"active_sessions"`
	Sessions         map[string]int `json:"sessions"`
}

func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		sessions: make(map[string]map[*Connection]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan broadcast, 1000),
	}
}

// Start processes broadcasts until ctx is done.
func (cm *ConnectionManager) Start(ctx context.Context) error {
	log.Info().Msg("connection manager started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return nil
		case b := <-cm.broadcastCh:
			cm.handleBroadcast(b)
		}
	}
}

// Upgrade switches the request to a websocket bound to code. On failure the
// upgrader has already replied to the client.
func (cm *ConnectionManager) Upgrade(w http.ResponseWriter, r *http.Request, playerID, code string) (*Connection, error) {
	ws, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrade connection: %w", err)
	}

	c := &Connection{
		ID:          uuid.New().String(),
		PlayerID:    playerID,
		SessionCode: code,
		ConnectedAt: time.Now(),
		conn:        ws,
		send:        make(chan []byte, cm.config.SendBuffer),
		manager:     cm,
		done:        make(chan struct{}),
	}
	cm.register(c)

	go c.writePump()
	go c.readPump()

	log.Info().
		Str("connection_id", c.ID).
		Str("player_id", playerID).
		Str("session_code", code).
		Msg("websocket connection established")
	return c, nil
}

func (cm *ConnectionManager) register(c *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.sessions[c.SessionCode] == nil {
		cm.sessions[c.SessionCode] = make(map[*Connection]struct{})
	}
	cm.sessions[c.SessionCode][c] = struct{}{}

	log.Debug().
		Str("connection_id", c.ID).
		Str("session_code", c.SessionCode).
		Int("total_connections", len(cm.sessions[c.SessionCode])).
		Msg("connection registered")
}

func (cm *ConnectionManager) unregister(c *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	conns, ok := cm.sessions[c.SessionCode]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(cm.sessions, c.SessionCode)
	}
	c.shutdown()

	log.Info().
		Str("connection_id", c.ID).
		Str("player_id", c.PlayerID).
		Str("session_code", c.SessionCode).
		Msg("connection unregistered")
}

// Send queues frame for one connection. A connection whose buffer is full is
// dropped.
func (cm *ConnectionManager) Send(c *Connection, frame Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if !cm.enqueue(c, data) {
		cm.unregister(c)
		return fmt.Errorf("connection %s is too slow", c.ID)
	}
	return nil
}

// Broadcast queues frame for every connection following code.
func (cm *ConnectionManager) Broadcast(code string, frame Frame) {
	cm.queue(broadcast{code: code, frame: frame})
}

// CloseSession closes every connection following code once the frames queued
// before it are delivered.
func (cm *ConnectionManager) CloseSession(code string) {
	cm.queue(broadcast{code: code, close: true})
}

// Close ends one connection after flushing its queued frames.
func (cm *ConnectionManager) Close(c *Connection) {
	cm.unregister(c)
}

func (cm *ConnectionManager) queue(b broadcast) {
	select {
	case cm.broadcastCh <- b:
	default:
		log.Warn().Str("session_code", b.code).Msg("broadcast channel full, dropping message")
	}
}

func (cm *ConnectionManager) enqueue(c *Connection, data []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		log.Warn().
			Str("connection_id", c.ID).
			Str("player_id", c.PlayerID).
			Msg("connection send buffer full, closing connection")
		return false
	}
}

func (cm *ConnectionManager) targets(code string) []*Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	conns := make([]*Connection, 0, len(cm.sessions[code]))
	for c := range cm.sessions[code] {
		conns = append(conns, c)
	}
	return conns
}

func (cm *ConnectionManager) handleBroadcast(b broadcast) {
	conns := cm.targets(b.code)
	if b.close {
		for _, c := range conns {
			cm.unregister(c)
		}
		return
	}

	data, err := json.Marshal(b.frame)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal frame for broadcast")
		return
	}
	for _, c := range conns {
		if !cm.enqueue(c, data) {
			cm.unregister(c)
		}
	}

	log.Debug().
		Str("frame_type", b.frame.Type).
		Str("session_code", b.code).
		Int("connections", len(conns)).
		Msg("frame broadcasted")
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	var conns []*Connection
	for _, set := range cm.sessions {
		for c := range set {
			conns = append(conns, c)
		}
	}
	cm.mu.RUnlock()
	for _, c := range conns {
		cm.unregister(c)
	}
}

// Stats returns connection counts per session.
func (cm *ConnectionManager) Stats() Stats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := Stats{Sessions: make(map[string]int, len(cm.sessions))}
	for code, conns := range cm.sessions {
		stats.TotalConnections += len(conns)
		stats.Sessions[code] = len(conns)
	}
	stats.ActiveSessions = len(cm.sessions)
	return stats
}

// Done is closed once the connection is unregistered.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

func (c *Connection) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Connection) writePump() {
	cfg := c.manager.config
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.manager.unregister(c)
	}()

	write := func(kind int, data []byte) error {
		if err := c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout)); err != nil {
			return err
		}
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case message := <-c.send:
			if err := write(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to write message to websocket")
				return
			}

		case <-c.done:
			c.flush(write)
			_ = write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to send ping")
				return
			}
		}
	}
}

func (c *Connection) flush(write func(int, []byte) error) {
	for {
		select {
		case message := <-c.send:
			if err := write(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Connection) readPump() {
	cfg := c.manager.config
	defer c.manager.unregister(c)

	c.conn.SetReadLimit(cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("unexpected websocket close error")
			}
			return
		}

		// Commands go through the RPC service; anything sent here is only logged.
		log.Debug().
			Str("connection_id", c.ID).
			Str("player_id", c.PlayerID).
			Bytes("message", message).
			Msg("received client message")
		_ = c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	}
}
