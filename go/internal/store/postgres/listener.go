package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/mcdev12/ludotime/go/internal/store"
	"github.com/rs/zerolog/log"
)

type ListenerConfig struct {
	DatabaseURL   string        // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel string        // Channel name to LISTEN on
	PingInterval  time.Duration // How often to check the listener connection
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		DatabaseURL:   "",
		NotifyChannel: "session_documents",
		PingInterval:  90 * time.Second,
	}
}

// Listener turns Postgres notifications into broker records so subscribers in
// this process see commits made by any process.
type Listener struct {
	db       *sql.DB
	broker   *store.Broker
	listener *pq.Listener
	cfg      ListenerConfig
}

func NewListener(db *sql.DB, broker *store.Broker, cfg ListenerConfig) (*Listener, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for notifications")

	return &Listener{
		db:       db,
		broker:   broker,
		listener: l,
		cfg:      cfg,
	}, nil
}

func (l *Listener) Start(ctx context.Context) error {
	log.Info().
		Str("channel", l.cfg.NotifyChannel).
		Dur("ping_interval", l.cfg.PingInterval).
		Msg("listener started")

	pingTicker := time.NewTicker(l.cfg.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("listener shutting down")
			return l.Stop()
		case note := <-l.listener.Notify:
			if note == nil {
				// The connection was re-established and notifications may
				// have been missed.
				l.refreshAll(ctx)
				continue
			}
			if err := l.handleNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Msg("failed to handle notification")
			}
		case <-pingTicker.C:
			if err := l.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

func (l *Listener) Stop() error {
	return l.listener.Close()
}

// handleNotification fetches the row named by a notification and publishes it
// when someone in this process is subscribed to it.
func (l *Listener) handleNotification(ctx context.Context, extra string) error {
	var n notification
	if err := json.Unmarshal([]byte(extra), &n); err != nil {
		return fmt.Errorf("invalid notification payload: %w", err)
	}
	if l.broker.Subscribers(n.Key) == 0 {
		return nil
	}
	return l.refresh(ctx, n.Key)
}

func (l *Listener) refresh(ctx context.Context, key string) error {
	rec, ok, err := newQueries(l.db).getDocument(ctx, key, false)
	if err != nil {
		return fmt.Errorf("failed to fetch document %q: %w", key, err)
	}
	if !ok {
		return nil
	}
	l.broker.Publish(rec)
	return nil
}

func (l *Listener) refreshAll(ctx context.Context) {
	for _, key := range l.broker.Keys() {
		if err := l.refresh(ctx, key); err != nil {
			log.Error().Err(err).Str("session_code", key).Msg("failed to refresh after reconnect")
		}
	}
}
