package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/ludotime/go/internal/session"
)

// Publisher sends derived session events to the event bus.
type Publisher interface {
	Publish(ctx context.Context, ev session.Event) error
}

// Config holds the JetStream connection and stream settings.
type Config struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxAge          time.Duration
	DuplicateWindow time.Duration
	MaxReconnects   int
	ReconnectWait   time.Duration
	PublishTimeout  time.Duration
}

// DefaultConfig returns the settings used when only the URL is configured.
func DefaultConfig() Config {
	return Config{
		URL:             nats.DefaultURL,
		StreamName:      "LUDO_EVENTS",
		SubjectPrefix:   "ludo.events",
		MaxAge:          24 * time.Hour,
		DuplicateWindow: 2 * time.Minute,
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
		PublishTimeout:  5 * time.Second,
	}
}

// Dial connects to NATS with reconnect logging.
func Dial(cfg Config) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("ludotime"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// EnsureStream creates the event stream or updates it to cfg.
func EnsureStream(ctx context.Context, js jetstream.JetStream, cfg Config) (jetstream.Stream, error) {
	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        cfg.StreamName,
		Description: "Derived Ludo session events",
		Subjects:    []string{SubjectFilter(cfg.SubjectPrefix, "")},
		Storage:     jetstream.FileStorage,
		MaxAge:      cfg.MaxAge,
		Duplicates:  cfg.DuplicateWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure stream %s: %w", cfg.StreamName, err)
	}
	return stream, nil
}

// JetStreamPublisher publishes envelopes to the session event stream. Each
// message carries its event ID as Nats-Msg-Id, so instances that derive the
// same transition publish it once.
type JetStreamPublisher struct {
	nc  *nats.Conn
	js  jetstream.JetStream
	cfg Config
}

// Connect dials NATS and makes sure the stream exists.
func Connect(ctx context.Context, cfg Config) (*JetStreamPublisher, error) {
	nc, err := Dial(cfg)
	if err != nil {
		return nil, err
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	if _, err := EnsureStream(ctx, js, cfg); err != nil {
		nc.Close()
		return nil, err
	}

	log.Info().
		Str("url", nc.ConnectedUrl()).
		Str("stream", cfg.StreamName).
		Msg("event publisher connected")
	return &JetStreamPublisher{nc: nc, js: js, cfg: cfg}, nil
}

func (p *JetStreamPublisher) Publish(ctx context.Context, ev session.Event) error {
	env, err := NewEnvelope(ev, time.Now())
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	if p.cfg.PublishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.PublishTimeout)
		defer cancel()
	}
	subject := Subject(p.cfg.SubjectPrefix, ev)
	ack, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID(env.EventID))
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	log.Debug().
		Str("event_id", env.EventID).
		Str("subject", subject).
		Uint64("seq", ack.Sequence).
		Bool("duplicate", ack.Duplicate).
		Msg("event published")
	return nil
}

// Conn exposes the underlying connection so consumers can share it.
func (p *JetStreamPublisher) Conn() *nats.Conn {
	return p.nc
}

// JetStream exposes the JetStream context for consumers in this process.
func (p *JetStreamPublisher) JetStream() jetstream.JetStream {
	return p.js
}

func (p *JetStreamPublisher) Close() error {
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}

// LogPublisher logs events instead of publishing them. It stands in for the
// bus when NATS is disabled.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, ev session.Event) error {
	log.Debug().
		Str("event_id", EventID(ev)).
		Str("event_type", string(ev.Type)).
		Str("session_code", ev.SessionCode).
		Int64("version", ev.Version).
		Msg("event")
	return nil
}
