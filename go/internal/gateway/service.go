package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Config holds the gateway settings.
type Config struct {
	Path       string
	Connection ConnectionConfig
	Consumer   JetStreamConsumerConfig
}

func DefaultConfig() Config {
	return Config{
		Path:       "/ws",
		Connection: DefaultConnectionConfig(),
		Consumer:   DefaultJetStreamConsumerConfig(),
	}
}

// Service pushes session events to websocket clients. With a JetStream
// context it relays the event bus; without one every socket watches its
// session directly.
type Service struct {
	config   Config
	manager  *ConnectionManager
	handler  *WebSocketHandler
	consumer *EventConsumer
}

func NewService(ctx context.Context, config Config, sessions Sessions, js jetstream.JetStream) (*Service, error) {
	manager := NewConnectionManager(config.Connection)
	s := &Service{config: config, manager: manager}

	source := SourceWatch
	if js != nil {
		consumer, err := NewEventConsumer(ctx, js, manager, config.Consumer)
		if err != nil {
			return nil, fmt.Errorf("failed to create event consumer: %w", err)
		}
		s.consumer = consumer
		source = SourceBus
	}
	s.handler = NewWebSocketHandler(manager, sessions, source)

	log.Info().Str("source", string(source)).Str("path", config.Path).Msg("gateway configured")
	return s, nil
}

// Start runs the connection manager and, in bus mode, the consumer until ctx
// is done.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting session gateway")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.manager.Start(ctx) })
	if s.consumer != nil {
		g.Go(func() error { return s.consumer.Start(ctx) })
	}
	err := g.Wait()

	log.Info().Msg("session gateway stopped")
	return err
}

func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.handler.RegisterRoutes(mux, s.config.Path)
	log.Info().Msg("gateway routes registered")
}

func (s *Service) Stats() Stats {
	return s.manager.Stats()
}
