package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/ludotime/go/internal/events"
	"github.com/mcdev12/ludotime/go/internal/session"
)

// JetStreamConsumerConfig configures the gateway's consumer on the session
// event stream.
type JetStreamConsumerConfig struct {
	StreamName        string
	ConsumerName      string
	SubjectFilter     string
	MaxDeliver        int
	AckWait           time.Duration
	MaxAckPending     int
	InactiveThreshold time.Duration
}

// DefaultJetStreamConsumerConfig returns a per-instance consumer so that every
// gateway sees every event.
func DefaultJetStreamConsumerConfig() JetStreamConsumerConfig {
	return JetStreamConsumerConfig{
		StreamName:        "LUDO_EVENTS",
		ConsumerName:      "ludo-gateway-" + uuid.NewString()[:8],
		SubjectFilter:     "ludo.events.>",
		MaxDeliver:        5,
		AckWait:           30 * time.Second,
		MaxAckPending:     100,
		InactiveThreshold: 5 * time.Minute,
	}
}

// EventConsumer relays events from JetStream to the sockets of each session.
type EventConsumer struct {
	manager  *ConnectionManager
	consumer jetstream.Consumer
	config   JetStreamConsumerConfig
}

// NewEventConsumer creates or updates the consumer on js.
func NewEventConsumer(ctx context.Context, js jetstream.JetStream, cm *ConnectionManager, config JetStreamConsumerConfig) (*EventConsumer, error) {
	stream, err := js.Stream(ctx, config.StreamName)
	if err != nil {
		return nil, fmt.Errorf("get stream: %w", err)
	}
	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:              config.ConsumerName,
		Description:       "Ludo gateway websocket consumer",
		FilterSubject:     config.SubjectFilter,
		DeliverPolicy:     jetstream.DeliverNewPolicy,
		AckPolicy:         jetstream.AckExplicitPolicy,
		MaxDeliver:        config.MaxDeliver,
		AckWait:           config.AckWait,
		MaxAckPending:     config.MaxAckPending,
		ReplayPolicy:      jetstream.ReplayInstantPolicy,
		InactiveThreshold: config.InactiveThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("create consumer: %w", err)
	}

	log.Info().
		Str("consumer", config.ConsumerName).
		Str("stream", config.StreamName).
		Msg("JetStream consumer ready")
	return &EventConsumer{manager: cm, consumer: consumer, config: config}, nil
}

// Start consumes until ctx is done.
func (ec *EventConsumer) Start(ctx context.Context) error {
	log.Info().
		Str("consumer", ec.config.ConsumerName).
		Str("stream", ec.config.StreamName).
		Msg("starting JetStream event consumer")

	messageCh := make(chan jetstream.Msg, 100)
	consumeCtx, err := ec.consumer.Consume(func(msg jetstream.Msg) {
		select {
		case messageCh <- msg:
		case <-ctx.Done():
			_ = msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("event consumer shutting down")
			return nil
		case msg := <-messageCh:
			if err := ec.handle(msg.Data()); err != nil {
				log.Error().
					Err(err).
					Str("subject", msg.Subject()).
					Msg("failed to process message")
				// A malformed envelope will never decode; drop it.
				if termErr := msg.Term(); termErr != nil {
					log.Error().Err(termErr).Msg("failed to terminate message")
				}
				continue
			}
			if ackErr := msg.Ack(); ackErr != nil {
				log.Error().Err(ackErr).Msg("failed to ACK message")
			}
		}
	}
}

// handle broadcasts one envelope. A SessionError is the last event of a
// deleted session, so its sockets are closed after it.
func (ec *EventConsumer) handle(data []byte) error {
	env, ev, err := events.Decode(data)
	if err != nil {
		return err
	}

	log.Debug().
		Str("event_id", env.EventID).
		Str("session_code", env.SessionCode).
		Str("event_type", env.EventType).
		Msg("processing JetStream event")

	ec.manager.Broadcast(env.SessionCode, EventFrame(env))
	if ev.Type == session.EventSessionError {
		ec.manager.CloseSession(env.SessionCode)
	}
	return nil
}
