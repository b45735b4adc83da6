package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/ludotime/go/internal/session"
)

// eventNamespace seeds event IDs so every instance derives the same ID for the
// same transition and JetStream can drop the duplicates.
var eventNamespace = uuid.MustParse("6f1c2d3e-8a47-4b0e-9f55-2c6a1e0b7d41")

// Envelope is the wire form of a published session event.
type Envelope struct {
	EventID     string          `json:"eventId"`
	EventType   string          `json:"eventType"`
	SessionCode string          `json:"sessionCode"`
	Timestamp   time.Time       `json:"timestamp"`
	Payload     json.RawMessage `json:"payload"`
}

// EventID returns the stable ID of ev. Events replayed from the turn log are
// keyed by their record sequence, which does not depend on which document
// version the observer happened to see them in.
func EventID(ev session.Event) string {
	name := fmt.Sprintf("%s/%d/%s/%s/%d", ev.SessionCode, ev.Version, ev.Type, ev.PlayerID, ev.Player)
	if ev.Seq > 0 {
		name = fmt.Sprintf("%s/seq-%d/%s/%d", ev.SessionCode, ev.Seq, ev.Type, ev.Player)
	}
	return uuid.NewSHA1(eventNamespace, []byte(name)).String()
}

// Subject returns the subject ev is published on, <prefix>.<code>.<type>.
func Subject(prefix string, ev session.Event) string {
	return fmt.Sprintf("%s.%s.%s", prefix, ev.SessionCode, ev.Type)
}

// SubjectFilter matches every event of one session, or of all sessions when
// code is empty.
func SubjectFilter(prefix, code string) string {
	if code == "" {
		return prefix + ".>"
	}
	return fmt.Sprintf("%s.%s.>", prefix, strings.ToUpper(code))
}

// NewEnvelope wraps ev for publishing.
func NewEnvelope(ev session.Event, now time.Time) (Envelope, error) {
	if ev.Err != nil && ev.Message == "" {
		ev.Message = ev.Err.Error()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", ev.Type, err)
	}
	return Envelope{
		EventID:     EventID(ev),
		EventType:   string(ev.Type),
		SessionCode: ev.SessionCode,
		Timestamp:   now.UTC(),
		Payload:     payload,
	}, nil
}

// Decode parses a published message back into its envelope and event.
func Decode(data []byte) (Envelope, session.Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, session.Event{}, fmt.Errorf("unmarshal event envelope: %w", err)
	}
	var ev session.Event
	if err := json.Unmarshal(env.Payload, &ev); err != nil {
		return Envelope{}, session.Event{}, fmt.Errorf("unmarshal %s payload: %w", env.EventType, err)
	}
	if string(ev.Type) != env.EventType || ev.SessionCode != env.SessionCode {
		return Envelope{}, session.Event{}, fmt.Errorf("envelope %s does not match its payload", env.EventID)
	}
	return env, ev, nil
}
