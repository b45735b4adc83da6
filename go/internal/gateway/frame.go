package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/ludotime/go/internal/events"
	"github.com/mcdev12/ludotime/go/internal/models"
	"github.com/mcdev12/ludotime/go/internal/session"
)

// FrameSessionState carries a full session document. It is the first frame on
// every socket.
const FrameSessionState = "SessionState"

// Frame is one message pushed to a websocket client.
type Frame struct {
	ID          string          `json:"id"`
	SessionCode string          `json:"session_code"`
	Type        string          `json:"type"`
	Timestamp   time.Time       `json:"timestamp"`
	Data        json.RawMessage `json:"data"`
}

// EventFrame wraps a published event envelope.
func EventFrame(env events.Envelope) Frame {
	return Frame{
		ID:          env.EventID,
		SessionCode: env.SessionCode,
		Type:        env.EventType,
		Timestamp:   env.Timestamp,
		Data:        env.Payload,
	}
}

// NewEventFrame wraps a locally derived event.
func NewEventFrame(ev session.Event, now time.Time) (Frame, error) {
	env, err := events.NewEnvelope(ev, now)
	if err != nil {
		return Frame{}, err
	}
	return EventFrame(env), nil
}

// StateFrame wraps a session snapshot.
func StateFrame(sess models.Session, now time.Time) (Frame, error) {
	data, err := json.Marshal(sess)
	if err != nil {
		return Frame{}, fmt.Errorf("marshal session %s: %w", sess.Code, err)
	}
	return Frame{
		ID:          uuid.New().String(),
		SessionCode: sess.Code,
		Type:        FrameSessionState,
		Timestamp:   now.UTC(),
		Data:        data,
	}, nil
}
