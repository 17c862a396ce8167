// Package protocol defines the message envelope exchanged over the realtime
// socket and the closed event vocabulary carried inside it.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind classifies an envelope.
type Kind string

const (
	KindEvent     Kind = "event"
	KindResponse  Kind = "response"
	KindHeartbeat Kind = "heartbeat"
	KindError     Kind = "error"
)

// Valid reports whether k is one of the four envelope kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindEvent, KindResponse, KindHeartbeat, KindError:
		return true
	}
	return false
}

// EventType names an event carried by a KindEvent or KindResponse envelope.
type EventType string

// Domain events broadcast to every interested connection.
const (
	EventScoreUpdated         EventType = "score_updated"
	EventCandidateChanged     EventType = "candidate_changed"
	EventStageChanged         EventType = "stage_changed"
	EventQuestionChanged      EventType = "question_changed"
	EventInterviewItemChanged EventType = "interview_item_changed"
	EventJudgeChanged         EventType = "judge_changed"
	EventDimensionChanged     EventType = "dimension_changed"
	EventScoreItemChanged     EventType = "score_item_changed"
	EventBatchChanged         EventType = "batch_changed"
	EventTimerChanged         EventType = "timer_changed"
	EventConnectionStatus     EventType = "connection_status_update"
)

// Lifecycle events sent by the server to a single connection.
const (
	EventConnectionEstablished EventType = "connection_established"
	EventAuthSuccess           EventType = "auth_success"
	EventScoreAccepted         EventType = "score_accepted"
)

// Client-originated events.
const (
	EventClientAuth  EventType = "client_auth"
	EventSubmitScore EventType = "submit_score"
)

var vocabulary = map[EventType]struct{}{
	EventScoreUpdated:          {},
	EventCandidateChanged:      {},
	EventStageChanged:          {},
	EventQuestionChanged:       {},
	EventInterviewItemChanged:  {},
	EventJudgeChanged:          {},
	EventDimensionChanged:      {},
	EventScoreItemChanged:      {},
	EventBatchChanged:          {},
	EventTimerChanged:          {},
	EventConnectionStatus:      {},
	EventConnectionEstablished: {},
	EventAuthSuccess:           {},
	EventScoreAccepted:         {},
	EventClientAuth:            {},
	EventSubmitScore:           {},
}

// Known reports whether t belongs to the closed vocabulary.
func (t EventType) Known() bool {
	_, ok := vocabulary[t]
	return ok
}

// Envelope is the single message shape on the wire. Timestamp is
// milliseconds since the Unix epoch.
type Envelope struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	EventType EventType       `json:"eventType,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
	ClientID  string          `json:"clientId,omitempty"`
}

// DecodeData unmarshals the payload into v.
func (e Envelope) DecodeData(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%w: %s has no data", ErrMalformed, e.EventType)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%w: %s data: %w", ErrMalformed, e.EventType, err)
	}
	return nil
}

// Time returns the envelope timestamp.
func (e Envelope) Time() time.Time { return time.UnixMilli(e.Timestamp) }

func newEnvelope(kind Kind, t EventType, data any) (Envelope, error) {
	env := Envelope{
		ID:        uuid.NewString(),
		Kind:      kind,
		EventType: t,
		Timestamp: time.Now().UnixMilli(),
	}
	if data == nil {
		return env, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s data: %w", t, err)
	}
	env.Data = raw
	return env, nil
}

// NewEvent builds an event envelope. The event type must be known.
func NewEvent(t EventType, data any) (Envelope, error) {
	if !t.Known() {
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownEvent, t)
	}
	return newEnvelope(KindEvent, t, data)
}

// NewResponse builds a reply to a client request.
func NewResponse(t EventType, data any) (Envelope, error) {
	return newEnvelope(KindResponse, t, data)
}

// NewHeartbeat builds a heartbeat envelope.
func NewHeartbeat() Envelope {
	env, _ := newEnvelope(KindHeartbeat, "", nil)
	return env
}

// NewError builds an error envelope. replyTo is the id of the offending
// envelope when known.
func NewError(code, message, replyTo string) Envelope {
	env, _ := newEnvelope(KindError, "", ErrorPayload{Code: code, Message: message, ReplyTo: replyTo})
	return env
}

// Decode parses and validates one inbound frame.
func Decode(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if env.Kind == "" {
		return Envelope{}, fmt.Errorf("%w: missing kind", ErrMalformed)
	}
	if !env.Kind.Valid() {
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}
	if env.Kind == KindEvent {
		if env.EventType == "" {
			return Envelope{}, fmt.Errorf("%w: event without eventType", ErrMalformed)
		}
		if !env.EventType.Known() {
			return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownEvent, env.EventType)
		}
	}
	return env, nil
}

// Encode serializes an envelope for a text frame.
func Encode(env Envelope) ([]byte, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return b, nil
}
