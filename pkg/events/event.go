package events

import (
	"context"
	"time"
)

const (
	// TypeChangeSetIngested fires after a change set's corpora were (re)written.
	TypeChangeSetIngested = "CHANGESET_INGESTED"
	// TypeChangeSetReindexed fires when existing corpora were replaced; cached answers are stale.
	TypeChangeSetReindexed = "CHANGESET_REINDEXED"
	// TypeSessionTurn carries one audited chat turn.
	TypeSessionTurn = "SESSION_TURN"
)

const (
	KeyChangeSetID = "change_set_id"
	KeyOccurredAt  = "occurred_at"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "CHANGESET_REINDEXED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Publisher is implemented by the NATS publisher; NopPublisher is used when no bus is configured.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func NewChangeSetEvent(eventType, changeSetID string, data map[string]interface{}) BaseEvent {
	payload := map[string]interface{}{KeyChangeSetID: changeSetID}
	for k, v := range data {
		payload[k] = v
	}
	return BaseEvent{Type: eventType, Data: payload, OccurredAt: time.Now().UTC()}
}

// ChangeSetID returns the change set an event refers to, or "".
func ChangeSetID(e Event) string {
	id, _ := e.Payload()[KeyChangeSetID].(string)
	return id
}
