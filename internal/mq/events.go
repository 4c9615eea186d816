package mq

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// User lifecycle event types.
const (
	UserCreated = "user.created"
	UserEdited  = "user.edited"
	UserDeleted = "user.deleted"
)

const eventTypeAttribute = "event_type"

// UserEvent is the payload published for every user lifecycle change.
type UserEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	UserID     int       `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// UserEvents publishes user lifecycle events to a single channel.
type UserEvents struct {
	backend Backend
	channel string
	now     func() time.Time
}

// NewUserEvents constructs a publisher on top of backend.
func NewUserEvents(backend Backend, channel string) *UserEvents {
	return &UserEvents{
		backend: backend,
		channel: channel,
		now:     time.Now,
	}
}

// PublishUserEvent encodes and publishes one event.
func (e *UserEvents) PublishUserEvent(ctx context.Context, eventType string, userID int) error {
	event := UserEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		UserID:     userID,
		OccurredAt: e.now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = e.backend.Publish(ctx, e.channel, data, map[string]string{
		eventTypeAttribute:   eventType,
		contentTypeAttribute: "application/json",
		orderingKeyAttribute: strconv.Itoa(userID),
	})
	return err
}

// Tail subscribes to the channel and passes each decoded event to fn until
// ctx is cancelled. Undecodable payloads are acknowledged and skipped.
func (e *UserEvents) Tail(ctx context.Context, fn func(UserEvent)) error {
	err := e.backend.Subscribe(ctx, e.channel, func(ctx context.Context, msg Message) error {
		var event UserEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return nil
		}
		fn(event)
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close closes the underlying backend.
func (e *UserEvents) Close() error {
	return e.backend.Close()
}
