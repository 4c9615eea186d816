package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/paneladmin/apiserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	channel string
	data    []byte
	attrs   map[string]string
}

// fakeBackend records publishes and replays them to subscribers.
type fakeBackend struct {
	published  []published
	publishErr error
	closed     bool
}

func (f *fakeBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if f.publishErr != nil {
		return "", f.publishErr
	}
	f.published = append(f.published, published{channel: channel, data: data, attrs: attrs})
	return "msg-1", nil
}

func (f *fakeBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	for _, p := range f.published {
		if p.channel != channel {
			continue
		}
		if err := handler(ctx, Message{Data: p.data, Attributes: p.attrs}); err != nil {
			return err
		}
	}
	return context.Canceled
}

func (f *fakeBackend) Close() error {
	f.closed = true
	return nil
}

func TestUserEvents_Publish(t *testing.T) {
	backend := &fakeBackend{}
	events := NewUserEvents(backend, "panel_users.events")
	events.now = func() time.Time { return time.Date(2024, 7, 1, 15, 0, 0, 0, time.UTC) }

	require.NoError(t, events.PublishUserEvent(context.Background(), UserCreated, 42))
	require.Len(t, backend.published, 1)

	msg := backend.published[0]
	assert.Equal(t, "panel_users.events", msg.channel)
	assert.Equal(t, UserCreated, msg.attrs["event_type"])
	assert.Equal(t, "application/json", msg.attrs["content_type"])
	assert.Equal(t, "42", msg.attrs["ordering_key"])

	var event UserEvent
	require.NoError(t, json.Unmarshal(msg.data, &event))
	assert.Equal(t, UserCreated, event.Type)
	assert.Equal(t, 42, event.UserID)
	assert.NotEmpty(t, event.ID)
	assert.True(t, event.OccurredAt.Equal(time.Date(2024, 7, 1, 15, 0, 0, 0, time.UTC)))
}

func TestUserEvents_PublishError(t *testing.T) {
	boom := errors.New("broker down")
	events := NewUserEvents(&fakeBackend{publishErr: boom}, "c")
	assert.ErrorIs(t, events.PublishUserEvent(context.Background(), UserDeleted, 1), boom)
}

func TestUserEvents_Tail(t *testing.T) {
	backend := &fakeBackend{}
	events := NewUserEvents(backend, "c")
	ctx := context.Background()

	require.NoError(t, events.PublishUserEvent(ctx, UserCreated, 1))
	backend.published = append(backend.published, published{channel: "c", data: []byte("not json")})
	require.NoError(t, events.PublishUserEvent(ctx, UserDeleted, 1))

	var seen []string
	require.NoError(t, events.Tail(ctx, func(e UserEvent) { seen = append(seen, e.Type) }))
	assert.Equal(t, []string{UserCreated, UserDeleted}, seen)

	require.NoError(t, events.Close())
	assert.True(t, backend.closed)
}

func TestNewBackend_Disabled(t *testing.T) {
	backend, err := NewBackend(context.Background(), config.Config{Events: config.EventsConfig{Backend: "none"}})
	require.NoError(t, err)
	assert.Nil(t, backend)

	_, err = NewBackend(context.Background(), config.Config{Events: config.EventsConfig{Backend: "kafka"}})
	assert.Error(t, err)
}

func TestNewRabbitMQClient_RequiresURL(t *testing.T) {
	_, err := NewRabbitMQClient(config.RabbitMQConfig{})
	assert.EqualError(t, err, "rabbitmq url is required")
}

func TestHeadersToAttributes(t *testing.T) {
	attrs := headersToAttributes(map[string]any{"a": "x", "b": []byte("y"), "c": 3})
	assert.Equal(t, map[string]string{"a": "x", "b": "y", "c": "3"}, attrs)
	assert.Nil(t, headersToAttributes(nil))
}

func TestCopyAttributes(t *testing.T) {
	attrs := map[string]string{"event_type": "user.created", "ordering_key": "7"}

	out := copyAttributes(attrs, orderingKeyAttribute)
	assert.Equal(t, map[string]string{"event_type": "user.created"}, out)

	out["event_type"] = "changed"
	assert.Equal(t, "user.created", attrs["event_type"])
	assert.Empty(t, copyAttributes(nil))
}

func TestSubscriptionSuffix(t *testing.T) {
	assert.Equal(t, "-sub", subscriptionSuffix(""))
	assert.Equal(t, ".tail", subscriptionSuffix(".tail"))
}

func TestNewPubSubClient_RequiresProject(t *testing.T) {
	_, err := NewPubSubClient(context.Background(), config.PubSubConfig{})
	assert.EqualError(t, err, "pubsub project id is required")
}
