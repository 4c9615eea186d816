package mq

import (
	"context"
	"fmt"

	"github.com/paneladmin/apiserver/config"
)

// Attributes with transport-level meaning. Backends map them onto native
// message fields where the broker has one and restore them on delivery.
const (
	contentTypeAttribute = "content_type"
	orderingKeyAttribute = "ordering_key"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend fans published messages out to every subscriber of a channel.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// NewBackend connects the broker selected by cfg.Events.Backend.
// It returns a nil Backend when events are disabled.
func NewBackend(ctx context.Context, cfg config.Config) (Backend, error) {
	switch cfg.Events.Backend {
	case "", "none":
		return nil, nil
	case "rabbitmq":
		return NewRabbitMQClient(cfg.RabbitMQ)
	case "pubsub":
		return NewPubSubClient(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unsupported events backend %q", cfg.Events.Backend)
	}
}

func copyAttributes(attrs map[string]string, skip ...string) map[string]string {
	out := make(map[string]string, len(attrs))
	for key, value := range attrs {
		out[key] = value
	}
	for _, key := range skip {
		delete(out, key)
	}
	return out
}
