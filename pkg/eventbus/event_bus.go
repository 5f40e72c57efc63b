// Package eventbus provides publish/subscribe messaging for delivery
// lifecycle events.
package eventbus

import (
	"context"

	"github.com/cadencehq/cadence/pkg/events"
)

// Event is anything publishable on the bus.
type Event interface {
	GetType() events.EventType
}

// EventHandler processes one received event.
type EventHandler func(ctx context.Context, event any) error

// EventBus publishes and subscribes to delivery lifecycle events.
type EventBus interface {
	GenerateID() string
	Publish(ctx context.Context, key string, event Event) error
	Handle(eventType events.EventType, handler EventHandler)
	Subscribe(ctx context.Context) error
	Close() error
}
