package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	AppointmentBooked    = "appointment.booked"
	AppointmentCanceled  = "appointment.canceled"
	AppointmentCompleted = "appointment.completed"
	AvailabilityUpdated  = "availability.updated"
)

// Event is a domain event with a JSON payload.
type Event struct {
	ID        string
	Type      string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// AvailabilityChange is the payload of AvailabilityUpdated.
// An empty Day means the whole week may have changed.
type AvailabilityChange struct {
	ProviderID int64  `json:"provider_id"`
	Day        string `json:"day,omitempty"`
}

// EventHandler reacts to an event.
type EventHandler func(ctx context.Context, event Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      zerolog.Logger
}

// NewEventBus constructs an empty bus.
func NewEventBus(logger *zerolog.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[string][]EventHandler),
		logger:      logger.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish runs the subscribers of the event type in registration order.
// Handler errors are logged and do not stop later handlers.
func (b *EventBus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			b.logger.Error().Err(err).
				Str("event_id", event.ID).
				Str("event_type", event.Type).
				Msg("event handler failed")
		}
	}
}

// PublishJSON marshals payload and publishes it under eventType.
func (b *EventBus) PublishJSON(ctx context.Context, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	b.Publish(ctx, Event{Type: eventType, Payload: data})
	return nil
}

// Detached wraps handler so it runs in its own goroutine, bounded by timeout,
// on a context that is not canceled with the publisher's.
func Detached(handler EventHandler, timeout time.Duration, logger *zerolog.Logger) EventHandler {
	return func(ctx context.Context, event Event) error {
		ctx = context.WithoutCancel(ctx)
		go func() {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			if err := handler(ctx, event); err != nil {
				logger.Error().Err(err).
					Str("event_id", event.ID).
					Str("event_type", event.Type).
					Msg("detached event handler failed")
			}
		}()
		return nil
	}
}
