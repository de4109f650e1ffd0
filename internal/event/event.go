package event

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// EventSchemaVersion is the current version of the event payload schema
const EventSchemaVersion = "1.0"

// Type represents the type of an event
type Type string

// Common event types
const (
	WebhookReceived      Type = "webhook.received"
	WebhookIgnored       Type = "webhook.ignored"
	ProductionRunStarted Type = "production.run.started"
	ProductionCompleted  Type = "production.run.completed"
)

// Event represents a generic event in the system
type Event struct {
	Version string      `json:"version"` // Event schema version (e.g., "1.0")
	Type    Type        `json:"type"`
	Payload interface{} `json:"payload"`
}

// Typed event payloads for type safety

// WebhookPayloadV1 is the typed payload for webhook receiver events
type WebhookPayloadV1 struct {
	CRMEvent  string `json:"crm_event"`
	DealID    string `json:"deal_id,omitempty"`
	Outcome   string `json:"outcome"`
	Timestamp int64  `json:"timestamp"`
}

// ProductionRunPayloadV1 is the typed payload for production run events
type ProductionRunPayloadV1 struct {
	DealID       string `json:"deal_id"`
	RecipeID     string `json:"recipe_id"`
	ProductName  string `json:"product_name"`
	ReportStatus string `json:"report_status"`
	ActionErrors int    `json:"action_errors"`
	Timestamp    int64  `json:"timestamp"`
}

// Type-safe event constructors

// NewWebhookEvent creates a webhook receiver event
func NewWebhookEvent(eventType Type, crmEvent, dealID, outcome string) Event {
	return Event{
		Version: EventSchemaVersion,
		Type:    eventType,
		Payload: WebhookPayloadV1{
			CRMEvent:  crmEvent,
			DealID:    dealID,
			Outcome:   outcome,
			Timestamp: time.Now().Unix(),
		},
	}
}

// NewProductionCompletedEvent creates a production run completed event
func NewProductionCompletedEvent(dealID, recipeID, productName, reportStatus string, actionErrors int) Event {
	return Event{
		Version: EventSchemaVersion,
		Type:    ProductionCompleted,
		Payload: ProductionRunPayloadV1{
			DealID:       dealID,
			RecipeID:     recipeID,
			ProductName:  productName,
			ReportStatus: reportStatus,
			ActionErrors: actionErrors,
			Timestamp:    time.Now().Unix(),
		},
	}
}

// Handler is a function that handles an event
type Handler func(ctx context.Context, event Event) error

// Bus defines the interface for an event bus
type Bus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType Type, handler Handler)
}

// MemoryBus is an in-memory implementation of the Event Bus
type MemoryBus struct {
	handlers map[Type][]Handler
	mu       sync.RWMutex
}

// NewMemoryBus creates a new MemoryBus
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		handlers: make(map[Type][]Handler),
	}
}

// Publish publishes an event to all subscribers. Handlers run synchronously;
// a failing handler does not stop the remaining ones.
func (b *MemoryBus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers, ok := b.handlers[event.Type]
	b.mu.RUnlock()

	if !ok {
		return nil
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%d handler error(s) for event %s: %v", len(errs), event.Type, errs)
	}

	return nil
}

// Subscribe subscribes a handler to an event type
func (b *MemoryBus) Subscribe(eventType Type, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}
