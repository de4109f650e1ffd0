package metrics

import (
	"context"

	"github.com/avdeyev/techcard-service/internal/event"
	"github.com/avdeyev/techcard-service/internal/logger"
)

// EventMetricsCollector subscribes to events and records metrics
type EventMetricsCollector struct{}

// NewEventMetricsCollector creates a new event metrics collector
func NewEventMetricsCollector() *EventMetricsCollector {
	return &EventMetricsCollector{}
}

// Register subscribes to all events
func (e *EventMetricsCollector) Register(bus event.Bus) error {
	bus.Subscribe(event.ProductionCompleted, e.HandleProductionCompleted)
	return nil
}

// HandleProductionCompleted records the per-run outcome
func (e *EventMetricsCollector) HandleProductionCompleted(ctx context.Context, evt event.Event) error {
	log := logger.FromContext(ctx)

	payload, ok := evt.Payload.(event.ProductionRunPayloadV1)
	if !ok {
		log.Debug("Unexpected production event payload", "type", evt.Type)
		return nil
	}

	ProductionRuns.WithLabelValues(payload.ReportStatus).Inc()

	log.Info("Production run completed",
		"dealId", payload.DealID,
		"recipeId", payload.RecipeID,
		"product", payload.ProductName,
		"status", payload.ReportStatus,
		"actionErrors", payload.ActionErrors)
	return nil
}
