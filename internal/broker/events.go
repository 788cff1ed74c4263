package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"mini-erp/internal/models"
	"mini-erp/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ErrMalformedMessage marks a message whose payload cannot be decoded.
// Redelivering it would fail the same way.
var ErrMalformedMessage = errors.New("malformed message")

// EventPublisher handles publishing order domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// OrderKey partitions events so each order's history stays in order.
func OrderKey(orderID int64) string {
	return fmt.Sprintf("order-%d", orderID)
}

// PublishOrderEvent publishes any order lifecycle event
func (ep *EventPublisher) PublishOrderEvent(ctx context.Context, event *models.OrderEvent) error {
	ctx, span := util.StartSpan(ctx, "EventPublisher.PublishOrderEvent")
	defer span.End()

	if err := ep.producer.PublishEvent(ctx, OrderKey(event.OrderID), event); err != nil {
		util.RecordError(span, err)
		return err
	}
	return nil
}

// EventHandler routes incoming messages by event type
type EventHandler struct {
	onOrderEvent func(context.Context, *models.OrderEvent) error
	logger       *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnOrderEvent registers a handler for every order lifecycle event
func (eh *EventHandler) OnOrderEvent(handler func(context.Context, *models.OrderEvent) error) {
	eh.onOrderEvent = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("%w: failed to unmarshal base event: %v", ErrMalformedMessage, err)
	}

	eh.logger.Debug("Handling event",
		zap.String("event_type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	if !models.IsOrderEvent(baseEvent.EventType) {
		eh.logger.Warn("Unhandled event type", zap.String("event_type", baseEvent.EventType))
		return nil
	}
	if eh.onOrderEvent == nil {
		return nil
	}

	var event models.OrderEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("%w: failed to unmarshal %s event: %v", ErrMalformedMessage, baseEvent.EventType, err)
	}
	return eh.onOrderEvent(ctx, &event)
}
