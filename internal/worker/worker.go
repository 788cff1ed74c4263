package worker

import (
	"context"

	"mini-erp/internal/broker"
	"mini-erp/internal/models"
	"mini-erp/internal/util"

	"go.uber.org/zap"
)

type HistoryStore interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
	RecordOrderEvent(ctx context.Context, entry *models.OrderHistoryEntry) error
}

// OrderHistoryWorker consumes order events and appends them to the order history
type OrderHistoryWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        HistoryStore
	logger       *zap.Logger
}

// NewOrderHistoryWorker creates a new order history worker
func NewOrderHistoryWorker(consumer *broker.Consumer, store HistoryStore) *OrderHistoryWorker {
	w := &OrderHistoryWorker{
		consumer: consumer,
		store:    store,
		logger:   util.GetLogger(),
	}

	w.eventHandler = broker.NewEventHandler()
	w.eventHandler.OnOrderEvent(w.RecordEvent)
	return w
}

// Start starts the worker
func (w *OrderHistoryWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting order history worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *OrderHistoryWorker) Stop() error {
	w.logger.Info("Stopping order history worker")
	return w.consumer.Close()
}

// RecordEvent stores one event. Redelivered events are skipped.
func (w *OrderHistoryWorker) RecordEvent(ctx context.Context, event *models.OrderEvent) error {
	ctx, span := util.StartSpan(ctx, "OrderHistoryWorker.RecordEvent")
	defer span.End()

	err := w.store.RunInTx(ctx, func(ctx context.Context) error {
		processed, err := w.store.IsEventProcessed(ctx, event.EventID)
		if err != nil {
			return err
		}
		if processed {
			w.logger.Debug("Event already processed", zap.String("event_id", event.EventID))
			return nil
		}

		entry := &models.OrderHistoryEntry{
			OrderID:    event.OrderID,
			EventID:    event.EventID,
			EventType:  event.EventType,
			Status:     event.Status,
			OccurredAt: event.Timestamp,
		}
		if err := w.store.RecordOrderEvent(ctx, entry); err != nil {
			return err
		}
		return w.store.MarkEventProcessed(ctx, event.EventID, event.EventType)
	})
	if err != nil {
		util.RecordError(span, err)
		w.logger.Error("Failed to record order event",
			zap.String("event_id", event.EventID),
			zap.Int64("order_id", event.OrderID),
			zap.Error(err))
	}
	return err
}
