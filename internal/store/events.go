package store

import (
	"context"
	"fmt"

	"mini-erp/internal/models"
)

// IsEventProcessed checks if an event was already consumed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.conn(ctx).GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed records a consumed event. Redeliveries are ignored.
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.conn(ctx).ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}

// RecordOrderEvent appends an entry to the order history
func (s *Store) RecordOrderEvent(ctx context.Context, entry *models.OrderHistoryEntry) error {
	query := `
		INSERT INTO order_history (order_id, event_id, event_type, status, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO NOTHING`

	_, err := s.conn(ctx).ExecContext(ctx, query,
		entry.OrderID, entry.EventID, entry.EventType, string(entry.Status), entry.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to record order event: %w", err)
	}
	return nil
}

// GetOrderHistory returns the recorded events of an order, oldest first
func (s *Store) GetOrderHistory(ctx context.Context, orderID int64) ([]models.OrderHistoryEntry, error) {
	entries := []models.OrderHistoryEntry{}
	err := s.conn(ctx).SelectContext(ctx, &entries, `
		SELECT id, order_id, event_id, event_type, status, occurred_at, recorded_at
		FROM order_history
		WHERE order_id = $1
		ORDER BY occurred_at, id`, orderID)
	return entries, err
}
