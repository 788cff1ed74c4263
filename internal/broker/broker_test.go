package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"mini-erp/internal/models"
	"mini-erp/internal/util"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *captureWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *captureWriter) Close() error { return nil }

func sampleEvent(eventType string) *models.OrderEvent {
	return &models.OrderEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-1",
			EventType: eventType,
			Timestamp: time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC),
		},
		OrderID:    42,
		CustomerID: 7,
		Status:     models.OrderStatusCreated,
		Total:      decimal.RequireFromString("233.30"),
	}
}

func TestPublishOrderEventKeysByOrder(t *testing.T) {
	w := &captureWriter{}
	publisher := NewEventPublisher(&Producer{writer: w, logger: util.GetLogger()})

	require.NoError(t, publisher.PublishOrderEvent(context.Background(), sampleEvent(models.EventTypeOrderCreated)))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "order-42", string(w.msgs[0].Key))

	var decoded models.OrderEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, models.EventTypeOrderCreated, decoded.EventType)
	assert.True(t, decoded.Total.Equal(decimal.RequireFromString("233.30")))
}

func TestPublishOrderEventWrapsWriteErrors(t *testing.T) {
	w := &captureWriter{err: errors.New("no brokers")}
	publisher := NewEventPublisher(&Producer{writer: w, logger: util.GetLogger()})

	err := publisher.PublishOrderEvent(context.Background(), sampleEvent(models.EventTypeOrderPaid))
	assert.ErrorContains(t, err, "no brokers")
}

func TestHandleMessageRoutesOrderEvents(t *testing.T) {
	var got []*models.OrderEvent
	handler := NewEventHandler()
	handler.OnOrderEvent(func(ctx context.Context, e *models.OrderEvent) error {
		got = append(got, e)
		return nil
	})

	for _, eventType := range []string{models.EventTypeOrderCreated, models.EventTypeOrderLate, "PAYMENT_SUCCESS"} {
		value, err := json.Marshal(sampleEvent(eventType))
		require.NoError(t, err)
		require.NoError(t, handler.HandleMessage(context.Background(), kafka.Message{Value: value}))
	}

	require.Len(t, got, 2)
	assert.Equal(t, models.EventTypeOrderLate, got[1].EventType)
	assert.Equal(t, int64(42), got[1].OrderID)
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	err := NewEventHandler().HandleMessage(context.Background(), kafka.Message{Value: []byte("{")})
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

// scriptedReader serves msgs in order and cancels the consumer once
// stopAfter messages are committed.
type scriptedReader struct {
	msgs      []kafka.Message
	next      int
	committed []int64
	stopAfter int
	cancel    context.CancelFunc
}

func (r *scriptedReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if r.next >= len(r.msgs) {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.msgs[r.next]
	r.next++
	return msg, nil
}

func (r *scriptedReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	for _, msg := range msgs {
		r.committed = append(r.committed, msg.Offset)
	}
	if len(r.committed) >= r.stopAfter {
		r.cancel()
	}
	return nil
}

func (r *scriptedReader) Close() error { return nil }

func newScriptedConsumer(reader *scriptedReader) *Consumer {
	return &Consumer{
		reader: reader,
		topic:  "orders",
		retry: util.RetryPolicy{
			MaxAttempts:     2,
			InitialInterval: time.Millisecond,
			MaxInterval:     2 * time.Millisecond,
			Multiplier:      2,
		},
		logger: util.GetLogger(),
	}
}

func TestConsumerRetriesFailedMessageBeforeCommitting(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reader := &scriptedReader{
		msgs:      []kafka.Message{{Offset: 1}, {Offset: 2}, {Offset: 3}},
		stopAfter: 3,
		cancel:    cancel,
	}
	failures := map[int64]int{2: 5}
	var handled []int64

	err := newScriptedConsumer(reader).StartConsuming(ctx, func(ctx context.Context, msg kafka.Message) error {
		handled = append(handled, msg.Offset)
		if failures[msg.Offset] > 0 {
			failures[msg.Offset]--
			return errors.New("history store unavailable")
		}
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int64{1, 2, 3}, reader.committed)
	assert.Equal(t, []int64{1, 2, 2, 2, 2, 2, 2, 3}, handled)
}

func TestConsumerSkipsMalformedMessages(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reader := &scriptedReader{
		msgs:      []kafka.Message{{Offset: 1, Value: []byte("{")}, {Offset: 2}},
		stopAfter: 2,
		cancel:    cancel,
	}
	calls := 0

	err := newScriptedConsumer(reader).StartConsuming(ctx, func(ctx context.Context, msg kafka.Message) error {
		calls++
		if msg.Offset == 1 {
			return NewEventHandler().HandleMessage(ctx, msg)
		}
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int64{1, 2}, reader.committed)
	assert.Equal(t, 2, calls)
}

func TestConsumerDoesNotCommitWhenStoppedMidRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &scriptedReader{
		msgs:      []kafka.Message{{Offset: 1}, {Offset: 2}},
		stopAfter: 10,
		cancel:    cancel,
	}
	calls := 0

	err := newScriptedConsumer(reader).StartConsuming(ctx, func(ctx context.Context, msg kafka.Message) error {
		if msg.Offset == 2 {
			calls++
			if calls == 3 {
				cancel()
			}
			return errors.New("history store unavailable")
		}
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int64{1}, reader.committed)
	assert.Equal(t, 2, reader.next)
}
