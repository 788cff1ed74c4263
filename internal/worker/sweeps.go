package worker

import (
	"context"
	"fmt"
	"time"

	"mini-erp/internal/models"
	"mini-erp/internal/service"
	"mini-erp/internal/util"

	"go.uber.org/zap"
)

// LateAfter is how long a CREATED order may wait before it becomes LATE.
const LateAfter = 48 * time.Hour

type AgingStore interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	FindStaleOrderIDs(ctx context.Context, cutoff time.Time) ([]int64, error)
	MarkOrderLate(ctx context.Context, orderID int64) (bool, error)
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
}

type StockStore interface {
	FindLowStock(ctx context.Context) ([]models.Product, error)
}

// AgingSweep promotes CREATED orders older than LateAfter to LATE
type AgingSweep struct {
	store  AgingStore
	events service.EventPublisher
	now    func() time.Time
	logger *zap.Logger
}

// NewAgingSweep creates the sweep; events may be nil
func NewAgingSweep(store AgingStore, events service.EventPublisher, logger *zap.Logger) *AgingSweep {
	if logger == nil {
		logger = util.GetLogger()
	}
	return &AgingSweep{store: store, events: events, now: time.Now, logger: logger}
}

// Run performs one pass and returns how many orders were marked late. It
// never fails: scan errors, per-order errors and panics are logged.
func (a *AgingSweep) Run(ctx context.Context) (marked int) {
	ctx, span := util.StartSpan(ctx, "AgingSweep.Run")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			util.SweepRunsTotal.WithLabelValues("aging", "panic").Inc()
			a.logger.Error("Aging sweep panicked", zap.Any("panic", r), zap.Int("marked", marked))
		}
	}()

	cutoff := a.now().Add(-LateAfter)
	ids, err := a.store.FindStaleOrderIDs(ctx, cutoff)
	if err != nil {
		util.SweepRunsTotal.WithLabelValues("aging", "error").Inc()
		a.logger.Error("Aging sweep failed to list stale orders", zap.Error(err))
		return 0
	}

	for _, id := range ids {
		ok, err := a.markLate(ctx, id)
		if err != nil {
			a.logger.Error("Failed to mark order late", zap.Int64("order_id", id), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		marked++
		util.OrdersMarkedLateTotal.Inc()
		a.publish(ctx, id)
	}

	util.SweepRunsTotal.WithLabelValues("aging", "success").Inc()
	a.logger.Info("Aging sweep finished",
		zap.Time("cutoff", cutoff),
		zap.Int("candidates", len(ids)),
		zap.Int("marked", marked))
	return marked
}

// markLate updates a single order in its own transaction, turning a panic
// into an error so one bad row cannot stop the sweep.
func (a *AgingSweep) markLate(ctx context.Context, id int64) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic marking order %d late: %v", id, r)
		}
	}()

	err = a.store.RunInTx(ctx, func(ctx context.Context) error {
		var txErr error
		ok, txErr = a.store.MarkOrderLate(ctx, id)
		return txErr
	})
	return ok, err
}

func (a *AgingSweep) publish(ctx context.Context, id int64) {
	if a.events == nil {
		return
	}
	order, err := a.store.GetOrderByID(ctx, id)
	if err != nil {
		a.logger.Warn("Failed to load late order for event", zap.Int64("order_id", id), zap.Error(err))
		return
	}
	if err := a.events.PublishOrderEvent(ctx, service.NewOrderEvent(models.EventTypeOrderLate, order, a.now())); err != nil {
		a.logger.Warn("Failed to publish order event",
			zap.String("event_type", models.EventTypeOrderLate),
			zap.Int64("order_id", id),
			zap.Error(err))
	}
}

// StockSweep reports active products whose stock fell below the minimum
type StockSweep struct {
	store  StockStore
	logger *zap.Logger
}

func NewStockSweep(store StockStore, logger *zap.Logger) *StockSweep {
	if logger == nil {
		logger = util.GetLogger()
	}
	return &StockSweep{store: store, logger: logger}
}

// Run logs one warning per low-stock product and returns how many there were
func (s *StockSweep) Run(ctx context.Context) (count int) {
	ctx, span := util.StartSpan(ctx, "StockSweep.Run")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			util.SweepRunsTotal.WithLabelValues("stock", "panic").Inc()
			s.logger.Error("Stock sweep panicked", zap.Any("panic", r))
		}
	}()

	products, err := s.store.FindLowStock(ctx)
	if err != nil {
		util.SweepRunsTotal.WithLabelValues("stock", "error").Inc()
		s.logger.Error("Stock sweep failed to list products", zap.Error(err))
		return 0
	}

	for _, p := range products {
		s.logger.Warn("Product needs replenishment",
			zap.Int64("product_id", p.ID),
			zap.String("sku", p.SKU),
			zap.String("name", p.Name),
			zap.Int("quantity", p.Quantity),
			zap.Int("min_quantity", p.MinQuantity))
	}

	util.ProductsBelowMinimum.Set(float64(len(products)))
	util.SweepRunsTotal.WithLabelValues("stock", "success").Inc()
	return len(products)
}
