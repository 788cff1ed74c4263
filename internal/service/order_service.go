package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mini-erp/internal/apperr"
	"mini-erp/internal/models"
	"mini-erp/internal/money"
	"mini-erp/internal/store"
	"mini-erp/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// OrderServiceDeps bundles the collaborators of OrderService. Events and
// Rates are optional.
type OrderServiceDeps struct {
	Tx           TxRunner
	Customers    CustomerRepository
	Products     ProductRepository
	Orders       OrderRepository
	Events       EventPublisher
	Rates        RateProvider
	BaseCurrency string
	Logger       *zap.Logger
	Now          Clock
}

// OrderService handles order business logic
type OrderService struct {
	tx           TxRunner
	customers    CustomerRepository
	products     ProductRepository
	orders       OrderRepository
	events       EventPublisher
	rates        RateProvider
	baseCurrency string
	logger       *zap.Logger
	now          Clock
}

// NewOrderService creates a new order service
func NewOrderService(deps OrderServiceDeps) *OrderService {
	s := &OrderService{
		tx:           deps.Tx,
		customers:    deps.Customers,
		products:     deps.Products,
		orders:       deps.Orders,
		events:       deps.Events,
		rates:        deps.Rates,
		baseCurrency: strings.ToUpper(deps.BaseCurrency),
		logger:       deps.Logger,
		now:          deps.Now,
	}
	if s.logger == nil {
		s.logger = util.GetLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.baseCurrency == "" {
		s.baseCurrency = "BRL"
	}
	return s
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	CustomerID int64              `json:"customer_id" binding:"required,gt=0"`
	Items      []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

// OrderItemRequest represents an item in an order. The discount is an
// absolute amount taken off the line.
type OrderItemRequest struct {
	ProductID int64            `json:"product_id" binding:"required,gt=0"`
	Quantity  int              `json:"quantity" binding:"required,min=1,max=2147483647"`
	Discount  *decimal.Decimal `json:"discount,omitempty" binding:"omitempty,nonnegative,money"`
}

// ConvertedTotal is an order total expressed in another currency
type ConvertedTotal struct {
	OrderID        int64
	Total          decimal.Decimal
	ConvertedTotal decimal.Decimal
	Rate           decimal.Decimal
	BaseCurrency   string
	Currency       string
}

func validateCreateOrder(req *CreateOrderRequest) error {
	if req == nil {
		return apperr.Validation("order request is required")
	}
	return validateRequest("invalid order request", req)
}

// groupOrderQuantities sums the requested quantity per product. A sum beyond
// what a stock column can hold is rejected.
func groupOrderQuantities(items []OrderItemRequest) ([]models.ProductQuantity, error) {
	quantities := models.GroupQuantities(items, func(item OrderItemRequest) (int64, int) {
		return item.ProductID, item.Quantity
	})

	var problems []string
	for _, q := range quantities {
		if q.Quantity > models.MaxQuantity {
			problems = append(problems, fmt.Sprintf("product %d (requested: %d, maximum: %d)", q.ProductID, q.Quantity, models.MaxQuantity))
		}
	}
	if len(problems) > 0 {
		return nil, apperr.Validation("requested quantity too large", problems...)
	}
	return quantities, nil
}

// CreateOrder validates stock for every item, debits it and persists the
// order, all inside one transaction. Nothing is debited or stored on failure.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if err := validateCreateOrder(req); err != nil {
		util.OrdersFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}
	quantities, err := groupOrderQuantities(req.Items)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	var order *models.Order
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.customers.GetCustomerByID(ctx, req.CustomerID); err != nil {
			return translate(err, "customer", req.CustomerID)
		}

		products, err := s.loadOrderProducts(ctx, quantities)
		if err != nil {
			return err
		}

		order = models.NewOrder(req.CustomerID)
		for _, item := range req.Items {
			order.AddItem(models.NewLineItem(products[item.ProductID], item.Quantity, item.Discount))
		}

		start := time.Now()
		for _, q := range quantities {
			if err := s.products.DebitStock(ctx, q.ProductID, q.Quantity); err != nil {
				if errors.Is(err, store.ErrInsufficientStock) {
					return apperr.InsufficientStock("insufficient stock",
						fmt.Sprintf("%s (stock changed while ordering, requested: %d)", products[q.ProductID].Name, q.Quantity))
				}
				return translate(err, "product", q.ProductID)
			}
		}
		util.StockDebitLatency.Observe(time.Since(start).Seconds())

		if err := s.orders.CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		return nil
	})
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues(failureReason(err)).Inc()
		util.RecordError(span, err)
		s.logger.Info("Order rejected",
			zap.Int64("customer_id", req.CustomerID),
			zap.Error(err))
		return nil, err
	}

	util.OrdersCreatedTotal.Inc()
	util.OrdersCreatedByHour.WithLabelValues(strconv.Itoa(s.now().Hour())).Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("customer_id", order.CustomerID),
		zap.String("total", money.Format(order.Total)))

	s.publish(ctx, models.EventTypeOrderCreated, order)
	return order, nil
}

// loadOrderProducts fetches every requested product and reports, in one
// error each, all missing ids, all inactive products and all shortfalls.
func (s *OrderService) loadOrderProducts(ctx context.Context, quantities []models.ProductQuantity) (map[int64]*models.Product, error) {
	ids := make([]int64, len(quantities))
	for i, q := range quantities {
		ids[i] = q.ProductID
	}

	found, err := s.products.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	products := make(map[int64]*models.Product, len(found))
	for i := range found {
		products[found[i].ID] = &found[i]
	}

	var missing []string
	for _, id := range ids {
		if _, ok := products[id]; !ok {
			missing = append(missing, strconv.FormatInt(id, 10))
		}
	}
	if len(missing) > 0 {
		return nil, apperr.NotFound("products not found", missing...)
	}

	var inactive []string
	for _, id := range ids {
		if !products[id].Active {
			inactive = append(inactive, products[id].Name)
		}
	}
	if len(inactive) > 0 {
		return nil, apperr.Validation("inactive products cannot be ordered", inactive...)
	}

	var shortfalls []string
	for _, q := range quantities {
		p := products[q.ProductID]
		if p.Quantity < q.Quantity {
			shortfalls = append(shortfalls,
				fmt.Sprintf("%s (available: %d, requested: %d)", p.Name, p.Quantity, q.Quantity))
		}
	}
	if len(shortfalls) > 0 {
		return nil, apperr.InsufficientStock("insufficient stock", shortfalls...)
	}

	return products, nil
}

// GetOrder retrieves an order with its items
func (s *OrderService) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	order, err := s.orders.GetOrderByID(ctx, id)
	if err != nil {
		return nil, translate(err, "order", id)
	}
	return order, nil
}

// ListOrders returns a page of orders, newest first
func (s *OrderService) ListOrders(ctx context.Context, filter models.OrderFilter, page models.Page) (*models.PageResult[models.Order], error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	if filter.Status != nil && !filter.Status.Valid() {
		return nil, apperr.Validation("unknown order status", string(*filter.Status))
	}

	result, err := s.orders.ListOrders(ctx, filter, NormalizePage(page))
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return result, nil
}

// PayOrder marks a CREATED order as paid
func (s *OrderService) PayOrder(ctx context.Context, id int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PayOrder")
	defer span.End()

	var order *models.Order
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		if order, err = s.GetOrder(ctx, id); err != nil {
			return err
		}
		if err := order.Pay(); err != nil {
			return err
		}
		return translate(s.orders.UpdateOrderStatus(ctx, id, order.Status), "order", id)
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	util.OrdersPaidTotal.Inc()
	s.logger.Info("Order paid", zap.Int64("order_id", id))
	s.publish(ctx, models.EventTypeOrderPaid, order)
	return order, nil
}

// CancelOrder returns the reserved stock and marks the order as cancelled.
// An order that is already cancelled is returned unchanged.
func (s *OrderService) CancelOrder(ctx context.Context, id int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CancelOrder")
	defer span.End()

	var order *models.Order
	alreadyCancelled := false
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		if order, err = s.GetOrder(ctx, id); err != nil {
			return err
		}
		if order.Status == models.OrderStatusCancelled {
			alreadyCancelled = true
			return nil
		}
		holdsStock := order.HoldsStock()
		if err := order.Cancel(); err != nil {
			return err
		}
		if holdsStock {
			if err := s.restoreStock(ctx, order); err != nil {
				return err
			}
		}
		return translate(s.orders.UpdateOrderStatus(ctx, id, order.Status), "order", id)
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	if alreadyCancelled {
		return order, nil
	}

	util.OrdersCancelledTotal.Inc()
	s.logger.Info("Order cancelled", zap.Int64("order_id", id))
	s.publish(ctx, models.EventTypeOrderCancelled, order)
	return order, nil
}

// DeleteOrder soft-deletes an order, first returning stock it still holds
func (s *OrderService) DeleteOrder(ctx context.Context, id int64) error {
	ctx, span := util.StartSpan(ctx, "OrderService.DeleteOrder")
	defer span.End()

	var order *models.Order
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		if order, err = s.GetOrder(ctx, id); err != nil {
			return err
		}
		if order.HoldsStock() {
			if err := s.restoreStock(ctx, order); err != nil {
				return err
			}
		}
		return translate(s.orders.SoftDeleteOrder(ctx, id), "order", id)
	})
	if err != nil {
		util.RecordError(span, err)
		return err
	}

	util.OrdersDeletedTotal.Inc()
	s.logger.Info("Order deleted",
		zap.Int64("order_id", id),
		zap.String("status", string(order.Status)))
	s.publish(ctx, models.EventTypeOrderDeleted, order)
	return nil
}

func (s *OrderService) restoreStock(ctx context.Context, order *models.Order) error {
	for _, q := range order.QuantitiesByProduct() {
		if err := s.products.CreditStock(ctx, q.ProductID, q.Quantity); err != nil {
			return translate(err, "product", q.ProductID)
		}
	}
	return nil
}

// ConvertOrderTotal expresses the order total in another currency
func (s *OrderService) ConvertOrderTotal(ctx context.Context, id int64, currency string) (*ConvertedTotal, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ConvertOrderTotal")
	defer span.End()

	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return nil, apperr.Validation("currency must be a three-letter code")
	}

	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	rate := decimal.NewFromInt(1)
	if currency != s.baseCurrency {
		if s.rates == nil {
			return nil, apperr.UpstreamUnavailable("currency conversion is not available", nil)
		}
		if rate, err = s.rates.Rate(ctx, s.baseCurrency, currency); err != nil {
			util.RecordError(span, err)
			return nil, err
		}
	}

	return &ConvertedTotal{
		OrderID:        order.ID,
		Total:          order.Total,
		ConvertedTotal: money.Convert(order.Total, rate),
		Rate:           rate,
		BaseCurrency:   s.baseCurrency,
		Currency:       currency,
	}, nil
}

// GetOrderHistory lists the recorded lifecycle events of an order
func (s *OrderService) GetOrderHistory(ctx context.Context, id int64) ([]models.OrderHistoryEntry, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrderHistory")
	defer span.End()

	if _, err := s.GetOrder(ctx, id); err != nil {
		return nil, err
	}
	history, err := s.orders.GetOrderHistory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load order history: %w", err)
	}
	return history, nil
}

// publish emits an order event. Failures are logged; the state change has
// already been committed.
func (s *OrderService) publish(ctx context.Context, eventType string, order *models.Order) {
	if s.events == nil {
		return
	}

	if err := s.events.PublishOrderEvent(ctx, NewOrderEvent(eventType, order, s.now())); err != nil {
		s.logger.Warn("Failed to publish order event",
			zap.String("event_type", eventType),
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}
}

// NewOrderEvent snapshots an order into a domain event
func NewOrderEvent(eventType string, order *models.Order, at time.Time) *models.OrderEvent {
	items := make([]models.OrderItemData, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	return &models.OrderEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: at,
		},
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Status:     order.Status,
		Total:      order.Total,
		Items:      items,
	}
}

// NormalizePage applies the default and maximum page sizes
func NormalizePage(page models.Page) models.Page {
	if page.Number < 0 {
		page.Number = 0
	}
	if page.Size <= 0 {
		page.Size = DefaultPageSize
	}
	if page.Size > MaxPageSize {
		page.Size = MaxPageSize
	}
	return page
}
