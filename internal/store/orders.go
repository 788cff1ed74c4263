package store

import (
	"context"
	"fmt"
	"time"

	"mini-erp/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

var orderColumns = []string{
	"id", "customer_id", "status", "subtotal", "total_discount", "total", "created_at", "updated_at",
}

const orderSelect = `SELECT id, customer_id, status, subtotal, total_discount, total, created_at, updated_at
	FROM active_orders`

const itemSelect = `SELECT id, order_id, product_id, quantity, unit_price, discount, subtotal
	FROM order_items`

// CreateOrder inserts the order header and all of its items
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (customer_id, status, subtotal, total_discount, total)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	q := s.conn(ctx)
	if err := q.GetContext(ctx, order, query,
		order.CustomerID, order.Status, order.Subtotal, order.TotalDiscount, order.Total); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err := q.GetContext(ctx, &item.ID, `
			INSERT INTO order_items (order_id, product_id, quantity, unit_price, discount, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			item.OrderID, item.ProductID, item.Quantity, item.UnitPrice, item.Discount, item.Subtotal)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}
	return nil
}

// GetOrderByID retrieves an order with its items
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	if err := s.conn(ctx).GetContext(ctx, &order, orderSelect+" WHERE id = $1", id); err != nil {
		return nil, notFound(err, "order", id)
	}

	orders := []models.Order{order}
	if err := s.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// ListOrders returns a filtered page of orders, newest first
func (s *Store) ListOrders(ctx context.Context, filter models.OrderFilter, page models.Page) (*models.PageResult[models.Order], error) {
	orders := []models.Order{}
	total, err := s.selectPage(ctx, &orders, "active_orders", orderColumns,
		orderFilterClause(filter), []string{"created_at DESC", "id DESC"}, page)
	if err != nil {
		return nil, err
	}
	if err := s.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &models.PageResult[models.Order]{Items: orders, Page: page.Number, Size: page.Size, Total: total}, nil
}

func orderFilterClause(filter models.OrderFilter) squirrel.And {
	where := squirrel.And{}
	if filter.CustomerID != nil {
		where = append(where, squirrel.Eq{"customer_id": *filter.CustomerID})
	}
	if filter.Status != nil {
		where = append(where, squirrel.Eq{"status": string(*filter.Status)})
	}
	return where
}

// attachItems loads the items of all given orders in one query
func (s *Store) attachItems(ctx context.Context, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, len(orders))
	byID := make(map[int64]*models.Order, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		orders[i].Items = []models.LineItem{}
		byID[orders[i].ID] = &orders[i]
	}

	query, args, err := sqlx.In(itemSelect+" WHERE order_id IN (?) ORDER BY id", ids)
	if err != nil {
		return err
	}

	q := s.conn(ctx)
	var items []models.LineItem
	if err := q.SelectContext(ctx, &items, q.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	for _, item := range items {
		if order, ok := byID[item.OrderID]; ok {
			order.Items = append(order.Items, item)
		}
	}
	return nil
}

// UpdateOrderStatus updates order status
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) error {
	res, err := s.conn(ctx).ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND deleted_at IS NULL",
		string(status), orderID)
	if err != nil {
		return err
	}
	return expectOneRow(res, fmt.Errorf("order %d: %w", orderID, ErrNotFound))
}

// SoftDeleteOrder hides an order from every read path
func (s *Store) SoftDeleteOrder(ctx context.Context, orderID int64) error {
	res, err := s.conn(ctx).ExecContext(ctx,
		"UPDATE orders SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL", orderID)
	if err != nil {
		return err
	}
	return expectOneRow(res, fmt.Errorf("order %d: %w", orderID, ErrNotFound))
}

// FindStaleOrderIDs lists CREATED orders placed before the cutoff
func (s *Store) FindStaleOrderIDs(ctx context.Context, cutoff time.Time) ([]int64, error) {
	var ids []int64
	err := s.conn(ctx).SelectContext(ctx, &ids,
		"SELECT id FROM active_orders WHERE status = $1 AND created_at < $2 ORDER BY id",
		string(models.OrderStatusCreated), cutoff)
	return ids, err
}

// MarkOrderLate flips a CREATED order to LATE. It reports false when the
// order changed status since it was selected.
func (s *Store) MarkOrderLate(ctx context.Context, orderID int64) (bool, error) {
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3 AND deleted_at IS NULL`,
		string(models.OrderStatusLate), orderID, string(models.OrderStatusCreated))
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}
