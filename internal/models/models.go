package models

import (
	"math"
	"sort"
	"time"

	"mini-erp/internal/apperr"
	"mini-erp/internal/money"

	"github.com/shopspring/decimal"
)

// Address is embedded in a customer record
type Address struct {
	Street     string `db:"street" json:"street" binding:"required,max=255"`
	Number     string `db:"number" json:"number" binding:"required,max=20"`
	Complement string `db:"complement" json:"complement,omitempty" binding:"max=100"`
	District   string `db:"district" json:"district" binding:"required,max=100"`
	City       string `db:"city" json:"city" binding:"required,max=100"`
	State      string `db:"state" json:"state" binding:"required,len=2,alpha,uppercase"`
	PostalCode string `db:"postal_code" json:"postal_code" binding:"required,len=8,numeric"`
}

// Customer represents a customer in the directory
type Customer struct {
	ID        int64  `db:"id" json:"id"`
	Name      string `db:"name" json:"name" binding:"required,max=255"`
	Email     string `db:"email" json:"email" binding:"required,email,max=255"`
	TaxID     string `db:"tax_id" json:"tax_id" binding:"required,len=11,numeric"`
	Address   `json:"address"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Product represents a product in the catalog
type Product struct {
	ID          int64           `db:"id" json:"id"`
	SKU         string          `db:"sku" json:"sku" binding:"required,max=50"`
	Name        string          `db:"name" json:"name" binding:"required,max=255"`
	Price       decimal.Decimal `db:"price" json:"price" binding:"positive,money"`
	Quantity    int             `db:"quantity" json:"quantity" binding:"min=0,max=2147483647"`
	MinQuantity int             `db:"min_quantity" json:"min_quantity" binding:"min=0,ltefield=Quantity"`
	Active      bool            `db:"active" json:"active"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// BelowMinimum reports whether stock has dropped under the replenishment threshold.
func (p *Product) BelowMinimum() bool {
	return p.Quantity < p.MinQuantity
}

// OrderStatus is the lifecycle state of an order
type OrderStatus string

// Order statuses
const (
	OrderStatusCreated   OrderStatus = "CREATED"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusLate      OrderStatus = "LATE"
)

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusCreated, OrderStatusPaid, OrderStatusCancelled, OrderStatusLate:
		return true
	}
	return false
}

// Order represents a customer order
type Order struct {
	ID            int64           `db:"id" json:"id"`
	CustomerID    int64           `db:"customer_id" json:"customer_id"`
	Status        OrderStatus     `db:"status" json:"status"`
	Subtotal      decimal.Decimal `db:"subtotal" json:"subtotal"`
	TotalDiscount decimal.Decimal `db:"total_discount" json:"total_discount"`
	Total         decimal.Decimal `db:"total" json:"total"`
	Items         []LineItem      `db:"-" json:"items"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// NewOrder starts an order in CREATED status with zeroed totals.
func NewOrder(customerID int64) *Order {
	return &Order{
		CustomerID:    customerID,
		Status:        OrderStatusCreated,
		Subtotal:      money.Round2(decimal.Zero),
		TotalDiscount: money.Round2(decimal.Zero),
		Total:         money.Round2(decimal.Zero),
	}
}

// AddItem appends a line item and recomputes the order totals.
func (o *Order) AddItem(item LineItem) {
	o.Items = append(o.Items, item)
	o.RecalculateTotals()
}

// RecalculateTotals sums gross amounts and discounts over all items. Rounding
// happens once on the sums, never on per-item values, and the total is derived
// from the rounded sums so total == subtotal - discount holds exactly.
func (o *Order) RecalculateTotals() {
	subtotal := decimal.Zero
	discount := decimal.Zero
	for _, item := range o.Items {
		subtotal = subtotal.Add(item.GrossAmount())
		discount = discount.Add(item.Discount)
	}

	o.Subtotal = money.Round2(subtotal)
	o.TotalDiscount = money.Round2(discount)
	o.Total = money.Round2(o.Subtotal.Sub(o.TotalDiscount))
}

// Pay moves a CREATED order to PAID.
func (o *Order) Pay() error {
	if o.Status != OrderStatusCreated {
		return apperr.IllegalStateTransition("order can only be paid if in CREATED status")
	}
	o.Status = OrderStatusPaid
	return nil
}

// Cancel moves any order that is not PAID to CANCELLED. Cancelling a
// cancelled order is a no-op.
func (o *Order) Cancel() error {
	if o.Status == OrderStatusPaid {
		return apperr.IllegalStateTransition("paid orders cannot be cancelled")
	}
	o.Status = OrderStatusCancelled
	return nil
}

// HoldsStock reports whether the order still has stock debited on its behalf.
func (o *Order) HoldsStock() bool {
	return o.Status == OrderStatusCreated || o.Status == OrderStatusLate
}

// IsStale reports whether a CREATED order was placed before the cutoff.
func (o *Order) IsStale(cutoff time.Time) bool {
	return o.Status == OrderStatusCreated && o.CreatedAt.Before(cutoff)
}

// QuantitiesByProduct sums item quantities per product.
func (o *Order) QuantitiesByProduct() []ProductQuantity {
	return GroupQuantities(o.Items, func(item LineItem) (int64, int) {
		return item.ProductID, item.Quantity
	})
}

// MaxQuantity bounds a stock quantity, the range of the INTEGER columns.
const MaxQuantity = math.MaxInt32

// ProductQuantity is a summed quantity for one product
type ProductQuantity struct {
	ProductID int64
	Quantity  int
}

// GroupQuantities sums quantities per product id, ordered by ascending id so
// row locks are always taken in the same order.
func GroupQuantities[T any](entries []T, key func(T) (int64, int)) []ProductQuantity {
	totals := make(map[int64]int, len(entries))
	for _, entry := range entries {
		id, qty := key(entry)
		totals[id] += qty
	}

	grouped := make([]ProductQuantity, 0, len(totals))
	for id, qty := range totals {
		grouped = append(grouped, ProductQuantity{ProductID: id, Quantity: qty})
	}
	sort.Slice(grouped, func(i, j int) bool {
		return grouped[i].ProductID < grouped[j].ProductID
	})
	return grouped
}

// LineItem represents one product entry in an order
type LineItem struct {
	ID        int64           `db:"id" json:"id"`
	OrderID   int64           `db:"order_id" json:"order_id"`
	ProductID int64           `db:"product_id" json:"product_id"`
	Quantity  int             `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
	Discount  decimal.Decimal `db:"discount" json:"discount"`
	Subtotal  decimal.Decimal `db:"subtotal" json:"subtotal"`
}

// NewLineItem snapshots the product price. A nil discount counts as zero.
func NewLineItem(product *Product, quantity int, discount *decimal.Decimal) LineItem {
	item := LineItem{
		ProductID: product.ID,
		Quantity:  quantity,
		UnitPrice: product.Price,
		Discount:  decimal.Zero,
	}
	if discount != nil {
		item.Discount = *discount
	}
	item.recalculate()
	return item
}

// SetQuantity updates the quantity and the subtotal.
func (i *LineItem) SetQuantity(quantity int) {
	i.Quantity = quantity
	i.recalculate()
}

// SetUnitPrice updates the unit price and the subtotal.
func (i *LineItem) SetUnitPrice(price decimal.Decimal) {
	i.UnitPrice = price
	i.recalculate()
}

// SetDiscount updates the discount and the subtotal.
func (i *LineItem) SetDiscount(discount decimal.Decimal) {
	i.Discount = discount
	i.recalculate()
}

// GrossAmount is unit price times quantity, before discount.
func (i LineItem) GrossAmount() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (i *LineItem) recalculate() {
	i.Subtotal = i.GrossAmount().Sub(i.Discount)
}

// Page describes a zero-based page request
type Page struct {
	Number int
	Size   int
}

// Offset returns the row offset of the page.
func (p Page) Offset() uint64 {
	return uint64(p.Number) * uint64(p.Size)
}

// PageResult is a page of results with the total row count
type PageResult[T any] struct {
	Items []T   `json:"items"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
	Total int64 `json:"total"`
}

// OrderFilter narrows order listings; nil fields are ignored
type OrderFilter struct {
	CustomerID *int64
	Status     *OrderStatus
}

// ProductFilter narrows product listings
type ProductFilter struct {
	Name   string
	SKU    string
	Active *bool
}

// OrderHistoryEntry is one recorded domain event for an order
type OrderHistoryEntry struct {
	ID         int64       `db:"id" json:"id"`
	OrderID    int64       `db:"order_id" json:"order_id"`
	EventID    string      `db:"event_id" json:"event_id"`
	EventType  string      `db:"event_type" json:"event_type"`
	Status     OrderStatus `db:"status" json:"status"`
	OccurredAt time.Time   `db:"occurred_at" json:"occurred_at"`
	RecordedAt time.Time   `db:"recorded_at" json:"recorded_at"`
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
