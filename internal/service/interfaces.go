package service

import (
	"context"
	"time"

	"mini-erp/internal/models"

	"github.com/shopspring/decimal"
)

// TxRunner runs fn inside a single database transaction carried by ctx.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type CustomerRepository interface {
	CreateCustomer(ctx context.Context, c *models.Customer) error
	UpdateCustomer(ctx context.Context, c *models.Customer) error
	GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error)
	FindCustomerByEmail(ctx context.Context, email string) (*models.Customer, error)
	FindCustomerByTaxID(ctx context.Context, taxID string) (*models.Customer, error)
	ListCustomers(ctx context.Context, name string, page models.Page) (*models.PageResult[models.Customer], error)
	SoftDeleteCustomer(ctx context.Context, id int64) error
}

type ProductRepository interface {
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	FindProductBySKU(ctx context.Context, sku string) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	ListProducts(ctx context.Context, filter models.ProductFilter, page models.Page) (*models.PageResult[models.Product], error)
	SoftDeleteProduct(ctx context.Context, id int64) error
	DebitStock(ctx context.Context, productID int64, quantity int) error
	CreditStock(ctx context.Context, productID int64, quantity int) error
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context, filter models.OrderFilter, page models.Page) (*models.PageResult[models.Order], error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) error
	SoftDeleteOrder(ctx context.Context, orderID int64) error
	GetOrderHistory(ctx context.Context, orderID int64) ([]models.OrderHistoryEntry, error)
}

// EventPublisher emits order domain events after a transaction commits.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event *models.OrderEvent) error
}

// RateProvider returns the conversion rate from base to quote.
type RateProvider interface {
	Rate(ctx context.Context, base, quote string) (decimal.Decimal, error)
}

// AddressEnricher completes an address from its postal code.
type AddressEnricher interface {
	Enrich(ctx context.Context, addr models.Address) (models.Address, error)
}

// Clock is swapped in tests.
type Clock func() time.Time
