package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"mini-erp/internal/models"
	"mini-erp/internal/store"

	"github.com/shopspring/decimal"
)

// memStore is an in-memory stand-in for store.Store. RunInTx snapshots the
// state and restores it when fn fails.
type memStore struct {
	mu sync.Mutex

	customers map[int64]models.Customer
	products  map[int64]models.Product
	orders    map[int64]models.Order
	deleted   map[int64]bool
	history   map[int64][]models.OrderHistoryEntry
	nextID    int64

	productLookups int
	debits         []models.ProductQuantity
	credits        []models.ProductQuantity
	persisted      int

	// raceOn makes DebitStock fail for this product, simulating a concurrent debit
	raceOn int64
}

func newMemStore() *memStore {
	return &memStore{
		customers: map[int64]models.Customer{},
		products:  map[int64]models.Product{},
		orders:    map[int64]models.Order{},
		deleted:   map[int64]bool{},
		history:   map[int64][]models.OrderHistoryEntry{},
		nextID:    100,
	}
}

type memSnapshot struct {
	products  map[int64]models.Product
	orders    map[int64]models.Order
	customers map[int64]models.Customer
	deleted   map[int64]bool
}

func (m *memStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	snap := memSnapshot{
		products:  copyMap(m.products),
		orders:    copyMap(m.orders),
		customers: copyMap(m.customers),
		deleted:   copyMap(m.deleted),
	}
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.products, m.orders, m.customers, m.deleted = snap.products, snap.orders, snap.customers, snap.deleted
		m.mu.Unlock()
		return err
	}
	return nil
}

func copyMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) addCustomer(name string) models.Customer {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := models.Customer{ID: m.id(), Name: name, Email: strings.ToLower(name) + "@example.com", TaxID: "12345678901"}
	m.customers[c.ID] = c
	return c
}

func (m *memStore) addProduct(name, price string, quantity int, active bool) models.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := models.Product{
		ID:       m.id(),
		SKU:      "SKU-" + name,
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Quantity: quantity,
		Active:   active,
	}
	m.products[p.ID] = p
	return p
}

func (m *memStore) stock(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Quantity
}

// customers

func (m *memStore) CreateCustomer(ctx context.Context, c *models.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.id()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	m.customers[c.ID] = *c
	return nil
}

func (m *memStore) UpdateCustomer(ctx context.Context, c *models.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.customers[c.ID]; !ok {
		return store.ErrNotFound
	}
	m.customers[c.ID] = *c
	return nil
}

func (m *memStore) GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, fmt.Errorf("customer %d: %w", id, store.ErrNotFound)
	}
	return &c, nil
}

func (m *memStore) FindCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	return m.findCustomer(func(c models.Customer) bool { return c.Email == email })
}

func (m *memStore) FindCustomerByTaxID(ctx context.Context, taxID string) (*models.Customer, error) {
	return m.findCustomer(func(c models.Customer) bool { return c.TaxID == taxID })
}

func (m *memStore) findCustomer(match func(models.Customer) bool) (*models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.customers {
		if match(c) {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListCustomers(ctx context.Context, name string, page models.Page) (*models.PageResult[models.Customer], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := []models.Customer{}
	for _, c := range m.customers {
		if name == "" || strings.Contains(strings.ToLower(c.Name), strings.ToLower(name)) {
			items = append(items, c)
		}
	}
	return &models.PageResult[models.Customer]{Items: items, Page: page.Number, Size: page.Size, Total: int64(len(items))}, nil
}

func (m *memStore) SoftDeleteCustomer(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.customers[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.customers, id)
	return nil
}

// products

func (m *memStore) CreateProduct(ctx context.Context, p *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.id()
	m.products[p.ID] = *p
	return nil
}

func (m *memStore) UpdateProduct(ctx context.Context, p *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.ID]; !ok {
		return store.ErrNotFound
	}
	m.products[p.ID] = *p
	return nil
}

func (m *memStore) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (m *memStore) FindProductBySKU(ctx context.Context, sku string) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.SKU == sku {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.productLookups++
	var found []models.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			found = append(found, p)
		}
	}
	return found, nil
}

func (m *memStore) ListProducts(ctx context.Context, filter models.ProductFilter, page models.Page) (*models.PageResult[models.Product], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := []models.Product{}
	for _, p := range m.products {
		if filter.Active != nil && p.Active != *filter.Active {
			continue
		}
		items = append(items, p)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return &models.PageResult[models.Product]{Items: items, Page: page.Number, Size: page.Size, Total: int64(len(items))}, nil
}

func (m *memStore) SoftDeleteProduct(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *memStore) DebitStock(ctx context.Context, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debits = append(m.debits, models.ProductQuantity{ProductID: productID, Quantity: quantity})
	p, ok := m.products[productID]
	if !ok || p.Quantity < quantity || productID == m.raceOn {
		return store.ErrInsufficientStock
	}
	p.Quantity -= quantity
	m.products[productID] = p
	return nil
}

func (m *memStore) CreditStock(ctx context.Context, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credits = append(m.credits, models.ProductQuantity{ProductID: productID, Quantity: quantity})
	p, ok := m.products[productID]
	if !ok {
		return store.ErrNotFound
	}
	p.Quantity += quantity
	m.products[productID] = p
	return nil
}

// orders

func (m *memStore) CreateOrder(ctx context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persisted++
	order.ID = m.id()
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	for i := range order.Items {
		order.Items[i].ID = m.id()
		order.Items[i].OrderID = order.ID
	}
	stored := *order
	stored.Items = append([]models.LineItem(nil), order.Items...)
	m.orders[order.ID] = stored
	return nil
}

func (m *memStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || m.deleted[id] {
		return nil, fmt.Errorf("order %d: %w", id, store.ErrNotFound)
	}
	o.Items = append([]models.LineItem(nil), o.Items...)
	return &o, nil
}

func (m *memStore) ListOrders(ctx context.Context, filter models.OrderFilter, page models.Page) (*models.PageResult[models.Order], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := []models.Order{}
	for id, o := range m.orders {
		if m.deleted[id] {
			continue
		}
		if filter.CustomerID != nil && o.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		items = append(items, o)
	}
	return &models.PageResult[models.Order]{Items: items, Page: page.Number, Size: page.Size, Total: int64(len(items))}, nil
}

func (m *memStore) UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || m.deleted[orderID] {
		return store.ErrNotFound
	}
	o.Status = status
	m.orders[orderID] = o
	return nil
}

func (m *memStore) SoftDeleteOrder(ctx context.Context, orderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[orderID]; !ok || m.deleted[orderID] {
		return store.ErrNotFound
	}
	m.deleted[orderID] = true
	return nil
}

func (m *memStore) GetOrderHistory(ctx context.Context, orderID int64) ([]models.OrderHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.OrderHistoryEntry{}, m.history[orderID]...), nil
}

func (m *memStore) setStatus(id int64, status models.OrderStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.orders[id]
	o.Status = status
	m.orders[id] = o
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*models.OrderEvent
	err    error
}

func (p *recordingPublisher) PublishOrderEvent(ctx context.Context, event *models.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var types []string
	for _, e := range p.events {
		types = append(types, e.EventType)
	}
	return types
}

type fixedRates struct {
	rate  decimal.Decimal
	err   error
	calls int
}

func (r *fixedRates) Rate(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	r.calls++
	return r.rate, r.err
}

type stubEnricher struct {
	fill  models.Address
	err   error
	calls int
}

func (e *stubEnricher) Enrich(ctx context.Context, addr models.Address) (models.Address, error) {
	e.calls++
	if e.err != nil {
		return addr, e.err
	}
	if addr.Street == "" {
		addr.Street = e.fill.Street
	}
	if addr.District == "" {
		addr.District = e.fill.District
	}
	if addr.City == "" {
		addr.City = e.fill.City
	}
	if addr.State == "" {
		addr.State = e.fill.State
	}
	return addr, nil
}
