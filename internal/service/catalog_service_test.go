package service

import (
	"context"
	"errors"
	"testing"

	"mini-erp/internal/apperr"
	"mini-erp/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newCustomer() *models.Customer {
	return &models.Customer{
		Name:  "Maria Souza",
		Email: " Maria@Example.com ",
		TaxID: "123.456.789-01",
		Address: models.Address{
			Number:     "100",
			PostalCode: "01001-000",
		},
	}
}

func viaCEPFill() *stubEnricher {
	return &stubEnricher{fill: models.Address{
		Street: "Praca da Se", District: "Se", City: "Sao Paulo", State: "SP",
	}}
}

func TestCreateCustomerEnrichesAndNormalises(t *testing.T) {
	m := newMemStore()
	enricher := viaCEPFill()
	svc := NewCustomerService(CustomerServiceDeps{Tx: m, Customers: m, Addresses: enricher, Logger: zap.NewNop()})

	c, err := svc.CreateCustomer(context.Background(), newCustomer())
	require.NoError(t, err)

	assert.NotZero(t, c.ID)
	assert.Equal(t, "maria@example.com", c.Email)
	assert.Equal(t, "12345678901", c.TaxID)
	assert.Equal(t, "01001000", c.PostalCode)
	assert.Equal(t, "Praca da Se", c.Street)
	assert.Equal(t, "SP", c.State)
	assert.Equal(t, 1, enricher.calls)
}

func TestCreateCustomerRejectsDuplicates(t *testing.T) {
	m := newMemStore()
	svc := NewCustomerService(CustomerServiceDeps{Tx: m, Customers: m, Addresses: viaCEPFill(), Logger: zap.NewNop()})
	_, err := svc.CreateCustomer(context.Background(), newCustomer())
	require.NoError(t, err)

	sameEmail := newCustomer()
	sameEmail.TaxID = "99999999999"
	_, err = svc.CreateCustomer(context.Background(), sameEmail)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Contains(t, err.Error(), "email")

	sameTaxID := newCustomer()
	sameTaxID.Email = "other@example.com"
	_, err = svc.CreateCustomer(context.Background(), sameTaxID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Contains(t, err.Error(), "tax id")
}

func TestUpdateCustomerKeepsOwnEmail(t *testing.T) {
	m := newMemStore()
	svc := NewCustomerService(CustomerServiceDeps{Tx: m, Customers: m, Addresses: viaCEPFill(), Logger: zap.NewNop()})
	created, err := svc.CreateCustomer(context.Background(), newCustomer())
	require.NoError(t, err)

	update := newCustomer()
	update.Name = "Maria S. Souza"
	updated, err := svc.UpdateCustomer(context.Background(), created.ID, update)
	require.NoError(t, err)
	assert.Equal(t, "Maria S. Souza", updated.Name)

	_, err = svc.UpdateCustomer(context.Background(), 9999, newCustomer())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCreateCustomerValidation(t *testing.T) {
	m := newMemStore()
	svc := NewCustomerService(CustomerServiceDeps{Tx: m, Customers: m, Logger: zap.NewNop()})

	c := newCustomer()
	c.Email = "not-an-email"
	c.TaxID = "123"

	_, err := svc.CreateCustomer(context.Background(), c)
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Contains(t, appErr.Details, "email is invalid")
	assert.Contains(t, appErr.Details, "tax_id must have 11 characters")
	assert.Contains(t, appErr.Details, "address.street is required")
}

func TestCreateCustomerPropagatesEnrichmentFailure(t *testing.T) {
	m := newMemStore()
	enricher := &stubEnricher{err: apperr.UpstreamUnavailable("address service temporarily unavailable", errors.New("503"))}
	svc := NewCustomerService(CustomerServiceDeps{Tx: m, Customers: m, Addresses: enricher, Logger: zap.NewNop()})

	_, err := svc.CreateCustomer(context.Background(), newCustomer())
	assert.True(t, apperr.Is(err, apperr.KindUpstreamUnavailable))
}

func TestDeleteCustomer(t *testing.T) {
	m := newMemStore()
	svc := NewCustomerService(CustomerServiceDeps{Tx: m, Customers: m, Logger: zap.NewNop()})
	c := m.addCustomer("Rita")

	require.NoError(t, svc.DeleteCustomer(context.Background(), c.ID))
	_, err := svc.GetCustomer(context.Background(), c.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.True(t, apperr.Is(svc.DeleteCustomer(context.Background(), c.ID), apperr.KindNotFound))
}

func newProduct() *models.Product {
	return &models.Product{
		SKU:         " KB-001 ",
		Name:        "Keyboard",
		Price:       decimal.RequireFromString("149.90"),
		Quantity:    20,
		MinQuantity: 5,
		Active:      true,
	}
}

func TestCreateProduct(t *testing.T) {
	m := newMemStore()
	svc := NewProductService(ProductServiceDeps{Tx: m, Products: m, Logger: zap.NewNop()})

	p, err := svc.CreateProduct(context.Background(), newProduct())
	require.NoError(t, err)
	assert.NotZero(t, p.ID)
	assert.Equal(t, "KB-001", p.SKU)

	_, err = svc.CreateProduct(context.Background(), newProduct())
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestCreateProductValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *models.Product)
		detail string
	}{
		{"zero price", func(p *models.Product) { p.Price = decimal.Zero }, "price must be greater than zero"},
		{"three decimals", func(p *models.Product) { p.Price = decimal.RequireFromString("1.999") }, "price must have at most two decimal places"},
		{"negative stock", func(p *models.Product) { p.Quantity = -1; p.MinQuantity = 0 }, "quantity must not be negative"},
		{"minimum above stock", func(p *models.Product) { p.MinQuantity = 30 }, "min_quantity must not exceed quantity"},
		{"missing sku", func(p *models.Product) { p.SKU = "  " }, "sku is required"},
		{"stock beyond column range", func(p *models.Product) { p.Quantity = models.MaxQuantity + 1 }, "quantity must be at most 2147483647"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMemStore()
			svc := NewProductService(ProductServiceDeps{Tx: m, Products: m, Logger: zap.NewNop()})
			p := newProduct()
			tt.mutate(p)

			_, err := svc.CreateProduct(context.Background(), p)
			var appErr *apperr.Error
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, apperr.KindValidation, appErr.Kind)
			assert.Contains(t, appErr.Details, tt.detail)
		})
	}
}

func TestCreateProductAcceptsStockEqualToMinimum(t *testing.T) {
	m := newMemStore()
	svc := NewProductService(ProductServiceDeps{Tx: m, Products: m, Logger: zap.NewNop()})
	p := newProduct()
	p.Quantity = 5

	_, err := svc.CreateProduct(context.Background(), p)
	assert.NoError(t, err)
}

func TestUpdateProductSKUIsImmutable(t *testing.T) {
	m := newMemStore()
	svc := NewProductService(ProductServiceDeps{Tx: m, Products: m, Logger: zap.NewNop()})
	created, err := svc.CreateProduct(context.Background(), newProduct())
	require.NoError(t, err)

	change := newProduct()
	change.SKU = "KB-002"
	_, err = svc.UpdateProduct(context.Background(), created.ID, change)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	keep := newProduct()
	keep.SKU = ""
	keep.Name = "Mechanical keyboard"
	keep.Active = false
	updated, err := svc.UpdateProduct(context.Background(), created.ID, keep)
	require.NoError(t, err)
	assert.Equal(t, "KB-001", updated.SKU)
	assert.Equal(t, "Mechanical keyboard", updated.Name)
	assert.False(t, updated.Active)

	_, err = svc.UpdateProduct(context.Background(), 4242, newProduct())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestListProductsNormalisesPage(t *testing.T) {
	m := newMemStore()
	svc := NewProductService(ProductServiceDeps{Tx: m, Products: m, Logger: zap.NewNop()})
	m.addProduct("A", "1.00", 1, true)
	m.addProduct("B", "1.00", 1, false)

	active := true
	result, err := svc.ListProducts(context.Background(), models.ProductFilter{Active: &active}, models.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, result.Total)
	assert.Equal(t, DefaultPageSize, result.Size)
}

func TestDeleteProduct(t *testing.T) {
	m := newMemStore()
	svc := NewProductService(ProductServiceDeps{Tx: m, Products: m, Logger: zap.NewNop()})
	p := m.addProduct("Gone", "1.00", 1, true)

	require.NoError(t, svc.DeleteProduct(context.Background(), p.ID))
	_, err := svc.GetProduct(context.Background(), p.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
