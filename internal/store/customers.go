package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"mini-erp/internal/models"

	"github.com/Masterminds/squirrel"
)

var customerColumns = []string{
	"id", "name", "email", "tax_id",
	"street", "number", "complement", "district", "city", "state", "postal_code",
	"created_at", "updated_at",
}

const customerSelect = `SELECT id, name, email, tax_id,
	street, number, complement, district, city, state, postal_code,
	created_at, updated_at
	FROM active_customers`

// CreateCustomer inserts a customer
func (s *Store) CreateCustomer(ctx context.Context, c *models.Customer) error {
	query := `
		INSERT INTO customers (name, email, tax_id, street, number, complement, district, city, state, postal_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	err := s.conn(ctx).GetContext(ctx, c, query,
		c.Name, c.Email, c.TaxID,
		c.Street, c.Number, c.Complement, c.District, c.City, c.State, c.PostalCode)
	return mapWriteError(err)
}

// UpdateCustomer overwrites the customer's fields
func (s *Store) UpdateCustomer(ctx context.Context, c *models.Customer) error {
	query := `
		UPDATE customers
		SET name = $1, email = $2, tax_id = $3,
			street = $4, number = $5, complement = $6, district = $7, city = $8, state = $9, postal_code = $10,
			updated_at = NOW()
		WHERE id = $11 AND deleted_at IS NULL
		RETURNING created_at, updated_at`

	err := s.conn(ctx).GetContext(ctx, c, query,
		c.Name, c.Email, c.TaxID,
		c.Street, c.Number, c.Complement, c.District, c.City, c.State, c.PostalCode,
		c.ID)
	return notFound(mapWriteError(err), "customer", c.ID)
}

// GetCustomerByID retrieves a customer by ID
func (s *Store) GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error) {
	var c models.Customer
	if err := s.conn(ctx).GetContext(ctx, &c, customerSelect+" WHERE id = $1", id); err != nil {
		return nil, notFound(err, "customer", id)
	}
	return &c, nil
}

// FindCustomerByEmail returns nil when nobody uses the email
func (s *Store) FindCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	return s.findCustomer(ctx, "email", email)
}

// FindCustomerByTaxID returns nil when nobody uses the tax id
func (s *Store) FindCustomerByTaxID(ctx context.Context, taxID string) (*models.Customer, error) {
	return s.findCustomer(ctx, "tax_id", taxID)
}

func (s *Store) findCustomer(ctx context.Context, column, value string) (*models.Customer, error) {
	var c models.Customer
	err := s.conn(ctx).GetContext(ctx, &c, customerSelect+" WHERE "+column+" = $1", value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCustomers returns a page of customers, optionally filtered by name
func (s *Store) ListCustomers(ctx context.Context, name string, page models.Page) (*models.PageResult[models.Customer], error) {
	where := squirrel.And{}
	if name != "" {
		where = append(where, squirrel.ILike{"name": "%" + name + "%"})
	}

	customers := []models.Customer{}
	total, err := s.selectPage(ctx, &customers, "active_customers", customerColumns,
		where, []string{"name ASC", "id ASC"}, page)
	if err != nil {
		return nil, err
	}
	return &models.PageResult[models.Customer]{Items: customers, Page: page.Number, Size: page.Size, Total: total}, nil
}

// SoftDeleteCustomer marks a customer as deleted
func (s *Store) SoftDeleteCustomer(ctx context.Context, id int64) error {
	res, err := s.conn(ctx).ExecContext(ctx,
		"UPDATE customers SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL", id)
	if err != nil {
		return err
	}
	return expectOneRow(res, fmt.Errorf("customer %d: %w", id, ErrNotFound))
}
