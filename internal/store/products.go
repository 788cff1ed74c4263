package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"mini-erp/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

var productColumns = []string{
	"id", "sku", "name", "price", "quantity", "min_quantity", "active", "created_at", "updated_at",
}

const productSelect = `SELECT id, sku, name, price, quantity, min_quantity, active, created_at, updated_at
	FROM active_products`

// CreateProduct inserts a product
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (sku, name, price, quantity, min_quantity, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := s.conn(ctx).GetContext(ctx, product, query,
		product.SKU, product.Name, product.Price, product.Quantity, product.MinQuantity, product.Active)
	return mapWriteError(err)
}

// UpdateProduct updates the mutable product fields
func (s *Store) UpdateProduct(ctx context.Context, product *models.Product) error {
	query := `
		UPDATE products
		SET name = $1, price = $2, quantity = $3, min_quantity = $4, active = $5, updated_at = NOW()
		WHERE id = $6 AND deleted_at IS NULL
		RETURNING updated_at`

	err := s.conn(ctx).GetContext(ctx, &product.UpdatedAt, query,
		product.Name, product.Price, product.Quantity, product.MinQuantity, product.Active, product.ID)
	return notFound(mapWriteError(err), "product", product.ID)
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.conn(ctx).GetContext(ctx, &product, productSelect+" WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err, "product", id)
	}
	return &product, nil
}

// FindProductBySKU returns nil when no product carries the SKU
func (s *Store) FindProductBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var product models.Product
	err := s.conn(ctx).GetContext(ctx, &product, productSelect+" WHERE sku = $1", sku)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductsByIDs retrieves multiple products by IDs; missing ids are simply absent
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In(productSelect+" WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}

	q := s.conn(ctx)
	var products []models.Product
	err = q.SelectContext(ctx, &products, q.Rebind(query), args...)
	return products, err
}

// ListProducts returns a filtered page of products
func (s *Store) ListProducts(ctx context.Context, filter models.ProductFilter, page models.Page) (*models.PageResult[models.Product], error) {
	products := []models.Product{}
	total, err := s.selectPage(ctx, &products, "active_products", productColumns,
		productFilterClause(filter), []string{"name ASC", "id ASC"}, page)
	if err != nil {
		return nil, err
	}
	return &models.PageResult[models.Product]{Items: products, Page: page.Number, Size: page.Size, Total: total}, nil
}

func productFilterClause(filter models.ProductFilter) squirrel.And {
	where := squirrel.And{}
	if filter.Name != "" {
		where = append(where, squirrel.ILike{"name": "%" + filter.Name + "%"})
	}
	if filter.SKU != "" {
		where = append(where, squirrel.ILike{"sku": "%" + filter.SKU + "%"})
	}
	if filter.Active != nil {
		where = append(where, squirrel.Eq{"active": *filter.Active})
	}
	return where
}

// SoftDeleteProduct marks a product as deleted
func (s *Store) SoftDeleteProduct(ctx context.Context, id int64) error {
	res, err := s.conn(ctx).ExecContext(ctx,
		"UPDATE products SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL", id)
	if err != nil {
		return err
	}
	return expectOneRow(res, fmt.Errorf("product %d: %w", id, ErrNotFound))
}

// DebitStock decrements stock in a single conditional statement. When the
// row would go negative nothing is updated and ErrInsufficientStock is returned.
func (s *Store) DebitStock(ctx context.Context, productID int64, quantity int) error {
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE products
		SET quantity = quantity - $1, updated_at = NOW()
		WHERE id = $2 AND deleted_at IS NULL AND quantity >= $1`,
		quantity, productID)
	if err != nil {
		return fmt.Errorf("failed to debit stock: %w", err)
	}
	return expectOneRow(res, fmt.Errorf("product %d: %w", productID, ErrInsufficientStock))
}

// CreditStock increments stock, reversing an earlier debit
func (s *Store) CreditStock(ctx context.Context, productID int64, quantity int) error {
	res, err := s.conn(ctx).ExecContext(ctx,
		"UPDATE products SET quantity = quantity + $1, updated_at = NOW() WHERE id = $2",
		quantity, productID)
	if err != nil {
		return fmt.Errorf("failed to credit stock: %w", err)
	}
	return expectOneRow(res, fmt.Errorf("product %d: %w", productID, ErrNotFound))
}

// FindLowStock returns active products below their minimum threshold
func (s *Store) FindLowStock(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.conn(ctx).SelectContext(ctx, &products,
		productSelect+" WHERE active = TRUE AND quantity < min_quantity ORDER BY id")
	return products, err
}
