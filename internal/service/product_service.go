package service

import (
	"context"
	"fmt"
	"strings"

	"mini-erp/internal/apperr"
	"mini-erp/internal/models"
	"mini-erp/internal/util"

	"go.uber.org/zap"
)

type ProductServiceDeps struct {
	Tx       TxRunner
	Products ProductRepository
	Logger   *zap.Logger
}

// ProductService manages the product catalog
type ProductService struct {
	tx       TxRunner
	products ProductRepository
	logger   *zap.Logger
}

func NewProductService(deps ProductServiceDeps) *ProductService {
	s := &ProductService{
		tx:       deps.Tx,
		products: deps.Products,
		logger:   deps.Logger,
	}
	if s.logger == nil {
		s.logger = util.GetLogger()
	}
	return s
}

// CreateProduct registers a product with a unique SKU
func (s *ProductService) CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.CreateProduct")
	defer span.End()

	if p == nil {
		return nil, apperr.Validation("product is required")
	}
	p.SKU = strings.TrimSpace(p.SKU)
	p.Name = strings.TrimSpace(p.Name)
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		existing, err := s.products.FindProductBySKU(ctx, p.SKU)
		if err != nil {
			return fmt.Errorf("failed to check sku: %w", err)
		}
		if existing != nil {
			return apperr.Conflict("sku already registered", p.SKU)
		}
		return translate(s.products.CreateProduct(ctx, p), "product", p.ID)
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Product created", zap.Int64("product_id", p.ID), zap.String("sku", p.SKU))
	s.warnOnStockLevel(p)
	return p, nil
}

// UpdateProduct changes name, price, stock levels and the active flag. The
// SKU cannot change.
func (s *ProductService) UpdateProduct(ctx context.Context, id int64, p *models.Product) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.UpdateProduct")
	defer span.End()

	if p == nil {
		return nil, apperr.Validation("product is required")
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		existing, err := s.products.GetProductByID(ctx, id)
		if err != nil {
			return translate(err, "product", id)
		}

		sku := strings.TrimSpace(p.SKU)
		if sku != "" && sku != existing.SKU {
			return apperr.Validation("sku cannot be changed", existing.SKU)
		}

		p.ID = id
		p.SKU = existing.SKU
		p.Name = strings.TrimSpace(p.Name)
		p.CreatedAt = existing.CreatedAt
		if err := validateProduct(p); err != nil {
			return err
		}
		return translate(s.products.UpdateProduct(ctx, p), "product", id)
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Product updated", zap.Int64("product_id", id))
	s.warnOnStockLevel(p)
	return p, nil
}

func (s *ProductService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	p, err := s.products.GetProductByID(ctx, id)
	if err != nil {
		return nil, translate(err, "product", id)
	}
	return p, nil
}

func (s *ProductService) ListProducts(ctx context.Context, filter models.ProductFilter, page models.Page) (*models.PageResult[models.Product], error) {
	filter.Name = strings.TrimSpace(filter.Name)
	filter.SKU = strings.TrimSpace(filter.SKU)
	result, err := s.products.ListProducts(ctx, filter, NormalizePage(page))
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return result, nil
}

// DeleteProduct soft-deletes a product; existing order items keep referencing it
func (s *ProductService) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.products.SoftDeleteProduct(ctx, id); err != nil {
		return translate(err, "product", id)
	}
	s.logger.Info("Product deleted", zap.Int64("product_id", id))
	return nil
}

func validateProduct(p *models.Product) error {
	return validateRequest("invalid product", p)
}

func (s *ProductService) warnOnStockLevel(p *models.Product) {
	if !p.Active {
		s.logger.Warn("Product is inactive",
			zap.Int64("product_id", p.ID),
			zap.String("sku", p.SKU))
	}
	if p.Quantity <= p.MinQuantity {
		s.logger.Warn("Product stock at or below minimum",
			zap.Int64("product_id", p.ID),
			zap.String("sku", p.SKU),
			zap.Int("quantity", p.Quantity),
			zap.Int("min_quantity", p.MinQuantity))
	}
}
