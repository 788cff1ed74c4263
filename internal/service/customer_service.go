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

type CustomerServiceDeps struct {
	Tx        TxRunner
	Customers CustomerRepository
	Addresses AddressEnricher
	Logger    *zap.Logger
}

// CustomerService manages the customer directory
type CustomerService struct {
	tx        TxRunner
	customers CustomerRepository
	addresses AddressEnricher
	logger    *zap.Logger
}

func NewCustomerService(deps CustomerServiceDeps) *CustomerService {
	s := &CustomerService{
		tx:        deps.Tx,
		customers: deps.Customers,
		addresses: deps.Addresses,
		logger:    deps.Logger,
	}
	if s.logger == nil {
		s.logger = util.GetLogger()
	}
	return s
}

// CreateCustomer enriches the address and stores a new customer
func (s *CustomerService) CreateCustomer(ctx context.Context, c *models.Customer) (*models.Customer, error) {
	ctx, span := util.StartSpan(ctx, "CustomerService.CreateCustomer")
	defer span.End()

	if err := s.prepare(ctx, c); err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.ensureUnique(ctx, c, 0); err != nil {
			return err
		}
		return translate(s.customers.CreateCustomer(ctx, c), "customer", c.ID)
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Customer created", zap.Int64("customer_id", c.ID))
	return c, nil
}

// UpdateCustomer replaces the customer's data
func (s *CustomerService) UpdateCustomer(ctx context.Context, id int64, c *models.Customer) (*models.Customer, error) {
	ctx, span := util.StartSpan(ctx, "CustomerService.UpdateCustomer")
	defer span.End()

	if err := s.prepare(ctx, c); err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	c.ID = id

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.customers.GetCustomerByID(ctx, id); err != nil {
			return translate(err, "customer", id)
		}
		if err := s.ensureUnique(ctx, c, id); err != nil {
			return err
		}
		return translate(s.customers.UpdateCustomer(ctx, c), "customer", id)
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Customer updated", zap.Int64("customer_id", id))
	return c, nil
}

func (s *CustomerService) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	c, err := s.customers.GetCustomerByID(ctx, id)
	if err != nil {
		return nil, translate(err, "customer", id)
	}
	return c, nil
}

func (s *CustomerService) ListCustomers(ctx context.Context, name string, page models.Page) (*models.PageResult[models.Customer], error) {
	result, err := s.customers.ListCustomers(ctx, strings.TrimSpace(name), NormalizePage(page))
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	return result, nil
}

// DeleteCustomer soft-deletes a customer; their orders are kept
func (s *CustomerService) DeleteCustomer(ctx context.Context, id int64) error {
	if err := s.customers.SoftDeleteCustomer(ctx, id); err != nil {
		return translate(err, "customer", id)
	}
	s.logger.Info("Customer deleted", zap.Int64("customer_id", id))
	return nil
}

// prepare normalises input, fills the address from the postal code and
// validates the result.
func (s *CustomerService) prepare(ctx context.Context, c *models.Customer) error {
	if c == nil {
		return apperr.Validation("customer is required")
	}

	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.TaxID = digitsOnly(c.TaxID)
	c.PostalCode = strings.ReplaceAll(strings.TrimSpace(c.PostalCode), "-", "")
	c.State = strings.ToUpper(strings.TrimSpace(c.State))
	c.Street = strings.TrimSpace(c.Street)
	c.Number = strings.TrimSpace(c.Number)
	c.District = strings.TrimSpace(c.District)
	c.City = strings.TrimSpace(c.City)

	if s.addresses != nil {
		enriched, err := s.addresses.Enrich(ctx, c.Address)
		if err != nil {
			return err
		}
		c.Address = enriched
	}

	return validateRequest("invalid customer", c)
}

// ensureUnique rejects an email or tax id already used by another customer.
func (s *CustomerService) ensureUnique(ctx context.Context, c *models.Customer, selfID int64) error {
	existing, err := s.customers.FindCustomerByEmail(ctx, c.Email)
	if err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil && existing.ID != selfID {
		return apperr.Conflict("email already registered", c.Email)
	}

	existing, err = s.customers.FindCustomerByTaxID(ctx, c.TaxID)
	if err != nil {
		return fmt.Errorf("failed to check tax id: %w", err)
	}
	if existing != nil && existing.ID != selfID {
		return apperr.Conflict("tax id already registered", c.TaxID)
	}
	return nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
