package api

import (
	"time"

	"mini-erp/internal/models"
	"mini-erp/internal/money"
	"mini-erp/internal/service"
)

// Monetary amounts leave the API as strings with exactly two decimals.

type pageResponse[T any] struct {
	Items []T   `json:"items"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
	Total int64 `json:"total"`
}

func toPage[S, T any](result *models.PageResult[S], convert func(*S) T) pageResponse[T] {
	items := make([]T, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, convert(&result.Items[i]))
	}
	return pageResponse[T]{Items: items, Page: result.Page, Size: result.Size, Total: result.Total}
}

type productResponse struct {
	ID          int64     `json:"id"`
	SKU         string    `json:"sku"`
	Name        string    `json:"name"`
	Price       string    `json:"price"`
	Quantity    int       `json:"quantity"`
	MinQuantity int       `json:"min_quantity"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newProductResponse(p *models.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		SKU:         p.SKU,
		Name:        p.Name,
		Price:       money.Format(p.Price),
		Quantity:    p.Quantity,
		MinQuantity: p.MinQuantity,
		Active:      p.Active,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func newCustomerResponse(c *models.Customer) models.Customer {
	return *c
}

type orderItemResponse struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Discount  string `json:"discount"`
	Subtotal  string `json:"subtotal"`
}

type orderResponse struct {
	ID            int64               `json:"id"`
	CustomerID    int64               `json:"customer_id"`
	Status        models.OrderStatus  `json:"status"`
	Subtotal      string              `json:"subtotal"`
	TotalDiscount string              `json:"total_discount"`
	Total         string              `json:"total"`
	Items         []orderItemResponse `json:"items"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func newOrderResponse(o *models.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: money.Format(item.UnitPrice),
			Discount:  money.Format(item.Discount),
			Subtotal:  money.Format(item.Subtotal),
		})
	}

	return orderResponse{
		ID:            o.ID,
		CustomerID:    o.CustomerID,
		Status:        o.Status,
		Subtotal:      money.Format(o.Subtotal),
		TotalDiscount: money.Format(o.TotalDiscount),
		Total:         money.Format(o.Total),
		Items:         items,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

type convertedTotalResponse struct {
	OrderID        int64  `json:"order_id"`
	Total          string `json:"total"`
	ConvertedTotal string `json:"converted_total"`
	Rate           string `json:"rate"`
	BaseCurrency   string `json:"base_currency"`
	Currency       string `json:"currency"`
}

func newConvertedTotalResponse(t *service.ConvertedTotal) convertedTotalResponse {
	return convertedTotalResponse{
		OrderID:        t.OrderID,
		Total:          money.Format(t.Total),
		ConvertedTotal: money.Format(t.ConvertedTotal),
		Rate:           t.Rate.String(),
		BaseCurrency:   t.BaseCurrency,
		Currency:       t.Currency,
	}
}
