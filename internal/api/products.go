package api

import (
	"net/http"
	"strconv"

	"mini-erp/internal/apperr"
	"mini-erp/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// productRequest accepts the price as a JSON number or string. Active
// defaults to true when omitted. SKU may be left out on update.
type productRequest struct {
	SKU         string          `json:"sku" binding:"max=50"`
	Name        string          `json:"name" binding:"required"`
	Price       decimal.Decimal `json:"price" binding:"positive,money"`
	Quantity    int             `json:"quantity" binding:"min=0,max=2147483647"`
	MinQuantity int             `json:"min_quantity" binding:"min=0,ltefield=Quantity"`
	Active      *bool           `json:"active"`
}

func (r productRequest) toModel() *models.Product {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return &models.Product{
		SKU:         r.SKU,
		Name:        r.Name,
		Price:       r.Price,
		Quantity:    r.Quantity,
		MinQuantity: r.MinQuantity,
		Active:      active,
	}
}

func (h *Handler) createProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	product, err := h.products.CreateProduct(c.Request.Context(), req.toModel())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newProductResponse(product))
}

func (h *Handler) listProducts(c *gin.Context) {
	page, err := parsePage(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	filter := models.ProductFilter{
		Name: c.Query("name"),
		SKU:  c.Query("sku"),
	}
	if v := c.Query("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			h.respondError(c, apperr.Validation("invalid active filter", v))
			return
		}
		filter.Active = &active
	}

	result, err := h.products.ListProducts(c.Request.Context(), filter, page)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPage(result, newProductResponse))
}

func (h *Handler) getProduct(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	product, err := h.products.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProductResponse(product))
}

func (h *Handler) updateProduct(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	product, err := h.products.UpdateProduct(c.Request.Context(), id, req.toModel())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProductResponse(product))
}

func (h *Handler) deleteProduct(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.products.DeleteProduct(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
