package api

import (
	"net/http"

	"mini-erp/internal/models"

	"github.com/gin-gonic/gin"
)

// customerRequest only checks presence. Formats are validated after the
// service normalises the tax id and fills the address from the postal code.
type customerRequest struct {
	Name    string         `json:"name" binding:"required"`
	Email   string         `json:"email" binding:"required"`
	TaxID   string         `json:"tax_id" binding:"required"`
	Address addressRequest `json:"address"`
}

type addressRequest struct {
	Street     string `json:"street"`
	Number     string `json:"number"`
	Complement string `json:"complement"`
	District   string `json:"district"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
}

func (r customerRequest) toModel() *models.Customer {
	return &models.Customer{
		Name:  r.Name,
		Email: r.Email,
		TaxID: r.TaxID,
		Address: models.Address{
			Street:     r.Address.Street,
			Number:     r.Address.Number,
			Complement: r.Address.Complement,
			District:   r.Address.District,
			City:       r.Address.City,
			State:      r.Address.State,
			PostalCode: r.Address.PostalCode,
		},
	}
}

func (h *Handler) createCustomer(c *gin.Context) {
	var req customerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	customer, err := h.customers.CreateCustomer(c.Request.Context(), req.toModel())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newCustomerResponse(customer))
}

func (h *Handler) listCustomers(c *gin.Context) {
	page, err := parsePage(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	result, err := h.customers.ListCustomers(c.Request.Context(), c.Query("name"), page)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPage(result, newCustomerResponse))
}

func (h *Handler) getCustomer(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	customer, err := h.customers.GetCustomer(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCustomerResponse(customer))
}

func (h *Handler) updateCustomer(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	var req customerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	customer, err := h.customers.UpdateCustomer(c.Request.Context(), id, req.toModel())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCustomerResponse(customer))
}

func (h *Handler) deleteCustomer(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.customers.DeleteCustomer(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
