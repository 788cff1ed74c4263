package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"mini-erp/internal/apperr"
	"mini-erp/internal/models"
	"mini-erp/internal/service"

	"github.com/gin-gonic/gin"
)

// createOrder handles order creation
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newOrderResponse(order))
}

func (h *Handler) listOrders(c *gin.Context) {
	page, err := parsePage(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	var filter models.OrderFilter
	if v := c.Query("customer_id"); v != "" {
		customerID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			h.respondError(c, apperr.Validation("invalid customer_id", v))
			return
		}
		filter.CustomerID = &customerID
	}
	if v := c.Query("status"); v != "" {
		status := models.OrderStatus(strings.ToUpper(v))
		filter.Status = &status
	}

	result, err := h.orders.ListOrders(c.Request.Context(), filter, page)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPage(result, newOrderResponse))
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	h.withOrder(c, h.orders.GetOrder)
}

func (h *Handler) payOrder(c *gin.Context) {
	h.withOrder(c, h.orders.PayOrder)
}

func (h *Handler) cancelOrder(c *gin.Context) {
	h.withOrder(c, h.orders.CancelOrder)
}

func (h *Handler) deleteOrder(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.orders.DeleteOrder(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) convertOrderTotal(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	total, err := h.orders.ConvertOrderTotal(c.Request.Context(), id, c.Query("currency"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newConvertedTotalResponse(total))
}

func (h *Handler) getOrderHistory(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	history, err := h.orders.GetOrderHistory(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if history == nil {
		history = []models.OrderHistoryEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"order_id": id, "events": history})
}

// withOrder runs an id-addressed order operation and renders the order
func (h *Handler) withOrder(c *gin.Context, op func(ctx context.Context, id int64) (*models.Order, error)) {
	id, err := parseID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	order, err := op(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderResponse(order))
}
