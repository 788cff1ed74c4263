package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"mini-erp/internal/apperr"
	"mini-erp/internal/models"
	"mini-erp/internal/service"
	"mini-erp/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type OrderService interface {
	CreateOrder(ctx context.Context, req *service.CreateOrderRequest) (*models.Order, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context, filter models.OrderFilter, page models.Page) (*models.PageResult[models.Order], error)
	PayOrder(ctx context.Context, id int64) (*models.Order, error)
	CancelOrder(ctx context.Context, id int64) (*models.Order, error)
	DeleteOrder(ctx context.Context, id int64) error
	ConvertOrderTotal(ctx context.Context, id int64, currency string) (*service.ConvertedTotal, error)
	GetOrderHistory(ctx context.Context, id int64) ([]models.OrderHistoryEntry, error)
}

type CustomerService interface {
	CreateCustomer(ctx context.Context, c *models.Customer) (*models.Customer, error)
	UpdateCustomer(ctx context.Context, id int64, c *models.Customer) (*models.Customer, error)
	GetCustomer(ctx context.Context, id int64) (*models.Customer, error)
	ListCustomers(ctx context.Context, name string, page models.Page) (*models.PageResult[models.Customer], error)
	DeleteCustomer(ctx context.Context, id int64) error
}

type ProductService interface {
	CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error)
	UpdateProduct(ctx context.Context, id int64, p *models.Product) (*models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, filter models.ProductFilter, page models.Page) (*models.PageResult[models.Product], error)
	DeleteProduct(ctx context.Context, id int64) error
}

// Pinger is a dependency checked by the readiness endpoint
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps groups what the HTTP layer needs. Checks may be empty.
type Deps struct {
	Orders    OrderService
	Customers CustomerService
	Products  ProductService
	Checks    map[string]Pinger
}

// Handler contains HTTP handlers
type Handler struct {
	orders    OrderService
	customers CustomerService
	products  ProductService
	checks    map[string]Pinger
	logger    *zap.Logger
}

var registerBindings sync.Once

// NewHandler creates a new HTTP handler
func NewHandler(deps Deps) *Handler {
	registerBindings.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			util.RegisterValidations(v)
		}
	})

	return &Handler{
		orders:    deps.Orders,
		customers: deps.Customers,
		products:  deps.Products,
		checks:    deps.Checks,
		logger:    util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(h.requestLogger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/customers", h.createCustomer)
		v1.GET("/customers", h.listCustomers)
		v1.GET("/customers/:id", h.getCustomer)
		v1.PUT("/customers/:id", h.updateCustomer)
		v1.DELETE("/customers/:id", h.deleteCustomer)

		v1.POST("/products", h.createProduct)
		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)
		v1.PUT("/products/:id", h.updateProduct)
		v1.DELETE("/products/:id", h.deleteProduct)

		v1.POST("/orders", h.createOrder)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.DELETE("/orders/:id", h.deleteOrder)
		v1.PATCH("/orders/:id/pay", h.payOrder)
		v1.PATCH("/orders/:id/cancel", h.cancelOrder)
		v1.GET("/orders/:id/total", h.convertOrderTotal)
		v1.GET("/orders/:id/history", h.getOrderHistory)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := gin.H{}
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			results[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "up"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not ready"
	}
	c.JSON(status, gin.H{
		"status": state,
		"checks": results,
		"time":   time.Now().Unix(),
	})
}

// respondError writes the error body for err. Internal failures are logged
// and answered with a generic message.
func (h *Handler) respondError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind == apperr.KindInternal {
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   apperr.KindInternal,
			"message": "internal server error",
			"details": []string{},
		})
		return
	}

	details := appErr.Details
	if details == nil {
		details = []string{}
	}
	c.JSON(apperr.HTTPStatus(appErr.Kind), gin.H{
		"error":   appErr.Kind,
		"message": appErr.Public(),
		"details": details,
	})
}

// badRequest reports a body that failed to decode or bind, one detail per
// failed field.
func (h *Handler) badRequest(c *gin.Context, message string, err error) {
	h.respondError(c, apperr.Validation(message, util.ValidationDetails(err)...))
}

func parseID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid id", c.Param("id"))
	}
	return id, nil
}

// parsePage reads the zero-based page and its size; bounds are applied by the services
func parsePage(c *gin.Context) (models.Page, error) {
	var page models.Page
	var err error
	if v := c.Query("page"); v != "" {
		if page.Number, err = strconv.Atoi(v); err != nil || page.Number < 0 {
			return page, apperr.Validation("invalid page", v)
		}
	}
	if v := c.Query("size"); v != "" {
		if page.Size, err = strconv.Atoi(v); err != nil || page.Size < 1 {
			return page, apperr.Validation("invalid size", v)
		}
	}
	return page, nil
}

// requestLogger writes one structured line per request
func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		h.logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
