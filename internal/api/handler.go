package api

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"time"

	"bakery-service/internal/models"
	"bakery-service/internal/service"
	"bakery-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	ledger    *service.LedgerService
	catalog   *service.CatalogService
	chat      *service.ChatService
	customers *service.CustomerService
	pix       *service.PixService
}

// NewHandler creates a new HTTP handler
func NewHandler(
	ledger *service.LedgerService,
	catalog *service.CatalogService,
	chat *service.ChatService,
	customers *service.CustomerService,
	pix *service.PixService,
) *Handler {
	return &Handler{
		ledger:    ledger,
		catalog:   catalog,
		chat:      chat,
		customers: customers,
		pix:       pix,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/products", h.listMenu)
		v1.POST("/checkout/quote", h.quoteCheckout)
		v1.POST("/orders", h.placeOrder)
		v1.GET("/orders/:id", h.getOrder)
		v1.GET("/orders/:id/pix", h.getPixCharge)
		v1.POST("/orders/:id/rating", h.rateOrder)
		v1.POST("/customers", h.registerCustomer)
		v1.GET("/customers/:id", h.getCustomer)
		v1.PUT("/customers/:id", h.updateCustomer)
		v1.GET("/customers/:id/orders", h.listCustomerOrders)
		v1.GET("/customers/:id/messages", h.listMessages)
		v1.POST("/customers/:id/messages", h.postMessage)
	}

	admin := v1.Group("/admin")
	{
		admin.GET("/orders", h.adminListOrders)
		admin.POST("/orders", h.adminCreateManualOrder)
		admin.POST("/orders/:id/advance", h.adminAdvanceOrder)
		admin.POST("/orders/:id/complete", h.adminCompleteOrder)
		admin.POST("/orders/:id/cancel", h.adminCancelOrder)
		admin.GET("/customers", h.adminListCustomers)
		admin.GET("/products", h.adminListProducts)
		admin.POST("/products", h.adminCreateProduct)
		admin.PUT("/products/:id", h.adminUpdateProduct)
		admin.DELETE("/products/:id", h.adminDeactivateProduct)
		admin.GET("/settings", h.adminGetSettings)
		admin.PUT("/settings", h.adminUpdateSettings)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// statusForError maps ledger errors onto HTTP statuses. Validation problems
// are the caller's to fix; conflicts are retryable.
func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrUnknownProduct),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrIncompleteAddress),
		errors.Is(err, service.ErrBelowMinimum),
		errors.Is(err, service.ErrMissingCardType),
		errors.Is(err, service.ErrInsufficientCash),
		errors.Is(err, service.ErrInvalidRating),
		errors.Is(err, service.ErrInvalidCategory),
		errors.Is(err, service.ErrInvalidPrice),
		errors.Is(err, service.ErrEmptyMessage),
		errors.Is(err, service.ErrInvalidSettings):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrVerificationMismatch),
		errors.Is(err, service.ErrVerificationRequired):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrOrderConflict),
		errors.Is(err, service.ErrCustomerBusy),
		errors.Is(err, service.ErrRatingAlreadySet):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{"error": err.Error()})
}

// listMenu returns the active catalog
func (h *Handler) listMenu(c *gin.Context) {
	products, err := h.catalog.Menu(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load catalog"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// quoteCheckout prices a cart without creating an order
func (h *Handler) quoteCheckout(c *gin.Context) {
	var req service.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	quote, err := h.ledger.QuoteCheckout(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

// placeOrder handles checkout submission
func (h *Handler) placeOrder(c *gin.Context) {
	var req service.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	order, err := h.ledger.PlaceOrder(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// getOrder returns an order with its items
func (h *Handler) getOrder(c *gin.Context) {
	order, items, err := h.ledger.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order, "items": items})
}

// getPixCharge returns the BR Code payload and QR image for a pix order
func (h *Handler) getPixCharge(c *gin.Context) {
	order, _, err := h.ledger.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	size := 256
	if s := c.Query("size"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed >= 64 && parsed <= 1024 {
			size = parsed
		}
	}

	payload, png, err := h.pix.PixChargeFor(order, size)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payload": payload,
		"qr_png":  base64.StdEncoding.EncodeToString(png),
	})
}

type ratingRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
	Skip    bool   `json:"skip"`
}

// rateOrder records or skips a post-delivery rating
func (h *Handler) rateOrder(c *gin.Context) {
	var req ratingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	var err error
	if req.Skip {
		err = h.ledger.SkipRating(c.Request.Context(), c.Param("id"))
	} else {
		err = h.ledger.RateOrder(c.Request.Context(), c.Param("id"), req.Rating, req.Comment)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// registerCustomer creates a customer record
func (h *Handler) registerCustomer(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	customer, err := h.customers.Register(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register customer"})
		return
	}
	c.JSON(http.StatusCreated, customer)
}

// getCustomer returns a customer profile and balance
func (h *Handler) getCustomer(c *gin.Context) {
	customer, err := h.customers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found"})
		return
	}
	c.JSON(http.StatusOK, customer)
}

// updateCustomer updates profile and address fields
func (h *Handler) updateCustomer(c *gin.Context) {
	var customer models.Customer
	if err := c.ShouldBindJSON(&customer); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	customer.ID = c.Param("id")

	if err := h.customers.UpdateProfile(c.Request.Context(), &customer); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// listCustomerOrders returns a customer's order history
func (h *Handler) listCustomerOrders(c *gin.Context) {
	orders, err := h.ledger.ListCustomerOrders(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load orders"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// listMessages returns a customer's support thread
func (h *Handler) listMessages(c *gin.Context) {
	messages, err := h.chat.Thread(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

type postMessageRequest struct {
	SenderName string `json:"sender_name" binding:"required"`
	Text       string `json:"text" binding:"required"`
	IsAdmin    bool   `json:"is_admin"`
}

// postMessage appends a message to the support thread
func (h *Handler) postMessage(c *gin.Context) {
	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	msg, err := h.chat.PostMessage(c.Request.Context(), c.Param("id"), req.SenderName, req.Text, req.IsAdmin)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// adminListOrders returns the order pipeline, optionally filtered by status
func (h *Handler) adminListOrders(c *gin.Context) {
	orders, err := h.ledger.ListOrders(c.Request.Context(), c.Query("status"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// adminCreateManualOrder creates a walk-in order
func (h *Handler) adminCreateManualOrder(c *gin.Context) {
	var req service.ManualOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	order, err := h.ledger.CreateManualOrder(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// adminAdvanceOrder moves an order one step along the pipeline
func (h *Handler) adminAdvanceOrder(c *gin.Context) {
	order, err := h.ledger.AdvanceOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type completeOrderRequest struct {
	Code string `json:"code" binding:"required"`
}

// adminCompleteOrder verifies the delivery code and completes the order
func (h *Handler) adminCompleteOrder(c *gin.Context) {
	var req completeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	order, err := h.ledger.CompleteDelivery(c.Request.Context(), c.Param("id"), req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// adminCancelOrder cancels a non-terminal order
func (h *Handler) adminCancelOrder(c *gin.Context) {
	order, err := h.ledger.CancelOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// adminListCustomers returns all customers
func (h *Handler) adminListCustomers(c *gin.Context) {
	customers, err := h.customers.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load customers"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"customers": customers})
}

// adminListProducts returns every product, active or not
func (h *Handler) adminListProducts(c *gin.Context) {
	products, err := h.catalog.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load products"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// adminCreateProduct adds a product to the catalog
func (h *Handler) adminCreateProduct(c *gin.Context) {
	var req service.ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	product, err := h.catalog.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

// adminUpdateProduct updates a product
func (h *Handler) adminUpdateProduct(c *gin.Context) {
	var req service.ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	product, err := h.catalog.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// adminDeactivateProduct hides a product from the menu
func (h *Handler) adminDeactivateProduct(c *gin.Context) {
	if err := h.catalog.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// adminGetSettings returns the pricing settings
func (h *Handler) adminGetSettings(c *gin.Context) {
	settings, err := h.ledger.GetSettings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load settings"})
		return
	}
	c.JSON(http.StatusOK, settings)
}

// adminUpdateSettings overwrites the pricing settings
func (h *Handler) adminUpdateSettings(c *gin.Context) {
	var settings models.AppSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.ledger.UpdateSettings(c.Request.Context(), &settings); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
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
