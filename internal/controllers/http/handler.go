package http

import (
	"net/http"
	"strconv"

	"order-ledger/internal/domain"
	"order-ledger/internal/services"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	orders   *services.OrderService
	products *services.ProductService
	carts    *services.CartService
}

func NewHandler(orders *services.OrderService, products *services.ProductService, carts *services.CartService) *Handler {
	return &Handler{orders: orders, products: products, carts: carts}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", h.Health)

	api := r.Group("/", Identity())
	admin := RequireAdmin()

	api.GET("/products", h.ListProducts)
	api.GET("/products/:id", h.GetProduct)
	api.POST("/products", admin, h.CreateProduct)
	api.PATCH("/products/:id", admin, h.UpdateProduct)
	api.DELETE("/products/:id", admin, h.DeactivateProduct)

	api.GET("/cart", h.GetCart)
	api.DELETE("/cart", h.ClearCart)
	api.POST("/cart/items", h.AddCartItem)
	api.PATCH("/cart/items/:productId", h.UpdateCartItem)
	api.DELETE("/cart/items/:productId", h.RemoveCartItem)

	api.POST("/orders", h.CreateOrder)
	api.GET("/orders", h.ListOrders)
	api.GET("/orders/:id", h.GetOrder)
	api.PATCH("/orders/:id/status", admin, h.UpdateOrderStatus)
	api.POST("/orders/:id/cancel", h.CancelOrder)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, "Invalid request body", err)
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), callerID(c), req.ShippingAddress, req.BillingAddress)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, NewOrderResponse(order))
}

// ListOrders returns the caller's orders. Administrators see every user's
// orders and may filter by status.
func (h *Handler) ListOrders(c *gin.Context) {
	var filter domain.OrderFilter
	if isAdmin(c) {
		if raw := c.Query("status"); raw != "" {
			st, err := domain.ParseOrderStatus(raw)
			if err != nil {
				writeError(c, err)
				return
			}
			filter.Status = &st
		}
	} else {
		uid := callerID(c)
		filter.UserID = &uid
	}

	orders, err := h.orders.ListOrders(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]OrderResponse, len(orders))
	for i := range orders {
		resp[i] = NewOrderResponse(&orders[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(c.Request.Context(), id, callerID(c), isAdmin(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewOrderResponse(order))
}

func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, "Invalid request body", err)
		return
	}
	status, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		writeError(c, err)
		return
	}

	order, err := h.orders.UpdateStatus(c.Request.Context(), id, status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewOrderResponse(order))
}

func (h *Handler) CancelOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := h.orders.CancelOrder(c.Request.Context(), id, callerID(c), isAdmin(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewOrderResponse(order))
}

func (h *Handler) ListProducts(c *gin.Context) {
	all := isAdmin(c) && c.Query("all") == "true"
	products, err := h.products.List(c.Request.Context(), all)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]ProductResponse, len(products))
	for i := range products {
		resp[i] = NewProductResponse(&products[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := h.products.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if !p.Active && !isAdmin(c) {
		writeError(c, domain.ErrProductNotFound)
		return
	}
	c.JSON(http.StatusOK, NewProductResponse(p))
}

func (h *Handler) CreateProduct(c *gin.Context) {
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, "Invalid request body", err)
		return
	}
	p, err := h.products.Create(c.Request.Context(), req.Name, req.Description, *req.Price, *req.StockQuantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, NewProductResponse(p))
}

func (h *Handler) UpdateProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var patch domain.ProductPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		writeBindError(c, "Invalid request body", err)
		return
	}
	p, err := h.products.Update(c.Request.Context(), id, patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewProductResponse(p))
}

func (h *Handler) DeactivateProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if _, err := h.products.Deactivate(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetCart(c *gin.Context) {
	v, err := h.carts.Get(c.Request.Context(), callerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewCartResponse(v))
}

func (h *Handler) AddCartItem(c *gin.Context) {
	var req AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, "Invalid request body", err)
		return
	}
	v, err := h.carts.AddItem(c.Request.Context(), callerID(c), req.ProductID, req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewCartResponse(v))
}

func (h *Handler) UpdateCartItem(c *gin.Context) {
	productID, ok := pathID(c, "productId")
	if !ok {
		return
	}
	var req UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, "Invalid request body", err)
		return
	}
	v, err := h.carts.SetItemQuantity(c.Request.Context(), callerID(c), productID, req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewCartResponse(v))
}

func (h *Handler) RemoveCartItem(c *gin.Context) {
	productID, ok := pathID(c, "productId")
	if !ok {
		return
	}
	v, err := h.carts.RemoveItem(c.Request.Context(), callerID(c), productID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewCartResponse(v))
}

func (h *Handler) ClearCart(c *gin.Context) {
	if err := h.carts.Clear(c.Request.Context(), callerID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func pathID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_input",
			Message: "invalid " + name,
			Details: name + " must be a positive integer",
		})
		return 0, false
	}
	return id, true
}
