package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/memorialqr/memorial-qr-api/services"
)

// LinkMemorialRequest represents the request body for linking an order to a memorial.
// MemorialID accepts a UUID or a slug.
type LinkMemorialRequest struct {
	MemorialID string `json:"memorial_id" binding:"required"`
}

// OrderController serves the order endpoints
type OrderController struct {
	orders    *services.OrderStore
	memorials *services.MemorialProvisioner
}

// NewOrderController creates an order controller
func NewOrderController(orders *services.OrderStore, memorials *services.MemorialProvisioner) *OrderController {
	return &OrderController{orders: orders, memorials: memorials}
}

// CreateOrder handles POST /api/v1/orders - records a pending order at checkout-intent time
func (oc *OrderController) CreateOrder(c *gin.Context) {
	var req services.CreateOrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	// Payment references only ever come from a provider flow
	req.PaymentID = nil
	req.PaymentProvider = ""

	order, err := oc.orders.CreateOrder(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "DATABASE_ERROR", "Failed to create order")
		return
	}

	respondData(c, http.StatusCreated, order)
}

// GetOrder handles GET /api/v1/orders/:orderNumber - public order lookup
func (oc *OrderController) GetOrder(c *gin.Context) {
	order, err := oc.orders.GetOrderByNumber(c.Request.Context(), c.Param("orderNumber"))
	if err != nil {
		respondServiceError(c, err, "DATABASE_ERROR", "Failed to fetch order")
		return
	}

	respondData(c, http.StatusOK, order)
}

// UpdateOrderStatus handles PATCH /api/v1/admin/orders/:id/status
func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	orderID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	var req services.OrderUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	order, err := oc.orders.UpdateOrderStatus(c.Request.Context(), orderID, req)
	if err != nil {
		respondServiceError(c, err, "DATABASE_ERROR", "Failed to update order")
		return
	}

	respondData(c, http.StatusOK, order)
}

// LinkMemorial handles POST /api/v1/admin/orders/:id/memorial
func (oc *OrderController) LinkMemorial(c *gin.Context) {
	orderID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	var req LinkMemorialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	ctx := c.Request.Context()
	memorial, err := oc.memorials.Resolve(ctx, req.MemorialID)
	if err != nil {
		respondServiceError(c, err, "DATABASE_ERROR", "Failed to fetch memorial")
		return
	}

	if err := oc.orders.LinkOrderToMemorial(ctx, orderID, memorial.ID); err != nil {
		respondServiceError(c, err, "DATABASE_ERROR", "Failed to link order")
		return
	}

	order, err := oc.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		respondServiceError(c, err, "DATABASE_ERROR", "Failed to fetch order")
		return
	}

	respondData(c, http.StatusOK, order)
}
