package handler

import (
	"recharge-store/internal/adapter/http/dto"
	"recharge-store/internal/core/domain"
	"recharge-store/internal/core/ports"
	"recharge-store/pkg/response"

	"github.com/gin-gonic/gin"
)

// OrderHandler handles order endpoints for customers and staff.
type OrderHandler struct {
	orderSvc ports.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc ports.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// Create handles POST /api/v1/orders.
func (h *OrderHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req dto.CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orderSvc.CreateOrder(c.Request.Context(), ports.CreateOrderRequest{
		UserID:        actor.UserID,
		ProductID:     mustUUID(req.ProductID),
		Quantity:      req.Quantity,
		GameID:        req.GameID,
		PaymentMethod: req.PaymentMethod,
		CouponCode:    req.CouponCode,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Order created", order)
}

// MyOrders handles GET /api/v1/orders/my-orders.
func (h *OrderHandler) MyOrders(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var q dto.OrderQuery
	if !bindQuery(c, &q) {
		return
	}

	userID := actor.UserID
	h.list(c, ports.OrderFilter{
		UserID:      &userID,
		Status:      domain.OrderStatus(q.Status),
		PageRequest: pageRequest(q.PageQuery),
	})
}

// Get handles GET /api/v1/orders/:id.
func (h *OrderHandler) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id", "order")
	if !ok {
		return
	}

	order, err := h.orderSvc.GetOrder(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, order)
}

// AdminList handles GET /api/v1/admin/orders.
func (h *OrderHandler) AdminList(c *gin.Context) {
	var q dto.OrderQuery
	if !bindQuery(c, &q) {
		return
	}
	h.list(c, ports.OrderFilter{
		Status:      domain.OrderStatus(q.Status),
		PageRequest: pageRequest(q.PageQuery),
	})
}

func (h *OrderHandler) list(c *gin.Context, filter ports.OrderFilter) {
	page, err := h.orderSvc.ListOrders(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewPage(page.Items, page.Total, page.Page.Page, page.Page.Limit))
}

// AdminUpdate handles PUT /api/v1/admin/orders/:id.
func (h *OrderHandler) AdminUpdate(c *gin.Context) {
	id, ok := uuidParam(c, "id", "order")
	if !ok {
		return
	}
	var req dto.AdminUpdateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	update := ports.AdminUpdateOrderRequest{OrderID: id, DeliveryData: req.DeliveryData}
	if req.Status != nil {
		status := domain.OrderStatus(*req.Status)
		update.Status = &status
	}

	order, err := h.orderSvc.AdminUpdateOrder(c.Request.Context(), update)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OKWithMessage(c, "Order updated", order)
}

// Refund handles POST /api/v1/admin/orders/:id/refund.
func (h *OrderHandler) Refund(c *gin.Context) {
	id, ok := uuidParam(c, "id", "order")
	if !ok {
		return
	}

	order, err := h.orderSvc.RefundOrder(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OKWithMessage(c, "Order refunded", order)
}
