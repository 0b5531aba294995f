package handler

import (
	"recharge-store/internal/adapter/http/dto"
	"recharge-store/internal/core/domain"
	"recharge-store/internal/core/ports"
	"recharge-store/pkg/response"

	"github.com/gin-gonic/gin"
)

// PaymentHandler handles order payment endpoints.
type PaymentHandler struct {
	paymentSvc ports.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentSvc ports.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc}
}

// ProcessPayment handles POST /api/v1/payments/process.
func (h *PaymentHandler) ProcessPayment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req dto.ProcessPaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.paymentSvc.ProcessPayment(c.Request.Context(), ports.ProcessPaymentRequest{
		UserID:        actor.UserID,
		OrderID:       mustUUID(req.OrderID),
		PaymentMethod: req.PaymentMethod,
		PaymentData:   req.PaymentData,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OKWithMessage(c, "Payment completed", result.Order)
}

// WalletPayment handles POST /api/v1/wallet/payment. The client states the
// amount it expects to pay; a mismatch with the order total is rejected.
func (h *PaymentHandler) WalletPayment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req dto.WalletPaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	expected := req.Amount
	result, err := h.paymentSvc.ProcessPayment(c.Request.Context(), ports.ProcessPaymentRequest{
		UserID:        actor.UserID,
		OrderID:       mustUUID(req.OrderID),
		PaymentMethod: domain.PaymentMethodWallet,
		ExpectedTotal: &expected,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.WalletPaymentResponse{
		Order:       result.Order,
		Transaction: result.Transaction,
	}
	if result.NewBalance != nil {
		resp.NewBalance = *result.NewBalance
	}
	response.OKWithMessage(c, "Payment completed", resp)
}
