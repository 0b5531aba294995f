package handler

import (
	"recharge-store/internal/adapter/http/dto"
	"recharge-store/internal/core/domain"
	"recharge-store/internal/core/ports"
	"recharge-store/pkg/response"

	"github.com/gin-gonic/gin"
)

// CouponHandler handles coupon preview and administration.
type CouponHandler struct {
	couponSvc ports.CouponService
}

// NewCouponHandler creates a new CouponHandler.
func NewCouponHandler(couponSvc ports.CouponService) *CouponHandler {
	return &CouponHandler{couponSvc: couponSvc}
}

// Validate handles POST /api/v1/coupons/validate. It never redeems.
func (h *CouponHandler) Validate(c *gin.Context) {
	var req dto.ValidateCouponRequest
	if !bindJSON(c, &req) {
		return
	}

	quote, err := h.couponSvc.Validate(c.Request.Context(), ports.ValidateCouponRequest{
		Code:     req.Code,
		Amount:   req.Amount,
		Category: domain.ProductCategory(req.Category),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.CouponValidationResponse{
		Coupon:      quote.Coupon,
		Discount:    quote.Discount.Discount,
		FinalAmount: quote.Discount.FinalAmount,
	})
}

// List handles GET /api/v1/admin/coupons.
func (h *CouponHandler) List(c *gin.Context) {
	var q dto.PageQuery
	if !bindQuery(c, &q) {
		return
	}
	page, err := h.couponSvc.List(c.Request.Context(), pageRequest(q))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewPage(page.Items, page.Total, page.Page.Page, page.Page.Limit))
}

// Create handles POST /api/v1/admin/coupons.
func (h *CouponHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req dto.CouponRequest
	if !bindJSON(c, &req) {
		return
	}

	in := toCouponInput(req)
	in.CreatedBy = &actor.UserID
	coupon, err := h.couponSvc.Create(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Coupon created", coupon)
}

// Update handles PUT /api/v1/admin/coupons/:id.
func (h *CouponHandler) Update(c *gin.Context) {
	id, ok := uuidParam(c, "id", "coupon")
	if !ok {
		return
	}
	var req dto.CouponRequest
	if !bindJSON(c, &req) {
		return
	}
	coupon, err := h.couponSvc.Update(c.Request.Context(), id, toCouponInput(req))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OKWithMessage(c, "Coupon updated", coupon)
}

// Delete handles DELETE /api/v1/admin/coupons/:id.
func (h *CouponHandler) Delete(c *gin.Context) {
	id, ok := uuidParam(c, "id", "coupon")
	if !ok {
		return
	}
	if err := h.couponSvc.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.OKWithMessage(c, "Coupon deleted", nil)
}

func toCouponInput(req dto.CouponRequest) ports.CouponInput {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return ports.CouponInput{
		Code:                 req.Code,
		Description:          req.Description,
		DiscountType:         domain.DiscountType(req.DiscountType),
		DiscountValue:        req.DiscountValue,
		MinimumAmount:        req.MinimumAmount,
		MaximumDiscount:      req.MaximumDiscount,
		UsageLimit:           req.UsageLimit,
		ValidFrom:            req.ValidFrom,
		ValidUntil:           req.ValidUntil,
		IsActive:             active,
		ApplicableCategories: req.ApplicableCategories,
	}
}
