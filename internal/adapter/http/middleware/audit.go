package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"recharge-store/internal/core/domain"
	"recharge-store/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type auditRoute struct {
	action       domain.AuditAction
	resourceType string
}

// auditRoutes maps "METHOD route-pattern" to the audited action.
var auditRoutes = map[string]auditRoute{
	"POST /api/v1/auth/register":           {domain.AuditActionRegister, "user"},
	"POST /api/v1/auth/login":              {domain.AuditActionLogin, "session"},
	"PUT /api/v1/users/profile":            {domain.AuditActionUpdateProfile, "user"},
	"POST /api/v1/wallet/deposit":          {domain.AuditActionDeposit, "transaction"},
	"POST /api/v1/wallet/withdraw":         {domain.AuditActionWithdrawRequest, "transaction"},
	"POST /api/v1/wallet/payment":          {domain.AuditActionWalletPayment, "order"},
	"POST /api/v1/orders":                  {domain.AuditActionOrderCreate, "order"},
	"POST /api/v1/payments/process":        {domain.AuditActionPayment, "order"},
	"PUT /api/v1/admin/orders/:id":         {domain.AuditActionAdminOrderUpdate, "order"},
	"POST /api/v1/admin/orders/:id/refund": {domain.AuditActionAdminRefund, "order"},
	"PUT /api/v1/admin/transactions/:id":   {domain.AuditActionAdminTransaction, "transaction"},
	"POST /api/v1/admin/products":          {domain.AuditActionAdminProduct, "product"},
	"PUT /api/v1/admin/products/:id":       {domain.AuditActionAdminProduct, "product"},
	"DELETE /api/v1/admin/products/:id":    {domain.AuditActionAdminProduct, "product"},
	"POST /api/v1/admin/coupons":           {domain.AuditActionAdminCoupon, "coupon"},
	"PUT /api/v1/admin/coupons/:id":        {domain.AuditActionAdminCoupon, "coupon"},
	"DELETE /api/v1/admin/coupons/:id":     {domain.AuditActionAdminCoupon, "coupon"},
	"PUT /api/v1/admin/users/:id/status":   {domain.AuditActionAdminUser, "user"},
	"PUT /api/v1/admin/users/:id/role":     {domain.AuditActionAdminUser, "user"},
	"POST /api/v1/admin/notifications":     {domain.AuditActionAdminNotification, "notification"},
	"POST /api/v1/admin/reports/export":    {domain.AuditActionReportExport, "report"},
}

// AuditLog creates an audit middleware that records successful write
// operations after the handler has run.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}

		route, ok := auditRoutes[c.Request.Method+" "+c.FullPath()]
		if !ok {
			return
		}

		var userID *uuid.UUID
		if actor, ok := ActorFrom(c); ok {
			id := actor.UserID
			userID = &id
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"request_id": c.GetString("request_id"),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			UserID:       userID,
			Action:       route.action,
			ResourceType: route.resourceType,
			ResourceID:   c.Param("id"),
			IPAddress:    c.ClientIP(),
			UserAgent:    c.Request.UserAgent(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}
