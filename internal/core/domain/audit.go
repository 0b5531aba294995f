package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionRegister          AuditAction = "REGISTER"
	AuditActionLogin             AuditAction = "LOGIN"
	AuditActionUpdateProfile     AuditAction = "UPDATE_PROFILE"
	AuditActionDeposit           AuditAction = "DEPOSIT"
	AuditActionWithdrawRequest   AuditAction = "WITHDRAW_REQUEST"
	AuditActionWalletPayment     AuditAction = "WALLET_PAYMENT"
	AuditActionOrderCreate       AuditAction = "ORDER_CREATE"
	AuditActionPayment           AuditAction = "PAYMENT"
	AuditActionAdminOrderUpdate  AuditAction = "ADMIN_ORDER_UPDATE"
	AuditActionAdminRefund       AuditAction = "ADMIN_REFUND"
	AuditActionAdminTransaction  AuditAction = "ADMIN_TRANSACTION_REVIEW"
	AuditActionAdminProduct      AuditAction = "ADMIN_PRODUCT"
	AuditActionAdminCoupon       AuditAction = "ADMIN_COUPON"
	AuditActionAdminUser         AuditAction = "ADMIN_USER"
	AuditActionAdminNotification AuditAction = "ADMIN_NOTIFICATION"
	AuditActionReportExport      AuditAction = "REPORT_EXPORT"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	UserID       *uuid.UUID  `json:"user_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	UserAgent    string      `json:"user_agent,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}
