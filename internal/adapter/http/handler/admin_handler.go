package handler

import (
	"fmt"
	"time"

	"recharge-store/internal/adapter/http/dto"
	"recharge-store/internal/core/domain"
	"recharge-store/internal/core/ports"
	"recharge-store/pkg/apperror"
	"recharge-store/pkg/response"

	"github.com/gin-gonic/gin"
)

// AdminHandler handles staff dashboards, reports, users and ledger review.
type AdminHandler struct {
	reportingSvc ports.ReportingService
	userSvc      ports.UserAdminService
	ledgerSvc    ports.LedgerService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(reportingSvc ports.ReportingService, userSvc ports.UserAdminService, ledgerSvc ports.LedgerService) *AdminHandler {
	return &AdminHandler{
		reportingSvc: reportingSvc,
		userSvc:      userSvc,
		ledgerSvc:    ledgerSvc,
	}
}

// Stats handles GET /api/v1/admin/stats.
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.reportingSvc.DashboardStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}

// Reports handles GET /api/v1/admin/reports?start=&end=.
func (h *AdminHandler) Reports(c *gin.Context) {
	var q dto.ReportQuery
	if !bindQuery(c, &q) {
		return
	}
	rng, err := parseDateRange(q)
	if err != nil {
		response.Error(c, err)
		return
	}

	report, err := h.reportingSvc.SalesReport(c.Request.Context(), rng)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}

// ExportReport handles POST /api/v1/admin/reports/export. The window may be
// given in the body or the query string.
func (h *AdminHandler) ExportReport(c *gin.Context) {
	var q dto.ReportQuery
	if c.Request.ContentLength > 0 {
		if !bindJSON(c, &q) {
			return
		}
	} else if !bindQuery(c, &q) {
		return
	}
	rng, err := parseDateRange(q)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.reportingSvc.ExportSalesReport(c.Request.Context(), rng)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Report exported", dto.ExportResponse{
		Key:      result.Key,
		Location: result.Location,
		Rows:     result.Rows,
	})
}

// ListUsers handles GET /api/v1/admin/users.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	var q dto.UserQuery
	if !bindQuery(c, &q) {
		return
	}
	page, err := h.userSvc.ListUsers(c.Request.Context(), ports.UserFilter{
		Search:      q.Search,
		PageRequest: pageRequest(q.PageQuery),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewPage(page.Items, page.Total, page.Page.Page, page.Page.Limit))
}

// SetUserStatus handles PUT /api/v1/admin/users/:id/status.
func (h *AdminHandler) SetUserStatus(c *gin.Context) {
	id, ok := uuidParam(c, "id", "user")
	if !ok {
		return
	}
	var req dto.UserStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.userSvc.SetActive(c.Request.Context(), id, *req.IsActive)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OKWithMessage(c, "User status updated", user)
}

// SetUserRole handles PUT /api/v1/admin/users/:id/role.
func (h *AdminHandler) SetUserRole(c *gin.Context) {
	id, ok := uuidParam(c, "id", "user")
	if !ok {
		return
	}
	var req dto.UserRoleRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.userSvc.SetRole(c.Request.Context(), id, domain.UserRole(req.Role))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OKWithMessage(c, "User role updated", user)
}

// ListTransactions handles GET /api/v1/admin/transactions.
func (h *AdminHandler) ListTransactions(c *gin.Context) {
	var q dto.TransactionQuery
	if !bindQuery(c, &q) {
		return
	}
	page, err := h.ledgerSvc.ListTransactions(c.Request.Context(), ports.TransactionFilter{
		Type:        domain.TransactionType(q.Type),
		Status:      domain.TransactionStatus(q.Status),
		PageRequest: pageRequest(q.PageQuery),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewPage(page.Items, page.Total, page.Page.Page, page.Page.Limit))
}

// GetTransaction handles GET /api/v1/admin/transactions/:id. Bank details
// are decrypted for the reviewer.
func (h *AdminHandler) GetTransaction(c *gin.Context) {
	id, ok := uuidParam(c, "id", "transaction")
	if !ok {
		return
	}
	detail, err := h.ledgerSvc.RevealTransaction(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.TransactionDetailResponse{
		Transaction: detail.Transaction,
		BankDetails: detail.BankDetails,
	})
}

// ReviewTransaction handles PUT /api/v1/admin/transactions/:id.
func (h *AdminHandler) ReviewTransaction(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id", "transaction")
	if !ok {
		return
	}
	var req dto.ReviewTransactionRequest
	if !bindJSON(c, &req) {
		return
	}

	txn, err := h.ledgerSvc.ReviewTransaction(c.Request.Context(), ports.ReviewTransactionRequest{
		TransactionID: id,
		Status:        domain.TransactionStatus(req.Status),
		ReviewerID:    actor.UserID,
		Note:          req.Note,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OKWithMessage(c, "Transaction updated", txn)
}

// parseDateRange accepts YYYY-MM-DD or RFC 3339. A date-only end covers the
// whole day.
func parseDateRange(q dto.ReportQuery) (domain.DateRange, error) {
	var rng domain.DateRange
	if q.Start != "" {
		t, _, err := parseReportTime(q.Start)
		if err != nil {
			return rng, apperror.Validation(fmt.Sprintf("invalid start date %q", q.Start))
		}
		rng.Start = t
	}
	if q.End != "" {
		t, dateOnly, err := parseReportTime(q.End)
		if err != nil {
			return rng, apperror.Validation(fmt.Sprintf("invalid end date %q", q.End))
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		rng.End = t
	}
	return rng, nil
}

func parseReportTime(s string) (time.Time, bool, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	return t, false, err
}
