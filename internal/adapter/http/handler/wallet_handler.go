package handler

import (
	"recharge-store/internal/adapter/http/dto"
	"recharge-store/internal/core/domain"
	"recharge-store/internal/core/ports"
	"recharge-store/pkg/response"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey lets clients retry a deposit without charging twice.
const HeaderIdempotencyKey = "Idempotency-Key"

// WalletHandler handles wallet endpoints.
type WalletHandler struct {
	ledgerSvc ports.LedgerService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledgerSvc ports.LedgerService) *WalletHandler {
	return &WalletHandler{ledgerSvc: ledgerSvc}
}

// GetBalance handles GET /api/v1/wallet/balance. The wallet is created on
// first read.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	wallet, err := h.ledgerSvc.GetWallet(c.Request.Context(), actor.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.WalletBalanceResponse{
		Balance:        wallet.Balance,
		TotalDeposited: wallet.TotalDeposited,
		TotalWithdrawn: wallet.TotalWithdrawn,
		Currency:       wallet.Currency,
	})
}

// Deposit handles POST /api/v1/wallet/deposit.
func (h *WalletHandler) Deposit(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req dto.DepositRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.ledgerSvc.Deposit(c.Request.Context(), ports.DepositRequest{
		UserID:         actor.UserID,
		Amount:         req.Amount,
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: c.GetHeader(HeaderIdempotencyKey),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OKWithMessage(c, "Deposit completed", dto.DepositResponse{
		NewBalance:  result.Wallet.Balance,
		Transaction: result.Transaction,
	})
}

// Withdraw handles POST /api/v1/wallet/withdraw.
func (h *WalletHandler) Withdraw(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req dto.WithdrawRequest
	if !bindJSON(c, &req) {
		return
	}

	txn, err := h.ledgerSvc.RequestWithdrawal(c.Request.Context(), ports.WithdrawalRequest{
		UserID:      actor.UserID,
		Amount:      req.Amount,
		BankDetails: req.BankDetails,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OKWithMessage(c, "Withdrawal request submitted", txn)
}

// ListTransactions handles GET /api/v1/wallet/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var q dto.TransactionQuery
	if !bindQuery(c, &q) {
		return
	}

	userID := actor.UserID
	page, err := h.ledgerSvc.ListTransactions(c.Request.Context(), ports.TransactionFilter{
		UserID:      &userID,
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
