package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"recharge-store/internal/adapter/gateway"
	"recharge-store/internal/core/domain"
	"recharge-store/internal/core/ports"
	"recharge-store/internal/metrics"
	"recharge-store/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	idempotencyTTL        = 24 * time.Hour
	idempotencyPendingTTL = 2 * time.Minute

	metaBankDetails  = "bank_details_enc"
	metaGatewayTxID  = "gateway_transaction_id"
	metaReviewedBy   = "reviewed_by"
	metaReviewNote   = "review_note"
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// LedgerConfig holds wallet limits.
type LedgerConfig struct {
	Currency      string
	MinDeposit    decimal.Decimal
	MaxDeposit    decimal.Decimal
	MinWithdrawal decimal.Decimal
}

// LedgerServiceImpl implements ports.Ledger and ports.LedgerService.
type LedgerServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	userRepo   ports.UserRepository
	transactor ports.DBTransactor
	gateway    ports.PaymentGateway
	idempCache ports.IdempotencyCache
	encSvc     ports.EncryptionService
	notifier   ports.Notifier
	cfg        LedgerConfig
	log        zerolog.Logger
	now        func() time.Time
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	userRepo ports.UserRepository,
	transactor ports.DBTransactor,
	gw ports.PaymentGateway,
	idempCache ports.IdempotencyCache,
	encSvc ports.EncryptionService,
	notifier ports.Notifier,
	cfg LedgerConfig,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		userRepo:   userRepo,
		transactor: transactor,
		gateway:    gw,
		idempCache: idempCache,
		encSvc:     encSvc,
		notifier:   notifier,
		cfg:        cfg,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Post applies a completed balance mutation inside tx: it locks the wallet
// row, applies the operation, persists the wallet and the cached user
// balance, and records the transaction. The caller owns commit.
func (s *LedgerServiceImpl) Post(ctx context.Context, tx pgx.Tx, entry ports.LedgerEntry) (*ports.LedgerResult, error) {
	if !entry.Type.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown transaction type %q", entry.Type))
	}

	now := s.now()
	wallet, err := s.lockWallet(ctx, tx, entry.UserID, now)
	if err != nil {
		return nil, err
	}

	// Pending withdrawals hold their amount until reviewed.
	if !entry.Type.IsCredit() && entry.Amount.IsPositive() {
		reserved, err := s.txRepo.SumPendingWithdrawals(ctx, tx, entry.UserID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("sum pending withdrawals: %w", err))
		}
		if wallet.Balance.Sub(reserved).LessThan(entry.Amount) {
			return nil, apperror.ErrInsufficientFunds()
		}
	}

	before, after, err := wallet.Apply(entry.Amount, entry.Type.Operation())
	if err != nil {
		return nil, mapLedgerError(err)
	}
	wallet.UpdatedAt = now

	if err := s.persistWallet(ctx, tx, wallet); err != nil {
		return nil, err
	}

	ref := entry.ReferenceID
	if ref == "" {
		ref = domain.NewReferenceID("TXN", now)
	}
	txn := &domain.Transaction{
		ID:            uuid.New(),
		UserID:        entry.UserID,
		WalletID:      wallet.ID,
		OrderID:       entry.OrderID,
		Type:          entry.Type,
		Amount:        entry.Amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Status:        domain.TransactionStatusCompleted,
		ReferenceID:   ref,
		PaymentMethod: entry.PaymentMethod,
		Description:   entry.Description,
		Metadata:      entry.Metadata,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.txRepo.Create(ctx, tx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}

	return &ports.LedgerResult{Wallet: wallet, Transaction: txn}, nil
}

// GetWallet returns the user's wallet, creating it on first access.
func (s *LedgerServiceImpl) GetWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetOrCreate(ctx, userID, s.cfg.Currency)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	return wallet, nil
}

// Deposit charges the payment provider and credits the wallet on approval.
// A declined charge mutates nothing and records no transaction.
func (s *LedgerServiceImpl) Deposit(ctx context.Context, req ports.DepositRequest) (*ports.LedgerResult, error) {
	if req.Amount.LessThan(s.cfg.MinDeposit) || req.Amount.GreaterThan(s.cfg.MaxDeposit) {
		return nil, apperror.ErrInvalidAmount(fmt.Sprintf(
			"Deposit amount must be between %s and %s", s.cfg.MinDeposit.String(), s.cfg.MaxDeposit.String()))
	}

	var idempKey string
	if req.IdempotencyKey != "" {
		key := fmt.Sprintf("deposit:%s:%s", req.UserID, req.IdempotencyKey)
		cached, acquired, err := s.idempCache.Reserve(ctx, key, idempotencyPendingTTL)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Str("key", key).Msg("idempotency reserve failed, processing request")
		case cached != nil:
			if result := s.decodeCached(key, cached); result != nil {
				return result, nil
			}
			return nil, apperror.ErrDepositInProgress()
		case !acquired:
			return nil, apperror.ErrDepositInProgress()
		default:
			idempKey = key
			defer func() {
				if idempKey != "" {
					s.releaseKey(ctx, idempKey)
				}
			}()
		}
	}

	now := s.now()
	ref := domain.NewReferenceID("DEP", now)
	charge, err := s.gateway.Charge(ctx, ports.ChargeRequest{
		Purpose:   gateway.PurposeDeposit,
		UserID:    req.UserID,
		Amount:    req.Amount,
		Method:    req.PaymentMethod,
		Reference: ref,
	})
	if err != nil {
		metrics.Deposits.WithLabelValues(metrics.ResultFailed).Inc()
		return nil, apperror.ErrGatewayUnavailable(err)
	}
	if !charge.Approved {
		metrics.Deposits.WithLabelValues(metrics.ResultDeclined).Inc()
		s.log.Info().Str("user_id", req.UserID.String()).Str("reference", ref).Msg("deposit declined")
		return nil, apperror.ErrDepositDeclined()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	result, err := s.Post(ctx, dbTx, ports.LedgerEntry{
		UserID:        req.UserID,
		Amount:        req.Amount,
		Type:          domain.TransactionTypeDeposit,
		PaymentMethod: req.PaymentMethod,
		Description:   "Wallet deposit",
		ReferenceID:   ref,
		Metadata:      map[string]string{metaGatewayTxID: charge.TransactionID},
	})
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	metrics.Deposits.WithLabelValues(metrics.ResultSuccess).Inc()

	if idempKey != "" {
		s.cacheResult(ctx, idempKey, result)
		idempKey = ""
	}

	s.log.Info().
		Str("user_id", req.UserID.String()).
		Str("tx_id", result.Transaction.ID.String()).
		Str("amount", req.Amount.StringFixed(2)).
		Msg("deposit completed")

	notifyQuietly(ctx, s.notifier, s.log, ports.NotifyRequest{
		UserID:       req.UserID,
		Title:        "Deposit successful",
		Message:      fmt.Sprintf("%s %s has been added to your wallet", req.Amount.StringFixed(2), result.Wallet.Currency),
		Type:         domain.NotificationSuccess,
		Priority:     domain.PriorityMedium,
		RelatedModel: domain.RelatedWallet,
		RelatedID:    &result.Transaction.ID,
	})

	return result, nil
}

// RequestWithdrawal records a pending withdrawal. The wallet is debited only
// when staff approve it, but pending requests already reserve their amount so
// the sum of outstanding requests never exceeds the balance.
func (s *LedgerServiceImpl) RequestWithdrawal(ctx context.Context, req ports.WithdrawalRequest) (*domain.Transaction, error) {
	if req.Amount.LessThan(s.cfg.MinWithdrawal) {
		return nil, apperror.ErrInvalidAmount(fmt.Sprintf("Minimum withdrawal amount is %s", s.cfg.MinWithdrawal.String()))
	}

	metadata := map[string]string{}
	if len(req.BankDetails) > 0 {
		raw, err := json.Marshal(req.BankDetails)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("marshal bank details: %w", err))
		}
		enc, err := s.encSvc.Encrypt(string(raw))
		if err != nil {
			return nil, apperror.ErrEncryptionFailure(fmt.Errorf("encrypt bank details: %w", err))
		}
		metadata[metaBankDetails] = enc
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	now := s.now()
	wallet, err := s.lockWallet(ctx, dbTx, req.UserID, now)
	if err != nil {
		return nil, err
	}

	reserved, err := s.txRepo.SumPendingWithdrawals(ctx, dbTx, req.UserID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sum pending withdrawals: %w", err))
	}
	available := wallet.Balance.Sub(reserved)
	if available.LessThan(req.Amount) {
		metrics.Withdrawals.WithLabelValues("rejected").Inc()
		return nil, apperror.ErrInsufficientFunds()
	}

	txn := &domain.Transaction{
		ID:            uuid.New(),
		UserID:        req.UserID,
		WalletID:      wallet.ID,
		Type:          domain.TransactionTypeWithdrawal,
		Amount:        req.Amount,
		BalanceBefore: wallet.Balance,
		BalanceAfter:  wallet.Balance.Sub(req.Amount),
		Status:        domain.TransactionStatusPending,
		ReferenceID:   domain.NewReferenceID("WDR", now),
		PaymentMethod: "bank_transfer",
		Description:   "Withdrawal request",
		Metadata:      metadata,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	metrics.Withdrawals.WithLabelValues(string(domain.TransactionStatusPending)).Inc()

	s.log.Info().
		Str("user_id", req.UserID.String()).
		Str("tx_id", txn.ID.String()).
		Str("amount", req.Amount.StringFixed(2)).
		Msg("withdrawal requested")

	notifyQuietly(ctx, s.notifier, s.log, ports.NotifyRequest{
		UserID:       req.UserID,
		Title:        "Withdrawal requested",
		Message:      fmt.Sprintf("Your withdrawal of %s %s is awaiting review", req.Amount.StringFixed(2), wallet.Currency),
		Type:         domain.NotificationInfo,
		Priority:     domain.PriorityMedium,
		RelatedModel: domain.RelatedWallet,
		RelatedID:    &txn.ID,
	})

	return redactTransaction(txn), nil
}

// ReviewTransaction finalizes a pending transaction. Completing it applies
// the ledger operation under the wallet lock.
func (s *LedgerServiceImpl) ReviewTransaction(ctx context.Context, req ports.ReviewTransactionRequest) (*domain.Transaction, error) {
	switch req.Status {
	case domain.TransactionStatusCompleted, domain.TransactionStatusFailed, domain.TransactionStatusCancelled:
	default:
		return nil, apperror.Validation("status must be one of completed, failed, cancelled")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	txn, err := s.txRepo.GetByIDForUpdate(ctx, dbTx, req.TransactionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock transaction: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("transaction")
	}
	if txn.IsTerminal() {
		return nil, apperror.ErrTransactionFinalized()
	}

	now := s.now()
	if req.Status == domain.TransactionStatusCompleted {
		wallet, err := s.lockWallet(ctx, dbTx, txn.UserID, now)
		if err != nil {
			return nil, err
		}
		before, after, err := wallet.Apply(txn.Amount, txn.Type.Operation())
		if err != nil {
			return nil, mapLedgerError(err)
		}
		wallet.UpdatedAt = now
		if err := s.persistWallet(ctx, dbTx, wallet); err != nil {
			return nil, err
		}
		txn.BalanceBefore, txn.BalanceAfter = before, after
	}

	if txn.Metadata == nil {
		txn.Metadata = map[string]string{}
	}
	txn.Metadata[metaReviewedBy] = req.ReviewerID.String()
	if req.Note != "" {
		txn.Metadata[metaReviewNote] = req.Note
	}
	txn.Status = req.Status
	txn.UpdatedAt = now

	if err := s.txRepo.UpdateStatus(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update transaction: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	if txn.Type == domain.TransactionTypeWithdrawal {
		metrics.Withdrawals.WithLabelValues(string(req.Status)).Inc()
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("reviewer_id", req.ReviewerID.String()).
		Str("status", string(req.Status)).
		Msg("transaction reviewed")

	nType, title := domain.NotificationSuccess, "Transaction completed"
	if req.Status != domain.TransactionStatusCompleted {
		nType, title = domain.NotificationWarning, "Transaction "+string(req.Status)
	}
	notifyQuietly(ctx, s.notifier, s.log, ports.NotifyRequest{
		UserID:       txn.UserID,
		Title:        title,
		Message:      fmt.Sprintf("Your %s of %s was %s", txn.Type, txn.Amount.StringFixed(2), req.Status),
		Type:         nType,
		Priority:     domain.PriorityHigh,
		RelatedModel: domain.RelatedWallet,
		RelatedID:    &txn.ID,
	})

	return redactTransaction(txn), nil
}

func (s *LedgerServiceImpl) ListTransactions(ctx context.Context, filter ports.TransactionFilter) (*ports.TransactionPage, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown transaction type %q", filter.Type))
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown transaction status %q", filter.Status))
	}
	filter.PageRequest = filter.PageRequest.Normalize(defaultPageLimit, maxPageLimit)

	items, total, err := s.txRepo.List(ctx, filter)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	for i := range items {
		items[i] = *redactTransaction(&items[i])
	}
	return &ports.TransactionPage{Items: items, Total: total, Page: filter.PageRequest}, nil
}

// RevealTransaction returns a transaction with its bank details decrypted.
func (s *LedgerServiceImpl) RevealTransaction(ctx context.Context, id uuid.UUID) (*ports.TransactionDetail, error) {
	txn, err := s.txRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get transaction: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("transaction")
	}

	detail := &ports.TransactionDetail{Transaction: redactTransaction(txn)}
	if enc, ok := txn.Metadata[metaBankDetails]; ok {
		plain, err := s.encSvc.Decrypt(enc)
		if err != nil {
			return nil, apperror.ErrEncryptionFailure(fmt.Errorf("decrypt bank details: %w", err))
		}
		if err := json.Unmarshal([]byte(plain), &detail.BankDetails); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("unmarshal bank details: %w", err))
		}
	}
	return detail, nil
}

// lockWallet locks the user's wallet row, creating the wallet inside tx if
// the user has none yet.
func (s *LedgerServiceImpl) lockWallet(ctx context.Context, tx pgx.Tx, userID uuid.UUID, now time.Time) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByUserIDForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet != nil {
		return wallet, nil
	}

	wallet = domain.NewWallet(userID, s.cfg.Currency, now)
	if err := s.walletRepo.Create(ctx, tx, wallet); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
	}
	return wallet, nil
}

func (s *LedgerServiceImpl) persistWallet(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error {
	if err := s.walletRepo.Update(ctx, tx, wallet); err != nil {
		if errors.Is(err, ports.ErrNegativeBalance) {
			return apperror.ErrInsufficientFunds()
		}
		return apperror.InternalError(fmt.Errorf("update wallet: %w", err))
	}
	if err := s.userRepo.SetWalletBalance(ctx, tx, wallet.UserID, wallet.Balance); err != nil {
		return apperror.InternalError(fmt.Errorf("sync user balance: %w", err))
	}
	return nil
}

func (s *LedgerServiceImpl) decodeCached(key string, cached []byte) *ports.LedgerResult {
	var result ports.LedgerResult
	if err := json.Unmarshal(cached, &result); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("unreadable idempotency entry")
		return nil
	}
	return &result
}

// releaseKey frees a reservation whose deposit did not complete.
func (s *LedgerServiceImpl) releaseKey(ctx context.Context, key string) {
	if err := s.idempCache.Release(context.WithoutCancel(ctx), key); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to release idempotency key")
	}
}

func (s *LedgerServiceImpl) cacheResult(ctx context.Context, key string, result *ports.LedgerResult) {
	raw, err := json.Marshal(result)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to marshal idempotent result")
		return
	}
	if err := s.idempCache.Store(ctx, key, raw, idempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to cache idempotent result")
	}
}

func mapLedgerError(err error) error {
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		return apperror.ErrInsufficientFunds()
	case errors.Is(err, domain.ErrNonPositiveAmount):
		return apperror.ErrInvalidAmount("Amount must be positive")
	default:
		return apperror.InternalError(err)
	}
}

// redactTransaction returns a copy without encrypted metadata.
func redactTransaction(t *domain.Transaction) *domain.Transaction {
	if _, ok := t.Metadata[metaBankDetails]; !ok {
		return t
	}
	cp := *t
	cp.Metadata = make(map[string]string, len(t.Metadata))
	for k, v := range t.Metadata {
		if k != metaBankDetails {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
