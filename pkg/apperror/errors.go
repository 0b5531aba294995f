package apperror

import (
	"fmt"
	"net/http"
)

// Kind is the stable, machine-readable class of an error.
type Kind string

const (
	KindAuthentication Kind = "authentication_failure"
	KindAuthorization  Kind = "authorization_failure"
	KindValidation     Kind = "validation_failure"
	KindNotFound       Kind = "not_found"
	KindBusinessRule   Kind = "business_rule_violation"
	KindConflict       Kind = "conflict"
	KindExternal       Kind = "external_failure"
	KindRateLimited    Kind = "rate_limited"
	KindUnavailable    Kind = "unavailable"
	KindInternal       Kind = "internal_error"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Kind       Kind   `json:"error_kind"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, kind Kind, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Kind:       kind,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, kind Kind, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Kind:       kind,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Authentication & Authorization (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", KindAuthentication, "Invalid email or password", http.StatusBadRequest)
}

func ErrMissingToken() *AppError {
	return New("AUTH_002", KindAuthentication, "Authentication token is required", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", KindAuthentication, "Invalid or expired token", http.StatusUnauthorized)
}

func ErrAccountDisabled() *AppError {
	return New("AUTH_004", KindAuthentication, "Account is disabled", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New("AUTH_005", KindAuthorization, "Access denied", http.StatusForbidden)
}

// ---- Users (USR) ----

func ErrEmailExists() *AppError {
	return New("USR_001", KindConflict, "Email is already registered", http.StatusBadRequest)
}

func ErrUsernameExists() *AppError {
	return New("USR_002", KindConflict, "Username is already taken", http.StatusBadRequest)
}

// ---- Wallet & Ledger (WAL) ----

func ErrInsufficientFunds() *AppError {
	return New("WAL_001", KindBusinessRule, "Insufficient wallet balance", http.StatusBadRequest)
}

func ErrInvalidAmount(message string) *AppError {
	return New("WAL_002", KindValidation, message, http.StatusBadRequest)
}

func ErrDepositDeclined() *AppError {
	return New("WAL_003", KindExternal, "Deposit was declined by the payment provider", http.StatusBadRequest)
}

func ErrTransactionFinalized() *AppError {
	return New("WAL_004", KindBusinessRule, "Transaction is already finalized", http.StatusBadRequest)
}

func ErrDepositInProgress() *AppError {
	return New("WAL_005", KindConflict, "A deposit with this idempotency key is still being processed", http.StatusBadRequest)
}

// ---- Orders & Payments (ORD) ----

func ErrProductUnavailable() *AppError {
	return New("ORD_001", KindBusinessRule, "Product is not available", http.StatusBadRequest)
}

func ErrOrderNotPayable() *AppError {
	return New("ORD_002", KindConflict, "Order has already been paid or closed", http.StatusBadRequest)
}

func ErrPaymentDeclined() *AppError {
	return New("ORD_003", KindExternal, "Payment was declined", http.StatusBadRequest)
}

func ErrPaymentInProgress() *AppError {
	return New("ORD_004", KindConflict, "A payment for this order is already in progress", http.StatusBadRequest)
}

func ErrOrderNotRefundable() *AppError {
	return New("ORD_005", KindBusinessRule, "Only paid orders can be refunded", http.StatusBadRequest)
}

func ErrGatewayUnavailable(err error) *AppError {
	return Wrap("ORD_006", KindExternal, "Payment provider is unavailable", http.StatusBadRequest, err)
}

// ---- Coupons (CPN) ----

func ErrInvalidCoupon() *AppError {
	return New("CPN_001", KindBusinessRule, "Coupon is invalid or expired", http.StatusBadRequest)
}

func ErrCouponMinimumNotMet() *AppError {
	return New("CPN_002", KindBusinessRule, "Order amount is below the coupon minimum", http.StatusBadRequest)
}

func ErrCouponNotApplicable() *AppError {
	return New("CPN_003", KindBusinessRule, "Coupon does not apply to this product", http.StatusBadRequest)
}

func ErrCouponExists() *AppError {
	return New("CPN_004", KindConflict, "Coupon code already exists", http.StatusBadRequest)
}

// ---- Resources (RES) ----

func ErrNotFound(entity string) *AppError {
	return New("RES_001", KindNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", KindRateLimited, "Too many requests, please try again later", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrServiceUnavailable(feature string) *AppError {
	return New("SYS_002", KindUnavailable, fmt.Sprintf("%s is not configured", feature), http.StatusServiceUnavailable)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap("SYS_003", KindInternal, "Encryption service failure", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", KindInternal, "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a VAL_001 validation error.
func Validation(message string) *AppError {
	return New("VAL_001", KindValidation, message, http.StatusBadRequest)
}
