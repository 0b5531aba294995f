package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UserRole controls access to privileged endpoints.
type UserRole string

const (
	RoleUser      UserRole = "user"
	RoleAdmin     UserRole = "admin"
	RoleModerator UserRole = "moderator"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleModerator:
		return true
	}
	return false
}

// User is a store customer or staff account.
type User struct {
	ID            uuid.UUID       `json:"id"`
	Username      string          `json:"username"`
	Email         string          `json:"email"`
	PasswordHash  string          `json:"-"`
	Phone         string          `json:"phone,omitempty"`
	WalletBalance decimal.Decimal `json:"wallet_balance"` // cache of Wallet.Balance
	Role          UserRole        `json:"role"`
	IsActive      bool            `json:"is_active"`
	IsVerified    bool            `json:"is_verified"`
	LastLoginAt   *time.Time      `json:"last_login_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Actor returns the identity the user acts under.
func (u *User) Actor() Actor {
	return Actor{UserID: u.ID, Role: u.Role}
}

// Actor is the authenticated identity attached to a request.
type Actor struct {
	UserID uuid.UUID
	Role   UserRole
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// IsStaff reports whether the actor is an admin or a moderator.
func (a Actor) IsStaff() bool {
	return a.Role == RoleAdmin || a.Role == RoleModerator
}

// CanAccess reports whether the actor may read a resource owned by ownerID.
func (a Actor) CanAccess(ownerID uuid.UUID) bool {
	return a.UserID == ownerID || a.IsAdmin()
}
