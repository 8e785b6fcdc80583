package entity

import (
	"errors"
	"strings"
	"time"
)

// Role is the account tier stored in users.role.
type Role string

const (
	RoleClient Role = "client"
	RoleTasker Role = "tasker"
	RoleAdmin  Role = "admin"
)

var (
	ErrInvalidRole   = errors.New("invalid role")
	ErrRoleImmutable = errors.New("admin role cannot be switched")
)

// ParseRole normalizes and validates a role name.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleTasker, RoleAdmin:
		return true
	}
	return false
}

// Switched returns the opposite of client/tasker. Admin has no switch target.
func (r Role) Switched() (Role, error) {
	switch r {
	case RoleClient:
		return RoleTasker, nil
	case RoleTasker:
		return RoleClient, nil
	case RoleAdmin:
		return "", ErrRoleImmutable
	}
	return "", ErrInvalidRole
}

// User represents an account row in the `users` table.
// ResetTokenHash and ResetExpiresAt are set together while a recovery OTP is pending.
type User struct {
	ID             string     `db:"id"`
	Username       string     `db:"username"`
	Email          string     `db:"email"`
	PasswordHash   string     `db:"password_hash"`
	Role           Role       `db:"role"`
	ReferralCode   string     `db:"referral_code"`
	ReferredBy     *string    `db:"referred_by"`
	ResetTokenHash *string    `db:"reset_token_hash"`
	ResetExpiresAt *time.Time `db:"reset_expires_at"`
	OTPVerified    bool       `db:"otp_verified"`
	EmailVerified  bool       `db:"email_verified"`
	Version        int64      `db:"version"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// HasPendingReset reports whether an OTP has been issued and not yet consumed.
func (u *User) HasPendingReset() bool {
	return u.ResetTokenHash != nil && u.ResetExpiresAt != nil
}

// ClearReset drops the pending OTP hash and expiry.
func (u *User) ClearReset() {
	u.ResetTokenHash = nil
	u.ResetExpiresAt = nil
}

// Summary is the identity projection returned to callers after a role switch.
type Summary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

func (u *User) Summary() *Summary {
	return &Summary{ID: u.ID, Username: u.Username, Role: u.Role}
}

// Wallet is provisioned once per user with a zero balance.
type Wallet struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Balance   int64     `db:"balance"`
	CreatedAt time.Time `db:"created_at"`
}

// Referral links a new account to the account whose code it signed up with.
type Referral struct {
	ID           string    `db:"id"`
	UserID       string    `db:"user_id"`
	ReferrerID   string    `db:"referrer_id"`
	ReferralCode string    `db:"referral_code"`
	CreatedAt    time.Time `db:"created_at"`
}
