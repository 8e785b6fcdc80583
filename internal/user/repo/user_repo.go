package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-credential-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-credential-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-credential-go/pkg/utilities"
)

const uniqueViolation pq.ErrorCode = "23505"

const userColumns = `id, username, email, password_hash, role, referral_code, referred_by,
	reset_token_hash, reset_expires_at, otp_verified, email_verified, version, created_at, updated_at`

// UserRepo provides data access for the users table using sqlx.
type UserRepo struct {
	db database.DBTX
}

func NewUserRepo(db database.DBTX) *UserRepo { return &UserRepo{db: db} }

// FindByID fetches a full user row.
func (r *UserRepo) FindByID(ctx context.Context, id string) (*entity.User, error) {
	return r.getOne(ctx, "id=$1", id)
}

// FindByEmail matches case-insensitively (citext column, normalized input).
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.getOne(ctx, "email=$1", NormalizeEmail(email))
}

func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	return r.getOne(ctx, "username=$1", strings.TrimSpace(username))
}

func (r *UserRepo) FindByReferralCode(ctx context.Context, code string) (*entity.User, error) {
	return r.getOne(ctx, "referral_code=$1", strings.TrimSpace(code))
}

func (r *UserRepo) getOne(ctx context.Context, where string, arg any) (*entity.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	var u entity.User
	if err := r.db.GetContext(ctx, &u, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}

// Create inserts a new user row. The ID is generated if empty.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) error {
	if u.ID == "" {
		u.ID = utilities.NewSnowflakeID()
	}
	now := time.Now().UTC()
	u.Email = NormalizeEmail(u.Email)
	u.Version = 1
	u.CreatedAt = now
	u.UpdatedAt = now

	const q = `INSERT INTO users (id, username, email, password_hash, role, referral_code, referred_by,
			reset_token_hash, reset_expires_at, otp_verified, email_verified, version, created_at, updated_at)
		VALUES (:id, :username, :email, :password_hash, :role, :referral_code, :referred_by,
			:reset_token_hash, :reset_expires_at, :otp_verified, :email_verified, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, q, u); err != nil {
		return translateError(err)
	}
	return nil
}

// Update writes the mutable fields guarded by the version column and bumps it.
func (r *UserRepo) Update(ctx context.Context, u *entity.User) error {
	updatedAt := time.Now().UTC()
	const q = `UPDATE users SET password_hash=:password_hash, role=:role,
			reset_token_hash=:reset_token_hash, reset_expires_at=:reset_expires_at,
			otp_verified=:otp_verified, email_verified=:email_verified,
			version=version+1, updated_at=:updated_at
		WHERE id=:id AND version=:version`
	params := map[string]any{
		"id":               u.ID,
		"password_hash":    u.PasswordHash,
		"role":             string(u.Role),
		"reset_token_hash": u.ResetTokenHash,
		"reset_expires_at": u.ResetExpiresAt,
		"otp_verified":     u.OTPVerified,
		"email_verified":   u.EmailVerified,
		"updated_at":       updatedAt,
		"version":          u.Version,
	}
	res, err := r.db.NamedExecContext(ctx, q, params)
	if err != nil {
		return translateError(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if rows == 0 {
		// the caller loaded the row, so 0 rows means someone else wrote first
		return ErrVersionConflict
	}
	u.Version++
	u.UpdatedAt = updatedAt
	return nil
}

// NormalizeEmail lower-cases and trims an address before lookup or insert.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// translateError maps Postgres unique violations onto the ErrDuplicate family.
func translateError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return err
	}
	switch pqErr.Constraint {
	case "users_email_key":
		return ErrDuplicateEmail
	case "users_username_key":
		return ErrDuplicateUsername
	case "users_referral_code_key":
		return ErrDuplicateReferralCode
	case "wallets_user_id_key":
		return ErrDuplicateWallet
	case "referrals_user_id_key":
		return ErrDuplicateReferral
	}
	return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
}
