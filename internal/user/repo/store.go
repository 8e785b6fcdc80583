package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/ovaphlow/pitchfork/service-credential-go/internal/user/entity"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrDuplicate       = errors.New("duplicate key")

	ErrDuplicateEmail        = fmt.Errorf("%w: email", ErrDuplicate)
	ErrDuplicateUsername     = fmt.Errorf("%w: username", ErrDuplicate)
	ErrDuplicateReferralCode = fmt.Errorf("%w: referral code", ErrDuplicate)
	ErrDuplicateWallet       = fmt.Errorf("%w: wallet", ErrDuplicate)
	ErrDuplicateReferral     = fmt.Errorf("%w: referral", ErrDuplicate)
)

// UserRepository persists user records. Email, username and referral code
// are unique; Create reports a violation with one of the ErrDuplicate* errors.
// Update is optimistic: it fails with ErrVersionConflict when the stored
// version no longer matches u.Version, and bumps u.Version on success.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByUsername(ctx context.Context, username string) (*entity.User, error)
	FindByReferralCode(ctx context.Context, code string) (*entity.User, error)
	Create(ctx context.Context, u *entity.User) error
	Update(ctx context.Context, u *entity.User) error
}

type WalletRepository interface {
	Create(ctx context.Context, w *entity.Wallet) error
	FindByUserID(ctx context.Context, userID string) (*entity.Wallet, error)
}

type ReferralRepository interface {
	Create(ctx context.Context, r *entity.Referral) error
	FindByUserID(ctx context.Context, userID string) (*entity.Referral, error)
}

// Repos groups the repositories that take part in one unit of work.
type Repos interface {
	Users() UserRepository
	Wallets() WalletRepository
	Referrals() ReferralRepository
}

// Store is the credential store: repositories bound to the connection pool
// plus WithTx, which runs fn against repositories sharing one transaction.
// Everything fn wrote is discarded when it returns an error.
type Store interface {
	Repos
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Repos) error) error
}
