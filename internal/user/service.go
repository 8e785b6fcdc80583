package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-credential-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-credential-go/internal/notify"
	"github.com/ovaphlow/pitchfork/service-credential-go/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-credential-go/internal/user/repo"
)

// TokenIssuer signs session tokens for a user id.
type TokenIssuer interface {
	Sign(userID string) (token string, expiresAt time.Time, err error)
}

// Options tunes UserService. Zero values fall back to defaults.
type Options struct {
	ReferralMaxAttempts int
	AllowAdminSignup    bool
	// DistinctLoginErrors reports an unknown email as ErrNotFound instead of
	// ErrUnauthorized.
	DistinctLoginErrors bool
	ReferralCodes       auth.CodeGenerator
	Clock               func() time.Time
}

const defaultReferralMaxAttempts = 10

// Session is a freshly issued token.
type Session struct {
	UserID    string
	Token     string
	ExpiresAt time.Time
}

// UserService orchestrates registration, login, password change and role switch.
type UserService struct {
	store    userrepo.Store
	hasher   auth.PasswordHasher
	tokens   TokenIssuer
	notifier notify.Notifier
	logger   *zap.SugaredLogger
	validate *validator.Validate
	opts     Options
}

func NewUserService(store userrepo.Store, hasher auth.PasswordHasher, tokens TokenIssuer, notifier notify.Notifier, logger *zap.SugaredLogger, opts Options) *UserService {
	if opts.ReferralMaxAttempts <= 0 {
		opts.ReferralMaxAttempts = defaultReferralMaxAttempts
	}
	if opts.ReferralCodes == nil {
		opts.ReferralCodes = auth.ReferralCodeGenerator{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &UserService{
		store:    store,
		hasher:   hasher,
		tokens:   tokens,
		notifier: notifier,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		opts:     opts,
	}
}

func (s *UserService) issue(userID string) (*Session, error) {
	tok, exp, err := s.tokens.Sign(userID)
	if err != nil {
		return nil, internalErr("sign token", err)
	}
	return &Session{UserID: userID, Token: tok, ExpiresAt: exp}, nil
}

// Login authenticates by email and password.
func (s *UserService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, invalidInput("email and password are required")
	}
	if len(password) > maxPasswordBytes {
		return nil, ErrUnauthorized
	}

	u, err := s.store.Users().FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			if s.opts.DistinctLoginErrors {
				return nil, ErrNotFound
			}
			return nil, ErrUnauthorized
		}
		return nil, internalErr("find user", err)
	}

	ok, err := s.hasher.Verify(ctx, u.PasswordHash, password)
	if err != nil {
		return nil, internalErr("verify password", err)
	}
	if !ok {
		s.logger.Debugw("login rejected", "user_id", u.ID)
		return nil, ErrUnauthorized
	}
	return s.issue(u.ID)
}

// ChangePassword replaces the password of an authenticated user after
// checking the current one.
func (s *UserService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if userID == "" || current == "" || next == "" {
		return invalidInput("currentPassword and newPassword are required")
	}
	if len(next) > maxPasswordBytes {
		return invalidInput("password too long")
	}
	if len(current) > maxPasswordBytes {
		return ErrUnauthorized
	}

	u, err := s.findByID(ctx, userID)
	if err != nil {
		return err
	}
	ok, err := s.hasher.Verify(ctx, u.PasswordHash, current)
	if err != nil {
		return internalErr("verify password", err)
	}
	if !ok {
		return ErrUnauthorized
	}

	hash, err := s.hasher.Hash(ctx, next)
	if err != nil {
		return internalErr("hash password", err)
	}
	u.PasswordHash = hash
	if err := s.store.Users().Update(ctx, u); err != nil {
		if errors.Is(err, userrepo.ErrVersionConflict) {
			return ErrConflict
		}
		return internalErr("update user", err)
	}
	s.logger.Infow("password changed", "user_id", u.ID)
	return nil
}

// SwitchRole toggles client and tasker. Admins cannot switch.
func (s *UserService) SwitchRole(ctx context.Context, userID string) (*entity.Summary, error) {
	u, err := s.findByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	next, err := u.Role.Switched()
	if err != nil {
		if errors.Is(err, entity.ErrRoleImmutable) {
			return nil, ErrForbidden
		}
		return nil, internalErr("switch role", err)
	}
	u.Role = next
	if err := s.store.Users().Update(ctx, u); err != nil {
		if errors.Is(err, userrepo.ErrVersionConflict) {
			return nil, ErrConflict
		}
		return nil, internalErr("update user", err)
	}
	s.logger.Infow("role switched", "user_id", u.ID, "role", u.Role)
	return u.Summary(), nil
}

func (s *UserService) findByID(ctx context.Context, id string) (*entity.User, error) {
	u, err := s.store.Users().FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, internalErr("find user", err)
	}
	return u, nil
}
