package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-credential-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-credential-go/internal/notify"
	userrepo "github.com/ovaphlow/pitchfork/service-credential-go/internal/user/repo"
)

const defaultOTPTTL = 10 * time.Minute

// RecoveryTicket identifies a pending recovery. The email is the session key
// for the verify and reset steps.
type RecoveryTicket struct {
	Email     string
	ExpiresAt time.Time
}

// RecoveryService runs the password recovery flow for one email at a time:
//
//	Idle -> ForgotPassword -> OTP issued -> VerifyOTP -> verified -> ResetPassword -> Idle
//
// Only the bcrypt hash of the OTP and its absolute expiry are stored.
type RecoveryService struct {
	users  userrepo.UserRepository
	hasher auth.PasswordHasher
	otps   auth.CodeGenerator
	gw     notify.Gateway
	logger *zap.SugaredLogger
	ttl    time.Duration
	now    func() time.Time
}

type RecoveryOption func(*RecoveryService)

func WithOTPTTL(d time.Duration) RecoveryOption {
	return func(s *RecoveryService) {
		if d > 0 {
			s.ttl = d
		}
	}
}

func WithRecoveryClock(now func() time.Time) RecoveryOption {
	return func(s *RecoveryService) { s.now = now }
}

func WithOTPGenerator(g auth.CodeGenerator) RecoveryOption {
	return func(s *RecoveryService) { s.otps = g }
}

func NewRecoveryService(users userrepo.UserRepository, hasher auth.PasswordHasher, gw notify.Gateway, logger *zap.SugaredLogger, opts ...RecoveryOption) *RecoveryService {
	s := &RecoveryService{
		users:  users,
		hasher: hasher,
		otps:   auth.OTPGenerator{},
		gw:     gw,
		logger: logger,
		ttl:    defaultOTPTTL,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ForgotPassword issues a fresh OTP and mails it. Any earlier OTP or
// verification for the same email is superseded.
func (s *RecoveryService) ForgotPassword(ctx context.Context, email string) (*RecoveryTicket, error) {
	email = userrepo.NormalizeEmail(email)
	if email == "" {
		return nil, invalidInput("email is required")
	}
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, internalErr("find user", err)
	}

	otp, err := s.otps.Generate()
	if err != nil {
		return nil, internalErr("generate otp", err)
	}
	hash, err := s.hasher.Hash(ctx, otp)
	if err != nil {
		return nil, internalErr("hash otp", err)
	}
	expires := s.now().UTC().Add(s.ttl)
	u.ResetTokenHash = &hash
	u.ResetExpiresAt = &expires
	u.OTPVerified = false
	if err := s.users.Update(ctx, u); err != nil {
		if errors.Is(err, userrepo.ErrVersionConflict) {
			return nil, fmt.Errorf("%w: concurrent recovery request", ErrConflict)
		}
		return nil, internalErr("store otp", err)
	}

	body := fmt.Sprintf("Your OTP for password reset is: %s. It will expire in the next %s", otp, formatTTL(s.ttl))
	if err := s.gw.Send(ctx, u.Email, "Password Reset OTP", body); err != nil {
		s.logger.Warnw("otp delivery failed", "user_id", u.ID, "err", err)
		return nil, internalErr("send otp", err)
	}
	s.logger.Infow("recovery otp issued", "user_id", u.ID, "expires_at", expires)
	return &RecoveryTicket{Email: u.Email, ExpiresAt: expires}, nil
}

// VerifyOTP checks otp against the pending recovery of email. A code issued
// for another email never matches.
func (s *RecoveryService) VerifyOTP(ctx context.Context, email, otp string) error {
	email = userrepo.NormalizeEmail(email)
	otp = strings.TrimSpace(otp)
	if email == "" || otp == "" {
		return invalidInput("email and otp are required")
	}
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return ErrInvalidOTP
		}
		return internalErr("find user", err)
	}
	if !u.HasPendingReset() || u.ResetExpiresAt.Before(s.now()) {
		return ErrInvalidOTP
	}
	ok, err := s.hasher.Verify(ctx, *u.ResetTokenHash, otp)
	if err != nil {
		return internalErr("verify otp", err)
	}
	if !ok {
		s.logger.Debugw("otp mismatch", "user_id", u.ID)
		return ErrInvalidOTP
	}

	u.ClearReset()
	u.OTPVerified = true
	if err := s.users.Update(ctx, u); err != nil {
		if errors.Is(err, userrepo.ErrVersionConflict) {
			// consumed or superseded by a concurrent request
			return ErrInvalidOTP
		}
		return internalErr("update user", err)
	}
	s.logger.Infow("recovery otp verified", "user_id", u.ID)
	return nil
}

// ResetPassword sets a new password for an email that has just passed
// VerifyOTP. The verification is consumed.
func (s *RecoveryService) ResetPassword(ctx context.Context, email, password string) error {
	email = userrepo.NormalizeEmail(email)
	if email == "" || password == "" {
		return invalidInput("email and password are required")
	}
	if len(password) > maxPasswordBytes {
		return invalidInput("password too long")
	}
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return fmt.Errorf("%w: user not verified for password reset", ErrInvalidState)
		}
		return internalErr("find user", err)
	}
	if !u.OTPVerified {
		return fmt.Errorf("%w: user not verified for password reset", ErrInvalidState)
	}

	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return internalErr("hash password", err)
	}
	u.PasswordHash = hash
	u.OTPVerified = false
	if err := s.users.Update(ctx, u); err != nil {
		if errors.Is(err, userrepo.ErrVersionConflict) {
			return fmt.Errorf("%w: verification already consumed", ErrInvalidState)
		}
		return internalErr("update user", err)
	}
	s.logger.Infow("password reset", "user_id", u.ID)
	return nil
}

func formatTTL(d time.Duration) string {
	if d%time.Minute == 0 {
		return fmt.Sprintf("%dmins", int(d/time.Minute))
	}
	return d.String()
}
