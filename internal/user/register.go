package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ovaphlow/pitchfork/service-credential-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-credential-go/internal/notify"
	"github.com/ovaphlow/pitchfork/service-credential-go/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-credential-go/internal/user/repo"
)

const maxPasswordBytes = auth.MaxSecretBytes

// RegisterInput is the signup payload.
type RegisterInput struct {
	Role         string `json:"role" validate:"required,oneof=client tasker admin"`
	Username     string `json:"username" validate:"required,max=64"`
	Email        string `json:"email" validate:"required,email,max=254"`
	Password     string `json:"password" validate:"required,max=72"`
	ReferralCode string `json:"referralCode" validate:"omitempty,max=64"`
}

func (in *RegisterInput) normalize() {
	in.Role = strings.ToLower(strings.TrimSpace(in.Role))
	in.Username = strings.TrimSpace(in.Username)
	in.Email = userrepo.NormalizeEmail(in.Email)
	in.ReferralCode = strings.TrimSpace(in.ReferralCode)
}

// Register creates the user, its wallet and (when the referral code resolves)
// the referral link in one transaction, then returns a session token. The
// welcome mail is queued after commit; its failure does not undo the signup.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.normalize()
	if err := s.validate.StructCtx(ctx, in); err != nil {
		return nil, invalidInput(describeValidation(err))
	}
	if len(in.Password) > maxPasswordBytes {
		return nil, invalidInput("password too long")
	}
	role, err := entity.ParseRole(in.Role)
	if err != nil {
		return nil, invalidInput(err.Error())
	}
	if role == entity.RoleAdmin && !s.opts.AllowAdminSignup {
		return nil, fmt.Errorf("%w: admin accounts cannot self-register", ErrForbidden)
	}

	if _, err := s.store.Users().FindByEmail(ctx, in.Email); err == nil {
		return nil, fmt.Errorf("%w: email", ErrConflict)
	} else if !errors.Is(err, userrepo.ErrNotFound) {
		return nil, internalErr("find user", err)
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, internalErr("hash password", err)
	}

	referrer, err := s.resolveReferrer(ctx, in.ReferralCode)
	if err != nil {
		return nil, err
	}

	u, err := s.createAccount(ctx, in, role, hash, referrer)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("user registered", "user_id", u.ID, "role", u.Role, "referred", referrer != nil)

	sess, err := s.issue(u.ID)
	if err != nil {
		// the account is committed; the client can still log in
		s.logger.Errorw("account created but session not issued", "user_id", u.ID, "err", err)
		return nil, err
	}

	welcome := notify.Message{
		To:      u.Email,
		Subject: "SignUp successful",
		Body:    fmt.Sprintf("Dear %s, you've successfully signed up", u.Username),
	}
	if err := s.notifier.Notify(ctx, welcome); err != nil {
		s.logger.Warnw("welcome notification not queued", "user_id", u.ID, "err", err)
	}
	return sess, nil
}

// resolveReferrer looks up the owner of code. An unknown code is ignored.
func (s *UserService) resolveReferrer(ctx context.Context, code string) (*entity.User, error) {
	if code == "" {
		return nil, nil
	}
	ref, err := s.store.Users().FindByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			s.logger.Debugw("referral code not resolved", "code", code)
			return nil, nil
		}
		return nil, internalErr("find referrer", err)
	}
	return ref, nil
}

// createAccount mints a referral code and writes the account. A collision on
// the code, whether seen by the pre-check or by the unique constraint at
// insert time, restarts the transaction with a new candidate.
func (s *UserService) createAccount(ctx context.Context, in RegisterInput, role entity.Role, hash string, referrer *entity.User) (*entity.User, error) {
	for attempt := 1; attempt <= s.opts.ReferralMaxAttempts; attempt++ {
		code, err := s.opts.ReferralCodes.Generate()
		if err != nil {
			return nil, internalErr("generate referral code", err)
		}
		if _, err := s.store.Users().FindByReferralCode(ctx, code); err == nil {
			s.logger.Debugw("referral code collision", "attempt", attempt)
			continue
		} else if !errors.Is(err, userrepo.ErrNotFound) {
			return nil, internalErr("check referral code", err)
		}

		u := &entity.User{
			Username:     in.Username,
			Email:        in.Email,
			PasswordHash: hash,
			Role:         role,
			ReferralCode: code,
		}
		if referrer != nil {
			u.ReferredBy = &referrer.ID
		}

		err = s.store.WithTx(ctx, func(ctx context.Context, tx userrepo.Repos) error {
			if err := tx.Users().Create(ctx, u); err != nil {
				return err
			}
			if err := tx.Wallets().Create(ctx, &entity.Wallet{UserID: u.ID, Balance: 0}); err != nil {
				return fmt.Errorf("provision wallet: %w", err)
			}
			if referrer == nil {
				return nil
			}
			return tx.Referrals().Create(ctx, &entity.Referral{
				UserID:       u.ID,
				ReferrerID:   referrer.ID,
				ReferralCode: code,
			})
		})
		switch {
		case err == nil:
			return u, nil
		case errors.Is(err, userrepo.ErrDuplicateReferralCode):
			s.logger.Debugw("referral code taken at insert", "attempt", attempt)
			continue
		case errors.Is(err, userrepo.ErrDuplicateEmail):
			return nil, fmt.Errorf("%w: email", ErrConflict)
		case errors.Is(err, userrepo.ErrDuplicateUsername):
			return nil, fmt.Errorf("%w: username", ErrConflict)
		default:
			return nil, internalErr("create account", err)
		}
	}
	s.logger.Warnw("referral code space exhausted", "attempts", s.opts.ReferralMaxAttempts)
	return nil, fmt.Errorf("%w: referral code space exhausted after %d attempts", ErrInternal, s.opts.ReferralMaxAttempts)
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
