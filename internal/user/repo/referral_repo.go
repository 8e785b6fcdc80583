package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ovaphlow/pitchfork/service-credential-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-credential-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-credential-go/pkg/utilities"
)

// ReferralRepo records who referred a new account. Rows are never updated.
type ReferralRepo struct {
	db database.DBTX
}

func NewReferralRepo(db database.DBTX) *ReferralRepo { return &ReferralRepo{db: db} }

func (r *ReferralRepo) Create(ctx context.Context, ref *entity.Referral) error {
	if ref.ID == "" {
		ref.ID = utilities.NewKSUID()
	}
	ref.CreatedAt = time.Now().UTC()
	const q = `INSERT INTO referrals (id, user_id, referrer_id, referral_code, created_at)
		VALUES (:id, :user_id, :referrer_id, :referral_code, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, q, ref); err != nil {
		return translateError(err)
	}
	return nil
}

func (r *ReferralRepo) FindByUserID(ctx context.Context, userID string) (*entity.Referral, error) {
	var ref entity.Referral
	err := r.db.GetContext(ctx, &ref,
		`SELECT id, user_id, referrer_id, referral_code, created_at FROM referrals WHERE user_id=$1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select referral: %w", err)
	}
	return &ref, nil
}
