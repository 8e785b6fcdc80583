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

// WalletRepo provisions wallets; one per user, enforced by wallets_user_id_key.
type WalletRepo struct {
	db database.DBTX
}

func NewWalletRepo(db database.DBTX) *WalletRepo { return &WalletRepo{db: db} }

func (r *WalletRepo) Create(ctx context.Context, w *entity.Wallet) error {
	if w.Balance < 0 {
		return fmt.Errorf("wallet balance must not be negative: %d", w.Balance)
	}
	if w.ID == "" {
		w.ID = utilities.NewKSUID()
	}
	w.CreatedAt = time.Now().UTC()
	const q = `INSERT INTO wallets (id, user_id, balance, created_at) VALUES (:id, :user_id, :balance, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, q, w); err != nil {
		return translateError(err)
	}
	return nil
}

func (r *WalletRepo) FindByUserID(ctx context.Context, userID string) (*entity.Wallet, error) {
	var w entity.Wallet
	err := r.db.GetContext(ctx, &w, `SELECT id, user_id, balance, created_at FROM wallets WHERE user_id=$1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select wallet: %w", err)
	}
	return &w, nil
}
