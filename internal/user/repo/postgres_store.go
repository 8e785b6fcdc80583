package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-credential-go/pkg/database"
)

// PostgresStore vends sqlx repositories bound either to the pool or to a
// transaction opened by WithTx.
type PostgresStore struct {
	db *sqlx.DB
	pgRepos
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db, pgRepos: pgRepos{db: db}}
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Repos) error) error {
	return database.WithTx(ctx, s.db, nil, func(ctx context.Context, tx database.DBTX) error {
		return fn(ctx, pgRepos{db: tx})
	})
}

type pgRepos struct {
	db database.DBTX
}

func (r pgRepos) Users() UserRepository         { return NewUserRepo(r.db) }
func (r pgRepos) Wallets() WalletRepository     { return NewWalletRepo(r.db) }
func (r pgRepos) Referrals() ReferralRepository { return NewReferralRepo(r.db) }
