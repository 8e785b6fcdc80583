package repo

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ovaphlow/pitchfork/service-credential-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-credential-go/pkg/utilities"
)

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// MemoryStore is a process-local Store with the same uniqueness and
// versioning rules as the Postgres schema. WithTx holds the store lock for
// the whole unit of work and swaps in the staged copy only on success.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

func (s *MemoryStore) Users() UserRepository         { return memUsers{memView{store: s}} }
func (s *MemoryStore) Wallets() WalletRepository     { return memWallets{memView{store: s}} }
func (s *MemoryStore) Referrals() ReferralRepository { return memReferrals{memView{store: s}} }

func (s *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.state.clone()
	if err := fn(ctx, memTx{st: staged}); err != nil {
		return err
	}
	s.state = staged
	return nil
}

type memState struct {
	users     map[string]entity.User
	wallets   map[string]entity.Wallet   // by user id
	referrals map[string]entity.Referral // by user id
}

func newMemState() *memState {
	return &memState{
		users:     make(map[string]entity.User),
		wallets:   make(map[string]entity.Wallet),
		referrals: make(map[string]entity.Referral),
	}
}

func (st *memState) clone() *memState {
	c := newMemState()
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.wallets {
		c.wallets[k] = v
	}
	for k, v := range st.referrals {
		c.referrals[k] = v
	}
	return c
}

type memTx struct{ st *memState }

func (t memTx) Users() UserRepository         { return memUsers{memView{st: t.st}} }
func (t memTx) Wallets() WalletRepository     { return memWallets{memView{st: t.st}} }
func (t memTx) Referrals() ReferralRepository { return memReferrals{memView{st: t.st}} }

// memView resolves the state to operate on: the live state under the store
// lock, or a staged state owned by a running WithTx.
type memView struct {
	store *MemoryStore
	st    *memState
}

func (v memView) acquire() (*memState, func()) {
	if v.store == nil {
		return v.st, func() {}
	}
	v.store.mu.Lock()
	return v.store.state, v.store.mu.Unlock
}

type memUsers struct{ memView }

func (r memUsers) FindByID(_ context.Context, id string) (*entity.User, error) {
	st, release := r.acquire()
	defer release()
	u, ok := st.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r memUsers) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	email = NormalizeEmail(email)
	return r.findBy(func(u entity.User) bool { return u.Email == email })
}

func (r memUsers) FindByUsername(_ context.Context, username string) (*entity.User, error) {
	username = strings.TrimSpace(username)
	return r.findBy(func(u entity.User) bool { return u.Username == username })
}

func (r memUsers) FindByReferralCode(_ context.Context, code string) (*entity.User, error) {
	code = strings.TrimSpace(code)
	return r.findBy(func(u entity.User) bool { return u.ReferralCode == code })
}

func (r memUsers) findBy(match func(entity.User) bool) (*entity.User, error) {
	st, release := r.acquire()
	defer release()
	for _, u := range st.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (r memUsers) Create(_ context.Context, u *entity.User) error {
	st, release := r.acquire()
	defer release()

	u.Email = NormalizeEmail(u.Email)
	if err := checkUnique(st, u); err != nil {
		return err
	}
	if u.ID == "" {
		u.ID = utilities.NewSnowflakeID()
	}
	now := time.Now().UTC()
	u.Version = 1
	u.CreatedAt = now
	u.UpdatedAt = now
	st.users[u.ID] = *u
	return nil
}

func (r memUsers) Update(_ context.Context, u *entity.User) error {
	st, release := r.acquire()
	defer release()

	cur, ok := st.users[u.ID]
	if !ok || cur.Version != u.Version {
		return ErrVersionConflict
	}
	next := cur
	next.PasswordHash = u.PasswordHash
	next.Role = u.Role
	next.ResetTokenHash = u.ResetTokenHash
	next.ResetExpiresAt = u.ResetExpiresAt
	next.OTPVerified = u.OTPVerified
	next.EmailVerified = u.EmailVerified
	next.Version++
	next.UpdatedAt = time.Now().UTC()
	st.users[u.ID] = next

	u.Version = next.Version
	u.UpdatedAt = next.UpdatedAt
	return nil
}

func checkUnique(st *memState, u *entity.User) error {
	for id, other := range st.users {
		if id == u.ID {
			return ErrDuplicate
		}
		switch {
		case other.Email == u.Email:
			return ErrDuplicateEmail
		case other.Username == u.Username:
			return ErrDuplicateUsername
		case other.ReferralCode == u.ReferralCode:
			return ErrDuplicateReferralCode
		}
	}
	return nil
}

type memWallets struct{ memView }

func (r memWallets) Create(_ context.Context, w *entity.Wallet) error {
	if w.Balance < 0 {
		return fmt.Errorf("wallet balance must not be negative: %d", w.Balance)
	}
	st, release := r.acquire()
	defer release()
	if _, ok := st.wallets[w.UserID]; ok {
		return ErrDuplicateWallet
	}
	if w.ID == "" {
		w.ID = utilities.NewKSUID()
	}
	w.CreatedAt = time.Now().UTC()
	st.wallets[w.UserID] = *w
	return nil
}

func (r memWallets) FindByUserID(_ context.Context, userID string) (*entity.Wallet, error) {
	st, release := r.acquire()
	defer release()
	w, ok := st.wallets[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &w, nil
}

type memReferrals struct{ memView }

func (r memReferrals) Create(_ context.Context, ref *entity.Referral) error {
	st, release := r.acquire()
	defer release()
	if _, ok := st.referrals[ref.UserID]; ok {
		return ErrDuplicateReferral
	}
	if ref.ID == "" {
		ref.ID = utilities.NewKSUID()
	}
	ref.CreatedAt = time.Now().UTC()
	st.referrals[ref.UserID] = *ref
	return nil
}

func (r memReferrals) FindByUserID(_ context.Context, userID string) (*entity.Referral, error) {
	st, release := r.acquire()
	defer release()
	ref, ok := st.referrals[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &ref, nil
}
