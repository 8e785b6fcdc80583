package user

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-credential-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-credential-go/internal/notify"
	"github.com/ovaphlow/pitchfork/service-credential-go/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-credential-go/internal/user/repo"
)

const testSecret = "test-secret"

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.msgs = append(n.msgs, msg)
	return nil
}

func (n *recordingNotifier) messages() []notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Message(nil), n.msgs...)
}

type recordingGateway struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (g *recordingGateway) Send(_ context.Context, to, subject, body string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	g.sent = append(g.sent, notify.Message{To: to, Subject: subject, Body: body})
	return nil
}

// sequenceCodes returns codes in order, repeating the last one.
type sequenceCodes struct {
	mu    sync.Mutex
	codes []string
	calls int
}

func (s *sequenceCodes) Generate() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.codes) {
		i = len(s.codes) - 1
	}
	s.calls++
	return s.codes[i], nil
}

type fixedCode string

func (c fixedCode) Generate() (string, error) { return string(c), nil }

// blindCodeStore hides existing referral codes from the pre-check so the
// unique constraint is the only thing that catches a collision.
type blindCodeStore struct {
	*userrepo.MemoryStore
}

func (s blindCodeStore) Users() userrepo.UserRepository {
	return blindUsers{UserRepository: s.MemoryStore.Users()}
}

type blindUsers struct {
	userrepo.UserRepository
}

func (blindUsers) FindByReferralCode(context.Context, string) (*entity.User, error) {
	return nil, userrepo.ErrNotFound
}

// failingWalletStore fails every wallet insert inside a transaction.
type failingWalletStore struct {
	*userrepo.MemoryStore
}

var errWalletDown = errors.New("wallet store unavailable")

func (s failingWalletStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx userrepo.Repos) error) error {
	return s.MemoryStore.WithTx(ctx, func(ctx context.Context, tx userrepo.Repos) error {
		return fn(ctx, failingWalletRepos{tx})
	})
}

type failingWalletRepos struct{ userrepo.Repos }

func (r failingWalletRepos) Wallets() userrepo.WalletRepository { return failingWallets{} }

type failingWallets struct{}

func (failingWallets) Create(context.Context, *entity.Wallet) error { return errWalletDown }
func (failingWallets) FindByUserID(context.Context, string) (*entity.Wallet, error) {
	return nil, userrepo.ErrNotFound
}

type fixture struct {
	store    userrepo.Store
	mem      *userrepo.MemoryStore
	hasher   *auth.BcryptHasher
	signer   *auth.TokenSigner
	notifier *recordingNotifier
	svc      *UserService
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	mem := userrepo.NewMemoryStore()
	return newFixtureWithStore(t, mem, mem, opts)
}

func newFixtureWithStore(t *testing.T, store userrepo.Store, mem *userrepo.MemoryStore, opts Options) *fixture {
	t.Helper()
	signer, err := auth.NewTokenSigner(testSecret, time.Hour)
	require.NoError(t, err)
	f := &fixture{
		store:    store,
		mem:      mem,
		hasher:   auth.NewBcryptHasher(bcrypt.MinCost, 4),
		signer:   signer,
		notifier: &recordingNotifier{},
	}
	f.svc = NewUserService(store, f.hasher, signer, f.notifier, zap.NewNop().Sugar(), opts)
	return f
}

func (f *fixture) register(t *testing.T, username, email string) *entity.User {
	t.Helper()
	_, err := f.svc.Register(context.Background(), RegisterInput{
		Role: "client", Username: username, Email: email, Password: "pass-" + username,
	})
	require.NoError(t, err)
	u, err := f.mem.Users().FindByEmail(context.Background(), email)
	require.NoError(t, err)
	return u
}
