package auth

import (
	"context"
	"errors"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// PasswordHasher hashes secrets with a per-record salt. Implementations may
// block while waiting for hashing capacity and must honor ctx.
type PasswordHasher interface {
	Hash(ctx context.Context, plain string) (string, error)
	Verify(ctx context.Context, hash, plain string) (bool, error)
}

// MaxSecretBytes is the longest secret bcrypt reads; anything past it is
// ignored by the algorithm.
const MaxSecretBytes = 72

// BcryptHasher implementation. At most workers hash operations run at once.
type BcryptHasher struct {
	cost int
	sem  *semaphore.Weighted
}

func NewBcryptHasher(cost, workers int) *BcryptHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &BcryptHasher{cost: cost, sem: semaphore.NewWeighted(int64(workers))}
}

func (b *BcryptHasher) Hash(ctx context.Context, plain string) (string, error) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer b.sem.Release(1)

	h, err := bcrypt.GenerateFromPassword([]byte(plain), b.cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Verify reports false with a nil error on a plain mismatch. A secret longer
// than MaxSecretBytes never matches, even when its first 72 bytes do.
func (b *BcryptHasher) Verify(ctx context.Context, hash, plain string) (bool, error) {
	if len(plain) > MaxSecretBytes {
		return false, nil
	}
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer b.sem.Release(1)

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}
