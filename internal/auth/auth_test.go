package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost, 2)
	ctx := context.Background()

	a, err := h.Hash(ctx, "secret")
	require.NoError(t, err)
	b, err := h.Hash(ctx, "secret")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "salt must differ per record")

	ok, err := h.Verify(ctx, a, "secret")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify(ctx, a, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.Verify(ctx, "not-a-hash", "secret")
	assert.Error(t, err)
}

func TestBcryptHasher_OverlongSecretNeverMatches(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost, 1)
	ctx := context.Background()
	pw := strings.Repeat("a", MaxSecretBytes)

	hash, err := h.Hash(ctx, pw)
	require.NoError(t, err)

	ok, err := h.Verify(ctx, hash, pw)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify(ctx, hash, pw+"tail")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBcryptHasher_HonorsCancel(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost, 1)
	require.NoError(t, h.sem.Acquire(context.Background(), 1))
	defer h.sem.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Hash(ctx, "secret")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTokenSigner_RoundTrip(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s, err := NewTokenSigner("k", time.Hour, WithIssuer("pitchfork"), WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	tok, exp, err := s.Sign("42")
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), exp)

	c, err := s.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "42", c.UserID)
	assert.Equal(t, "42", c.Subject)
	assert.Equal(t, "pitchfork", c.Issuer)
	assert.NotEmpty(t, c.ID)

	tok2, _, err := s.Sign("42")
	require.NoError(t, err)
	assert.NotEqual(t, tok, tok2)
}

func TestTokenSigner_Rejects(t *testing.T) {
	now := time.Now()
	s, err := NewTokenSigner("k", time.Hour, WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	tok, _, err := s.Sign("42")
	require.NoError(t, err)

	other, err := NewTokenSigner("other", time.Hour)
	require.NoError(t, err)
	_, err = other.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	now = now.Add(2 * time.Hour)
	_, err = s.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "42"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = s.Parse(none)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewTokenSigner("", time.Hour)
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestCodeGenerators(t *testing.T) {
	ref := regexp.MustCompile(`^[A-Z0-9]{8}$`)
	otp := regexp.MustCompile(`^[0-9]{6}$`)
	for range 50 {
		c, err := ReferralCodeGenerator{}.Generate()
		require.NoError(t, err)
		assert.Regexp(t, ref, c)

		o, err := OTPGenerator{}.Generate()
		require.NoError(t, err)
		assert.Regexp(t, otp, o)
	}
}

func TestAuthenticate(t *testing.T) {
	s, err := NewTokenSigner("k", time.Hour)
	require.NoError(t, err)
	tok, _, err := s.Sign("7")
	require.NoError(t, err)

	var seen string
	h := Authenticate(s, zap.NewNop().Sugar())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserIDFromContext(r.Context())
	}))

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + tok, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + tok, http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, "7", seen)
			} else {
				assert.Empty(t, seen)
			}
		})
	}
}
