package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Client ")
	require.NoError(t, err)
	assert.Equal(t, RoleClient, r)

	_, err = ParseRole("owner")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestRoleSwitched(t *testing.T) {
	r, err := RoleClient.Switched()
	require.NoError(t, err)
	assert.Equal(t, RoleTasker, r)

	r, err = r.Switched()
	require.NoError(t, err)
	assert.Equal(t, RoleClient, r)

	_, err = RoleAdmin.Switched()
	assert.ErrorIs(t, err, ErrRoleImmutable)

	_, err = Role("").Switched()
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestUserResetHelpers(t *testing.T) {
	hash := "h"
	exp := time.Now()
	u := &User{ResetTokenHash: &hash, ResetExpiresAt: &exp}
	assert.True(t, u.HasPendingReset())

	u.ClearReset()
	assert.False(t, u.HasPendingReset())
	assert.Nil(t, u.ResetExpiresAt)
}
