package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8431", cfg.HTTPAddr)
	assert.Equal(t, StorePostgres, cfg.StoreDriver)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 10*time.Minute, cfg.Auth.OTPTTL)
	assert.Equal(t, 10, cfg.Auth.ReferralMaxAttempts)
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
	assert.False(t, cfg.Auth.AllowAdminSignup)
	assert.Equal(t, "log", cfg.Notify.Transport)
	assert.Equal(t, "pitchfork/notifications/email", cfg.Notify.MQTT.Topic)
	assert.Equal(t, 5, cfg.Database.MaxConns)
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("OTP_TTL", "5m")
	t.Setenv("REGISTRATION_ALLOW_ADMIN", "true")
	t.Setenv("NOTIFY_TRANSPORT", "mqtt")
	t.Setenv("NOTIFY_MQTT_QOS", "2")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, 5*time.Minute, cfg.Auth.OTPTTL)
	assert.True(t, cfg.Auth.AllowAdminSignup)
	assert.Equal(t, byte(2), cfg.Notify.MQTT.QoS)
}

func TestParse_Invalid(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("STORE_DRIVER", "mongo")
	t.Setenv("BCRYPT_COST", "99")

	_, err := Parse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "STORE_DRIVER")
	assert.Contains(t, err.Error(), "BCRYPT_COST")
}
