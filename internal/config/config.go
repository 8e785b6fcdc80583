// Package config assembles process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/ovaphlow/pitchfork/service-credential-go/internal/notify"
	"github.com/ovaphlow/pitchfork/service-credential-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-credential-go/pkg/utilities"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8431"`
	StoreDriver     string        `env:"STORE_DRIVER" envDefault:"postgres"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`

	Database database.Config
	Log      utilities.Config
	Auth     AuthConfig
	Notify   notify.Config
}

type AuthConfig struct {
	JWTSecret           string        `env:"JWT_SECRET"`
	TokenIssuer         string        `env:"TOKEN_ISSUER" envDefault:"pitchfork-credential"`
	TokenTTL            time.Duration `env:"TOKEN_TTL" envDefault:"1h"`
	OTPTTL              time.Duration `env:"OTP_TTL" envDefault:"10m"`
	ReferralMaxAttempts int           `env:"REFERRAL_MAX_ATTEMPTS" envDefault:"10"`
	BcryptCost          int           `env:"BCRYPT_COST" envDefault:"10"`
	HashWorkers         int           `env:"HASH_WORKERS"`
	AllowAdminSignup    bool          `env:"REGISTRATION_ALLOW_ADMIN"`
	DistinctLoginErrors bool          `env:"LOGIN_DISTINCT_ERRORS"`
}

// Load reads .env (if present) and then the process environment.
func Load() (Config, error) {
	// best-effort: a missing .env is normal outside development
	_ = godotenv.Load()
	return Parse()
}

// Parse reads the process environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case StorePostgres, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StorePostgres, StoreMemory, c.StoreDriver))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.Auth.OTPTTL <= 0 {
		errs = append(errs, errors.New("OTP_TTL must be positive"))
	}
	if c.Auth.ReferralMaxAttempts < 1 {
		errs = append(errs, errors.New("REFERRAL_MAX_ATTEMPTS must be at least 1"))
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be within 4..31, got %d", c.Auth.BcryptCost))
	}
	switch c.Notify.Transport {
	case notify.TransportLog, notify.TransportSMTP, notify.TransportMQTT:
	default:
		errs = append(errs, fmt.Errorf("unknown NOTIFY_TRANSPORT %q", c.Notify.Transport))
	}
	return errors.Join(errs...)
}
