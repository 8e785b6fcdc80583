package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-credential-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-credential-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-credential-go/internal/notify"
	"github.com/ovaphlow/pitchfork/service-credential-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-credential-go/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-credential-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-credential-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-credential-go/pkg/utilities"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "service-credential-go: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// reads .env first when present
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	lg, err := utilities.Init(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = lg.Sync() }()
	sugar := lg.Sugar()
	sugar.Infow("starting service-credential-go", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver, "notify", cfg.Notify.Transport)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, db, err := openStore(ctx, cfg, sugar)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	gw, gwCloser, err := notify.NewGateway(cfg.Notify, sugar)
	if err != nil {
		return fmt.Errorf("notification gateway: %w", err)
	}
	defer gwCloser.Close()
	dispatcher := notify.NewDispatcher(gw, sugar, cfg.Notify.Workers, cfg.Notify.QueueSize)

	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost, cfg.Auth.HashWorkers)
	signer, err := auth.NewTokenSigner(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, auth.WithIssuer(cfg.Auth.TokenIssuer))
	if err != nil {
		return err
	}

	svc := user.NewUserService(store, hasher, signer, dispatcher, sugar, user.Options{
		ReferralMaxAttempts: cfg.Auth.ReferralMaxAttempts,
		AllowAdminSignup:    cfg.Auth.AllowAdminSignup,
		DistinctLoginErrors: cfg.Auth.DistinctLoginErrors,
	})
	recovery := user.NewRecoveryService(store.Users(), hasher, gw, sugar, user.WithOTPTTL(cfg.Auth.OTPTTL))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.RegisterRoutes(sugar, user.NewHandler(svc, recovery, sugar), signer),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	sugar.Info("service is running; press Ctrl+C to stop")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	sugar.Info("shutting down")
	doneCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnw("http server shutdown failed", "err", err)
	}
	if err := dispatcher.Close(doneCtx); err != nil {
		sugar.Warnw("notification queue not drained", "err", err, "failures", dispatcher.Failures())
	}

	sugar.Infow("goodbye", "notifications_sent", dispatcher.Sent(), "notification_failures", dispatcher.Failures())
	return nil
}

// openStore returns the configured credential store. db is nil for the
// memory driver.
func openStore(ctx context.Context, cfg config.Config, logger *zap.SugaredLogger) (userrepo.Store, *sqlx.DB, error) {
	if cfg.StoreDriver == config.StoreMemory {
		logger.Warnw("using in-memory credential store; data is lost on exit")
		return userrepo.NewMemoryStore(), nil, nil
	}

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("db connect: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db.DB); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("database migrations applied")
	}
	return userrepo.NewPostgresStore(db), db, nil
}
