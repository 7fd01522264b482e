// Command jdue-server runs the JDue HTTP API, the reminder scheduler and the ops gRPC listener.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/and161185/jdue/internal/config"
	"github.com/and161185/jdue/internal/limiter"
	"github.com/and161185/jdue/internal/logging"
	"github.com/and161185/jdue/internal/metrics"
	"github.com/and161185/jdue/internal/migrate"
	"github.com/and161185/jdue/internal/notify"
	"github.com/and161185/jdue/internal/reminder"
	"github.com/and161185/jdue/internal/repository/postgres"
	grpcserver "github.com/and161185/jdue/internal/server/grpc"
	httpserver "github.com/and161185/jdue/internal/server/http"
	"github.com/and161185/jdue/internal/service"
	"github.com/and161185/jdue/internal/session"
	"github.com/and161185/jdue/internal/webauthn"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(2)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Dev)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("opsAddr", cfg.OpsAddr),
		zap.String("timezone", cfg.Timezone),
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DSN, logger); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}

	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	m := metrics.New()
	loc := cfg.Location()

	// Repositories
	users := postgres.NewUserRepo(db)
	creds := postgres.NewCredentialRepo(db)
	challenges := postgres.NewChallengeRepo(db)
	projects := postgres.NewProjectRepo(db)
	tasks := postgres.NewTaskRepo(db)
	notifications := postgres.NewNotificationRepo(db)

	lim := limiter.NewPG(db.Pool, cfg.Login)
	issuer := session.NewIssuer([]byte(cfg.JWTKey), cfg.SessionTTL)
	verifier := webauthn.NewVerifier(webauthn.Config{
		RPID:         cfg.RPID,
		RPName:       cfg.RPName,
		Origin:       cfg.RPOrigin,
		ChallengeTTL: cfg.ChallengeTTL,
	}, creds, users, challenges, logger.Named("webauthn"), m)

	// Services
	authSvc := service.NewAuthService(users, projects, issuer, lim, logger.Named("auth"))
	passkeySvc := service.NewPasskeyService(verifier, creds, users, issuer, logger.Named("passkeys"))
	adminSvc := service.NewAdminService(users, projects, logger.Named("admin"))

	if cfg.AdminUser != "" {
		if err := adminSvc.Bootstrap(ctx, cfg.AdminUser, cfg.AdminPassword); err != nil {
			return fmt.Errorf("admin bootstrap: %w", err)
		}
	}

	handler := httpserver.NewRouter(httpserver.Deps{
		Auth:          authSvc,
		Passkeys:      passkeySvc,
		Projects:      service.NewProjectService(projects),
		Tasks:         service.NewTaskService(tasks, loc, logger.Named("tasks"), m),
		Admin:         adminSvc,
		Notifications: service.NewNotificationService(notifications),
		Sessions:      issuer,
		Accounts:      users,
		Metrics:       m,
		Log:           logger.Named("http"),
		CORSOrigins:   cfg.CORSOrigins,
		RateLimit:     cfg.RateLimit,
		Location:      loc,
		Version:       version,
	})
	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var opsOpts []grpc.ServerOption
	if cfg.TLSCert != "" {
		tc, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return fmt.Errorf("load TLS cert/key: %w", err)
		}
		opsOpts = append(opsOpts, grpc.Creds(tc))
	}
	ops := grpcserver.NewOps(logger.Named("ops"), m, cfg.Dev, opsOpts...)
	opsLis, err := net.Listen("tcp", cfg.OpsAddr)
	if err != nil {
		return fmt.Errorf("listen ops: %w", err)
	}

	sched := reminder.NewScheduler(tasks,
		notify.Multi{notify.NewLog(logger.Named("notify")), notify.NewOutbox(notifications)},
		logger.Named("reminders"), m, cfg.ReminderInterval)
	sched.OnState = ops.SetReminders

	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = sched.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		purgeChallenges(ctx, challenges, cfg.ChallengeTTL, logger)
	}()

	go func() {
		logger.Info("ops listening", zap.String("addr", cfg.OpsAddr))
		if err := ops.Serve(opsLis); err != nil {
			errCh <- fmt.Errorf("ops server: %w", err)
		}
	}()
	go func() {
		var err error
		if cfg.TLSCert != "" {
			logger.Info("listening (TLS)", zap.String("addr", cfg.Addr))
			err = httpSrv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			logger.Info("listening", zap.String("addr", cfg.Addr))
			err = httpSrv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	ops.Stop(shutdownTimeout)
	wg.Wait()
	return runErr
}

// purgeChallenges drops expired WebAuthn challenges every ttl until ctx ends.
func purgeChallenges(ctx context.Context, store *postgres.ChallengeRepo, ttl time.Duration, log *zap.Logger) {
	t := time.NewTicker(ttl)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := store.PurgeExpired(ctx, now)
			switch {
			case err != nil && ctx.Err() == nil:
				log.Warn("purge expired challenges", zap.Error(err))
			case n > 0:
				log.Debug("purged expired challenges", zap.Int64("count", n))
			}
		}
	}
}
