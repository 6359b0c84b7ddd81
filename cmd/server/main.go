package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	specpkg "github.com/daap14/adminportal/api"
	"github.com/daap14/adminportal/internal/api"
	"github.com/daap14/adminportal/internal/api/handler"
	"github.com/daap14/adminportal/internal/api/middleware"
	"github.com/daap14/adminportal/internal/auth"
	"github.com/daap14/adminportal/internal/config"
	"github.com/daap14/adminportal/internal/credential"
	"github.com/daap14/adminportal/internal/invitation"
	"github.com/daap14/adminportal/internal/metrics"
	"github.com/daap14/adminportal/internal/migrate"
	"github.com/daap14/adminportal/internal/notify"
	"github.com/daap14/adminportal/internal/otp"
	"github.com/daap14/adminportal/internal/password"
	"github.com/daap14/adminportal/internal/session"
	"github.com/daap14/adminportal/internal/submission"
	"github.com/daap14/adminportal/internal/sweeper"
	"github.com/daap14/adminportal/internal/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := runMigrations(ctx, pool); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		slog.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	issuer, err := token.NewIssuer(cfg.JWTSecret)
	if err != nil {
		slog.Error("failed to create token issuer", "error", err)
		os.Exit(1)
	}
	hasher := password.NewHasher(cfg.BcryptCost)

	var (
		revocations session.RevocationList
		limiter     session.LoginLimiter
		cachePinger handler.Pinger
	)
	if cfg.RedisURL != "" {
		client, err := newRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer client.Close() //nolint:errcheck
		revocations = session.NewRedisRevocationList(client)
		limiter = session.NewRedisLoginLimiter(client, cfg.LoginMaxAttempts, cfg.LoginLockout)
		cachePinger = handler.PingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() })
		slog.Info("redis session revocation and login throttle enabled")
	}

	sender := newSender(ctx, cfg)

	admins := auth.NewAdminRepository(pool)
	users := auth.NewUserRepository(pool)

	authService := auth.NewService(admins, users, hasher, issuer, auth.Options{
		SessionTTL:      cfg.SessionTTL,
		AdminSessionTTL: cfg.AdminSessionTTL,
		RehashLegacy:    cfg.RehashLegacyPasswords,
		Limiter:         limiter,
	})
	otpEngine := otp.NewEngine(otp.NewRepository(pool), hasher, time.Now)
	credentialService := credential.NewService(admins, users, otpEngine, credential.NewStore(pool), hasher, sender,
		credential.Options{
			OTPTTL:            cfg.OTPTTL,
			ResetTTL:          cfg.ResetOTPTTL,
			MinPasswordLength: cfg.MinPasswordLength,
		})
	invitationEngine := invitation.NewEngine(invitation.NewRepository(pool), users, hasher, invitation.Options{
		TTL:               cfg.InviteTTL,
		MinPasswordLength: cfg.MinPasswordLength,
	})
	submissionService := submission.NewService(submission.NewRepository(pool), sender, cfg.ContactInbox)

	router := api.NewRouter(api.RouterDeps{
		DBPinger:          pool,
		CachePinger:       cachePinger,
		Version:           cfg.Version,
		OpenAPISpec:       specpkg.OpenAPISpec,
		Sessions:          session.NewManager(issuer, revocations, cfg.CookieSecure),
		Authenticator:     authService,
		Users:             authService,
		Credentials:       credentialService,
		Invitations:       invitationEngine,
		Submissions:       submissionService,
		Sender:            sender,
		FrontendURL:       cfg.FrontendURL,
		MinPasswordLength: cfg.MinPasswordLength,
		CORSOrigins:       cfg.CORSAllowedOrigins,
		RateLimiter:       middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.TrustProxyHeaders),
		MetricsHandler:    metrics.Handler(),
	})

	sw := sweeper.New(otpEngine, invitationEngine, cfg.SweepInterval, cfg.InviteRetention)
	go sw.Start(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting admin portal server", "port", cfg.Port, "version", cfg.Version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig.String())
	case err := <-serverErr:
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(logHandler))
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close() //nolint:errcheck

	applied, err := migrate.NewManager(db).Up(ctx)
	if err != nil {
		return err
	}
	if len(applied) > 0 {
		slog.Info("applied migrations", "migrations", applied)
	}
	return nil
}

func newRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}

func newSender(ctx context.Context, cfg *config.Config) notify.Sender {
	if !cfg.MailEnabled() {
		slog.Warn("mail delivery not configured; emails will be logged without content")
		return notify.LogSender{}
	}
	return notify.NewGraphSender(ctx, notify.GraphConfig{
		TenantID:     cfg.MailTenantID,
		ClientID:     cfg.MailClientID,
		ClientSecret: cfg.MailClientSecret,
		SenderUserID: cfg.MailSenderUserID,
	})
}
