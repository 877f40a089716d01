package commands

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/nebulium/authcore/cache"
	"github.com/nebulium/authcore/config"
	"github.com/nebulium/authcore/crypto"
	"github.com/nebulium/authcore/data"
	"github.com/nebulium/authcore/data/repository"
	"github.com/nebulium/authcore/events"
	"github.com/nebulium/authcore/handler"
	"github.com/nebulium/authcore/logging/logger"
	"github.com/nebulium/authcore/messaging/email"
	"github.com/nebulium/authcore/messaging/sms"
	"github.com/nebulium/authcore/observes"
	securityjwt "github.com/nebulium/authcore/security/jwt"
	"github.com/nebulium/authcore/security/permission"
	"github.com/nebulium/authcore/security/ratelimit"
	"github.com/nebulium/authcore/service"
	"github.com/nebulium/authcore/structs"
)

// NewServeCommand boots the HTTP service.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg, err := config.Load(file)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}
}

func runServer(parent context.Context, cfg *config.Config) error {
	cleanup, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer cleanup()
	log := logger.StdLogger()
	ctx := context.Background()

	if err := observes.NewSentry(&observes.SentryOptions{
		Dsn:         cfg.Observes.Sentry.Endpoint,
		Name:        cfg.AppName,
		Release:     cfg.Observes.Sentry.Release,
		Environment: cfg.Observes.Sentry.Environment,
		SampleRate:  cfg.Observes.Sentry.SampleRate,
	}); err != nil {
		return fmt.Errorf("failed to init sentry: %w", err)
	}
	defer observes.FlushSentry(2 * time.Second)

	shutdownTracer, err := observes.NewTracer(&observes.TracerOption{
		URL:                cfg.Observes.Tracer.Endpoint,
		Name:               cfg.Observes.Tracer.ServiceName,
		Version:            cfg.Observes.Tracer.ServiceVersion,
		Environment:        cfg.Observes.Tracer.Environment,
		SamplingRate:       cfg.Observes.Tracer.SamplingRate,
		BatchTimeout:       cfg.Observes.Tracer.BatchTimeout,
		ExportTimeout:      cfg.Observes.Tracer.ExportTimeout,
		MaxExportBatchSize: cfg.Observes.Tracer.MaxExportBatchSize,
	})
	if err != nil {
		return fmt.Errorf("failed to init tracer: %w", err)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	d, err := data.New(cfg.Data, log)
	if err != nil {
		return fmt.Errorf("failed to connect storage: %w", err)
	}
	defer func() { _ = d.Close() }()

	repos, err := repository.NewSQL(ctx, d.DB())
	if err != nil {
		return fmt.Errorf("failed to initialize repositories: %w", err)
	}
	if err := seedRoles(ctx, repos); err != nil {
		return fmt.Errorf("failed to seed roles: %w", err)
	}

	mailer, err := email.FromConfig(cfg.Email)
	if err != nil {
		return fmt.Errorf("failed to init email sender: %w", err)
	}
	smsSender, err := newSmsSender(cfg.SMS)
	if err != nil {
		return fmt.Errorf("failed to init sms sender: %w", err)
	}

	dispatcher := events.NewDispatcher()
	sink := events.Sink(dispatcher)
	if cfg.Messaging.IsEnabled() {
		amqpSink, err := events.NewAMQPSink(cfg.Messaging.RabbitMQ.URL, cfg.Messaging.RabbitMQ.Exchange)
		if err != nil {
			return fmt.Errorf("failed to connect event broker: %w", err)
		}
		defer func() { _ = amqpSink.Close() }()
		sink = events.Multi{dispatcher, amqpSink}
	}

	hasher := crypto.NewHasher(cfg.Auth.PasswordHashCost)
	tokenManager := securityjwt.NewTokenManager(cfg.Auth.JWT.Secret, cfg.Auth.JWT.Issuer, cfg.Auth.JWT.Audience)
	limiter := ratelimit.NewLimiter()

	sessionCache := cache.NewCache[structs.Session](d.Redis(), "session")
	sessionService := service.NewSessionService(repos.Sessions, sessionCache, cfg.Auth.JWT.AccessExpiry, log)
	lockoutService := service.NewLockoutService(repos.Users, cfg.Auth.Lockout.Threshold, cfg.Auth.Lockout.Duration, log)
	mfaService := service.NewMfaService(
		repos.Users, repos.BackupCodes, repos.SmsCodes,
		hasher, smsSender,
		cfg.Auth.MFA.TOTPIssuer, cfg.Auth.MFA.SMSCodeLifetime, cfg.Auth.MFA.BackupCodeCount,
		log,
	)
	auditService := service.NewAuditService(repos.Events, repos.Users, sink, log)
	dispatcher.Subscribe(service.NewEscalator(repos.Users, mailer, log).Handle)

	authService := service.NewAuthService(service.AuthServiceParams{
		Users:        repos.Users,
		Roles:        repos.Roles,
		Tokens:       repos.VerificationTokens,
		Sessions:     sessionService,
		Lockout:      lockoutService,
		Mfa:          mfaService,
		Audit:        auditService,
		Hasher:       hasher,
		TokenManager: tokenManager,
		Mailer:       mailer,
		AccessTTL:    cfg.Auth.JWT.AccessExpiry,
		RefreshTTL:   cfg.Auth.JWT.RefreshExpiry,
		BaseURL:      cfg.BaseURL,
		Logger:       log,
	})

	if err := handler.RegisterValidations(); err != nil {
		return fmt.Errorf("failed to register validations: %w", err)
	}

	gin.SetMode(cfg.RunMode)
	r := gin.New()
	h := handler.New(authService, sessionService, mfaService, auditService, d, log)
	h.RegisterRoutes(r, tokenManager, limiter, cfg, log)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: r,
	}

	notifyCtx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		// Periodic limiter sweep bounds memory under key churn.
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-notifyCtx.Done():
				return
			case <-ticker.C:
				limiter.Sweep()
			}
		}
	}()

	go config.Watch(notifyCtx, func(next *config.Config) {
		log.Info(ctx, "configuration reloaded", "app", next.AppName)
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-notifyCtx.Done():
	}

	log.Info(ctx, "server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newSmsSender(cfg *config.SMS) (sms.Sender, error) {
	if cfg != nil && cfg.Provider == "twilio" {
		return sms.NewTwilioSender(&sms.TwilioConfig{
			AccountSID: cfg.Twilio.AccountSID,
			AuthToken:  cfg.Twilio.AuthToken,
			FromNumber: cfg.Twilio.FromNumber,
		})
	}
	return sms.LogSender{}, nil
}

// seedRoles ensures the built-in roles exist. The admin role carries the
// wildcard permission.
func seedRoles(ctx context.Context, repos *repository.Repositories) error {
	builtin := []*structs.Role{
		{Name: "admin", Description: "full access", Permissions: []string{permission.Wildcard}},
		{Name: "security-auditor", Description: "read security telemetry", Permissions: []string{"security:stats:read"}},
		{Name: "user", Description: "standard account", Permissions: []string{}},
	}
	for _, role := range builtin {
		if err := repos.Roles.Upsert(ctx, role); err != nil {
			return err
		}
	}
	return nil
}
