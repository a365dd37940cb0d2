package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"elkayan/docs" // swagger docs
	"elkayan/internal/audit"
	"elkayan/internal/auth"
	"elkayan/internal/cache"
	"elkayan/internal/config"
	"elkayan/internal/db"
	"elkayan/internal/handler"
	"elkayan/internal/notify"
	"elkayan/internal/repository"
	"elkayan/internal/router"
	"elkayan/internal/service"
	"elkayan/internal/validation"
)

// @title EL Kayan API
// @version 1.0
// @description Account registration, sign-in, password reset and profile API for the EL Kayan property app.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey CSRFToken
// @in header
// @name X-CSRF-TOKEN
// @description Anti-forgery token from GET /csrf-token.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		logger.Fatal("database init", zap.Error(err))
	}
	if err := db.Migrate(gormDB, cfg.ResetDB, logger); err != nil {
		logger.Fatal("database migrate", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err != nil {
		logger.Fatal("redis init", zap.Error(err))
	}
	defer func() { _ = redisClient.Close() }()

	// Initialize repositories
	userRepo := repository.NewUserRepository(gormDB)
	tokenRepo := repository.NewResetTokenRepository(gormDB)
	auditRepo := repository.NewAuditRepository(gormDB)

	// Audit trail goes to the log and the audit_entries table off the request path
	dispatcher := audit.NewDispatcher(
		audit.Tee{audit.NewZapSink(logger), audit.NewRepositorySink(auditRepo)},
		cfg.AuditBuffer,
		logger,
	)
	defer dispatcher.Close()
	auditLog := audit.NewLogger(dispatcher, logger)

	var publisher notify.JSONPublisher
	if cfg.AMQPURL != "" {
		amqpPublisher, err := notify.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Fatal("rabbitmq init", zap.Error(err))
		}
		defer func() { _ = amqpPublisher.Close() }()
		publisher = amqpPublisher
	} else {
		logger.Warn("AMQP_URL not set, account mail is written to the log")
		publisher = notify.NewLogPublisher(logger)
	}
	notifier := notify.NewNotifier(publisher)

	// Initialize auth components
	hasher := auth.NewHasher(cfg.PasswordHMACKey, cfg.BcryptCost)
	if !hasher.Configured() {
		logger.Warn("PASSWORD_HMAC_KEY not set, credential operations will fail")
	}
	sessionStore := auth.NewSessionStore(redisClient, cfg.SessionLifetime)
	codec := auth.NewCookieCodec(cfg.SessionSecret, cfg.SessionLifetime)
	validator := validation.New()

	collab := service.Collaborators{
		Audit:    auditLog,
		Notifier: notifier,
		Events:   notifier,
		Sessions: sessionStore,
	}
	opts := service.CredentialOptions{
		AppURL:                 cfg.AppURL,
		ResetTokenTTL:          cfg.ResetTokenTTL,
		RevokeSessionsOnChange: cfg.RevokeSessionsOnPasswordChange,
	}

	// Initialize services
	authService := service.NewAuthService(userRepo, hasher, validator, auditLog)
	passwordService := service.NewPasswordService(userRepo, tokenRepo, hasher, validator, collab, opts)
	profileService := service.NewProfileService(userRepo, tokenRepo, hasher, validator, collab, opts)

	e := echo.New()
	e.HideBanner = true

	// Register routes
	router.Register(e, cfg, logger, sessionStore, codec, router.Handlers{
		Auth:     handler.NewAuthHandler(authService),
		Password: handler.NewPasswordHandler(passwordService),
		Profile:  handler.NewProfileHandler(profileService),
	})

	logger.Info("swagger documentation available", zap.String("url", swaggerURL(cfg.SwaggerHost)))

	go func() {
		addr := ":" + cfg.ServerPort
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// swaggerURL builds the docs URL. host may already carry a scheme.
func swaggerURL(host string) string {
	if host == "" {
		return "http://localhost:8080/swagger/index.html"
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		docs.SwaggerInfo.Host = host
		host = "http://" + host
	} else {
		docs.SwaggerInfo.Host = strings.SplitN(host, "://", 2)[1]
	}
	return strings.TrimRight(host, "/") + "/swagger/index.html"
}
