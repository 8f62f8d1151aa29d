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

	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shineinfo/crm-backend/internal/handler"
	"github.com/shineinfo/crm-backend/internal/infrastructure/logger"
	redisclient "github.com/shineinfo/crm-backend/internal/infrastructure/redis"
	"github.com/shineinfo/crm-backend/internal/infrastructure/secrets"
	"github.com/shineinfo/crm-backend/internal/infrastructure/storage"
	"github.com/shineinfo/crm-backend/internal/infrastructure/webpush"
	"github.com/shineinfo/crm-backend/internal/observability/tracing"
	"github.com/shineinfo/crm-backend/internal/repository"
	"github.com/shineinfo/crm-backend/internal/security"
	"github.com/shineinfo/crm-backend/internal/security/audit"
	"github.com/shineinfo/crm-backend/internal/security/auth"
	"github.com/shineinfo/crm-backend/internal/security/ratelimit"
	"github.com/shineinfo/crm-backend/internal/service"
	"github.com/shineinfo/crm-backend/internal/worker"
	"github.com/shineinfo/crm-backend/pkg/cache"
	"github.com/shineinfo/crm-backend/pkg/config"
	"github.com/shineinfo/crm-backend/pkg/database"
)

const serviceName = "crm-backend"

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel, cfg.LogFormat)
	defer log.Sync()
	log.Info("starting CRM server", zap.String("environment", cfg.Environment))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, log, cfg.OTLPEndpoint, serviceName, cfg.Environment)
	if err != nil {
		log.Fatal("failed to initialize tracing", zap.Error(err))
	}

	// 3. Database, with credentials from Secrets Manager when configured
	if cfg.Database.SecretID != "" {
		if err := applyDatabaseSecret(ctx, cfg, log); err != nil {
			log.Fatal("failed to resolve database credentials", zap.Error(err))
		}
	}
	pool, err := database.NewConnectionPool(ctx, cfg.Database.DSN(), database.PoolConfig{}, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()
	db := pool.GetDB()

	// 4. Redis guards reminder runs and backs the rate limiter; both degrade
	// to in-process behaviour without it.
	redisClient, err := redisclient.NewClient(cfg.RedisURL, log)
	if err != nil {
		log.Warn("redis unavailable, using in-process locks and rate limits", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	// 5. Object storage and push delivery
	objectStore, err := storage.NewS3Storage(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal("failed to initialize object storage", zap.Error(err))
	}
	pushSender := webpush.NewSender(cfg.Push, log)
	if !pushSender.Configured() {
		log.Warn("VAPID keys not set, meeting reminders are disabled")
	}

	// 6. Repositories and services
	employeeRepo := repository.NewPostgresEmployeeRepository(db, log)
	leadRepo := repository.NewPostgresLeadRepository(db, log)
	subRepo := repository.NewPostgresSubscriptionRepository(db, log)
	userRepo := repository.NewPostgresUserRepository(db, log)

	loc, _ := cfg.Reminder.Location()

	var tokens *auth.TokenManager
	if cfg.JWTSecret != "" {
		tokens = auth.NewTokenManager(cfg.JWTSecret, serviceName)
	} else {
		log.Warn("JWT_SECRET not set, API authentication is disabled")
	}
	authService := service.NewAuthService(userRepo, tokens, log)
	if err := authService.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		log.Error("failed to seed admin account", zap.Error(err))
	}

	employeeService := service.NewEmployeeService(employeeRepo, objectStore,
		service.NewReconciler(objectStore, cfg.Storage.Folder, log), log)
	contractService := service.NewContractService(employeeRepo, cache.New[[]byte](64), loc, log)
	leadService := service.NewLeadService(leadRepo, log)
	subscriptionService := service.NewSubscriptionService(subRepo, log)

	dispatcher := worker.NewReminderDispatcher(leadRepo, subRepo, pushSender, redisClient,
		cfg.Reminder.Schedule, cfg.Reminder.LockTTL, loc, log)

	// 7. Security components
	rateLimiter := ratelimit.NewLimiter(redisClient, cfg.RateLimitPerMinute, time.Minute, log)
	defer rateLimiter.Stop()

	checks := map[string]handler.Checker{"database": pool.Health, "redis": nil}
	if redisClient != nil {
		checks["redis"] = redisClient.Ping
	}

	// 8. Routes
	router := handler.NewRouter(handler.Handlers{
		Employees: handler.NewEmployeeHandler(employeeService, int64(cfg.MaxUploadMB)<<20, log),
		Contracts: handler.NewContractHandler(contractService, log),
		Leads:     handler.NewLeadHandler(leadService, log),
		Push:      handler.NewPushHandler(subscriptionService, cfg.Push.VAPIDPublicKey, log),
		Reminders: handler.NewReminderHandler(dispatcher, log),
		Auth:      handler.NewAuthHandler(authService, log),
		Health:    handler.NewHealthHandler(checks, log),
	}, handler.Security{
		Tokens:  tokens,
		Authz:   security.NewAuthorizationService(log),
		Audit:   audit.NewLogger(log),
		Limiter: rateLimiter,
	}, log)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-ID"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           otelhttp.NewHandler(corsHandler.Handler(router), serviceName),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 9. Run the server and the reminder schedule until a signal arrives
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting",
			zap.Int("port", cfg.ServerPort),
			zap.Bool("auth", tokens != nil),
			zap.Int("rate_limit_per_minute", cfg.RateLimitPerMinute),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if cfg.Reminder.Enabled && pushSender.Configured() {
		g.Go(func() error { return dispatcher.Start(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown error", zap.Error(err))
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("tracing shutdown error", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("server stopped")
}

// applyDatabaseSecret replaces the configured database user and password
// with the ones stored in AWS Secrets Manager.
func applyDatabaseSecret(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	if cfg.Database.URL != "" {
		log.Warn("DATABASE_URL is set, ignoring DB_SECRET_ID")
		return nil
	}
	resolver, err := secrets.NewResolver(ctx, cfg.Storage.Region)
	if err != nil {
		return err
	}
	creds, err := resolver.DatabaseCredentials(ctx, cfg.Database.SecretID)
	if err != nil {
		return err
	}
	cfg.Database.User = creds.Username
	cfg.Database.Password = creds.Password
	log.Info("database credentials loaded from secrets manager")
	return nil
}
