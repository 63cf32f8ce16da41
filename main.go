package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civicsync/blob"
	"civicsync/config"
	"civicsync/controllers"
	"civicsync/identity"
	"civicsync/middlewares"
	"civicsync/notify"
	"civicsync/routes"
	"civicsync/services"
	"civicsync/store"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var cleanup []func(context.Context) error
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for i := len(cleanup) - 1; i >= 0; i-- {
			if err := cleanup[i](shutdownCtx); err != nil {
				logger.Warn("shutdown step failed", "error", err)
			}
		}
	}()

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	cleanup = append(cleanup, closeStore)

	var rdb *redis.Client
	var sink notify.Sink = notify.LogSink{Logger: logger}
	if cfg.Redis.Address != "" {
		rdb, err = config.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		cleanup = append(cleanup, func(context.Context) error { return rdb.Close() })
		sink = notify.NewRedisSink(rdb, cfg.Redis.NotificationChannel)
		logger.Info("redis connected", "address", cfg.Redis.Address)
	}

	blobs, err := openBlobStore(ctx, cfg.Blob)
	if err != nil {
		return err
	}
	if closer, ok := blobs.(interface{ Close() error }); ok {
		cleanup = append(cleanup, func(context.Context) error { return closer.Close() })
	}

	opts := services.Options{Store: st, Sink: sink, Logger: logger}
	identities := identity.NewStoreProvider(st, cfg.Auth.BcryptCost)
	accounts := services.NewAccountService(opts, identities)
	issues := services.NewIssueRegistry(opts)
	workOrders := services.NewWorkOrderEngine(opts)
	triage := services.NewTriageService(opts, issues, workOrders)
	applications := services.NewApplicationService(opts, identities)

	if cfg.Admin.Email != "" {
		admin, err := accounts.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password)
		if err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		logger.Info("admin account ready", "account_id", admin.ID)
	}

	h := routes.Handlers{
		Auth: &controllers.AuthController{
			Accounts:     accounts,
			Secret:       cfg.Auth.JWTSecret,
			TTL:          cfg.Auth.TokenTTL,
			SecureCookie: cfg.Server.SecureCookies,
		},
		Issues:       &controllers.IssueController{Issues: issues},
		Triage:       &controllers.TriageController{Triage: triage, WorkOrders: workOrders},
		WorkOrders:   &controllers.WorkOrderController{WorkOrders: workOrders},
		Applications: &controllers.ApplicationController{Applications: applications, Accounts: accounts},
		RequireAuth:  middlewares.AuthMiddleware(cfg.Auth.JWTSecret, accounts, logger),
	}
	if blobs != nil {
		h.Uploads = &controllers.UploadController{Blobs: blobs}
	}
	if rdb != nil {
		h.IssueLimit = middlewares.IssueRateLimiter(rdb, cfg.Redis.IssueLimitPrefix, cfg.Redis.IssueDailyLimit, logger)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middlewares.RequestLogger(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	routes.Register(r, h)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	cleanup = append(cleanup, server.Shutdown)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case err := <-errCh:
		return err
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, func(context.Context) error, error) {
	if cfg.StoreBackend == "memory" {
		logger.Warn("using in-memory store; data is lost on restart")
		return store.NewMemoryStore(), func(context.Context) error { return nil }, nil
	}

	client, db, err := config.ConnectDB(ctx, cfg.Mongo)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("MongoDB connection established", "database", cfg.Mongo.Database)

	indexCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.Timeout)
	defer cancel()
	if err := store.EnsureIndexes(indexCtx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ensure indexes: %w", err)
	}
	return store.NewMongoStore(db, cfg.Mongo.Timeout), client.Disconnect, nil
}

func openBlobStore(ctx context.Context, cfg config.BlobConfig) (blob.Store, error) {
	switch cfg.Backend {
	case "minio":
		s, err := blob.NewMinioStore(ctx, blob.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.MinioPublicURL,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "gcs":
		s, err := blob.NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSCredentialsFile)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, nil
}
