package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/groundwork-cm/groundwork-backend/config"
	"github.com/groundwork-cm/groundwork-backend/internal/auth"
	"github.com/groundwork-cm/groundwork-backend/internal/bootstrap"
	"github.com/groundwork-cm/groundwork-backend/internal/db"
	"github.com/groundwork-cm/groundwork-backend/internal/jobs"
	"github.com/groundwork-cm/groundwork-backend/internal/logging"
	"github.com/groundwork-cm/groundwork-backend/internal/storage"
)

const serviceName = "groundwork-backend"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.App.LogLevel, cfg.App.LogFormat)
	bootstrap.SetGinMode(cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Database.AutoMigrate {
		n, err := db.Migrate(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("migrate: %v", err)
		}
		log.WithField("applied", n).Info("migrations applied")
	}

	database, err := db.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer database.Close()

	rdb, err := bootstrap.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	if rdb == nil {
		log.Warn("REDIS_ADDR not set; tenant cache is in-process only and events are dropped")
	} else {
		defer rdb.Close()
	}

	authenticate, err := authMiddleware(ctx, cfg.Auth)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	var files storage.Presigner = storage.Disabled{}
	if cfg.Storage.Bucket != "" {
		s3, err := storage.Open(ctx, cfg.Storage)
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
		files = s3
	} else {
		log.Warn("S3_BUCKET not set; RFI attachments are disabled")
	}

	services := bootstrap.NewServices(database, rdb, files, cfg.Tenancy)
	go func() {
		if err := services.Resolver.Listen(ctx); err != nil {
			log.WithError(err).Warn("tenant cache invalidation disabled")
		}
	}()

	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled {
		scheduler = jobs.NewScheduler(services.Tenants, services.Bids, services.RFIs)
		if err := scheduler.Register(cfg.Jobs); err != nil {
			log.Fatalf("jobs: %v", err)
		}
		scheduler.Start()
	}

	router := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName:    serviceName,
		Version:        cfg.App.Version,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
		AdminAPIKey:    cfg.Auth.AdminAPIKey,
		Authenticate:   authenticate,
		DB:             database,
		Redis:          rdb,
		Services:       services,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithFields(log.Fields{"port": cfg.Server.Port, "env": cfg.App.Environment}).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown")
	}
}

func authMiddleware(ctx context.Context, cfg config.AuthConfig) (gin.HandlerFunc, error) {
	if cfg.Mode == config.AuthModeHeader {
		log.Warn("AUTH_MODE=header trusts X-User-Id; use only for local development")
		return auth.HeaderAuthMiddleware(), nil
	}
	client, err := auth.InitializeFirebase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return auth.FirebaseAuthMiddleware(client), nil
}
