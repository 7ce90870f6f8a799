package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/Guyuepp/feed-like/internal/config"
	"github.com/Guyuepp/feed-like/internal/observability"
	mysqlRepo "github.com/Guyuepp/feed-like/internal/repository/mysql"
	"github.com/Guyuepp/feed-like/internal/repository/mysql/model"
	myRedisCache "github.com/Guyuepp/feed-like/internal/repository/redis"
	"github.com/Guyuepp/feed-like/internal/rest"
	"github.com/Guyuepp/feed-like/internal/rest/middleware"
	"github.com/Guyuepp/feed-like/internal/usecase/like"
	"github.com/Guyuepp/feed-like/internal/workers"
)

const dbRetryIntervalSec = 2

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(cfg.Level())

	shutdownTracing, err := observability.InitTracing(cfg.Tracing())
	if err != nil {
		logrus.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logrus.Errorf("failed to flush traces: %v", err)
		}
	}()

	// prepare database
	var db *gorm.DB
	for i := range cfg.DBMaxRetry {
		db, err = gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{})
		if err != nil {
			logrus.Warnf("failed to open connection to database (attempt %d/%d): %v", i+1, cfg.DBMaxRetry, err)
			db = nil
		} else {
			sqlDB, err := db.DB()
			if err == nil {
				if err = sqlDB.Ping(); err == nil {
					break
				}
				_ = sqlDB.Close()
			}
			logrus.Warnf("failed to ping database (attempt %d/%d): %v", i+1, cfg.DBMaxRetry, err)
			db = nil
		}

		time.Sleep(dbRetryIntervalSec * time.Second)
	}
	if db == nil {
		logrus.Fatal("could not connect to database after retries")
	}
	defer func() {
		sqlDB, err := db.DB()
		if err != nil {
			logrus.Errorf("got error when getting sql.DB from gorm.DB: %v", err)
			return
		}
		if err := sqlDB.Close(); err != nil {
			logrus.Errorf("got error when closing the DB connection: %v", err)
		}
	}()

	if err := db.AutoMigrate(model.Tables()...); err != nil {
		logrus.Fatalf("failed to migrate tables: %v", err)
	}

	// prepare cache
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.CacheAddr(),
		Password: cfg.CachePass,
		DB:       cfg.CacheDB,
	})
	defer func() {
		if err := client.Close(); err != nil {
			logrus.Errorf("got error when closing the cache connection: %v", err)
		}
	}()
	if err := client.Ping(context.Background()).Err(); err != nil {
		// the status cache fails open, so a cold cache is not fatal
		logrus.Warnf("failed to ping cache: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Prepare Repository
	transactor := mysqlRepo.NewTransactor(db)
	likeRepo := mysqlRepo.NewLikeRepository(db)
	feedRepo := mysqlRepo.NewFeedRepository(db)
	statusCache := myRedisCache.NewLikeStatusCache(client)

	// Start worker
	reconciler := workers.NewReconcileLikesWorker(transactor, cfg.ReconcileInterval())
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		reconciler.Start(ctx)
	}()

	// Build service Layer
	likeSvc := like.NewService(transactor, likeRepo, statusCache, reconciler, cfg.CacheTimeout())
	likeHandler := rest.NewFeedLikeHandler(likeSvc, feedRepo)

	// prepare gin
	route := gin.Default()
	route.Use(middleware.SetRequestContextWithTimeout(cfg.RequestTimeout()))
	route.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authorized := route.Group("/")
	authorized.Use(middleware.Identity())
	likeHandler.Register(authorized)

	// Start Server
	srv := &http.Server{
		Addr:    cfg.ServerAddress,
		Handler: route,
	}
	go func() {
		logrus.Infof("Server is running on %s", cfg.ServerAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("listen: %s", err)
		}
	}()

	// shutdown
	<-ctx.Done()
	logrus.Info("Shutdown signal received, stopping server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Waiting for worker to cleanup...")
	<-workerDone

	logrus.Info("Server exiting")
}
