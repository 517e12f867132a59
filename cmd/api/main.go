package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/gatehouse-app/gatehouse/backend/internal/analytics"
	"github.com/gatehouse-app/gatehouse/backend/internal/config"
	"github.com/gatehouse-app/gatehouse/backend/internal/database"
	"github.com/gatehouse-app/gatehouse/backend/internal/janitor"
	"github.com/gatehouse-app/gatehouse/backend/internal/logger"
	"github.com/gatehouse-app/gatehouse/backend/internal/server"
	"github.com/gatehouse-app/gatehouse/backend/internal/services"
	"github.com/gatehouse-app/gatehouse/backend/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Log to both stdout and a rotated file next to the database.
	logDir := filepath.Join(filepath.Dir(cfg.DatabasePath), "logs")
	_ = os.MkdirAll(logDir, 0o755)
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "gatehouse.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	logger.Init(cfg.Environment, io.MultiWriter(os.Stdout, rotator))

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}

	// CLI commands share the service layer with the HTTP API.
	if len(os.Args) > 1 && os.Args[1] == "create-admin" {
		if len(os.Args) != 4 {
			log.Fatalf("Usage: %s create-admin <email> <password>", os.Args[0])
		}
		authSvc := services.NewAuthService(db, cfg.SecretKey)
		if _, err := authSvc.Register(os.Args[2], os.Args[3], "Administrator", "admin"); err != nil {
			log.Fatalf("create admin: %v", err)
		}
		log.Printf("admin account created for %s", os.Args[2])
		return
	}

	var store analytics.Store
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store = analytics.NewRedisStore(client)
		logger.WithFields(map[string]interface{}{"addr": cfg.RedisAddr}).Info("using redis analytics store")
	} else {
		store = analytics.NewMemoryStore()
		logger.Log().Info("using in-process analytics store")
	}
	aggregator := analytics.NewAggregator(db, store, cfg.SecretKey)

	srv, err := server.New(db, cfg, aggregator)
	if err != nil {
		log.Fatalf("build server: %v", err)
	}

	jan := janitor.New(aggregator)
	if err := jan.Start(); err != nil {
		log.Fatalf("start janitor: %v", err)
	}
	defer jan.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithFields(map[string]interface{}{
		"version": version.Full(),
		"port":    cfg.HTTPPort,
	}).Infof("starting %s", version.Name)

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
