package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/medisync/internal/config"
	"github.com/Skotchmaster/medisync/internal/events"
	"github.com/Skotchmaster/medisync/internal/httpserver"
	"github.com/Skotchmaster/medisync/internal/middleware"
	"github.com/Skotchmaster/medisync/internal/repo"
	"github.com/Skotchmaster/medisync/internal/service"
	"github.com/Skotchmaster/medisync/pkg/db"
	"github.com/Skotchmaster/medisync/pkg/hash"
	"github.com/Skotchmaster/medisync/pkg/logging"
	"github.com/Skotchmaster/medisync/pkg/revocation"
	"github.com/Skotchmaster/medisync/pkg/tokens"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gdb, err := db.Open(initCtx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		cancel()
		log.Fatalf("db init error: %v", err)
	}
	if err := repo.Migrate(gdb); err != nil {
		cancel()
		log.Fatalf("db migrate error: %v", err)
	}

	var registry revocation.Registry
	var redisRegistry *revocation.Redis
	switch cfg.RevocationBackend {
	case config.RevocationRedis:
		redisRegistry, err = revocation.Dial(initCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			cancel()
			log.Fatalf("redis init error: %v", err)
		}
		registry = redisRegistry
	default:
		registry = revocation.NewMemory()
	}
	cancel()

	var publisher events.Publisher = events.Nop{}
	var producer *events.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		publisher = producer
	}

	codec, err := tokens.NewCodec(cfg.JWTSecret)
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	gormRepo := &repo.GormRepo{DB: gdb}
	authHTTP := &httpserver.AuthHTTP{
		Svc: &service.AuthService{
			Repo:    gormRepo,
			Hasher:  hash.NewHasher(cfg.BcryptCost),
			Codec:   codec,
			Revoked: registry,
			Events:  publisher,
		},
	}

	e := echo.New()
	e.HideBanner = true
	httpserver.Register(e, &httpserver.Deps{
		AuthHandler:    authHTTP,
		Gate:           middleware.NewGate(codec, registry),
		DB:             gormRepo,
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		log.Printf("%s listening on %s", cfg.ServiceName, cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := gdb.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if redisRegistry != nil {
		if err := redisRegistry.Close(); err != nil {
			log.Printf("redis close error: %v", err)
		}
	}

	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Printf("kafka close error: %v", err)
		}
	}

	log.Println("shutdown complete")
}
