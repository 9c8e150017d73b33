package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/yashasviy/transaction-ledger-api/api"
	"github.com/yashasviy/transaction-ledger-api/config"
	"github.com/yashasviy/transaction-ledger-api/db"
	"github.com/yashasviy/transaction-ledger-api/ledger"
	"github.com/yashasviy/transaction-ledger-api/logger"
	"github.com/yashasviy/transaction-ledger-api/middleware"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Store: Postgres when configured, otherwise the in-memory store.
	var store ledger.Store
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("postgres connection failed", "error", err)
		}
		defer conn.Close()
		if err := db.Initialize(conn); err != nil {
			log.Fatal("schema initialization failed", "error", err)
		}
		store = ledger.NewPostgresStore(conn, cfg.LockWait)
		log.Info("postgres connected")
	} else {
		store = ledger.NewMemStore(cfg.LockWait)
		log.Warn("DB_URL not set, using in-memory store: state is lost on restart")
	}

	svc := ledger.NewService(store, log)
	server := api.NewServer(svc, log)

	// Transfer response cache: only wired when Redis is configured.
	var transferMiddleware func(http.Handler) http.Handler
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Warn("redis unreachable, idempotency cache disabled", "error", err)
		} else {
			transferMiddleware = middleware.Idempotency(rdb, cfg.IdempotencyTTL, log)
			log.Info("redis connected")
		}
	}

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Router(transferMiddleware),
	}

	go func() {
		log.Info("server listening", "port", cfg.Port, "env", cfg.Env)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
	}
}
