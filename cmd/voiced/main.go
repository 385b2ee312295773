package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ncecere/open_voice_gateway/internal/app"
	"github.com/ncecere/open_voice_gateway/internal/config"
	"github.com/ncecere/open_voice_gateway/internal/database"
	"github.com/ncecere/open_voice_gateway/internal/httpserver"
	"github.com/ncecere/open_voice_gateway/internal/redisclient"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(config.Options{})
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Postgres and redis are optional; without them history and the shared
	// limiter are disabled.
	var dbPool *pgxpool.Pool
	if cfg.Database.URL != "" {
		if err := database.RunMigrations(ctx, cfg.Database); err != nil {
			log.Fatalf("run migrations: %v", err)
		}
		dbPool, err = database.Connect(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("connect database: %v", err)
		}
		defer dbPool.Close()
	}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = redisclient.New(cfg.Redis)
		if err != nil {
			log.Fatalf("init redis: %v", err)
		}
		if err := redisclient.Ping(ctx, redisClient); err != nil {
			log.Fatalf("connect redis: %v", err)
		}
		defer redisClient.Close()
	}

	container, err := app.NewContainer(ctx, cfg, dbPool, redisClient)
	if err != nil {
		log.Fatalf("build container: %v", err)
	}
	container.Start(ctx)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	server, err := httpserver.New(container)
	if err != nil {
		log.Fatalf("construct server: %v", err)
	}

	container.Logger.Info("listening", "addr", cfg.Server.ListenAddr, "version", cfg.Server.Version)
	if err := server.Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("server stopped: %v", err)
	}
}
