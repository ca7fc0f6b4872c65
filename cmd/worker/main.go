package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"dialeval/internal/config"
	"dialeval/internal/db"
	"dialeval/internal/homework"
	"dialeval/internal/storage"
	"dialeval/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	// Start services
	dbase := db.MustOpen(cfg.DatabaseURL)
	s3c, err := storage.New(context.Background(), cfg.S3)
	if err != nil {
		log.Fatal(err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	srv := &worker.Server{
		DB:     dbase,
		S3:     s3c,
		Jobs:   homework.NewJobStore(dbase),
		Runner: homework.NewRunner(cfg.Homework, cfg.LLM, logger),
		Bus:    homework.NewEventBus(rdb),
		Cfg:    cfg.Homework,
	}
	if err := worker.Run(cfg.RedisAddr, srv); err != nil {
		log.Fatal(err)
	}
}
