package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"dialeval/internal/config"
	"dialeval/internal/db"
	"dialeval/internal/history"
	"dialeval/internal/homework"
	httpSrv "dialeval/internal/http"
	"dialeval/internal/llm"
	"dialeval/internal/migrations"
	"dialeval/internal/rubric"
	"dialeval/internal/storage"
	"dialeval/internal/templates"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	// Run embedded migrations (idempotent)
	migrations.Run(cfg.DatabaseURL)

	// Start services
	dbase := db.MustOpen(cfg.DatabaseURL)
	s3c, err := storage.New(context.Background(), cfg.S3)
	if err != nil {
		log.Fatal(err)
	}
	asq := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	srv := httpSrv.NewServer(&httpSrv.Server{
		DB:        dbase,
		S3:        s3c,
		Asynq:     asq,
		Bus:       homework.NewEventBus(rdb),
		Cfg:       cfg,
		History:   history.NewStore(dbase),
		Templates: templates.NewStore(dbase),
		Jobs:      homework.NewJobStore(dbase),
		LLM: llm.NewClient(
			llm.WithTimeout(cfg.LLM.Timeout),
			llm.WithRateLimit(cfg.LLM.RPS),
			llm.WithLogger(logger),
		),
		Rubric: rubric.Default(),
		Logger: logger,
	})
	logger.Info("api listening", "addr", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
