package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"geoattend/internal/audit"
	"geoattend/internal/config"
	"geoattend/internal/logging"
	"geoattend/internal/queue"
	"geoattend/internal/store"
)

// Worker drains queued security events into the audit log.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.QueueBackend == "memory" {
		logger.Info("in-memory queue has no cross-process consumer, nothing to do")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("worker failed", zap.Error(err))
	}
	logger.Info("worker stopped")
}

func run(ctx context.Context, cfg config.App, logger *zap.Logger) error {
	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	q, closeQ, err := queue.Open(queue.Options{
		Backend:      cfg.QueueBackend,
		Redis:        redisClient.Client,
		RedisKey:     audit.QueueKey,
		KafkaBrokers: cfg.KafkaBrokers,
		KafkaTopic:   cfg.KafkaTopic,
		KafkaGroup:   cfg.KafkaGroup,
	}, logger.Named("queue"))
	if err != nil {
		return err
	}
	defer closeQ()

	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}

	events := audit.NewPostgresRepository(db.Client)
	logger.Info("worker started", zap.String("backend", cfg.QueueBackend))
	for msg := range messages {
		if msg.Type != audit.MessageType {
			continue
		}
		evt, err := audit.Decode(msg)
		if err != nil {
			logger.Warn("dropping malformed security event", zap.Error(err))
			continue
		}
		if err := events.Append(ctx, evt); err != nil {
			logger.Error("append security event failed",
				zap.String("user_id", evt.UserID),
				zap.String("kind", string(evt.Kind)),
				zap.Error(err),
			)
			continue
		}
		logger.Debug("security event stored", zap.String("kind", string(evt.Kind)))
	}
	return nil
}
