// Package main runs the background worker: email delivery and the pending payment sweep.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cyblex/backend/config"
	"github.com/cyblex/backend/internal/payments"
	"github.com/cyblex/backend/internal/worker"
	"github.com/cyblex/backend/pkg/database"
	applog "github.com/cyblex/backend/pkg/logger"
	"github.com/cyblex/backend/pkg/mailer"
	"github.com/cyblex/backend/pkg/queue"
	"github.com/cyblex/backend/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		applog.New("info").Fatal("load config", zap.Error(err))
	}
	logger := applog.New(cfg.Log.Level)
	defer logger.Sync()

	ctx := context.Background()
	rdb, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var sender worker.Sender = worker.LogSender{Logger: logger}
	if cfg.Email.SMTPHost != "" {
		m, err := mailer.New(mailer.Config{
			Host:        cfg.Email.SMTPHost,
			Port:        cfg.Email.SMTPPort,
			Username:    cfg.Email.SMTPUser,
			Password:    cfg.Email.SMTPPass,
			FromAddress: cfg.Email.FromAddress,
			FromName:    cfg.Email.FromName,
		})
		if err != nil {
			logger.Fatal("smtp", zap.Error(err))
		}
		sender = m
	} else {
		logger.Warn("SMTP_HOST not set, emails will only be logged")
	}

	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewEmailProcessor(jobQueue, sender, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)

	var sweeper *worker.PaymentSweeper
	if cfg.PayHere.ExpirePending {
		pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns), logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()

		payhereLogger := applog.Tee(logger, applog.FileConfig{Path: cfg.PayHere.LogFile, MaxBackups: 5, MaxAgeDays: 30}, "payhere")
		paymentService := payments.NewService(payments.NewRepository(pool), payments.Config{
			Merchant:       cfg.PayHere.Merchant(),
			MinAmountCents: cfg.PayHere.MinAmountCents,
			MaxAmountCents: cfg.PayHere.MaxAmountCents,
			PendingTimeout: time.Duration(cfg.PayHere.TimeoutSeconds) * time.Second,
		}, nil, nil, jobQueue, payhereLogger)
		sweeper = worker.NewPaymentSweeper(paymentService, worker.DefaultSweepInterval, payhereLogger)
		if err := sweeper.Start(workerCtx); err != nil {
			logger.Fatal("payment sweeper", zap.Error(err))
		}
	}
	logger.Info("worker started", zap.Bool("payment_sweep", sweeper != nil))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	if sweeper != nil {
		if err := sweeper.Stop(); err != nil {
			logger.Warn("payment sweeper shutdown", zap.Error(err))
		}
	}
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}
