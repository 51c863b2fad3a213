package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/bankmore/ledger/internal/config"
	"github.com/bankmore/ledger/internal/domain"
	"github.com/bankmore/ledger/internal/eventbus"
	"github.com/bankmore/ledger/internal/logging"
	"github.com/bankmore/ledger/internal/repository"
	"github.com/bankmore/ledger/internal/service/settlement"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init("settlement-worker", cfg.LogLevel, cfg.AppEnv)

	db, err := connectDB(cfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	publisher := eventbus.NewKafkaPublisher(cfg.KafkaBrokers)
	defer publisher.Close()

	consumer := eventbus.NewConsumer(cfg.KafkaBrokers, cfg.SettlementGroupID, domain.TopicTransfers, logger)
	defer consumer.Close()

	svc := settlement.NewService(
		repository.NewAccountRepository(db),
		repository.NewMovementRepository(db),
		repository.NewFeeRepository(db),
		repository.NewSettlementRepository(db),
		publisher,
		db,
		decimal.NewFromFloat(cfg.SettlementFee),
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("settlement worker started",
		"brokers", cfg.KafkaBrokers,
		"group_id", cfg.SettlementGroupID,
		"settlement_fee", cfg.SettlementFee,
	)

	if err := consumer.Run(ctx, svc.HandleMessage); err != nil {
		slog.Error("consumer error", "error", err)
		os.Exit(1)
	}
	slog.Info("settlement worker stopped")
}

func connectDB(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connectDB: %w", err)
	}

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetimeS) * time.Second)
	db.SetConnMaxIdleTime(time.Duration(cfg.DBConnMaxIdleTimeS) * time.Second)

	for i := range 30 {
		if err = db.Ping(); err == nil {
			return db, nil
		}
		slog.Info("waiting for database", "attempt", i+1)
		time.Sleep(time.Second)
	}

	db.Close()
	return nil, fmt.Errorf("connectDB: gave up after 30 attempts: %w", err)
}
