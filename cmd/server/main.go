package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fundflow/ledger-service/internal/config"
	"github.com/fundflow/ledger-service/internal/logger"
	"github.com/fundflow/ledger-service/internal/model"
	"github.com/fundflow/ledger-service/internal/money"
	"github.com/fundflow/ledger-service/internal/repo"
	"github.com/fundflow/ledger-service/internal/service"
	httptransport "github.com/fundflow/ledger-service/internal/transport/http"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// 1. load config
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	// 2. init logger
	log, err := logger.New(cfg.Logging.Level)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	// 3. postgres
	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	if err := gdb.AutoMigrate(
		&model.User{}, &model.Project{}, &model.Investment{},
		&model.Transaction{}, &model.Wallet{}, &model.WalletTransaction{},
		&model.OutboxEvent{},
	); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	// 4. redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}

	// 5. kafka writer
	kw := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.LeastBytes{},
	}

	// 6. repo & services
	repository := repo.NewRepository(gdb, rdb, kw, log)
	conv, err := money.NewConverter(cfg.Ledger.ExchangeRates)
	if err != nil {
		log.Fatalf("exchange rates: %v", err)
	}
	rate, err := cfg.Ledger.Rate()
	if err != nil {
		log.Fatalf("commission rate: %v", err)
	}
	wallets := service.NewWalletService(repository, conv, cfg.Ledger.BaseCurrency, log)
	ledger := service.NewLedgerService(repository, wallets, conv, cfg.Ledger.BaseCurrency, log)
	investments := service.NewInvestmentService(repository, wallets, ledger, rate, cfg.Ledger.BaseCurrency, log)

	// 7. gin router
	router := httptransport.NewRouter(httptransport.Services{
		Investments: investments,
		Ledger:      ledger,
		Wallets:     wallets,
	}, cfg.RateLimit, log)

	// 8. serve
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Infof("ledger-server listening on %s", addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("listen: %v", err)
	}
}
