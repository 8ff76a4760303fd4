package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/segmentio/kafka-go"

	"github.com/playerledger/wallet-service/internal/config"
	"github.com/playerledger/wallet-service/internal/logger"
	"github.com/playerledger/wallet-service/internal/repo"
	"github.com/playerledger/wallet-service/internal/service"
	"github.com/playerledger/wallet-service/internal/store"
	httptransport "github.com/playerledger/wallet-service/internal/transport/http"
)

func main() {
	// 1. load config
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	// 2. init logger
	log, err := logger.NewLogger()
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	// 3. storage: bootstrap schema, own the primary connection
	provider := store.NewProvider(store.Config{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
	}, log)
	if err := provider.Initialize(context.Background()); err != nil {
		log.Fatalf("initialize store: %v", err)
	}
	defer func() {
		if err := provider.Shutdown(); err != nil {
			log.Errorf("shutdown store: %v", err)
		}
	}()

	// 4. kafka writer for outbox events
	kw := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.LeastBytes{},
	}

	// 5. repo & service
	repository := repo.NewRepository(provider, kw, log)
	svc := service.NewWalletService(repository, log)

	// 6. gin router
	router := httptransport.NewRouter(svc, cfg.RateLimit, log)

	// 7. serve
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Infof("wallet-server listening on %s", addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("listen: %v", err)
	}
}
