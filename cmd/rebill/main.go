package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/codeldorado/rebill/internal/api"
	cronapi "github.com/codeldorado/rebill/internal/api/cron"
	v1 "github.com/codeldorado/rebill/internal/api/v1"
	"github.com/codeldorado/rebill/internal/cache"
	"github.com/codeldorado/rebill/internal/config"
	"github.com/codeldorado/rebill/internal/gateway/nmi"
	"github.com/codeldorado/rebill/internal/logger"
	"github.com/codeldorado/rebill/internal/repository/postgres"
	"github.com/codeldorado/rebill/internal/service"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	log, err := logger.NewLogger(cfg)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}

	db, err := postgres.Connect(cfg.Postgres, log)
	if err != nil {
		log.Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	subRepo := postgres.NewSubscriptionRepository(db, log)
	vaultRepo := postgres.NewVaultRepository(db, log)
	txnRepo := postgres.NewTransactionRepository(db, log)

	gatewayClient := nmi.NewClient(cfg.Gateway, txnRepo, log)

	params := service.ServiceParams{
		Logger:          log,
		Config:          cfg,
		SubRepo:         subRepo,
		VaultRepo:       vaultRepo,
		TransactionRepo: txnRepo,
		GatewayClient:   gatewayClient,
	}

	billingService := service.NewBillingService(params)
	vaultService := service.NewVaultService(params)
	paymentService := service.NewPaymentService(params)

	boundaryCache := cache.NewInMemoryCache()

	handlers := api.Handlers{
		Subscription: v1.NewSubscriptionHandler(billingService, boundaryCache, log),
		Vault:        v1.NewVaultHandler(vaultService, log),
		Payment:      v1.NewPaymentHandler(paymentService, log),
		BillingCron:  cronapi.NewBillingCronHandler(billingService, vaultService, log),
	}

	router := api.NewRouter(handlers, cfg, log)

	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.Billing.DueBatchSchedule, func() {
		ctx := context.Background()
		resp, err := billingService.ProcessDue(ctx, time.Now().UTC())
		if err != nil {
			log.Errorw("scheduled due batch failed", "error", err)
			return
		}
		log.Infow("scheduled due batch finished",
			"processed", resp.Processed,
			"succeeded", resp.Succeeded,
			"declined", resp.Declined,
			"failed", resp.Failed)
	})
	if err != nil {
		log.Fatalw("failed to schedule due batch", "schedule", cfg.Billing.DueBatchSchedule, "error", err)
	}

	_, err = scheduler.AddFunc(cfg.Billing.CleanupSchedule, func() {
		ctx := context.Background()
		resp, err := vaultService.CleanupExpired(ctx, time.Now().UTC())
		if err != nil {
			log.Errorw("scheduled vault cleanup failed", "error", err)
			return
		}
		log.Infow("scheduled vault cleanup finished", "deactivated", resp.Deactivated)
	})
	if err != nil {
		log.Fatalw("failed to schedule vault cleanup", "schedule", cfg.Billing.CleanupSchedule, "error", err)
	}

	scheduler.Start()
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: router,
	}

	go func() {
		log.Infow("server starting", "address", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("forced shutdown", "error", err)
	}
	log.Info("server stopped")
}
