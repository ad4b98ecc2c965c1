// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dgeemedia/business-sub001/internal/config"
	"github.com/dgeemedia/business-sub001/internal/domain/model"
	"github.com/dgeemedia/business-sub001/internal/domain/ports/adapter"
	"github.com/dgeemedia/business-sub001/internal/domain/ports/repository"
	"github.com/dgeemedia/business-sub001/internal/infra/adapters/checkout"
	"github.com/dgeemedia/business-sub001/internal/infra/backend"
	pg "github.com/dgeemedia/business-sub001/internal/infra/db/postgres"
	"github.com/dgeemedia/business-sub001/internal/infra/logging"
	"github.com/dgeemedia/business-sub001/internal/infra/metrics"
	red "github.com/dgeemedia/business-sub001/internal/infra/redis"
	"github.com/dgeemedia/business-sub001/internal/infra/web"
	"github.com/dgeemedia/business-sub001/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = godotenv.Load()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Plan catalog (static configuration data) ----
	plans := make([]*model.Plan, 0, len(cfg.Catalog))
	for _, pc := range cfg.Catalog {
		p, err := model.NewPlan(pc.ID, pc.Name, pc.Amount, pc.Currency, pc.DurationDays)
		if err != nil {
			log.Fatalf("catalog plan %q: %v", pc.ID, err)
		}
		plans = append(plans, p)
	}
	catalog := model.NewPlanCatalog(plans)

	// ---- Outcome store (redis when configured, in-memory otherwise) ----
	var outcomes repository.OutcomeStore
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer redisClient.Close()
		outcomes = red.NewOutcomeStore(redisClient, cfg.Redis.TTL)
	} else {
		logger.Warn().Msg("redis.url not set; outcome dedup is in-memory only")
		outcomes = red.NewMemoryOutcomeStore()
	}

	// ---- Attempt journal (optional) ----
	var attempts repository.AttemptRepository = pg.NoopAttemptRepo{}
	if cfg.Database.URL != "" {
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer pool.Close()
		attempts = pg.NewAttemptRepo(pool)
	}

	// ---- Gateway (one active provider, selected by configuration) ----
	var gateway adapter.Gateway
	var resolver adapter.CheckoutResolver
	switch cfg.Payment.Provider {
	case "paystack":
		g := checkout.NewPaystackGateway(checkout.PaystackConfig{
			PublicKey:        cfg.Payment.Paystack.PublicKey,
			SecretKey:        cfg.Payment.Paystack.SecretKey,
			BootstrapTimeout: cfg.Payment.BootstrapTimeout,
		}, logger)
		gateway, resolver = g, g
	default:
		g := checkout.NewFlutterwaveGateway(checkout.FlutterwaveConfig{
			PublicKey:        cfg.Payment.Flutterwave.PublicKey,
			SecretKey:        cfg.Payment.Flutterwave.SecretKey,
			BootstrapTimeout: cfg.Payment.BootstrapTimeout,
		}, logger)
		gateway, resolver = g, g
	}
	if !gateway.Configured() {
		logger.Warn().Str("provider", gateway.Name()).
			Msg("gateway credential missing or placeholder; all checkouts will use the manual path")
	}

	// ---- Trust boundary client ----
	bc := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Secret, cfg.Backend.Timeout, logger)

	// ---- Session hub + HTTP surface ----
	hub := web.NewSessionHub(func(businessID, businessSlug, customerEmail string) usecase.CheckoutUseCase {
		return usecase.NewCheckoutSession(catalog, gateway, bc, bc, outcomes, attempts, logger, businessID, businessSlug, customerEmail)
	}, logger)
	srv := web.NewServer(hub, resolver, catalog, logger)

	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: srv.Router()}
	go func() {
		logger.Info().Str("addr", server.Addr).Str("provider", gateway.Name()).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
	cancel()
}
