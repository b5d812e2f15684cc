package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"finify/internal/cache"
	"finify/internal/cli"
	"finify/internal/currency"
	"finify/internal/display"
	apphttp "finify/internal/http"
	"finify/internal/ledger"
	applog "finify/internal/log"
	"finify/internal/rates"
	"finify/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	be := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := be.Close(); err != nil {
			logger.Error("Failed to close backend", applog.FieldError, err)
		}
	}()

	book, err := ledger.Load(ctx, be.Snapshots, cfg.UserID)
	if err != nil {
		logger.Error("Failed to load ledger", applog.FieldError, err, applog.FieldUserID, cfg.UserID)
		os.Exit(1)
	}
	logger.Info("Ledger loaded", "entries", book.Len(), applog.FieldUserID, cfg.UserID)

	base, _ := currency.ParseCode(cfg.BaseCurrency)

	var fetcher rates.Fetcher = rates.Disabled{}
	if cfg.RatesEnabled() {
		fetcher = rates.NewHTTPFetcher(cfg.ExchangeRateAPIURL, cfg.ExchangeRateAPIKey, nil, cfg.RateFetchTimeout)
	} else {
		logger.Info("Exchange rates disabled - no EXCHANGE_RATE_API_KEY provided")
	}
	provider := rates.NewProvider(
		rates.NewKVCache(be.KV, logger),
		fetcher,
		rates.WithTTL(cfg.RateCacheTTL),
		rates.WithLogger(logger),
	)
	session := display.NewSession(ctx, be.KV, provider, base, logger)

	caches := cache.NewManager(logger)
	entryCache := cache.NewLRUCache[[]services.EntryRow](cfg.ViewCacheSize, cfg.ViewCacheTTL)
	summaryCache := cache.NewLRUCache[[]services.SummaryRow](cfg.ViewCacheSize, cfg.ViewCacheTTL)
	caches.Register("entries", entryCache)
	caches.Register("summaries", summaryCache)
	caches.StartCleanup(cfg.ViewCacheTTL)
	defer caches.Stop()

	views := services.NewViewService(book, currency.NewPresenter(base), session, entryCache, summaryCache)

	checks := map[string]apphttp.ReadinessCheck{}
	if be.Pinger != nil {
		checks["storage"] = be.Pinger.Ping
	}

	origin := uuid.NewString()
	amqpClient := cli.InitAMQP(logger, cfg, cfg.AMQPQueue)

	var entries *services.EntryService
	if amqpClient != nil {
		defer amqpClient.Close()
		checks["amqp"] = func(context.Context) error { return amqpClient.Ping() }
		entries = services.NewEntryService(book, be.Snapshots, amqpClient, cfg.UserID, origin, logger)

		go func() {
			err := amqpClient.ConsumeSnapshotChanged(ctx, entries.HandleSnapshotChanged)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Snapshot change consumption stopped", applog.FieldError, err)
			}
		}()
	} else {
		entries = services.NewEntryService(book, be.Snapshots, nil, cfg.UserID, origin, logger)
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Entries:  entries,
		Views:    views,
		Currency: session,
		Checks:   checks,
		Logger:   logger,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
	}()

	logger.Info("Starting finify server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		applog.FieldCurrency, session.Selected(),
		applog.FieldOrigin, origin)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	logger.Info("Server stopped gracefully")
}
