package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"vault-trading-bot/config"
	"vault-trading-bot/internal/api"
	"vault-trading-bot/internal/cache"
	"vault-trading-bot/internal/chain"
	"vault-trading-bot/internal/database"
	"vault-trading-bot/internal/logging"
	"vault-trading-bot/internal/market"
	"vault-trading-bot/internal/reconciler"
	sigengine "vault-trading-bot/internal/signal"
	"vault-trading-bot/internal/subscription"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not up yet; this is the one unstructured exit.
		panic(err)
	}

	logger := logging.New(logging.Config{
		Level:  cfg.LoggingConfig.Level,
		Pretty: cfg.LoggingConfig.Pretty,
	})
	logger.Info().Msg("starting vault trading bot")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Signal cache, optional.
	var signalCache sigengine.Cache
	if cfg.RedisConfig.Enabled {
		cacheSvc, err := cache.NewService(cache.Config{
			Enabled:  cfg.RedisConfig.Enabled,
			Address:  cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
			PoolSize: cfg.RedisConfig.PoolSize,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("cache setup failed")
		}
		defer cacheSvc.Close()
		signalCache = cacheSvc
	}

	// Candle feed and signal engine.
	feed := market.NewClient(cfg.MarketConfig.APIKey, cfg.MarketConfig.SecretKey, cfg.MarketConfig.TestNet, logger)
	signalCfg := sigengine.Config{
		Timeframes:          cfg.SignalConfig.Timeframes,
		TrendWeights:        cfg.SignalConfig.TrendWeights,
		EntryWeights:        cfg.SignalConfig.EntryWeights,
		ConfidenceThreshold: cfg.SignalConfig.ConfidenceThreshold,
		TakeProfitPct:       cfg.SignalConfig.TakeProfitPercent,
		StopLossPct:         cfg.SignalConfig.StopLossPercent,
	}
	if err := signalCfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("signal configuration invalid")
	}
	signals := sigengine.NewService(
		feed, signalCfg, signalCache,
		time.Duration(cfg.SignalConfig.TimeframeTimeoutSec)*time.Second,
		logger,
	)

	// Subscription store: PostgreSQL when configured, in-memory otherwise.
	var gateStore subscription.Store = subscription.NewMemoryStore()
	var repo *database.Repository
	if cfg.DatabaseConfig.Enabled {
		db, err := database.NewDB(database.Config{
			Host:     cfg.DatabaseConfig.Host,
			Port:     cfg.DatabaseConfig.Port,
			User:     cfg.DatabaseConfig.User,
			Password: cfg.DatabaseConfig.Password,
			Database: cfg.DatabaseConfig.Database,
			SSLMode:  cfg.DatabaseConfig.SSLMode,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("database setup failed")
		}
		defer db.Close()
		if err := db.RunMigrations(ctx); err != nil {
			logger.Fatal().Err(err).Msg("database migrations failed")
		}
		repo = database.NewRepository(db)
		gateStore = repo
	} else {
		logger.Warn().Msg("database disabled, subscriptions held in memory")
	}
	gateLimits := subscription.Limits{
		FreeLifetime: cfg.SubscriptionConfig.FreeLifetimeLimit,
	}
	if len(cfg.SubscriptionConfig.DailyTradeLimits) > 0 {
		gateLimits.DailyByTier = make(map[subscription.PlanTier]int, len(cfg.SubscriptionConfig.DailyTradeLimits))
		for tier, limit := range cfg.SubscriptionConfig.DailyTradeLimits {
			gateLimits.DailyByTier[subscription.PlanTier(tier)] = limit
		}
	}
	gate := subscription.NewGate(gateStore, gateLimits, logger)

	// On-chain reconciler, optional.
	var recon *reconciler.Reconciler
	if cfg.ChainConfig.Enabled {
		chainClient, err := chain.NewClient(ctx, chain.Config{
			RPCURL:          cfg.ChainConfig.RPCURL,
			VaultAddress:    cfg.ChainConfig.VaultAddress,
			ExchangeAddress: cfg.ChainConfig.ExchangeAddress,
			CallTimeout:     cfg.ChainConfig.CallTimeoutSec,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("chain client setup failed")
		}
		defer chainClient.Close()

		recon = reconciler.New(chainClient, chainClient, chainClient, reconciler.Config{
			PollInterval: cfg.ChainConfig.PollInterval(),
			GhostTimeout: cfg.ChainConfig.GhostTimeout(),
			VaultAccount: common.HexToAddress(cfg.ChainConfig.VaultAddress),
		}, logger)

		for _, pos := range cfg.ChainConfig.Positions {
			recon.Register(ctx, reconciler.Key{
				Wallet:          common.HexToAddress(pos.Wallet),
				IndexToken:      common.HexToAddress(pos.IndexToken),
				CollateralToken: common.HexToAddress(pos.CollateralToken),
			})
		}

		if repo != nil {
			go persistDriftEvents(ctx, recon, repo, logger)
		}
	} else {
		logger.Warn().Msg("chain reader disabled, position reconciliation off")
	}

	var signalStore api.SignalStore
	if repo != nil {
		signalStore = repo
	}
	server := api.NewServer(api.ServerConfig{
		Port:           cfg.ServerConfig.Port,
		Host:           cfg.ServerConfig.Host,
		ProductionMode: cfg.ServerConfig.ProductionMode,
		AllowOrigins:   cfg.ServerConfig.AllowedOrigins,
	}, signals, recon, gate, signalStore, logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.Error().Err(err).Msg("server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("vault trading bot stopped")
}

// persistDriftEvents records every ghost or stuck classification so drift
// history survives restarts.
func persistDriftEvents(ctx context.Context, recon *reconciler.Reconciler, repo *database.Repository, logger zerolog.Logger) {
	reports := recon.Subscribe()
	defer recon.Unsubscribe(reports)

	for {
		select {
		case <-ctx.Done():
			return
		case report, ok := <-reports:
			if !ok {
				return
			}
			if report.State != reconciler.StateActiveGhost && report.State != reconciler.StateStuck {
				continue
			}
			if err := repo.SavePositionEvent(ctx, report); err != nil {
				logger.Error().Err(err).Msg("position event write failed")
			}
		}
	}
}
