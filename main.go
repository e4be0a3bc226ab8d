package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"gmo-trading-bot/config"
	"gmo-trading-bot/internal/api"
	"gmo-trading-bot/internal/bot"
	"gmo-trading-bot/internal/cache"
	"gmo-trading-bot/internal/database"
	"gmo-trading-bot/internal/events"
	"gmo-trading-bot/internal/gmo"
	"gmo-trading-bot/internal/logging"
	"gmo-trading-bot/internal/metrics"
	"gmo-trading-bot/internal/notification"
	"gmo-trading-bot/internal/performance"
	"gmo-trading-bot/internal/risk"
	"gmo-trading-bot/internal/strategy"
	"gmo-trading-bot/internal/vault"
)

func main() {
	// .env is optional; production deployments set real environment variables.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.LoggingConfig)
	logger.Info().Str("symbol", cfg.TradingConfig.Symbol).Msg("configuration loaded")

	eventBus := events.NewEventBus()
	m := metrics.New()

	// Credentials come from Vault when enabled, otherwise from config/env.
	apiKey := cfg.ExchangeConfig.APIKey
	apiSecret := cfg.ExchangeConfig.APISecret
	if cfg.VaultConfig.Enabled {
		vaultClient, err := vault.NewClient(cfg.VaultConfig)
		if err != nil {
			log.Fatalf("Failed to connect to Vault: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		creds, err := vaultClient.LoadCredentials(ctx)
		cancel()
		if err != nil {
			log.Fatalf("Failed to load credentials from Vault: %v", err)
		}
		apiKey = creds.APIKey
		apiSecret = creds.APISecret
		logger.Info().Msg("exchange credentials loaded from vault")
	}
	if apiKey == "" || apiSecret == "" {
		logger.Warn().Msg("no API credentials configured, private endpoints will fail")
	}

	client := gmo.NewClient(apiKey, apiSecret,
		cfg.ExchangeConfig.PublicBaseURL, cfg.ExchangeConfig.PrivateBaseURL)

	// Persistence is optional; the bot trades fine without a database.
	var repo *database.Repository
	var db *database.DB
	if cfg.DatabaseConfig.Enabled {
		db, err = database.NewDB(database.Config{
			URL:      cfg.DatabaseConfig.URL,
			MaxConns: cfg.DatabaseConfig.MaxConns,
		})
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = db.RunMigrations(ctx)
		cancel()
		if err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		repo = database.NewRepository(db, cfg.TradingConfig.Symbol)
	}

	// Risk state survives restarts via Redis; without it the store
	// degrades to process memory.
	var redisClient *redis.Client
	if cfg.RedisConfig.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
			PoolSize: cfg.RedisConfig.PoolSize,
		})
	}
	riskStore := cache.NewRiskStateStore(redisClient, logger)

	tracker := performance.NewTracker()
	aggregator := strategy.NewAggregator(cfg.StrategyConfig, logger)
	calculator := risk.NewCalculator(cfg.StrategyConfig.Params, cfg.TradingConfig.ATRFallbackFraction)

	guard := risk.NewLossGuard(cfg.GuardConfig)
	guard.OnTrip(func(reason string) {
		eventBus.Publish(events.Event{
			Type: events.EventGuardTripped,
			Data: map[string]interface{}{"reason": reason},
		})
	})
	guard.OnReset(func() {
		eventBus.Publish(events.Event{
			Type: events.EventGuardReset,
			Data: map[string]interface{}{},
		})
	})

	gatekeeper := bot.NewGatekeeper(bot.GatekeeperConfig{
		MinInterval:     cfg.GatekeeperConfig.MinTradeInterval(),
		MinMoveFraction: cfg.GatekeeperConfig.MinMoveFraction,
	}, riskStore, logger)

	reconciler := bot.NewReconciler(bot.ReconcilerConfig{
		MinMoveFraction:        cfg.GatekeeperConfig.MinMoveFraction,
		DefaultStopLossRatio:   cfg.TradingConfig.DefaultStopLossRatio,
		DefaultTakeProfitRatio: cfg.TradingConfig.DefaultTakeProfitRatio,
	}, aggregator, riskStore, logger)

	deps := bot.Deps{
		Client:     client,
		Aggregator: aggregator,
		Risk:       calculator,
		Guard:      guard,
		Gatekeeper: gatekeeper,
		Reconciler: reconciler,
		Tracker:    tracker,
		Levels:     riskStore,
		Bus:        eventBus,
		Metrics:    m,
		Logger:     logger,
	}
	if repo != nil {
		deps.Repo = repo
	}

	engine := bot.NewEngine(bot.EngineConfig{
		Symbol:       cfg.TradingConfig.Symbol,
		Interval:     cfg.TradingConfig.Interval,
		OrderSize:    cfg.TradingConfig.OrderSize,
		SizeStep:     cfg.TradingConfig.SizeStep,
		HistoryBars:  cfg.TradingConfig.HistoryBars,
		LoopInterval: cfg.TradingConfig.LoopInterval(),
		CycleTimeout: cfg.TradingConfig.CycleTimeout(),
	}, deps)

	if cfg.NotificationConfig.Enabled {
		manager := notification.NewManager(true, logger)
		manager.AddNotifier(notification.NewWebhookNotifier(notification.WebhookConfig{
			URL:     cfg.NotificationConfig.WebhookURL,
			Enabled: cfg.NotificationConfig.WebhookURL != "",
			Timeout: time.Duration(cfg.NotificationConfig.TimeoutSeconds) * time.Second,
		}))
		manager.BindBus(eventBus)
		logger.Info().Msg("notifications enabled")
	}

	server := api.NewServer(cfg.ServerConfig, cfg.AuthConfig, cfg.TradingConfig.Symbol, api.Deps{
		Engine:  engine,
		Client:  client,
		Tracker: tracker,
		Repo:    repo,
		Bus:     eventBus,
		Metrics: m,
		Config:  cfg,
		Logger:  logger,
	})

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("Failed to start web server: %v", err)
		}
	}()

	if err := engine.Start(); err != nil {
		log.Fatalf("Failed to start bot: %v", err)
	}

	logger.Info().
		Str("symbol", cfg.TradingConfig.Symbol).
		Int("port", cfg.ServerConfig.Port).
		Msg("bot started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("web server shutdown error")
	}

	engine.Stop()

	if db != nil {
		db.Close()
	}

	logger.Info().Msg("shutdown complete")
}
