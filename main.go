package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/rs24k/captracker/pkg/cache"
	"github.com/rs24k/captracker/pkg/config"
	"github.com/rs24k/captracker/pkg/database"
	"github.com/rs24k/captracker/pkg/discord"
	"github.com/rs24k/captracker/pkg/handlers"
	"github.com/rs24k/captracker/pkg/logging"
	"github.com/rs24k/captracker/pkg/middleware"
	"github.com/rs24k/captracker/pkg/repositories"
	"github.com/rs24k/captracker/pkg/roster"
	"github.com/rs24k/captracker/pkg/runemetrics"
	"github.com/rs24k/captracker/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.String("runemetrics", cfg.RuneMetrics.BaseURL),
		zap.Bool("redis", cfg.Redis.Host != ""),
		zap.Bool("discord", cfg.Discord.BotToken != ""))

	ctx := context.Background()

	// Database
	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := runMigrations(cfg, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Roster cache: Redis when configured, in-memory otherwise.
	var rosterCache cache.Cache
	if cfg.Redis.Host != "" {
		redisClient, err := database.NewRedisClient(&cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() { _ = redisClient.Close() }()
		rosterCache = cache.NewRedisCache(redisClient, "captracker")
	} else {
		memCache := cache.NewMemoryCache(1024)
		memCache.StartCleanup(ctx, time.Minute)
		rosterCache = memCache
	}

	// Upstream clients
	profileClient := runemetrics.NewClient(runemetrics.Options{
		BaseURL:        cfg.RuneMetrics.BaseURL,
		ConnectTimeout: cfg.RuneMetrics.ConnectTimeout,
		Timeout:        cfg.RuneMetrics.Timeout,
	}, logger)
	rosterClient := roster.NewClient(&cfg.Roster, rosterCache, logger)
	notifier := discord.NewClient(&cfg.Discord, logger)

	// Repositories
	clanRepo := repositories.NewClanRepository(db)
	memberRepo := repositories.NewMemberRepository(db)
	ruleRepo := repositories.NewRuleRepository(db)
	activityRepo := repositories.NewActivityRepository(db)
	capRepo := repositories.NewCapRepository(db)
	snapshotRepo := repositories.NewSnapshotRepository(db)

	// Services
	if err := services.SeedRules(ctx, cfg.RulesSeedPath, ruleRepo, logger); err != nil {
		logger.Fatal("Failed to seed rules", zap.Error(err))
	}

	syncService := services.NewSyncService(db, clanRepo, memberRepo, ruleRepo,
		activityRepo, capRepo, snapshotRepo, profileClient, logger)
	promotionService := services.NewPromotionService(clanRepo, memberRepo,
		activityRepo, rosterClient, notifier, logger)
	backfillService := services.NewBackfillService(db, clanRepo, ruleRepo,
		activityRepo, capRepo, logger)

	// Periodically sweep unclassified activities so rules added after
	// ingestion still take effect.
	go backfillLoop(ctx, backfillService, cfg.Sync, logger)

	mux := http.NewServeMux()

	// Register handlers
	healthHandler := handlers.NewHealthHandler(cfg, logger)
	healthHandler.RegisterRoutes(mux)

	refreshHandler := handlers.NewRefreshHandler(&cfg.Sync, clanRepo, memberRepo,
		snapshotRepo, syncService, promotionService, logger)
	refreshHandler.RegisterRoutes(mux)

	clanHandler := handlers.NewClanHandler(clanRepo, memberRepo, capRepo, logger)
	clanHandler.RegisterRoutes(mux)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting captracker", zap.String("addr", addr), zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func runMigrations(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()

	return database.RunMigrations(sqlDB, cfg.MigrationsPath, logger)
}

func backfillLoop(ctx context.Context, backfill services.BackfillService, cfg config.SyncConfig, logger *zap.Logger) {
	ticker := time.NewTicker(cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := backfill.ProcessAllClans(ctx, cfg.BackfillBatchLimit); err != nil {
				logger.Error("Backfill sweep failed", zap.Error(err))
			}
		}
	}
}
