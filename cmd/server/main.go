// @title                       Sweet Shop API
// @version                     1.0
// @description                 Inventory and purchasing API for a sweet shop.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Type "Bearer" followed by a space and the JWT.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/sweetshop/sweet-shop-api/internal/api"
	"github.com/sweetshop/sweet-shop-api/internal/api/handler"
	"github.com/sweetshop/sweet-shop-api/internal/core/service"
	mongorepo "github.com/sweetshop/sweet-shop-api/internal/infrastructure/db/mongo"
	redisstore "github.com/sweetshop/sweet-shop-api/internal/infrastructure/db/redis"
	"github.com/sweetshop/sweet-shop-api/internal/infrastructure/queue"
	"github.com/sweetshop/sweet-shop-api/internal/pkg/config"
	"github.com/sweetshop/sweet-shop-api/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	envFileErr := godotenv.Load()

	ctx := context.Background()
	cfg := config.MustLoad(ctx)

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		File:    cfg.LogFile,
		Service: "sweet-shop-api",
	})
	if envFileErr != nil {
		log.Debug().Msg("no .env file found; relying on existing environment")
	}
	if cfg.FallbackSecret {
		log.Warn().Msg("JWT_SECRET not set; using the development fallback secret")
	}

	// --- Storage ---
	mongoClient, db, err := mongorepo.Connect(ctx, mongorepo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mongodb")
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("mongodb disconnect failed")
		}
	}()

	redisClient, err := redisstore.Connect(ctx, redisstore.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()

	userRepo := mongorepo.NewAuthRepository(db)
	sweetRepo := mongorepo.NewSweetRepository(db)
	movementRepo := mongorepo.NewStockMovementRepository(db)
	if err := mongorepo.EnsureIndexes(ctx, userRepo, sweetRepo, movementRepo); err != nil {
		log.Fatal().Err(err).Msg("failed to create indexes")
	}

	ledger := queue.NewMovementRecorder(cfg.LedgerWorkers, movementRepo, log.With().Str("component", "ledger").Logger())
	ledger.Start()

	// --- Services ---
	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.TokenTTL, log.With().Str("component", "auth").Logger())
	sweetService := service.NewSweetService(
		sweetRepo,
		ledger,
		redisstore.NewCatalogCache(redisClient, cfg.Redis.CacheTTL),
		log.With().Str("component", "inventory").Logger(),
	)

	// --- HTTP ---
	e := api.NewRouter(api.Dependencies{
		AuthService:   authService,
		TokenVerifier: authService,
		SweetService:  sweetService,
		HealthChecks: map[string]handler.DependencyCheck{
			"mongodb": func(ctx context.Context) error { return mongoClient.Ping(ctx, readpref.Primary()) },
			"redis":   func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		},
		Logger:      log,
		CORSOrigins: cfg.CORSOrigins,
	})

	go func() {
		log.Info().Str("addr", cfg.Address()).Str("env", cfg.Env).Msg("sweet shop api listening")
		if err := e.Start(cfg.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	waitForShutdown(log)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
	}
	if err := ledger.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("stock ledger did not drain")
	}
	log.Info().Msg("server stopped")
}

func waitForShutdown(log zerolog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("shutting down")
}
