package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/octobees/provider-directory/internal/auth"
	"github.com/octobees/provider-directory/internal/cache"
	"github.com/octobees/provider-directory/internal/catalog"
	"github.com/octobees/provider-directory/internal/config"
	"github.com/octobees/provider-directory/internal/database"
	"github.com/octobees/provider-directory/internal/handler"
	"github.com/octobees/provider-directory/internal/logging"
	middlewarepkg "github.com/octobees/provider-directory/internal/middleware"
	"github.com/octobees/provider-directory/internal/repository"
	"github.com/octobees/provider-directory/internal/router"
	"github.com/octobees/provider-directory/internal/service"
	"github.com/octobees/provider-directory/internal/upstream"
)

const serviceName = "provider-directory"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(serviceName, cfg.Env, cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		pool  *pgxpool.Pool
		repo  repository.ProvidersRepository
		store *catalog.Store
	)
	if cfg.DatabaseURL != "" {
		pool, err = database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}
		repo = repository.NewPGXProvidersRepository(pool)
	}

	source, err := catalogSource(cfg, repo)
	if err != nil {
		log.Fatal().Err(err).Str("catalog_source", cfg.CatalogSource).Msg("failed to configure catalogue")
	}
	store = catalog.NewStore(source, cfg.CatalogRefresh)
	if _, err := store.Snapshot(ctx); err != nil {
		// Searches answer 503 until a later refresh succeeds.
		log.Warn().Err(err).Str("source", source.Name()).Msg("initial catalogue load failed")
	}

	resultCache := cache.Cache(cache.Noop{})
	if cfg.RedisAddr != "" {
		client, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, search cache disabled")
		} else {
			defer client.Close()
			resultCache = cache.NewRedisCache(client)
		}
	}

	opts := []service.DirectoryOption{service.WithResultCache(resultCache, cfg.SearchCacheTTL)}
	if repo != nil {
		opts = append(opts, service.WithProvidersRepository(repo, service.NewContactNormalizer(cfg.PhoneRegion)))
	}
	directoryService := service.NewDirectoryService(store, opts...)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	authService := service.NewAuthService(cfg.AdminEmail, cfg.AdminPasswordHash, jwtManager)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middlewarepkg.RequestID())
	e.Use(middlewarepkg.Logging(log.Logger))
	e.Use(echoMiddleware.Recover())

	router.Register(e, cfg, jwtManager, router.Handlers{
		Directory: handler.NewDirectoryHandler(directoryService, service.NewPromptService()),
		Auth:      handler.NewAuthHandler(authService, int(jwtManager.TTL().Seconds())),
		Admin:     handler.NewAdminUploadHandler(directoryService),
	})

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("catalog_source", source.Name()).Msg("starting server")
		serverErr <- e.Start(":" + cfg.Port)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
		return
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func catalogSource(cfg *config.Config, repo repository.ProvidersRepository) (catalog.Source, error) {
	switch cfg.CatalogSource {
	case config.SourcePostgres:
		if repo == nil {
			return nil, errors.New("postgres catalogue requires DATABASE_URL")
		}
		return catalog.NewRepositorySource(repo), nil
	case config.SourceUpstream:
		client, err := upstream.NewClient(nil, cfg.UpstreamBaseURL)
		if err != nil {
			return nil, err
		}
		return catalog.NewUpstreamSource(client), nil
	default:
		return catalog.NewStaticSource(cfg.CatalogFile), nil
	}
}
