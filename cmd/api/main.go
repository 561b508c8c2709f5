package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/storefront-session/internal/api/http"
	"github.com/spec-kit/storefront-session/internal/api/http/handlers"
	"github.com/spec-kit/storefront-session/internal/apiclient"
	"github.com/spec-kit/storefront-session/internal/auth"
	"github.com/spec-kit/storefront-session/internal/config"
	"github.com/spec-kit/storefront-session/internal/credstore"
	"github.com/spec-kit/storefront-session/internal/domain"
	"github.com/spec-kit/storefront-session/internal/events"
	"github.com/spec-kit/storefront-session/internal/guard"
	"github.com/spec-kit/storefront-session/internal/observability"
	"github.com/spec-kit/storefront-session/internal/persistence"
	"github.com/spec-kit/storefront-session/internal/session"
	"github.com/spec-kit/storefront-session/internal/worker"
)

const sessionChannel = "storefront:session-changed"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()
	readiness := map[string]handlers.Pinger{}

	var redisConn *persistence.Redis
	if cfg.UsesRedis() {
		redisConn, err = persistence.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		defer redisConn.Close()
		readiness["redis"] = redisConn
	}

	var backend credstore.Backend
	switch cfg.Credentials.Backend {
	case config.BackendRedis:
		backend, err = credstore.NewRedis(redisConn.Client)
	case config.BackendPostgres:
		pg, pgErr := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if pgErr != nil {
			logger.Fatal("failed to connect postgres", zap.Error(pgErr))
		}
		defer pg.Close()
		readiness["postgres"] = pg
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), persistence.DefaultMigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		backend, err = credstore.NewPostgres(pg.PoolHandle())
	default:
		backend = credstore.NewMemory()
	}
	if err != nil {
		logger.Fatal("failed to init credential backend", zap.Error(err))
	}
	logger.Info("credential backend ready", zap.String("backend", cfg.Credentials.Backend))

	stores := credstore.ForDomains(backend, cfg.Credentials.Namespace, logger)
	httpClient := &http.Client{Timeout: cfg.App.RequestTimeout()}
	clients := make(map[domain.Domain]*apiclient.Client, len(stores))
	for _, d := range domain.All() {
		client, err := apiclient.New(apiclient.Options{
			Domain:     d,
			BaseURL:    cfg.Upstream.BaseURL,
			Endpoints:  cfg.Upstream.Endpoints[d],
			HTTPClient: httpClient,
			Store:      stores[d],
			Logger:     logger,
			Metrics:    metrics,
		})
		if err != nil {
			logger.Fatal("failed to build api client", zap.String("domain", string(d)), zap.Error(err))
		}
		clients[d] = client
	}

	var dispatcher events.Dispatcher = events.NewInMemoryDispatcher()
	if cfg.Credentials.RelayEnabled {
		relay := events.NewRedisRelay(redisConn.Client, sessionChannel, dispatcher, logger)
		if err := relay.Start(ctx); err != nil {
			logger.Fatal("failed to start session relay", zap.Error(err))
		}
		defer relay.Close() //nolint:errcheck
		dispatcher = relay
	}

	inspector := auth.NewInspector()
	controller, err := session.NewController(session.Dependencies{
		Clients:    clients,
		Stores:     stores,
		Inspector:  inspector,
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    metrics,
	})
	if err != nil {
		logger.Fatal("failed to build session controller", zap.Error(err))
	}
	audit := worker.StartSessionAuditWorker(controller, logger)
	defer audit.Stop()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:   handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readiness),
		Sessions: handlers.NewSessionHandler(controller),
		Proxy:    handlers.NewProxyHandler(controller),
		Guard:    guard.New(controller),
		Metrics:  metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
