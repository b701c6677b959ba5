package server

import (
	"context"
	"net/http"
	"time"

	"products-api/internal/config"
	"products-api/internal/database"
	custommiddleware "products-api/internal/middleware"
	"products-api/internal/repository"
	"products-api/internal/service"
	"products-api/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	pool   *database.Pool
	db     database.Querier
	redis  *redis.Client
}

// NewServer wires the product API on top of pool. A nil redisClient disables rate limiting.
func NewServer(cfg *config.Config, logger *zap.Logger, pool *database.Pool, redisClient *redis.Client) *Server {
	router := NewRouter(cfg, logger, pool, pool.Stats, redisClient)

	return &Server{
		Server: &http.Server{
			Addr:         cfg.Server.Address(),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		pool:   pool,
		db:     pool,
		redis:  redisClient,
	}
}

// NewRouter builds the middleware chain and registers every route against db.
func NewRouter(cfg *config.Config, logger *zap.Logger, db database.Querier, stats func() database.PoolStats, redisClient *redis.Client) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(middleware.Compress(5))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins))

	if redisClient != nil {
		router.Use(custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "products_api_rate_limit",
		}, logger))
	}

	executor := database.NewExecutor(cfg.Database.QueryTimeout, logger)

	productRepo := repository.NewProductRepository(db, executor, logger)
	productService := service.NewProductService(productRepo, logger)

	productHandler := transport.NewProductHandler(productService, logger, cfg.Server.VerboseErrors)
	diagnosticsHandler := transport.NewDiagnosticsHandler(db, executor, cfg.Database, stats, logger)

	diagnosticsHandler.RegisterRoutes(router)
	productHandler.RegisterRoutes(router)

	return router
}

// RunMaintenance starts the idle connection monitor and, in production, the
// keep-alive loop. Both stop when ctx is cancelled.
func (s *Server) RunMaintenance(ctx context.Context) {
	if s.pool != nil {
		go s.pool.RunIdleMonitor(ctx, s.config.Database.IdleCheckInterval)
	}

	if s.config.Server.IsProduction() {
		executor := database.NewExecutor(s.config.Database.QueryTimeout, s.logger)
		go database.KeepAlive(ctx, s.db, executor, s.config.Database.KeepAliveInterval, s.logger)
	}
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	if s.pool != nil {
		s.pool.Close()
	}

	s.logger.Sync()
	return nil
}
