package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"products-api/internal/config"
	"products-api/internal/database"
	"products-api/internal/logger"
	"products-api/internal/server"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const envFileFlag = "env-file"

func gracefulShutdown(apiServer *server.Server, logger *zap.Logger, stopMaintenance context.CancelFunc, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	logger.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown
	stopMaintenance()

	// The context is used to inform the server it has 30 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := apiServer.Close(); err != nil {
		logger.Error("Error closing server resources", zap.Error(err))
	}

	logger.Info("Server exiting")

	done <- true
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "api",
		Short:         "Products API server",
		Long:          "Serves CRUD endpoints for the products table. Runs the server when no subcommand is given.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	rootCmd.PersistentFlags().String(envFileFlag, ".env", "Path to an optional .env file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	})
	rootCmd.AddCommand(newMigrateCommand())

	return rootCmd
}

// bootstrap loads configuration and builds the logger every command needs.
func bootstrap(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	envFile, err := cmd.Flags().GetString(envFileFlag)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := config.LoadFrom(envFile)
	if err != nil {
		return nil, nil, err
	}

	log, err := logger.New(cfg.Server.Env)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, log, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("Starting products API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
	)

	pool, err := database.NewPool(cmd.Context(), cfg.Database, log)
	if err != nil {
		return err
	}

	if cfg.Database.AutoMigrate {
		db := database.OpenDB(pool.Pool)
		err := database.RunMigrations(db, log)
		db.Close()
		if err != nil {
			pool.Close()
			return err
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		log.Info("Rate limiting enabled",
			zap.String("redis_addr", cfg.Redis.Addr),
			zap.Int("requests", cfg.RateLimit.Requests),
			zap.Duration("window", cfg.RateLimit.Window),
		)
	}

	srv := server.NewServer(cfg, log, pool, redisClient)

	maintenanceCtx, stopMaintenance := context.WithCancel(context.Background())
	srv.RunMaintenance(maintenanceCtx)

	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	go gracefulShutdown(srv, log, stopMaintenance, done)

	log.Info("Server listening", zap.String("addr", srv.Addr))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		stopMaintenance()
		srv.Close()
		return fmt.Errorf("http server error: %w", err)
	}

	<-done
	log.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
