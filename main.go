package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"healthplus-server/internal/clinic"
	"healthplus-server/internal/config"
	"healthplus-server/internal/events"
	"healthplus-server/internal/logging"
	"healthplus-server/internal/middleware"
	"healthplus-server/internal/models"
	"healthplus-server/internal/queue"
	"healthplus-server/internal/routes"
	"healthplus-server/internal/seed"
	"healthplus-server/internal/store"
)

const serviceName = "healthplus-server"

func main() {
	rootCmd := &cobra.Command{
		Use:   serviceName,
		Short: "Clinic queue management API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var withSeed bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(withSeed)
		},
	}
	cmd.Flags().BoolVar(&withSeed, "seed", false, "load the demo clinic before serving")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bootstrap()
			if err != nil {
				return err
			}
			if cfg.Database.Driver == "memory" {
				return fmt.Errorf("nothing to migrate for the memory driver")
			}
			db, err := models.InitDB(models.DatabaseConfig{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
			log.Info().Str("driver", cfg.Database.Driver).Msg("schema migrated")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Replace all records with the demo clinic",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bootstrap()
			if err != nil {
				return err
			}
			st, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			_, err = seed.Run(cmd.Context(), st)
			return err
		},
	}
}

// bootstrap loads the optional .env file and the configuration, then sets up logging.
func bootstrap() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	logging.Init(serviceName, cfg.Environment, cfg.LogLevel)
	return cfg, nil
}

// openStore connects the record store for the configured driver. SQL drivers
// are migrated on open.
func openStore(cfg *config.Config) (store.Store, func(), error) {
	if cfg.Database.Driver == "memory" {
		log.Warn().Msg("using in-memory store, records are lost on exit")
		return store.NewMemoryStore(), func() {}, nil
	}

	db, err := models.InitDB(models.DatabaseConfig{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
	if err != nil {
		return nil, nil, fmt.Errorf("error connecting to database: %w", err)
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	log.Info().Str("driver", cfg.Database.Driver).Msg("database connected")
	return store.NewGormStore(db), closeDB, nil
}

// openBus uses Redis pub/sub when REDIS_URL is set so every instance sees
// every queue change; otherwise events stay in process.
func openBus(ctx context.Context, cfg *config.Config) (events.Bus, error) {
	if cfg.RedisURL == "" {
		return events.NewLocalBus(), nil
	}
	bus, err := events.NewRedisBus(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("error connecting to redis: %w", err)
	}
	log.Info().Msg("queue events via redis")
	return bus, nil
}

func runServer(withSeed bool) error {
	cfg, err := bootstrap()
	if err != nil {
		return err
	}
	ctx := context.Background()

	st, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if withSeed {
		if _, err := seed.Run(ctx, st); err != nil {
			return err
		}
	}

	bus, err := openBus(ctx, cfg)
	if err != nil {
		return err
	}

	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "Cache-Control"}
	router.Use(cors.New(corsConfig))

	routes.SetupRoutes(router, routes.Services{
		Clinic: clinic.NewService(st),
		Queue:  queue.NewService(st, bus),
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Closing the bus ends open event streams so Shutdown can finish.
	srv.RegisterOnShutdown(func() {
		if err := bus.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close event bus")
		}
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Environment).Msg("server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}
