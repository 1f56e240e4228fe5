package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"amala-joint/store-portal-backend/internal/auth"
	"amala-joint/store-portal-backend/internal/config"
	"amala-joint/store-portal-backend/internal/db"
	"amala-joint/store-portal-backend/internal/dialogue"
	"amala-joint/store-portal-backend/internal/events"
	"amala-joint/store-portal-backend/internal/stores"
	"amala-joint/store-portal-backend/internal/verification"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "portal-api",
		Short: "Store onboarding and crowd-verification backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to JSON config file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate()
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func migrate() error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	gdb, _, err := db.Connect(&cfg.Database, logger)
	if err != nil {
		return err
	}
	if err := db.Migrate(gdb); err != nil {
		return err
	}
	logger.Info("migrations applied")
	return nil
}

func serve() error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	gdb, xdb, err := db.Connect(&cfg.Database, logger)
	if err != nil {
		return err
	}
	if err := db.Migrate(gdb); err != nil {
		return err
	}

	hub := events.NewHub(logger)
	defer hub.Close()

	storeRepo := stores.NewRepository(gdb)
	storeSvc := stores.NewService(storeRepo, logger, cfg.Verification.DuplicateRadiusMeters)
	storeHandler := stores.NewHandler(storeSvc, logger)

	verifyRepo := verification.NewRepository(xdb)
	verifySvc := verification.NewService(verifyRepo, hub, logger,
		cfg.Verification.QuorumThreshold, cfg.Verification.RetryAttempts)
	verifyHandler := verification.NewHandler(verifySvc, logger)

	oracle := dialogue.NewHTTPOracle(cfg.Dialogue.OracleURL, logger)
	engine, err := dialogue.NewEngine(dialogue.EngineOpts{
		Extractor:     oracle,
		Creator:       storeSvc,
		IdleTimeout:   cfg.Dialogue.IdleTimeout,
		ShareLinkBase: cfg.Server.ShareLinkBase,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	dialogueHandler := dialogue.NewHandler(engine, logger)

	sweeper := cron.New()
	if _, err := sweeper.AddFunc("@every "+cfg.Dialogue.GCInterval.String(), func() {
		engine.SweepExpired()
	}); err != nil {
		return err
	}
	sweeper.Start()
	defer sweeper.Stop()

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	router.GET("/ws", hub.HandleWS)

	api := router.Group("/api/v1")
	api.Use(auth.Middleware(cfg.Security.JWTSecret))
	storeHandler.RegisterRoutes(api)
	verifyHandler.RegisterRoutes(api)
	dialogueHandler.RegisterRoutes(api)

	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}
