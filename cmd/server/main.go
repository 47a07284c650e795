package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"telehealth/internal/backplane"
	"telehealth/internal/config"
	"telehealth/internal/controllers"
	"telehealth/internal/logger"
	"telehealth/internal/middleware"
	"telehealth/internal/providers"
	"telehealth/internal/realtime"
	"telehealth/internal/routes"
	"telehealth/internal/services"
)

const shutdownTimeout = 10 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:          "server",
		Short:        "Telehealth consultation API",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(serveCmd(), migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Error("Command failed.")
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if _, err := setupLogging(cfg); err != nil {
				return err
			}
			db, err := config.OpenDB(cfg.Database)
			if err != nil {
				return err
			}
			defer closeDB(db)
			if err := config.Migrate(db); err != nil {
				return err
			}
			logrus.Info("Migrations applied.")
			return nil
		},
	}
}

func setupLogging(cfg *config.Config) (io.Writer, error) {
	return logger.Setup(logger.Options{
		File:       cfg.Log.File,
		AccessFile: cfg.Log.AccessFile,
		Level:      cfg.Log.Level,
		Stdout:     cfg.Log.Stdout,
	})
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	access, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	gin.SetMode(cfg.Server.Mode)
	logrus.WithField("config", cfg.String()).Info("Configuration loaded.")

	db, err := config.OpenDB(cfg.Database)
	if err != nil {
		return err
	}
	defer closeDB(db)
	if cfg.Database.AutoMigrate {
		if err := config.Migrate(db); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus, err := newBus(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer bus.Close()

	jwt := middleware.NewJWT(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	consultations := services.NewConsultationService(db)
	chats := services.NewChatService(db)

	hub := realtime.NewHub(bus, consultations, chats)
	if err := hub.Start(ctx); err != nil {
		return err
	}

	limiter := middleware.NewRateLimiter(cfg.Server.AuthRateRPS, cfg.Server.AuthRateBurst)
	defer limiter.Close()

	daily := controllers.NewDailyController(providers.NewDailyClient(cfg.Daily), cfg.Server.ExposeUpstreamErrors)
	transcription := controllers.NewTranscriptionController(
		providers.NewTranscriptionClient(cfg.Transcription),
		consultations,
		services.NewTranscriptService(db),
		controllers.TranscriptionOptions{
			UploadDir:      cfg.Transcription.UploadDir,
			MaxUploadBytes: cfg.Transcription.MaxUploadBytes,
			ExposeUpstream: cfg.Server.ExposeUpstreamErrors,
		},
	)

	router := routes.SetupRouter(routes.Deps{
		JWT:            jwt,
		TrustedProxies: cfg.Server.TrustedProxies,
		AuthLimiter:    limiter,
		AccessLog:      access,
		Auth:           controllers.NewAuthController(services.NewAuthService(db, jwt)),
		Consultations:  controllers.NewConsultationController(consultations),
		Chats:          controllers.NewChatController(consultations, chats),
		Daily:          daily,
		Transcription:  transcription,
		ChatSocket:     controllers.NewChatSocketController(jwt, hub),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           middleware.EnableCORS(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("addr", srv.Addr).Info("Server running.")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logrus.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// hijacked websocket connections are not tracked by Shutdown
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logrus.Info("Server stopped.")
	return nil
}

func newBus(ctx context.Context, cfg *config.Config, db *gorm.DB) (backplane.Bus, error) {
	switch cfg.Realtime.Backplane {
	case "redis":
		bus, err := backplane.NewRedis(ctx, cfg.Realtime.RedisURL, cfg.Realtime.Channel)
		if err != nil {
			return nil, err
		}
		return bus, nil
	case "postgres":
		return backplane.NewPostgres(db, cfg.Database.URL, cfg.Realtime.Channel), nil
	default:
		return backplane.NewLocal(), nil
	}
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
