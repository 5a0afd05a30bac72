package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"plaque-dashboard/internal/client/backend"
	"plaque-dashboard/internal/client/gemini"
	"plaque-dashboard/internal/config"
	"plaque-dashboard/internal/db"
	httpapi "plaque-dashboard/internal/http"
	"plaque-dashboard/internal/logger"
	"plaque-dashboard/internal/repository"
	"plaque-dashboard/internal/service"
	"plaque-dashboard/internal/worker"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.New(cfg.Log.Level, cfg.Environment)
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	store, closeStore, err := openGalleryStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	backendClient := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout,
		log.With().Str("component", "backend").Logger(),
		backend.WithStatsFallback(cfg.Stats.Fallback),
	)

	galleryService := service.NewGalleryService(store, cfg.Gallery.Namespace,
		log.With().Str("component", "gallery").Logger(),
		service.WithSeed(cfg.Gallery.Seed),
	)
	if err := galleryService.Load(ctx); err != nil {
		log.Error().Err(err).Msg("gallery restore failed, continuing with seed data")
	}

	session := service.NewDetectionSession()
	detectionService := service.NewDetectionService(backendClient, session, galleryService,
		cfg.Backend.OCRLang, log.With().Str("component", "detection").Logger())

	var generator service.TextGenerator
	if cfg.Gemini.APIKey != "" {
		gc, err := gemini.NewClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.FallbackModel,
			log.With().Str("component", "gemini").Logger())
		if err != nil {
			return err
		}
		generator = gc
		log.Info().Str("engine", gc.Name()).Msg("chat assistant enabled")
	} else {
		log.Warn().Msg("GEMINI_API_KEY not set, chat assistant disabled")
	}
	chatService := service.NewChatService(generator, log.With().Str("component", "chat").Logger())

	poller := worker.NewPoller(backendClient, cfg.Stats.PollInterval, log.With().Str("component", "poller").Logger())
	pollers := poller.Start(ctx)

	auth := httpapi.NewAuthMiddleware(cfg.Auth.JWTSecret, log)
	if !auth.Enabled() {
		log.Warn().Msg("JWT_SECRET not set, gallery mutations are unauthenticated")
	}

	handler := httpapi.NewHandler(galleryService, session, detectionService, chatService, backendClient, poller, log)
	router := httpapi.NewRouter(handler, auth, cfg.HTTP.AllowedOrigins, log)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("backend", backendClient.BaseURL()).
			Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			stop()
			pollers.Wait()
			return err
		}
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	pollers.Wait()
	log.Info().Msg("server stopped")
	return nil
}

// openGalleryStore uses Postgres when a DSN is configured, memory otherwise.
func openGalleryStore(cfg *config.Config, log zerolog.Logger) (service.GallerySnapshotStore, func(), error) {
	if cfg.Database.DSN == "" {
		log.Warn().Msg("DATABASE_DSN not set, gallery is kept in memory only")
		return repository.NewMemoryGalleryRepository(), func() {}, nil
	}

	gdb, err := db.Open(cfg.Database.DSN, log)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := db.Close(gdb); err != nil {
			log.Error().Err(err).Msg("failed to close database")
		}
	}
	return repository.NewGalleryRepository(gdb), closeFn, nil
}
