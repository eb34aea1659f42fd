package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nocturne-gg/callkit/internal/adapters/backend"
	"github.com/nocturne-gg/callkit/internal/adapters/devices"
	"github.com/nocturne-gg/callkit/internal/adapters/httpapi"
	"github.com/nocturne-gg/callkit/internal/adapters/rtc"
	"github.com/nocturne-gg/callkit/internal/adapters/storage"
	"github.com/nocturne-gg/callkit/internal/app"
	"github.com/nocturne-gg/callkit/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	db, err := storage.Open(cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("failed to open store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("store close")
		}
	}()

	prefs := storage.NewPreferenceStore(db)
	contexts := storage.NewContextStore(db, cfg.ContextTTL)

	enum := devices.NewMediaEnumerator(cfg.DevicePollInterval)
	deviceMgr := app.NewDeviceManager(enum, prefs)
	deviceMgr.Refresh()
	go deviceMgr.Watch(ctx)

	media := rtc.NewStaticLocalMedia(uuid.NewString())
	connector := rtc.NewConnector(media)
	sessionAPI := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout)

	orch := app.NewOrchestrator(sessionAPI, connector, contexts, deviceMgr)
	orch.ResumeOnce(ctx)

	r := httpapi.SetupRouter(cfg, orch)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("callkit started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
