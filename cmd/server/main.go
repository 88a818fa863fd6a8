// Command server runs the order-assistance backend: the webhook endpoints
// consumed by the WhatsApp bridge, the dashboard API and its realtime feed.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sushiaki/sora-backend/internal/bridge"
	"github.com/sushiaki/sora-backend/internal/config"
	httpapi "github.com/sushiaki/sora-backend/internal/http"
	"github.com/sushiaki/sora-backend/internal/observability"
	"github.com/sushiaki/sora-backend/internal/provider"
	"github.com/sushiaki/sora-backend/internal/repo"
	"github.com/sushiaki/sora-backend/internal/services"
	"github.com/sushiaki/sora-backend/internal/store"
	"github.com/sushiaki/sora-backend/internal/ws"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	setupLogging(cfg)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("settings database open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("settings database migration failed")
	}

	// The hub's snapshot closure needs the services, and the services
	// broadcast through the hub; a forward declaration breaks the cycle.
	var hub *ws.Hub

	hubFwd := broadcasterFunc(func(event map[string]any) { hub.Broadcast(event) })

	settingsSvc := services.NewSettingsService(db, hubFwd, cfg.Bot)
	if err := settingsSvc.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("settings load failed")
	}

	statusSvc := services.NewStatusService(hubFwd)
	convStore := store.NewConversationStore()
	registry := provider.NewRegistry(settingsSvc.Get, cfg.ProviderTimeout)
	bridgeClient := bridge.NewClient(cfg.BridgeURL, cfg.BridgeTimeout)
	convSvc := services.NewConversationService(convStore, settingsSvc, registry, hubFwd, bridgeClient)

	hub = ws.NewHub(func() map[string]any {
		return map[string]any{
			"type":          "init",
			"status":        statusSvc.Get(),
			"config":        settingsSvc.Get().Redacted(),
			"conversations": convSvc.List(),
		}
	})

	engine := gin.New()
	httpapi.RegisterRoutes(engine, httpapi.Deps{
		Conversations: convSvc,
		Settings:      settingsSvc,
		Status:        statusSvc,
		Hub:           hub,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown failed")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// broadcasterFunc lets a closure satisfy services.Broadcaster.
type broadcasterFunc func(map[string]any)

func (f broadcasterFunc) Broadcast(event map[string]any) { f(event) }

// setupLogging configures the global zerolog logger from config.
func setupLogging(cfg config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
