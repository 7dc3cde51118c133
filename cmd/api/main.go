package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"tokenart/internal/auth"
	"tokenart/internal/domain"
	"tokenart/internal/events"
	"tokenart/internal/http/handlers"
	httpapi "tokenart/internal/http/httpapi"
	"tokenart/internal/infra"
	"tokenart/internal/ledger"
	"tokenart/internal/middleware"
	"tokenart/internal/storage"
)

func main() {
	// Load .env (optional)
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg)

	ctx := context.Background()
	store, err := storage.Open(ctx, cfg.StoreConfig, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open store")
	}
	defer store.Close()

	goalSetters := make([]domain.Principal, 0, len(cfg.GoalSetters))
	for _, p := range cfg.GoalSetters {
		goalSetters = append(goalSetters, domain.Principal(p))
	}
	if len(goalSetters) == 0 {
		logger.Warn().Msg("GOAL_SETTERS is empty, any caller may set funding goals")
	}

	hub := events.NewHub(32)
	svc := ledger.New(store, auth.ContextOracle{},
		ledger.WithGoalSetters(goalSetters...),
		ledger.WithEvents(hub),
		ledger.WithLogger(logger.With().Str("component", "ledger").Logger()),
	)

	app := &handlers.App{
		Ledger:       svc,
		Hub:          hub,
		Logger:       logger,
		DisplayScale: cfg.DisplayScale,
		StoreDriver:  cfg.StoreDriver,
	}
	router := httpapi.NewRouter(app, httpapi.Options{
		Logger: logger,
		Auth: middleware.AuthConfig{
			Token:         auth.TokenConfig{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, TTL: cfg.JWTTTL},
			WalletMaxSkew: cfg.WalletMaxSkew,
		},
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})

	server := infra.NewHTTPServer(cfg, router)
	server.OnShutdown(hub.CloseAll)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
