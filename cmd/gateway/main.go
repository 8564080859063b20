package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/chvlpont/typesprint/internal/config"
	"github.com/chvlpont/typesprint/internal/gateway"
	"github.com/chvlpont/typesprint/internal/race"
	"github.com/chvlpont/typesprint/internal/store/postgres"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(os.Getenv("TYPESPRINT_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	race.SetPool(cfg.Texts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := postgres.Connect(ctx, cfg.Database.DSN(), cfg.NATSURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect store")
	}
	defer st.Close()

	log.Info().
		Str("database", cfg.Database.Database).
		Str("nats_url", cfg.NATSURL).
		Str("port", cfg.HTTPPort).
		Msg("starting typesprint gateway")

	svc := gateway.NewService(st, clockwork.NewRealClock(), gateway.DefaultConnectionConfig())

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      svc.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	cancel()

	log.Info().Msg("gateway shutdown complete")
}
