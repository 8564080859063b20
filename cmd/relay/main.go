package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/chvlpont/typesprint/internal/config"
	"github.com/chvlpont/typesprint/internal/relay"
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

	relayCfg := relay.DefaultConfig()
	relayCfg.DatabaseURL = cfg.Database.DSN()
	relayCfg.NotifyChannel = cfg.NotifyChannel
	relayCfg.NATSURL = cfg.NATSURL

	r, err := relay.New(relayCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create relay")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	log.Info().
		Str("nats_url", cfg.NATSURL).
		Str("channel", cfg.NotifyChannel).
		Msg("starting change relay")

	if err := r.Start(ctx); err != nil {
		log.Error().Err(err).Msg("relay stopped with error")
	}
	log.Info().Msg("relay shutdown complete")
}
