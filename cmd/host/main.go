package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"musicbingo/clients"
	"musicbingo/internal/appconfig"
	"musicbingo/internal/broadcast"
	"musicbingo/internal/gamesync"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := appconfig.NewConfigFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Info().
		Str("api_url", cfg.APIBaseURL).
		Str("nats_url", cfg.NATSURL).
		Msg("starting music bingo host")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := broadcast.NewNATSStore(ctx, cfg.NATSURL, cfg.BroadcastBucket)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect broadcast store")
	}
	defer store.Close()

	client := clients.NewGameClient(cfg.APIBaseURL)
	if !client.Health(ctx) {
		log.Warn().Str("api_url", cfg.APIBaseURL).Msg("game service health check failed")
	}

	gameState := gamesync.NewSynchronizer(client, store,
		gamesync.WithPollInterval(cfg.PollInterval),
		gamesync.WithAutoRevealDelay(cfg.AutoRevealDelay),
		gamesync.WithToastDuration(cfg.ToastDuration),
	)

	if err := gameState.RefreshGames(ctx); err != nil {
		log.Error().Err(err).Msg("failed to list games")
	}

	if filename := os.Getenv("MUSICBINGO_GAME"); filename != "" {
		if err := gameState.LoadGame(ctx, filename); err != nil {
			log.Fatal().Err(err).Str("filename", filename).Msg("failed to load game")
		}
	}

	// Reconcile against the service until shutdown.
	go func() {
		if err := gameState.Run(ctx); err != nil {
			log.Error().Err(err).Msg("state poller failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down host")
	cancel()
}
