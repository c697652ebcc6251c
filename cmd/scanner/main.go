package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"musicbingo/clients"
	"musicbingo/internal/appconfig"
	"musicbingo/internal/broadcast"
	"musicbingo/internal/scanflow"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := broadcast.NewNATSStore(ctx, cfg.NATSURL, cfg.BroadcastBucket)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect broadcast store")
	}
	defer store.Close()

	// The host can publish a server URL override for scanners on the
	// venue network.
	apiURL := cfg.APIBaseURL
	if override, found, err := store.Get(ctx, broadcast.KeyServerURL); err == nil && found && override != "" {
		log.Info().Str("url", override).Msg("using server URL override from broadcast store")
		apiURL = override
	}

	client := clients.NewGameClient(apiURL)
	if !client.Health(ctx) {
		log.Warn().Str("api_url", apiURL).Msg("game service health check failed")
	}

	flow := scanflow.NewFlow(client, store)
	gate := scanflow.NewGate(clockwork.NewRealClock(),
		scanflow.WithDebounce(cfg.ScanDebounce),
		scanflow.WithCooldown(cfg.ScanCooldown))

	log.Info().Str("api_url", apiURL).Msg("scanner ready, paste QR payloads one per line")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		if !gate.Offer() {
			log.Debug().Msg("scan dropped by gate")
			continue
		}

		flow.HandleScan(ctx, raw)
		printOutcome(flow)
		flow.Reset()
	}
	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("stdin read failed")
	}
}

func printOutcome(flow *scanflow.Flow) {
	switch flow.State() {
	case scanflow.StateResult:
		result := flow.Result()
		if result.Winner {
			pattern := ""
			if result.Pattern != nil {
				pattern = string(*result.Pattern)
			}
			fmt.Printf("WINNER  card #%d  pattern %s\n", result.CardNumber, pattern)
		} else {
			fmt.Printf("not a winner  card #%d\n", result.CardNumber)
		}
	case scanflow.StateErrored:
		code, msg := flow.Err()
		fmt.Printf("error (%s): %s\n", code, msg)
	}
}
