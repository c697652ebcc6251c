// The display binary is the audience-facing counterpart of the host: it
// watches the broadcast store and renders now-playing, pattern, prize and
// winner announcements as they change.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"musicbingo/internal/appconfig"
	"musicbingo/internal/broadcast"
	"musicbingo/internal/models"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

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

	keys := []string{
		broadcast.KeyNowPlaying,
		broadcast.KeyCurrentPattern,
		broadcast.KeyCurrentPrize,
		broadcast.KeyRevealedSongs,
		broadcast.KeyWinnerAnnouncement,
	}
	for _, key := range keys {
		ch, err := store.Watch(ctx, key)
		if err != nil {
			log.Fatal().Err(err).Str("key", key).Msg("failed to watch broadcast key")
		}
		go consume(ctx, ch)
	}

	log.Info().Msg("display started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down display")
	cancel()
}

func consume(ctx context.Context, ch <-chan broadcast.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-ch:
			if !ok {
				return
			}
			render(upd)
		}
	}
}

func render(upd broadcast.Update) {
	switch upd.Key {
	case broadcast.KeyNowPlaying:
		if upd.Deleted {
			fmt.Println("now playing: (nothing)")
		} else {
			fmt.Printf("now playing: %s\n", upd.Value)
		}
	case broadcast.KeyCurrentPattern:
		fmt.Printf("pattern: %s\n", upd.Value)
	case broadcast.KeyCurrentPrize:
		if upd.Deleted {
			fmt.Println("prize: (none)")
		} else {
			fmt.Printf("prize: %s\n", upd.Value)
		}
	case broadcast.KeyRevealedSongs:
		var ids []string
		if !upd.Deleted {
			if err := json.Unmarshal([]byte(upd.Value), &ids); err != nil {
				log.Warn().Err(err).Msg("bad revealed songs payload")
				return
			}
		}
		fmt.Printf("revealed songs: %d\n", len(ids))
	case broadcast.KeyWinnerAnnouncement:
		if upd.Deleted {
			return
		}
		var ann models.WinnerAnnouncement
		if err := json.Unmarshal([]byte(upd.Value), &ann); err != nil {
			log.Warn().Err(err).Msg("bad winner announcement payload")
			return
		}
		fmt.Printf("*** BINGO! card #%d — %s (%s) ***\n", ann.CardNumber, ann.PlayerName, ann.Pattern)
	}
}
