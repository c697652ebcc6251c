package gamesync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"musicbingo/internal/broadcast"
	"musicbingo/internal/models"
)

// LoadGame loads a game file and adopts the service's state snapshot for it.
// On failure the previously loaded game, if any, is left untouched. The
// now-playing song is never adopted from the server: it only flows through
// the broadcast store.
func (s *Synchronizer) LoadGame(ctx context.Context, filename string) error {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	game, err := s.api.LoadGame(ctx, filename)
	if err != nil {
		return fmt.Errorf("failed to load game: %w", err)
	}

	snap, err := s.api.GetState(ctx, game.GameID)
	if err != nil {
		return fmt.Errorf("failed to get game state: %w", err)
	}

	s.mu.Lock()
	s.session++
	s.cancelRevealTimerLocked()
	s.cancelToastTimersLocked()
	s.game = game
	s.playSet = setFrom(snap.PlayedSongs)
	s.playOrder = append([]string(nil), snap.PlayedSongs...)
	s.nowPlaying = ""
	s.revealed = setFrom(snap.RevealedSongs)
	s.revealedOrder = append([]string(nil), snap.RevealedSongs...)
	s.pattern = snap.CurrentPattern
	if !s.pattern.Valid() {
		s.pattern = models.DefaultPattern
	}
	s.prize = snap.CurrentPrize
	s.winners = snap.DetectedWinners
	s.knownWinners = make(map[string]struct{}, len(snap.DetectedWinners))
	for _, w := range snap.DetectedWinners {
		s.knownWinners[w.CardID] = struct{}{}
	}
	s.pendingToasts = nil
	pattern := s.pattern
	prize := s.prize
	revealedJSON := s.revealedJSONLocked()
	s.mu.Unlock()

	s.storePut(ctx, broadcast.KeyCurrentGame, filename)
	s.storePut(ctx, broadcast.KeyGameID, game.GameID)
	s.storeDelete(ctx, broadcast.KeyNowPlaying)
	s.storePut(ctx, broadcast.KeyCurrentPattern, string(pattern))
	if prize != nil {
		s.storePut(ctx, broadcast.KeyCurrentPrize, *prize)
	} else {
		s.storeDelete(ctx, broadcast.KeyCurrentPrize)
	}
	s.storePut(ctx, broadcast.KeyRevealedSongs, revealedJSON)

	log.Info().
		Str("game_id", game.GameID).
		Str("filename", filename).
		Int("songs", len(game.Songs)).
		Int("played", len(snap.PlayedSongs)).
		Msg("loaded game")
	return nil
}

// TogglePlayed flips songID's played state, optimistically, then syncs the
// change. On a remote failure the optimistic step is reverted exactly; note
// that reverting an unmark re-appends the song at the end of the play order
// rather than at its original position.
func (s *Synchronizer) TogglePlayed(ctx context.Context, songID string) error {
	s.mu.Lock()
	if s.game == nil {
		s.mu.Unlock()
		return ErrNoGame
	}
	gameID := s.game.GameID
	session := s.session

	_, wasPlayed := s.playSet[songID]
	target := !wasPlayed
	s.applyPlayedLocked(songID, target)
	s.mu.Unlock()

	if err := s.api.MarkSong(ctx, gameID, songID, target); err != nil {
		s.mu.Lock()
		if s.session == session {
			s.applyPlayedLocked(songID, wasPlayed)
		}
		s.mu.Unlock()
		return fmt.Errorf("failed to mark song: %w", err)
	}
	return nil
}

// applyPlayedLocked sets songID's membership in the play set and order.
// Append on mark; remove in place on unmark, preserving the order of the
// remaining entries.
func (s *Synchronizer) applyPlayedLocked(songID string, played bool) {
	if played {
		if _, ok := s.playSet[songID]; ok {
			return
		}
		s.playSet[songID] = struct{}{}
		s.playOrder = append(s.playOrder, songID)
		return
	}
	if _, ok := s.playSet[songID]; !ok {
		return
	}
	delete(s.playSet, songID)
	for i, id := range s.playOrder {
		if id == songID {
			s.playOrder = append(s.playOrder[:i], s.playOrder[i+1:]...)
			break
		}
	}
}

// SetNowPlaying puts songID on air, or clears the slot when songID is "".
// Putting a song on air cancels any pending auto-reveal timer, arms a fresh
// one if the song has not been revealed yet, and marks the song played if
// it is not already.
func (s *Synchronizer) SetNowPlaying(ctx context.Context, songID string) error {
	s.mu.Lock()
	if s.game == nil {
		s.mu.Unlock()
		return ErrNoGame
	}
	session := s.session

	s.cancelRevealTimerLocked()
	s.nowPlaying = songID
	s.nowPlayingSince = s.clock.Now()

	_, alreadyRevealed := s.revealed[songID]
	_, alreadyPlayed := s.playSet[songID]

	if songID != "" && !alreadyRevealed {
		id := songID
		s.revealTimer = s.clock.AfterFunc(s.autoRevealDelay, func() {
			s.autoReveal(session, id)
		})
	}
	s.mu.Unlock()

	if songID == "" {
		s.storeDelete(ctx, broadcast.KeyNowPlaying)
		return nil
	}
	s.storePut(ctx, broadcast.KeyNowPlaying, songID)

	if !alreadyPlayed {
		return s.TogglePlayed(ctx, songID)
	}
	return nil
}

// autoReveal fires when a song has been on air for the full dwell time. It
// is a no-op if the game session changed, the song is no longer on air, or
// it was revealed explicitly in the meantime.
func (s *Synchronizer) autoReveal(session uint64, songID string) {
	s.mu.Lock()
	stale := s.session != session || s.nowPlaying != songID
	_, alreadyRevealed := s.revealed[songID]
	s.mu.Unlock()

	if stale || alreadyRevealed {
		return
	}
	if err := s.RevealSong(context.Background(), songID); err != nil {
		log.Warn().Err(err).Str("song_id", songID).Msg("auto-reveal failed")
	}
}

// RevealSong permits songID's title on the player display, optimistically,
// and mirrors the revealed set to the broadcast store. On a remote failure
// the in-memory set is rolled back; the broadcast copy is not.
func (s *Synchronizer) RevealSong(ctx context.Context, songID string) error {
	s.mu.Lock()
	if s.game == nil {
		s.mu.Unlock()
		return ErrNoGame
	}
	if _, ok := s.revealed[songID]; ok {
		s.mu.Unlock()
		return nil
	}
	gameID := s.game.GameID
	session := s.session

	s.revealed[songID] = struct{}{}
	s.revealedOrder = append(s.revealedOrder, songID)
	revealedJSON := s.revealedJSONLocked()
	s.mu.Unlock()

	s.storePut(ctx, broadcast.KeyRevealedSongs, revealedJSON)

	if err := s.api.RevealSong(ctx, gameID, songID); err != nil {
		s.mu.Lock()
		if s.session == session {
			delete(s.revealed, songID)
			for i, id := range s.revealedOrder {
				if id == songID {
					s.revealedOrder = append(s.revealedOrder[:i], s.revealedOrder[i+1:]...)
					break
				}
			}
		}
		s.mu.Unlock()
		return fmt.Errorf("failed to reveal song: %w", err)
	}
	return nil
}

// SetPattern sets the active winning pattern, optimistically, and mirrors it
// to the broadcast store. Reverted on remote failure.
func (s *Synchronizer) SetPattern(ctx context.Context, pattern models.Pattern) error {
	if !pattern.Valid() {
		return fmt.Errorf("unknown pattern %q", pattern)
	}

	s.mu.Lock()
	if s.game == nil {
		s.mu.Unlock()
		return ErrNoGame
	}
	gameID := s.game.GameID
	session := s.session
	prev := s.pattern
	s.pattern = pattern
	s.mu.Unlock()

	s.storePut(ctx, broadcast.KeyCurrentPattern, string(pattern))

	if err := s.api.SetPattern(ctx, gameID, pattern); err != nil {
		s.mu.Lock()
		if s.session == session {
			s.pattern = prev
		}
		s.mu.Unlock()
		s.storePut(ctx, broadcast.KeyCurrentPattern, string(prev))
		return fmt.Errorf("failed to set pattern: %w", err)
	}
	return nil
}

// SetPrize sets the active prize text, optimistically, and mirrors it to the
// broadcast store (removing the key when cleared). Reverted on remote
// failure.
func (s *Synchronizer) SetPrize(ctx context.Context, prize string) error {
	s.mu.Lock()
	if s.game == nil {
		s.mu.Unlock()
		return ErrNoGame
	}
	gameID := s.game.GameID
	session := s.session
	prev := s.prize
	if prize == "" {
		s.prize = nil
	} else {
		p := prize
		s.prize = &p
	}
	s.mu.Unlock()

	if prize == "" {
		s.storeDelete(ctx, broadcast.KeyCurrentPrize)
	} else {
		s.storePut(ctx, broadcast.KeyCurrentPrize, prize)
	}

	if err := s.api.SetPrize(ctx, gameID, prize); err != nil {
		s.mu.Lock()
		if s.session == session {
			s.prize = prev
		}
		s.mu.Unlock()
		if prev != nil {
			s.storePut(ctx, broadcast.KeyCurrentPrize, *prev)
		} else {
			s.storeDelete(ctx, broadcast.KeyCurrentPrize)
		}
		return fmt.Errorf("failed to set prize: %w", err)
	}
	return nil
}

// roundState captures the round-scoped fields for rollback.
type roundState struct {
	playSet       map[string]struct{}
	playOrder     []string
	nowPlaying    string
	revealed      map[string]struct{}
	revealedOrder []string
	winners       []models.WinnerRecord
	knownWinners  map[string]struct{}
	pendingToasts []models.WinnerRecord
}

// ResetRound clears the round: play set, play order, now playing, revealed
// set, detected winners and pending toasts, plus the corresponding broadcast
// keys — all optimistically. On remote failure every captured field is
// restored.
func (s *Synchronizer) ResetRound(ctx context.Context) error {
	s.mu.Lock()
	if s.game == nil {
		s.mu.Unlock()
		return ErrNoGame
	}
	gameID := s.game.GameID
	session := s.session

	s.cancelRevealTimerLocked()
	s.cancelToastTimersLocked()

	prev := roundState{
		playSet:       s.playSet,
		playOrder:     s.playOrder,
		nowPlaying:    s.nowPlaying,
		revealed:      s.revealed,
		revealedOrder: s.revealedOrder,
		winners:       s.winners,
		knownWinners:  s.knownWinners,
		pendingToasts: s.pendingToasts,
	}

	s.playSet = make(map[string]struct{})
	s.playOrder = nil
	s.nowPlaying = ""
	s.revealed = make(map[string]struct{})
	s.revealedOrder = nil
	s.winners = nil
	s.knownWinners = make(map[string]struct{})
	s.pendingToasts = nil
	s.mu.Unlock()

	s.storeDelete(ctx, broadcast.KeyNowPlaying)
	s.storeDelete(ctx, broadcast.KeyRevealedSongs)
	s.storeDelete(ctx, broadcast.KeyWinnerAnnouncement)

	if err := s.api.ResetRound(ctx, gameID); err != nil {
		s.mu.Lock()
		if s.session == session {
			s.playSet = prev.playSet
			s.playOrder = prev.playOrder
			s.nowPlaying = prev.nowPlaying
			s.revealed = prev.revealed
			s.revealedOrder = prev.revealedOrder
			s.winners = prev.winners
			s.knownWinners = prev.knownWinners
			s.pendingToasts = prev.pendingToasts
		}
		s.mu.Unlock()
		return fmt.Errorf("failed to reset round: %w", err)
	}

	log.Info().Str("game_id", gameID).Msg("round reset")
	return nil
}

// revealedJSONLocked serializes the revealed song ids for the broadcast
// store.
func (s *Synchronizer) revealedJSONLocked() string {
	data, err := json.Marshal(s.revealedOrder)
	if err != nil {
		return "[]"
	}
	return string(data)
}
