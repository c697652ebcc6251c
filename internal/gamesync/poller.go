package gamesync

import (
	"context"

	"github.com/rs/zerolog/log"

	"musicbingo/internal/broadcast"
	"musicbingo/internal/models"
)

// Run drives the reconcile loop until ctx is cancelled. Each tick fetches a
// state snapshot and reconciles it; ticks never stack because the loop waits
// for the previous reconcile to finish before selecting again. Poll failures
// are logged and swallowed so transient connectivity loss never kills the
// loop.
func (s *Synchronizer) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.pollInterval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.pollInterval).Msg("state poller started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("state poller stopped")
			return nil
		case <-ticker.Chan():
			s.PollOnce(ctx)
		}
	}
}

// PollOnce performs a single reconcile tick. A snapshot that arrives after
// the game was switched is discarded by session comparison.
func (s *Synchronizer) PollOnce(ctx context.Context) {
	s.mu.Lock()
	if s.game == nil {
		s.mu.Unlock()
		return
	}
	gameID := s.game.GameID
	session := s.session
	s.mu.Unlock()

	snap, err := s.api.GetState(ctx, gameID)
	if err != nil {
		log.Warn().Err(err).Str("game_id", gameID).Msg("poll failed")
		return
	}

	s.reconcile(ctx, session, snap)
}

// reconcile adopts a remote snapshot: the played and revealed sets are
// replaced, the play order is repaired to match, the prize is updated only
// when the field is present in the response, and winners not seen before
// are queued as pending toasts.
func (s *Synchronizer) reconcile(ctx context.Context, session uint64, snap *models.StateSnapshot) {
	s.mu.Lock()

	if s.session != session {
		s.mu.Unlock()
		log.Debug().Msg("discarding poll result for superseded game session")
		return
	}

	s.playSet = setFrom(snap.PlayedSongs)
	s.reconcilePlayOrderLocked(snap.PlayedSongs)

	s.revealed = setFrom(snap.RevealedSongs)
	s.revealedOrder = append([]string(nil), snap.RevealedSongs...)
	revealedJSON := s.revealedJSONLocked()

	if snap.CurrentPattern.Valid() {
		s.pattern = snap.CurrentPattern
	}
	if snap.CurrentPrize != nil {
		s.prize = snap.CurrentPrize
	}

	for _, w := range snap.DetectedWinners {
		if _, known := s.knownWinners[w.CardID]; !known {
			s.knownWinners[w.CardID] = struct{}{}
			s.pendingToasts = append(s.pendingToasts, w)
			s.armToastDismissLocked(w.CardID)
			log.Info().
				Str("card_id", w.CardID).
				Int("card_number", w.CardNumber).
				Str("pattern", string(w.Pattern)).
				Msg("new winner detected")
		}
	}
	s.winners = snap.DetectedWinners
	s.mu.Unlock()

	s.storePut(ctx, broadcast.KeyRevealedSongs, revealedJSON)
}

// reconcilePlayOrderLocked repairs the play order against the authoritative
// played set: ids no longer played are removed in place, newly played ids
// are appended at the end.
func (s *Synchronizer) reconcilePlayOrderLocked(played []string) {
	kept := s.playOrder[:0]
	for _, id := range s.playOrder {
		if _, ok := s.playSet[id]; ok {
			kept = append(kept, id)
		}
	}
	s.playOrder = kept

	inOrder := setFrom(s.playOrder)
	for _, id := range played {
		if _, ok := inOrder[id]; !ok {
			s.playOrder = append(s.playOrder, id)
		}
	}
}
