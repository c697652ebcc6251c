// Package gamesync owns the client-side view of a loaded game: song catalog,
// played set, play order, now-playing song, revealed set, pattern, prize and
// detected winners. Mutations are applied optimistically and reverted when
// the remote service rejects them; a polling loop reconciles against the
// service, which is the source of truth.
package gamesync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"musicbingo/internal/broadcast"
	"musicbingo/internal/models"
)

// ErrNoGame is returned by operations that require a loaded game.
var ErrNoGame = errors.New("no game loaded")

const (
	// DefaultPollInterval is how often the remote snapshot is reconciled.
	DefaultPollInterval = 2 * time.Second
	// DefaultAutoRevealDelay is the now-playing dwell time after which a
	// song's title is revealed automatically.
	DefaultAutoRevealDelay = 15 * time.Second
	// DefaultToastDuration is how long a winner toast stays pending before
	// auto-dismissal.
	DefaultToastDuration = 8 * time.Second
)

// GameAPI defines what the synchronizer needs from the remote game service.
type GameAPI interface {
	ListGames(ctx context.Context) ([]models.GameListItem, error)
	LoadGame(ctx context.Context, filename string) (*models.Game, error)
	GetState(ctx context.Context, gameID string) (*models.StateSnapshot, error)
	MarkSong(ctx context.Context, gameID, songID string, played bool) error
	SetPattern(ctx context.Context, gameID string, pattern models.Pattern) error
	SetPrize(ctx context.Context, gameID, prize string) error
	RevealSong(ctx context.Context, gameID, songID string) error
	ResetRound(ctx context.Context, gameID string) error
	CardStatuses(ctx context.Context, gameID string) (*models.CardStatuses, error)
}

// Synchronizer is the host application's game-state container. All exported
// methods are safe for concurrent use; network calls are made without the
// lock held, and late responses belonging to a superseded game session are
// discarded by session comparison.
type Synchronizer struct {
	api   GameAPI
	store broadcast.Store
	clock clockwork.Clock

	pollInterval    time.Duration
	autoRevealDelay time.Duration
	toastDuration   time.Duration

	mu              sync.Mutex
	session         uint64
	games           []models.GameListItem
	game            *models.Game
	playSet         map[string]struct{}
	playOrder       []string
	nowPlaying      string
	nowPlayingSince time.Time
	revealed        map[string]struct{}
	revealedOrder   []string
	pattern         models.Pattern
	prize           *string
	winners         []models.WinnerRecord
	knownWinners    map[string]struct{}
	pendingToasts   []models.WinnerRecord
	loading         bool

	revealTimer clockwork.Timer
	toastTimers map[string]clockwork.Timer
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithClock substitutes the clock, for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Synchronizer) { s.clock = clock }
}

// WithPollInterval overrides the reconcile interval.
func WithPollInterval(d time.Duration) Option {
	return func(s *Synchronizer) { s.pollInterval = d }
}

// WithAutoRevealDelay overrides the now-playing auto-reveal dwell time.
func WithAutoRevealDelay(d time.Duration) Option {
	return func(s *Synchronizer) { s.autoRevealDelay = d }
}

// WithToastDuration overrides the winner-toast auto-dismiss delay.
func WithToastDuration(d time.Duration) Option {
	return func(s *Synchronizer) { s.toastDuration = d }
}

// NewSynchronizer creates a synchronizer over the given service client and
// broadcast store.
func NewSynchronizer(api GameAPI, store broadcast.Store, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		api:             api,
		store:           store,
		clock:           clockwork.NewRealClock(),
		pollInterval:    DefaultPollInterval,
		autoRevealDelay: DefaultAutoRevealDelay,
		toastDuration:   DefaultToastDuration,
		playSet:         make(map[string]struct{}),
		revealed:        make(map[string]struct{}),
		pattern:         models.DefaultPattern,
		knownWinners:    make(map[string]struct{}),
		toastTimers:     make(map[string]clockwork.Timer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RefreshGames fetches the list of loadable games.
func (s *Synchronizer) RefreshGames(ctx context.Context) error {
	games, err := s.api.ListGames(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.games = games
	s.mu.Unlock()
	return nil
}

// CardStatuses fetches the card panel data for the loaded game.
func (s *Synchronizer) CardStatuses(ctx context.Context) (*models.CardStatuses, error) {
	s.mu.Lock()
	if s.game == nil {
		s.mu.Unlock()
		return nil, ErrNoGame
	}
	gameID := s.game.GameID
	s.mu.Unlock()

	return s.api.CardStatuses(ctx, gameID)
}

// Games returns the last fetched list of loadable games.
func (s *Synchronizer) Games() []models.GameListItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.GameListItem(nil), s.games...)
}

// Game returns the currently loaded game, or nil.
func (s *Synchronizer) Game() *models.Game {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.game
}

// Loading reports whether a load is in progress.
func (s *Synchronizer) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// IsPlayed reports whether songID is marked played.
func (s *Synchronizer) IsPlayed(songID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.playSet[songID]
	return ok
}

// PlayOrder returns the sequence songs were marked played in.
func (s *Synchronizer) PlayOrder() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.playOrder...)
}

// PlayedCount returns the number of played songs.
func (s *Synchronizer) PlayedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.playSet)
}

// NowPlaying returns the song currently on air, or "" when none.
func (s *Synchronizer) NowPlaying() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nowPlaying
}

// NowPlayingElapsed returns how long the current song has been on air.
func (s *Synchronizer) NowPlayingElapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nowPlaying == "" {
		return 0
	}
	return s.clock.Since(s.nowPlayingSince)
}

// IsRevealed reports whether songID's title may be shown on the player
// display.
func (s *Synchronizer) IsRevealed(songID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revealed[songID]
	return ok
}

// RevealedSongs returns the revealed song ids in reveal order.
func (s *Synchronizer) RevealedSongs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.revealedOrder...)
}

// Pattern returns the active winning pattern.
func (s *Synchronizer) Pattern() models.Pattern {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pattern
}

// Prize returns the active prize text, or nil when none is set.
func (s *Synchronizer) Prize() *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prize
}

// Winners returns the server-detected winners for the active round.
func (s *Synchronizer) Winners() []models.WinnerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.WinnerRecord(nil), s.winners...)
}

// PendingToasts returns winner records not yet shown to the host.
func (s *Synchronizer) PendingToasts() []models.WinnerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.WinnerRecord(nil), s.pendingToasts...)
}

// DismissToast removes a pending winner toast.
func (s *Synchronizer) DismissToast(cardID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dismissToastLocked(cardID)
}

func (s *Synchronizer) dismissToastLocked(cardID string) {
	if t, ok := s.toastTimers[cardID]; ok {
		t.Stop()
		delete(s.toastTimers, cardID)
	}
	for i, w := range s.pendingToasts {
		if w.CardID == cardID {
			s.pendingToasts = append(s.pendingToasts[:i], s.pendingToasts[i+1:]...)
			return
		}
	}
}

func (s *Synchronizer) armToastDismissLocked(cardID string) {
	if t, ok := s.toastTimers[cardID]; ok {
		t.Stop()
	}
	s.toastTimers[cardID] = s.clock.AfterFunc(s.toastDuration, func() {
		s.DismissToast(cardID)
	})
}

func (s *Synchronizer) cancelRevealTimerLocked() {
	if s.revealTimer != nil {
		s.revealTimer.Stop()
		s.revealTimer = nil
	}
}

func (s *Synchronizer) cancelToastTimersLocked() {
	for id, t := range s.toastTimers {
		t.Stop()
		delete(s.toastTimers, id)
	}
}

// storePut mirrors a value to the broadcast store. Mirroring is
// best-effort: failures are logged and swallowed.
func (s *Synchronizer) storePut(ctx context.Context, key, value string) {
	if err := s.store.Put(ctx, key, value); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("broadcast store put failed")
	}
}

// storeDelete removes a broadcast key, best-effort.
func (s *Synchronizer) storeDelete(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("broadcast store delete failed")
	}
}

func setFrom(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
