package gamesync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"musicbingo/internal/broadcast"
	"musicbingo/internal/models"
)

type markCall struct {
	songID string
	played bool
}

// fakeAPI is an in-memory GameAPI double. Error fields make the next call
// of that operation fail; call slices record what was issued.
type fakeAPI struct {
	mu sync.Mutex

	games    map[string]*models.Game
	snapshot *models.StateSnapshot
	stateFn  func(gameID string) (*models.StateSnapshot, error)

	loadErr    error
	markErr    error
	patternErr error
	prizeErr   error
	revealErr  error
	resetErr   error

	markCalls   []markCall
	revealCalls []string
	resetCalls  int
}

func newFakeAPI(game *models.Game) *fakeAPI {
	return &fakeAPI{
		games:    map[string]*models.Game{game.Filename: game},
		snapshot: &models.StateSnapshot{CurrentPattern: models.DefaultPattern},
	}
}

func (f *fakeAPI) ListGames(ctx context.Context) ([]models.GameListItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]models.GameListItem, 0, len(f.games))
	for _, g := range f.games {
		items = append(items, models.GameListItem{Filename: g.Filename, Name: g.Name})
	}
	return items, nil
}

func (f *fakeAPI) LoadGame(ctx context.Context, filename string) (*models.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	g, ok := f.games[filename]
	if !ok {
		return nil, &notFoundError{}
	}
	return g, nil
}

type notFoundError struct{}

func (*notFoundError) Error() string { return "game not found" }

func (f *fakeAPI) GetState(ctx context.Context, gameID string) (*models.StateSnapshot, error) {
	f.mu.Lock()
	fn := f.stateFn
	snap := f.snapshot
	f.mu.Unlock()
	if fn != nil {
		return fn(gameID)
	}
	return snap, nil
}

func (f *fakeAPI) MarkSong(ctx context.Context, gameID, songID string, played bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	f.markCalls = append(f.markCalls, markCall{songID: songID, played: played})
	return nil
}

func (f *fakeAPI) SetPattern(ctx context.Context, gameID string, pattern models.Pattern) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.patternErr
}

func (f *fakeAPI) SetPrize(ctx context.Context, gameID, prize string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prizeErr
}

func (f *fakeAPI) RevealSong(ctx context.Context, gameID, songID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revealErr != nil {
		return f.revealErr
	}
	f.revealCalls = append(f.revealCalls, songID)
	return nil
}

func (f *fakeAPI) ResetRound(ctx context.Context, gameID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resetErr != nil {
		return f.resetErr
	}
	f.resetCalls++
	return nil
}

func (f *fakeAPI) CardStatuses(ctx context.Context, gameID string) (*models.CardStatuses, error) {
	return &models.CardStatuses{}, nil
}

func (f *fakeAPI) setMarkErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markErr = err
}

func (f *fakeAPI) setSnapshot(snap *models.StateSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshot = snap
}

func testGame() *models.Game {
	return &models.Game{
		GameID:   "game-a",
		Name:     "80s Night",
		Filename: "eighties.json",
		Songs: []models.Song{
			{SongID: "s1", Title: "Take On Me", Artist: "a-ha"},
			{SongID: "s2", Title: "Africa", Artist: "Toto"},
			{SongID: "s3", Title: "Hold the Line", Artist: "Toto"},
		},
	}
}

func newTestSync(t *testing.T, api *fakeAPI) (*Synchronizer, *broadcast.MemStore, *clockwork.FakeClock) {
	t.Helper()
	store := broadcast.NewMemStore()
	clock := clockwork.NewFakeClock()
	s := NewSynchronizer(api, store, WithClock(clock))
	if err := s.LoadGame(context.Background(), "eighties.json"); err != nil {
		t.Fatalf("LoadGame failed: %v", err)
	}
	return s, store, clock
}

// waitFor polls cond so tests stay correct whether fake-clock callbacks run
// inline with Advance or on their own goroutine.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

// checkPlayInvariant asserts the play order has no duplicates and matches
// the played set exactly.
func checkPlayInvariant(t *testing.T, s *Synchronizer) {
	t.Helper()
	order := s.PlayOrder()
	seen := make(map[string]struct{}, len(order))
	for _, id := range order {
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate %q in play order %v", id, order)
		}
		seen[id] = struct{}{}
		if !s.IsPlayed(id) {
			t.Fatalf("%q in play order but not in play set", id)
		}
	}
	if len(order) != s.PlayedCount() {
		t.Fatalf("play order has %d entries, play set has %d", len(order), s.PlayedCount())
	}
}
