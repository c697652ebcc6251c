package gamesync

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"musicbingo/internal/broadcast"
	"musicbingo/internal/models"
)

func TestPollReconcileAdoptsSnapshot(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI(testGame())
	s, store, _ := newTestSync(t, api)

	api.setSnapshot(&models.StateSnapshot{
		PlayedSongs:    []string{"s1", "s3"},
		RevealedSongs:  []string{"s1"},
		CurrentPattern: models.PatternColumn,
		DetectedWinners: []models.WinnerRecord{
			{CardID: "c1", CardNumber: 5, PlayerName: "Ben", Pattern: models.PatternColumn},
		},
	})

	s.PollOnce(ctx)

	if !s.IsPlayed("s1") || !s.IsPlayed("s3") || s.IsPlayed("s2") {
		t.Error("played set not replaced from snapshot")
	}
	checkPlayInvariant(t, s)
	if !s.IsRevealed("s1") {
		t.Error("revealed set not replaced from snapshot")
	}
	if s.Pattern() != models.PatternColumn {
		t.Errorf("pattern = %s", s.Pattern())
	}
	if v, _, _ := store.Get(ctx, broadcast.KeyRevealedSongs); v != `["s1"]` {
		t.Errorf("revealed songs key = %q", v)
	}

	toasts := s.PendingToasts()
	if len(toasts) != 1 || toasts[0].CardID != "c1" {
		t.Fatalf("pending toasts = %v", toasts)
	}
	if len(s.Winners()) != 1 {
		t.Errorf("winners = %v", s.Winners())
	}

	// The same winner on the next poll is not toasted again.
	s.PollOnce(ctx)
	if len(s.PendingToasts()) != 1 {
		t.Errorf("winner toasted twice: %v", s.PendingToasts())
	}
}

func TestPollPreservesLocalPlayOrder(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI(testGame())
	s, _, _ := newTestSync(t, api)

	s.TogglePlayed(ctx, "s2")
	s.TogglePlayed(ctx, "s1")

	// Server reports the same set in catalog order plus one new song.
	api.setSnapshot(&models.StateSnapshot{
		PlayedSongs:    []string{"s1", "s2", "s3"},
		CurrentPattern: models.DefaultPattern,
	})
	s.PollOnce(ctx)

	// Locally known order is kept; only the new id is appended.
	if got := s.PlayOrder(); !reflect.DeepEqual(got, []string{"s2", "s1", "s3"}) {
		t.Errorf("play order = %v", got)
	}
	checkPlayInvariant(t, s)
}

func TestPollPrizeFieldPresence(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI(testGame())
	s, _, _ := newTestSync(t, api)

	if err := s.SetPrize(ctx, "bar tab"); err != nil {
		t.Fatalf("SetPrize failed: %v", err)
	}

	t.Run("absent field keeps local prize", func(t *testing.T) {
		api.setSnapshot(&models.StateSnapshot{CurrentPattern: models.DefaultPattern})
		s.PollOnce(ctx)
		if p := s.Prize(); p == nil || *p != "bar tab" {
			t.Errorf("prize = %v, want local value kept", p)
		}
	})

	t.Run("explicitly empty field is adopted", func(t *testing.T) {
		empty := ""
		api.setSnapshot(&models.StateSnapshot{CurrentPattern: models.DefaultPattern, CurrentPrize: &empty})
		s.PollOnce(ctx)
		if p := s.Prize(); p == nil || *p != "" {
			t.Errorf("prize = %v, want explicitly empty", p)
		}
	})
}

func TestPollFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI(testGame())
	api.setSnapshot(&models.StateSnapshot{
		PlayedSongs:    []string{"s1"},
		CurrentPattern: models.DefaultPattern,
	})
	s, _, _ := newTestSync(t, api)

	api.mu.Lock()
	api.stateFn = func(gameID string) (*models.StateSnapshot, error) {
		return nil, errors.New("connection refused")
	}
	api.mu.Unlock()

	// Must neither panic nor clear existing state.
	s.PollOnce(ctx)
	if !s.IsPlayed("s1") {
		t.Error("poll failure must leave state untouched")
	}
}

func TestStalePollDiscardedAfterGameSwitch(t *testing.T) {
	ctx := context.Background()
	gameA := testGame()
	gameB := &models.Game{
		GameID:   "game-b",
		Name:     "90s Night",
		Filename: "nineties.json",
		Songs:    []models.Song{{SongID: "n1", Title: "Wonderwall", Artist: "Oasis"}},
	}

	api := newFakeAPI(gameA)
	api.mu.Lock()
	api.games[gameB.Filename] = gameB
	api.mu.Unlock()

	s, _, _ := newTestSync(t, api)

	release := make(chan struct{})
	entered := make(chan struct{})
	done := make(chan struct{})
	api.mu.Lock()
	api.stateFn = func(gameID string) (*models.StateSnapshot, error) {
		if gameID == "game-a" {
			close(entered)
			<-release
			return &models.StateSnapshot{
				PlayedSongs:    []string{"s1", "s2"},
				CurrentPattern: models.PatternFrame,
				DetectedWinners: []models.WinnerRecord{
					{CardID: "stale", CardNumber: 9, Pattern: models.PatternFrame},
				},
			}, nil
		}
		return &models.StateSnapshot{CurrentPattern: models.DefaultPattern}, nil
	}
	api.mu.Unlock()

	// A poll for game A is in flight while the host switches to game B.
	go func() {
		s.PollOnce(ctx)
		close(done)
	}()
	<-entered

	if err := s.LoadGame(ctx, "nineties.json"); err != nil {
		t.Fatalf("LoadGame failed: %v", err)
	}

	close(release)
	<-done

	// The late game-A snapshot must not touch game-B state.
	if s.IsPlayed("s1") || s.IsPlayed("s2") {
		t.Error("stale poll mutated the played set")
	}
	if s.Pattern() == models.PatternFrame {
		t.Error("stale poll mutated the pattern")
	}
	if len(s.Winners()) != 0 || len(s.PendingToasts()) != 0 {
		t.Error("stale poll mutated winner state")
	}
}

func TestToastAutoDismiss(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI(testGame())
	s, _, clock := newTestSync(t, api)

	api.setSnapshot(&models.StateSnapshot{
		CurrentPattern: models.DefaultPattern,
		DetectedWinners: []models.WinnerRecord{
			{CardID: "c1", CardNumber: 5, PlayerName: "Ben", Pattern: models.PatternRow},
		},
	})
	s.PollOnce(ctx)
	if len(s.PendingToasts()) != 1 {
		t.Fatalf("pending toasts = %v", s.PendingToasts())
	}

	clock.Advance(DefaultToastDuration)
	waitFor(t, func() bool { return len(s.PendingToasts()) == 0 })
}

func TestDismissToast(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI(testGame())
	s, _, _ := newTestSync(t, api)

	api.setSnapshot(&models.StateSnapshot{
		CurrentPattern: models.DefaultPattern,
		DetectedWinners: []models.WinnerRecord{
			{CardID: "c1", CardNumber: 5, Pattern: models.PatternRow},
			{CardID: "c2", CardNumber: 6, Pattern: models.PatternRow},
		},
	})
	s.PollOnce(ctx)

	s.DismissToast("c1")
	toasts := s.PendingToasts()
	if len(toasts) != 1 || toasts[0].CardID != "c2" {
		t.Errorf("pending toasts = %v", toasts)
	}
}
