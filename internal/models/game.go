package models

import (
	"time"
)

// Pattern defines the bingo-card shape that wins the active round.
type Pattern string

const (
	PatternFiveInARow  Pattern = "five_in_a_row"
	PatternRow         Pattern = "row"
	PatternColumn      Pattern = "column"
	PatternDiagonal    Pattern = "diagonal"
	PatternFourCorners Pattern = "four_corners"
	PatternXPattern    Pattern = "x_pattern"
	PatternFullCard    Pattern = "full_card"
	PatternFrame       Pattern = "frame"
)

// DefaultPattern is the pattern active for a freshly loaded game.
const DefaultPattern = PatternFiveInARow

// Valid reports whether p is one of the known pattern values.
func (p Pattern) Valid() bool {
	switch p {
	case PatternFiveInARow, PatternRow, PatternColumn, PatternDiagonal,
		PatternFourCorners, PatternXPattern, PatternFullCard, PatternFrame:
		return true
	}
	return false
}

// Song is one entry of a game's song catalog. Immutable once loaded.
type Song struct {
	SongID string `json:"song_id"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// Game is a loaded game with its song catalog.
type Game struct {
	GameID   string `json:"game_id"`
	Name     string `json:"name"`
	Filename string `json:"filename"`
	Songs    []Song `json:"songs"`
}

// GameListItem is one entry of the available-games listing.
type GameListItem struct {
	Filename  string `json:"filename"`
	Name      string `json:"name"`
	SongCount int    `json:"song_count,omitempty"`
	CardCount int    `json:"card_count,omitempty"`
}

// WinnerRecord is a server-confirmed card+pattern match for the active
// round. The client never computes winner status itself.
type WinnerRecord struct {
	CardID        string    `json:"card_id"`
	CardNumber    int       `json:"card_number"`
	PlayerName    string    `json:"player_name"`
	Pattern       Pattern   `json:"pattern"`
	DetectedAt    time.Time `json:"detected_at"`
	PrizeAssigned *string   `json:"prize_assigned,omitempty"`
}

// StateSnapshot is the remote authority's view of the current round.
// CurrentPrize is a pointer so a response that omits the field is
// distinguishable from one that sets it to the empty string.
type StateSnapshot struct {
	PlayedSongs     []string       `json:"played_songs"`
	RevealedSongs   []string       `json:"revealed_songs"`
	CurrentPattern  Pattern        `json:"current_pattern"`
	CurrentPrize    *string        `json:"current_prize,omitempty"`
	DetectedWinners []WinnerRecord `json:"detected_winners"`
}

// VerifyResult is the response from card verification. Pattern is only
// set when Winner is true; PlayerName may be absent for unregistered
// cards.
type VerifyResult struct {
	Winner     bool     `json:"winner"`
	Pattern    *Pattern `json:"pattern,omitempty"`
	CardNumber int      `json:"card_number"`
	CardID     string   `json:"card_id"`
	GameID     string   `json:"game_id"`
	PlayerName string   `json:"player_name,omitempty"`
}

// CardRegistration is the result of binding a card to a player name.
type CardRegistration struct {
	CardID       string    `json:"card_id"`
	CardNumber   int       `json:"card_number"`
	PlayerName   string    `json:"player_name"`
	RegisteredAt time.Time `json:"registered_at"`
}

// CardStatus describes one card in the game-scoped card listing.
type CardStatus struct {
	CardID     string  `json:"card_id"`
	CardNumber int     `json:"card_number"`
	PlayerName *string `json:"player_name,omitempty"`
}

// CardStatuses is the game-scoped card listing with detected winners.
type CardStatuses struct {
	Cards   []CardStatus   `json:"cards"`
	Winners []WinnerRecord `json:"winners"`
}

// ServerInfo reports the network URL the backend is reachable at.
type ServerInfo struct {
	URL string `json:"url"`
}

// WinnerAnnouncement is the transient record published to the broadcast
// store when the scan flow confirms a win.
type WinnerAnnouncement struct {
	CardNumber int       `json:"card_number"`
	PlayerName string    `json:"player_name"`
	Pattern    Pattern   `json:"pattern"`
	Prize      *string   `json:"prize,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
