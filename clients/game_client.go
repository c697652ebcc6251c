package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"musicbingo/internal/models"
)

// GameClient talks to the remote game service, the authority over all game
// state. Every call is a single request/response: no retries, no caching.
type GameClient struct {
	*BaseClient
}

func NewGameClient(baseURL string) *GameClient {
	return &GameClient{
		BaseClient: NewBaseClient(baseURL),
	}
}

type gameListResponse struct {
	Games []models.GameListItem `json:"games"`
}

// ListGames returns the games available for loading.
func (c *GameClient) ListGames(ctx context.Context) ([]models.GameListItem, error) {
	body, err := c.Get(ctx, "/api/games")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch games: %w", err)
	}

	var resp gameListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode game list: %w", err)
	}
	return resp.Games, nil
}

// LoadGame loads a game file by name and returns its metadata and song
// catalog.
func (c *GameClient) LoadGame(ctx context.Context, filename string) (*models.Game, error) {
	body, err := c.Post(ctx, "/api/games/load/"+url.PathEscape(filename), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load game: %w", err)
	}

	var game models.Game
	if err := json.Unmarshal(body, &game); err != nil {
		return nil, fmt.Errorf("failed to decode game: %w", err)
	}
	return &game, nil
}

// GetState fetches the remote snapshot of the current round. A 404 means
// the game has no state yet and yields an empty snapshot, not an error.
func (c *GameClient) GetState(ctx context.Context, gameID string) (*models.StateSnapshot, error) {
	body, err := c.Get(ctx, "/api/game/"+url.PathEscape(gameID)+"/state")
	if err != nil {
		if IsNotFound(err) {
			return &models.StateSnapshot{CurrentPattern: models.DefaultPattern}, nil
		}
		return nil, fmt.Errorf("failed to get game state: %w", err)
	}

	var snap models.StateSnapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode game state: %w", err)
	}
	return &snap, nil
}

type markSongRequest struct {
	SongID string `json:"song_id"`
	Played bool   `json:"played"`
}

// MarkSong marks a song played or unplayed.
func (c *GameClient) MarkSong(ctx context.Context, gameID, songID string, played bool) error {
	payload, err := json.Marshal(markSongRequest{SongID: songID, Played: played})
	if err != nil {
		return fmt.Errorf("failed to encode mark-song request: %w", err)
	}

	if _, err := c.Post(ctx, "/api/game/"+url.PathEscape(gameID)+"/mark-song", bytes.NewReader(payload)); err != nil {
		return fmt.Errorf("failed to mark song: %w", err)
	}
	return nil
}

// SetPattern sets the winning pattern for the active round.
func (c *GameClient) SetPattern(ctx context.Context, gameID string, pattern models.Pattern) error {
	endpoint := "/api/game/" + url.PathEscape(gameID) + "/pattern?pattern=" + url.QueryEscape(string(pattern))
	if _, err := c.Post(ctx, endpoint, nil); err != nil {
		return fmt.Errorf("failed to set pattern: %w", err)
	}
	return nil
}

type prizeRequest struct {
	Prize string `json:"prize"`
}

// SetPrize sets the free-text prize for the active round.
func (c *GameClient) SetPrize(ctx context.Context, gameID, prize string) error {
	payload, err := json.Marshal(prizeRequest{Prize: prize})
	if err != nil {
		return fmt.Errorf("failed to encode prize request: %w", err)
	}

	if _, err := c.Post(ctx, "/api/game/"+url.PathEscape(gameID)+"/prize", bytes.NewReader(payload)); err != nil {
		return fmt.Errorf("failed to set prize: %w", err)
	}
	return nil
}

// RevealSong permits a played song's title to appear on the player display.
func (c *GameClient) RevealSong(ctx context.Context, gameID, songID string) error {
	endpoint := "/api/game/" + url.PathEscape(gameID) + "/reveal/" + url.PathEscape(songID)
	if _, err := c.Post(ctx, endpoint, nil); err != nil {
		return fmt.Errorf("failed to reveal song: %w", err)
	}
	return nil
}

// ResetRound clears all played songs for a new round.
func (c *GameClient) ResetRound(ctx context.Context, gameID string) error {
	if _, err := c.Post(ctx, "/api/game/"+url.PathEscape(gameID)+"/reset", nil); err != nil {
		return fmt.Errorf("failed to reset round: %w", err)
	}
	return nil
}

// VerifyCard asks the service whether a card is a winner under the active
// pattern. Winner detection is entirely server-side.
func (c *GameClient) VerifyCard(ctx context.Context, gameID, cardID string) (*models.VerifyResult, error) {
	body, err := c.Get(ctx, "/api/verify/"+url.PathEscape(gameID)+"/"+url.PathEscape(cardID))
	if err != nil {
		return nil, err
	}

	var result models.VerifyResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode verify result: %w", err)
	}
	return &result, nil
}

type registerCardRequest struct {
	CardID     string `json:"card_id"`
	PlayerName string `json:"player_name"`
}

// RegisterCard binds a card to a player name.
func (c *GameClient) RegisterCard(ctx context.Context, gameID, cardID, playerName string) (*models.CardRegistration, error) {
	payload, err := json.Marshal(registerCardRequest{CardID: cardID, PlayerName: playerName})
	if err != nil {
		return nil, fmt.Errorf("failed to encode register-card request: %w", err)
	}

	body, err := c.Post(ctx, "/api/game/"+url.PathEscape(gameID)+"/register-card", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to register card: %w", err)
	}

	var reg models.CardRegistration
	if err := json.Unmarshal(body, &reg); err != nil {
		return nil, fmt.Errorf("failed to decode registration: %w", err)
	}
	return &reg, nil
}

// CardStatuses lists a game's cards and its detected winners.
func (c *GameClient) CardStatuses(ctx context.Context, gameID string) (*models.CardStatuses, error) {
	body, err := c.Get(ctx, "/api/game/"+url.PathEscape(gameID)+"/cards")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch card statuses: %w", err)
	}

	var statuses models.CardStatuses
	if err := json.Unmarshal(body, &statuses); err != nil {
		return nil, fmt.Errorf("failed to decode card statuses: %w", err)
	}
	return &statuses, nil
}

// Health reports whether the service answers its health endpoint with a 2xx.
func (c *GameClient) Health(ctx context.Context) bool {
	_, err := c.Get(ctx, "/health")
	return err == nil
}

// ServerInfo returns the network URL the service advertises for itself.
func (c *GameClient) ServerInfo(ctx context.Context) (*models.ServerInfo, error) {
	body, err := c.Get(ctx, "/api/server-info")
	if err != nil {
		return nil, fmt.Errorf("failed to get server info: %w", err)
	}

	var info models.ServerInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to decode server info: %w", err)
	}
	return &info, nil
}
