// Package scanflow orchestrates card verification: decode the scanned QR
// payload, ask the remote service whether the card won, and on a win publish
// a winner announcement to the broadcast store for the player display.
package scanflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"musicbingo/clients"
	"musicbingo/internal/broadcast"
	"musicbingo/internal/models"
	"musicbingo/internal/qr"
)

// State is the scan flow's current phase.
type State string

const (
	StateIdle       State = "idle"
	StateProcessing State = "processing"
	StateResult     State = "result"
	StateErrored    State = "errored"
)

// ErrCode classifies a scan failure for the error view.
type ErrCode string

const (
	ErrCodeValidation  ErrCode = "validation"
	ErrCodeNotFound    ErrCode = "not_found"
	ErrCodeServerFault ErrCode = "server_fault"
	ErrCodeRequest     ErrCode = "request_failed"
	ErrCodeNetwork     ErrCode = "network"
)

// DefaultPlayerName is announced for winning cards never bound to a player.
const DefaultPlayerName = "Unknown Player"

// VerifyAPI defines what the scan flow needs from the remote game service.
type VerifyAPI interface {
	VerifyCard(ctx context.Context, gameID, cardID string) (*models.VerifyResult, error)
	RegisterCard(ctx context.Context, gameID, cardID, playerName string) (*models.CardRegistration, error)
}

// Flow is the scan verification state machine:
// Idle -> Processing -> (Result | Errored) -> Idle.
type Flow struct {
	api   VerifyAPI
	store broadcast.Store
	clock clockwork.Clock

	mu      sync.Mutex
	state   State
	result  *models.VerifyResult
	errCode ErrCode
	errMsg  string
}

// Option configures a Flow.
type Option func(*Flow)

// WithClock substitutes the clock, for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(f *Flow) { f.clock = clock }
}

// NewFlow creates a scan flow over the given service client and broadcast
// store.
func NewFlow(api VerifyAPI, store broadcast.Store, opts ...Option) *Flow {
	f := &Flow{
		api:   api,
		store: store,
		clock: clockwork.NewRealClock(),
		state: StateIdle,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// State returns the flow's current phase.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Result returns the verify result once the flow reached StateResult.
func (f *Flow) Result() *models.VerifyResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result
}

// Err returns the failure code and user-facing message once the flow
// reached StateErrored.
func (f *Flow) Err() (ErrCode, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errCode, f.errMsg
}

// Reset returns the flow to Idle and clears all transient fields.
func (f *Flow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = StateIdle
	f.result = nil
	f.errCode = ""
	f.errMsg = ""
}

// HandleScan processes one raw scan string. An empty input is ignored
// outright: no state change and no network call. A payload that fails to
// parse moves the flow to Errored without touching the network.
func (f *Flow) HandleScan(ctx context.Context, raw string) {
	if raw == "" {
		log.Warn().Msg("ignoring empty scan input")
		return
	}

	f.mu.Lock()
	f.state = StateProcessing
	f.result = nil
	f.errCode = ""
	f.errMsg = ""
	f.mu.Unlock()

	payload, err := qr.Parse(raw)
	if err != nil {
		f.fail(ErrCodeValidation, err.Error())
		return
	}

	result, err := f.api.VerifyCard(ctx, payload.GameID, payload.CardID)
	if err != nil {
		f.fail(classify(err))
		return
	}

	if result.Winner {
		f.announceWinner(ctx, result)
	}

	f.mu.Lock()
	f.state = StateResult
	f.result = result
	f.mu.Unlock()

	log.Info().
		Str("card_id", result.CardID).
		Int("card_number", result.CardNumber).
		Bool("winner", result.Winner).
		Msg("card verified")
}

// announceWinner publishes the winner announcement to the broadcast store,
// reading the current prize from the store itself. Best-effort: a store
// failure does not fail the scan.
func (f *Flow) announceWinner(ctx context.Context, result *models.VerifyResult) {
	playerName := result.PlayerName
	if playerName == "" {
		playerName = DefaultPlayerName
	}

	var pattern models.Pattern
	if result.Pattern != nil {
		pattern = *result.Pattern
	}

	ann := models.WinnerAnnouncement{
		CardNumber: result.CardNumber,
		PlayerName: playerName,
		Pattern:    pattern,
		Timestamp:  f.clock.Now(),
	}
	if prize, found, err := f.store.Get(ctx, broadcast.KeyCurrentPrize); err != nil {
		log.Warn().Err(err).Msg("could not read current prize for announcement")
	} else if found {
		ann.Prize = &prize
	}

	data, err := json.Marshal(ann)
	if err != nil {
		log.Warn().Err(err).Msg("could not encode winner announcement")
		return
	}
	if err := f.store.Put(ctx, broadcast.KeyWinnerAnnouncement, string(data)); err != nil {
		log.Warn().Err(err).Msg("could not publish winner announcement")
		return
	}

	log.Info().
		Int("card_number", ann.CardNumber).
		Str("player", ann.PlayerName).
		Msg("winner announcement published")
}

// RegisterCard binds a scanned card to a player name.
func (f *Flow) RegisterCard(ctx context.Context, gameID, cardID, playerName string) (*models.CardRegistration, error) {
	playerName = strings.TrimSpace(playerName)
	if playerName == "" {
		return nil, fmt.Errorf("player name must not be empty")
	}
	return f.api.RegisterCard(ctx, gameID, cardID, playerName)
}

func (f *Flow) fail(code ErrCode, msg string) {
	f.mu.Lock()
	f.state = StateErrored
	f.errCode = code
	f.errMsg = msg
	f.mu.Unlock()
	log.Warn().Str("code", string(code)).Str("message", msg).Msg("scan failed")
}

// classify maps a verify error to a user-facing code and message.
func classify(err error) (ErrCode, string) {
	switch {
	case clients.IsNotFound(err):
		return ErrCodeNotFound, "Card or game not found. Please check the QR code."
	case clients.IsServerFault(err):
		return ErrCodeServerFault, "Server error. Please try again."
	case clients.StatusOf(err) != 0:
		return ErrCodeRequest, fmt.Sprintf("Verification failed with status %d", clients.StatusOf(err))
	default:
		return ErrCodeNetwork, fmt.Sprintf("Network error: %v", err)
	}
}
