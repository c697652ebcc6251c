// Package broadcast is the side-channel between the host window and the
// player display: a durable key-value store whose writes in one process are
// observable as change events in another. Writes are fire-and-forget,
// last write wins; there is no delivery guarantee.
package broadcast

import "context"

// Keys used on the broadcast store. String-keyed, string-valued.
const (
	KeyCurrentGame        = "musicbingo_current_game"
	KeyGameID             = "musicbingo_game_id"
	KeyNowPlaying         = "musicbingo_now_playing"
	KeyCurrentPattern     = "musicbingo_current_pattern"
	KeyCurrentPrize       = "musicbingo_current_prize"
	KeyRevealedSongs      = "musicbingo_revealed_songs"
	KeyWinnerAnnouncement = "musicbingo_winner_announcement"
	KeyServerURL          = "musicbingo_server_url"
)

// Update is a change notification for a watched key.
type Update struct {
	Key     string
	Value   string
	Deleted bool
}

// Store is a durable broadcast key-value store. Absence of a key is
// reported as found == false, distinct from an empty string value.
// Watch must deliver the key's current value (if any) before updates, so a
// consumer starting after the writer does not miss pre-existing state.
type Store interface {
	Put(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Delete(ctx context.Context, key string) error
	Watch(ctx context.Context, key string) (<-chan Update, error)
}
