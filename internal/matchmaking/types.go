package matchmaking

import (
	"errors"
	"time"
)

// ErrNoOpponentAvailable is returned when every pool is empty after the
// requester's own characters are removed.
var ErrNoOpponentAvailable = errors.New("no opponent available")

const (
	RandWindow      = 60
	RankWindow      = 80
	SampleSize      = 12
	RecentHistory   = 5
	MaxJitter       = 30 * time.Second
	maxTrackedUsers = 10000
)

// Pool numbers reported to metrics.
const (
	PoolRandFrom = 1
	PoolRandWrap = 2
	PoolRank     = 3
)

// Request identifies who is looking for an opponent.
type Request struct {
	UserID         string
	CharacterID    string
	LastOpponentID string
}
