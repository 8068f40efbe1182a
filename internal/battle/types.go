package battle

import (
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/mauv0809/sketch-arena/internal/character"
	"github.com/mauv0809/sketch-arena/internal/scoring"
)

var (
	// ErrValidation marks malformed battle requests.
	ErrValidation = errors.New("invalid battle request")
	// ErrPersistenceUnavailable means the privileged write path is disabled
	// or its backend failed.
	ErrPersistenceUnavailable = errors.New("privileged persistence unavailable")
	// ErrConflict means the requester fought another battle inside its
	// cooldown window, or between read and write.
	ErrConflict = errors.New("concurrent battle detected")
)

// PersistedVia names the write path that stored a battle.
type PersistedVia string

const (
	ViaPrivileged PersistedVia = "privileged"
	ViaFallback   PersistedVia = "fallback"
)

// store handles battle writes.
type store struct {
	db *sql.DB
	mu sync.Mutex
}

// Record is one append-only battle ledger entry, from the requester's perspective.
type Record struct {
	ID                  string          `json:"id" msgpack:"id"`
	CharacterID         string          `json:"characterId" msgpack:"characterId"`
	OpponentID          string          `json:"opponentId" msgpack:"opponentId"`
	Result              scoring.Outcome `json:"result" msgpack:"result"`
	Reasoning           string          `json:"reasoning" msgpack:"reasoning"`
	PointsChange        int             `json:"pointsChange" msgpack:"pointsChange"`
	CharacterRankBefore int             `json:"characterRankBefore" msgpack:"characterRankBefore"`
	CharacterRankAfter  int             `json:"characterRankAfter" msgpack:"characterRankAfter"`
	OpponentRankBefore  int             `json:"opponentRankBefore" msgpack:"opponentRankBefore"`
	OpponentRankAfter   int             `json:"opponentRankAfter" msgpack:"opponentRankAfter"`
	PersistedVia        PersistedVia    `json:"persistedVia" msgpack:"persistedVia"`
	CreatedAt           time.Time       `json:"createdAt" msgpack:"createdAt"`
}

// Input is a judged battle ready to be stored.
type Input struct {
	PlayerID     string
	OpponentID   string
	Result       scoring.Outcome
	Reasoning    string
	PointsChange int
	Now          time.Time
	// Cooldown is re-checked against the stored lastBattleAt of the
	// requester inside the write transaction. Zero disables the check.
	Cooldown time.Duration
}

// Applied is the outcome of a successful privileged write.
type Applied struct {
	Player   *character.Character
	Opponent *character.Character
	Record   Record
}

// Participant identifies one side of a battle request. The player's ImageRef
// overrides its stored drawing; the opponent's is used only when no drawing is
// stored for it.
type Participant struct {
	ID       string `json:"id"`
	ImageRef string `json:"imageUrl,omitempty"`
}

// Request asks for a battle. An empty Opponent.ID lets the sampler choose.
type Request struct {
	Player   Participant `json:"player"`
	Opponent Participant `json:"opponent"`
}

// Result is what the caller learns about a resolved battle.
type Result struct {
	Outcome      scoring.Outcome
	Reasoning    string
	PointsChange int
	// Persisted is true only when the privileged path stored both sides.
	Persisted    bool
	PersistedVia PersistedVia
	Record       *Record
	// UpdatedPlayer is set by both write paths, UpdatedOpponent only by the
	// privileged one.
	UpdatedPlayer   *character.Character
	UpdatedOpponent *character.Character
	Opponent        *character.Character
}
