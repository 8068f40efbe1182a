package character

import (
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/mauv0809/sketch-arena/internal/scoring"
)

// ErrNotFound is returned when a character id does not exist.
var ErrNotFound = errors.New("character not found")

// store handles all database operations for characters.
type store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Character is a user drawing together with its battle statistics.
type Character struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageRef    string `json:"imageUrl,omitempty"`

	scoring.Stats

	Rand           float64   `json:"-"`
	LastBattleAt   time.Time `json:"lastBattleAt,omitzero"`
	LastOpponentID string    `json:"lastOpponentId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// NeverBattled reports whether the character has no persisted battle yet.
func (c *Character) NeverBattled() bool {
	return c.LastBattleAt.IsZero()
}
