package character

import (
	"context"
	"time"
)

// CharacterStore reads and creates characters. Battle writes go through the
// battle package, which shares Columns and Scan.
type CharacterStore interface {
	Create(ctx context.Context, c *Character) error
	Get(ctx context.Context, id string) (*Character, error)
	LastBattleAt(ctx context.Context, id string) (time.Time, error)
	ListByRandFrom(ctx context.Context, r float64, limit int) ([]Character, error)
	ListByRand(ctx context.Context, limit int) ([]Character, error)
	ListByRankDesc(ctx context.Context, limit int) ([]Character, error)
	TopByRank(ctx context.Context, limit, offset int) ([]Character, error)
	TopWeekly(ctx context.Context, weekKey string, limit int) ([]Character, error)
	ListByUser(ctx context.Context, userID string) ([]Character, error)
}
