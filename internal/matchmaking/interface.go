package matchmaking

import (
	"context"

	"github.com/mauv0809/sketch-arena/internal/character"
)

// CandidateSource provides the windows the sampler draws opponents from.
// character.CharacterStore satisfies it.
type CandidateSource interface {
	ListByRandFrom(ctx context.Context, r float64, limit int) ([]character.Character, error)
	ListByRand(ctx context.Context, limit int) ([]character.Character, error)
	ListByRankDesc(ctx context.Context, limit int) ([]character.Character, error)
}

// OpponentSampler picks an opponent for a requesting character.
type OpponentSampler interface {
	Sample(ctx context.Context, req Request) (*character.Character, error)
}
