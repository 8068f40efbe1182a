package battle

import (
	"context"

	"github.com/mauv0809/sketch-arena/internal/imageresolver"
	"github.com/mauv0809/sketch-arena/internal/judge"
)

// BattleStore persists judged battles.
type BattleStore interface {
	// ApplyPrivileged updates both characters and appends the record in one
	// transaction.
	ApplyPrivileged(ctx context.Context, in Input) (*Applied, error)
	// ApplyFallback updates only the requester and appends the record.
	ApplyFallback(ctx context.Context, in Input) (*Applied, error)
	ListByCharacter(ctx context.Context, characterID string, limit int) ([]Record, error)
}

// Judge produces a verdict; it never fails.
type Judge interface {
	Judge(ctx context.Context, player, opponent judge.Contender) judge.Verdict
}

// ImageResolver resolves a drawing reference, nil when unavailable.
type ImageResolver interface {
	ResolveOrNil(ctx context.Context, ref string) *imageresolver.Image
}

// CooldownGuard admits or rejects battle attempts.
type CooldownGuard interface {
	Acquire(ctx context.Context, id string) error
	Release(id string)
}
