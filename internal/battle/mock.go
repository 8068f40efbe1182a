package battle

import (
	"context"
	"sync"
)

var _ BattleStore = (*MockStore)(nil)

// MockStore is a mock implementation of BattleStore for testing.
// It is safe for concurrent use.
type MockStore struct {
	mu sync.Mutex

	ApplyPrivilegedFunc func(ctx context.Context, in Input) (*Applied, error)
	ApplyFallbackFunc   func(ctx context.Context, in Input) (*Applied, error)
	ListByCharacterFunc func(ctx context.Context, characterID string, limit int) ([]Record, error)

	ApplyPrivilegedCalls []Input
	ApplyFallbackCalls   []Input
}

func NewMock() *MockStore {
	return &MockStore{}
}

func (m *MockStore) ApplyPrivileged(ctx context.Context, in Input) (*Applied, error) {
	m.mu.Lock()
	m.ApplyPrivilegedCalls = append(m.ApplyPrivilegedCalls, in)
	fn := m.ApplyPrivilegedFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, in)
	}
	return &Applied{Record: Record{CharacterID: in.PlayerID, OpponentID: in.OpponentID, PersistedVia: ViaPrivileged}}, nil
}

func (m *MockStore) ApplyFallback(ctx context.Context, in Input) (*Applied, error) {
	m.mu.Lock()
	m.ApplyFallbackCalls = append(m.ApplyFallbackCalls, in)
	fn := m.ApplyFallbackFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, in)
	}
	return &Applied{Record: Record{CharacterID: in.PlayerID, OpponentID: in.OpponentID, PersistedVia: ViaFallback}}, nil
}

func (m *MockStore) ListByCharacter(ctx context.Context, characterID string, limit int) ([]Record, error) {
	m.mu.Lock()
	fn := m.ListByCharacterFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, characterID, limit)
	}
	return nil, nil
}

// Calls returns how many privileged and fallback writes were attempted.
func (m *MockStore) Calls() (privileged, fallback int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ApplyPrivilegedCalls), len(m.ApplyFallbackCalls)
}
