package character

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

var _ CharacterStore = (*MockStore)(nil)

// MockStore is an in-memory CharacterStore for testing. Every method can be
// overridden with the matching Func hook; otherwise it serves Characters.
// It is safe for concurrent use.
type MockStore struct {
	mu sync.Mutex

	Characters map[string]*Character

	GetFunc          func(ctx context.Context, id string) (*Character, error)
	LastBattleAtFunc func(ctx context.Context, id string) (time.Time, error)
	ListFunc         func(ctx context.Context) ([]Character, error)

	GetCalls          []string
	LastBattleAtCalls []string
}

// NewMock creates a mock store seeded with chars.
func NewMock(chars ...Character) *MockStore {
	m := &MockStore{Characters: make(map[string]*Character)}
	for i := range chars {
		c := chars[i]
		m.Characters[c.ID] = &c
	}
	return m
}

func (m *MockStore) Create(_ context.Context, c *Character) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.Characters[c.ID] = &cp
	return nil
}

func (m *MockStore) Get(ctx context.Context, id string) (*Character, error) {
	m.mu.Lock()
	m.GetCalls = append(m.GetCalls, id)
	fn := m.GetFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Characters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cp := *c
	return &cp, nil
}

func (m *MockStore) LastBattleAt(ctx context.Context, id string) (time.Time, error) {
	m.mu.Lock()
	m.LastBattleAtCalls = append(m.LastBattleAtCalls, id)
	fn := m.LastBattleAtFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, id)
	}
	c, err := m.Get(ctx, id)
	if err != nil {
		return time.Time{}, err
	}
	return c.LastBattleAt, nil
}

func (m *MockStore) ListByRandFrom(ctx context.Context, r float64, limit int) ([]Character, error) {
	all, err := m.sorted(ctx, func(a, b Character) bool { return a.Rand < b.Rand })
	if err != nil {
		return nil, err
	}
	var out []Character
	for _, c := range all {
		if c.Rand >= r {
			out = append(out, c)
		}
	}
	return head(out, limit), nil
}

func (m *MockStore) ListByRand(ctx context.Context, limit int) ([]Character, error) {
	all, err := m.sorted(ctx, func(a, b Character) bool { return a.Rand < b.Rand })
	return head(all, limit), err
}

func (m *MockStore) ListByRankDesc(ctx context.Context, limit int) ([]Character, error) {
	return m.TopByRank(ctx, limit, 0)
}

func (m *MockStore) TopByRank(ctx context.Context, limit, offset int) ([]Character, error) {
	all, err := m.sorted(ctx, func(a, b Character) bool { return a.Rank > b.Rank })
	if err != nil {
		return nil, err
	}
	if offset >= len(all) {
		return nil, nil
	}
	return head(all[offset:], limit), nil
}

func (m *MockStore) TopWeekly(ctx context.Context, weekKey string, limit int) ([]Character, error) {
	all, err := m.sorted(ctx, func(a, b Character) bool { return a.WeeklyPoints > b.WeeklyPoints })
	if err != nil {
		return nil, err
	}
	var out []Character
	for _, c := range all {
		if c.WeeklyKey == weekKey {
			out = append(out, c)
		}
	}
	return head(out, limit), nil
}

func (m *MockStore) ListByUser(ctx context.Context, userID string) ([]Character, error) {
	all, err := m.sorted(ctx, func(a, b Character) bool { return a.ID < b.ID })
	if err != nil {
		return nil, err
	}
	var out []Character
	for _, c := range all {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MockStore) sorted(ctx context.Context, less func(a, b Character) bool) ([]Character, error) {
	m.mu.Lock()
	fn := m.ListFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Character, 0, len(m.Characters))
	for _, c := range m.Characters {
		out = append(out, *c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if less(out[i], out[j]) {
			return true
		}
		if less(out[j], out[i]) {
			return false
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func head(cs []Character, limit int) []Character {
	if limit >= 0 && len(cs) > limit {
		return cs[:limit]
	}
	return cs
}
