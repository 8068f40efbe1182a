package matchmaking

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/mauv0809/sketch-arena/internal/character"
	"github.com/mauv0809/sketch-arena/internal/metrics"
	"github.com/mauv0809/sketch-arena/internal/scoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 13, 8, 0, 0, 0, time.UTC)

func newSampler(src CandidateSource, seed uint64) (*Sampler, *metrics.Mock) {
	m := metrics.NewMock()
	s := New(src, m,
		WithRand(rand.New(rand.NewPCG(seed, seed+1))),
		WithClock(func() time.Time { return now }),
	)
	return s, m
}

func TestSample_NeverReturnsOwnCharacters(t *testing.T) {
	store := character.NewMock(
		character.Character{ID: "me", UserID: "u1", Rand: 0.5},
		character.Character{ID: "my-other", UserID: "u1", Rand: 0.6},
		character.Character{ID: "rival", UserID: "u2", Rand: 0.1, LastBattleAt: now.Add(-time.Minute)},
	)

	for seed := uint64(0); seed < 50; seed++ {
		s, _ := newSampler(store, seed)
		got, err := s.Sample(context.Background(), Request{UserID: "u1", CharacterID: "me"})
		require.NoError(t, err)
		assert.Equal(t, "rival", got.ID)
	}
}

func TestSample_NoOpponent(t *testing.T) {
	store := character.NewMock(
		character.Character{ID: "me", UserID: "u1", Rand: 0.5},
		character.Character{ID: "mine", UserID: "u1", Rand: 0.9},
	)
	s, _ := newSampler(store, 1)

	_, err := s.Sample(context.Background(), Request{UserID: "u1", CharacterID: "me"})
	assert.ErrorIs(t, err, ErrNoOpponentAvailable)
}

func TestSample_AvoidsImmediateRematch(t *testing.T) {
	store := character.NewMock(
		character.Character{ID: "me", UserID: "u1", Rand: 0.5},
		character.Character{ID: "last", UserID: "u2", Rand: 0.2},
		character.Character{ID: "other", UserID: "u3", Rand: 0.3, LastBattleAt: now.Add(-time.Second)},
	)

	for seed := uint64(0); seed < 50; seed++ {
		s, _ := newSampler(store, seed)
		got, err := s.Sample(context.Background(), Request{UserID: "u1", CharacterID: "me", LastOpponentID: "last"})
		require.NoError(t, err)
		assert.Equal(t, "other", got.ID, "seed %d", seed)
	}
}

func TestSample_SkipsPoolHoldingOnlyThePreviousOpponent(t *testing.T) {
	store := character.NewMock(
		character.Character{ID: "me", UserID: "u1", Rand: 0.5},
		character.Character{ID: "last", UserID: "u2", Rand: 0.95},
		character.Character{ID: "other", UserID: "u3", Rand: 0.1, LastBattleAt: now.Add(-time.Second)},
	)

	for seed := uint64(0); seed < 50; seed++ {
		s, _ := newSampler(store, seed)
		got, err := s.Sample(context.Background(), Request{UserID: "u1", CharacterID: "me", LastOpponentID: "last"})
		require.NoError(t, err)
		assert.Equal(t, "other", got.ID, "seed %d", seed)
	}
}

func TestSample_RelaxedHistoryStillAvoidsPreviousOpponent(t *testing.T) {
	store := character.NewMock(
		character.Character{ID: "me", UserID: "u1", Rand: 0.5},
		character.Character{ID: "a", UserID: "u2", Rand: 0.2},
		character.Character{ID: "b", UserID: "u3", Rand: 0.7},
	)

	for seed := uint64(0); seed < 20; seed++ {
		s, _ := newSampler(store, seed)
		req := Request{UserID: "u1", CharacterID: "me"}

		first, err := s.Sample(context.Background(), req)
		require.NoError(t, err)
		second, err := s.Sample(context.Background(), req)
		require.NoError(t, err)
		require.NotEqual(t, first.ID, second.ID)

		third, err := s.Sample(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, first.ID, third.ID, "seed %d", seed)
	}
}

func TestSample_RelaxesRecencyWhenItEmptiesThePool(t *testing.T) {
	store := character.NewMock(
		character.Character{ID: "me", UserID: "u1", Rand: 0.5},
		character.Character{ID: "only", UserID: "u2", Rand: 0.2},
	)
	s, _ := newSampler(store, 3)

	got, err := s.Sample(context.Background(), Request{UserID: "u1", CharacterID: "me", LastOpponentID: "only"})
	require.NoError(t, err)
	assert.Equal(t, "only", got.ID)
}

func TestSample_HistoryRotatesOpponents(t *testing.T) {
	var chars []character.Character
	chars = append(chars, character.Character{ID: "me", UserID: "u0", Rand: 0.5})
	for _, id := range []string{"a", "b", "c"} {
		chars = append(chars, character.Character{ID: id, UserID: "u-" + id, Rand: 0.1, LastBattleAt: now.Add(-time.Hour)})
	}
	s, _ := newSampler(character.NewMock(chars...), 9)

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		got, err := s.Sample(context.Background(), Request{UserID: "u0", CharacterID: "me"})
		require.NoError(t, err)
		assert.False(t, seen[got.ID], "opponent %s repeated while alternatives remained", got.ID)
		seen[got.ID] = true
	}
	assert.Len(t, s.Recent("me"), 3)
}

func TestSample_PrefersStaleCandidates(t *testing.T) {
	store := character.NewMock(
		character.Character{ID: "me", UserID: "u1", Rand: 0.5},
		character.Character{ID: "busy", UserID: "u2", Rand: 0.2, LastBattleAt: now.Add(-time.Second)},
		character.Character{ID: "idle", UserID: "u3", Rand: 0.3, LastBattleAt: now.Add(-24 * time.Hour)},
		character.Character{ID: "new", UserID: "u4", Rand: 0.4},
	)

	for seed := uint64(0); seed < 30; seed++ {
		s, _ := newSampler(store, seed)
		got, err := s.Sample(context.Background(), Request{UserID: "u1", CharacterID: "me"})
		require.NoError(t, err)
		assert.Equal(t, "new", got.ID, "never-battled characters are the stalest")
	}
}

func TestSample_ReportsPool(t *testing.T) {
	store := character.NewMock(
		character.Character{ID: "me", UserID: "u1", Rand: 0.99},
		character.Character{ID: "low", UserID: "u2", Rand: 0.01},
	)
	src := &poolSource{
		randFrom: func() ([]character.Character, error) { return nil, nil },
		store:    store,
	}
	s, m := newSampler(src, 1)

	got, err := s.Sample(context.Background(), Request{UserID: "u1", CharacterID: "me"})
	require.NoError(t, err)
	assert.Equal(t, "low", got.ID)
	assert.Equal(t, 1, m.OpponentSampled(PoolRandWrap))
}

func TestSample_FallsBackToRankPoolAndSurfacesErrors(t *testing.T) {
	boom := errors.New("backend down")
	store := character.NewMock(character.Character{ID: "ranked", UserID: "u2", Stats: scoring.Stats{Rank: 1500}})
	src := &poolSource{
		randFrom: func() ([]character.Character, error) { return nil, boom },
		randWrap: func() ([]character.Character, error) { return nil, boom },
		store:    store,
	}
	s, m := newSampler(src, 1)

	got, err := s.Sample(context.Background(), Request{UserID: "u1", CharacterID: "me"})
	require.NoError(t, err)
	assert.Equal(t, "ranked", got.ID)
	assert.Equal(t, 1, m.OpponentSampled(PoolRank))

	src.rank = func() ([]character.Character, error) { return nil, boom }
	_, err = s.Sample(context.Background(), Request{UserID: "u1", CharacterID: "me"})
	assert.ErrorIs(t, err, boom)
}

// poolSource overrides individual pools and delegates the rest to store.
type poolSource struct {
	randFrom, randWrap, rank func() ([]character.Character, error)
	store                    *character.MockStore
}

func (p *poolSource) ListByRandFrom(ctx context.Context, r float64, limit int) ([]character.Character, error) {
	if p.randFrom != nil {
		return p.randFrom()
	}
	return p.store.ListByRandFrom(ctx, r, limit)
}

func (p *poolSource) ListByRand(ctx context.Context, limit int) ([]character.Character, error) {
	if p.randWrap != nil {
		return p.randWrap()
	}
	return p.store.ListByRand(ctx, limit)
}

func (p *poolSource) ListByRankDesc(ctx context.Context, limit int) ([]character.Character, error) {
	if p.rank != nil {
		return p.rank()
	}
	return p.store.ListByRankDesc(ctx, limit)
}
