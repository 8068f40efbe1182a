package matchmaking

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/sketch-arena/internal/character"
	"github.com/mauv0809/sketch-arena/internal/metrics"
)

// neverBattled is the staleness assigned to characters without a battle. It
// leaves room for jitter without overflowing.
const neverBattled = time.Duration(math.MaxInt64 / 2)

// Sampler implements staleness-biased opponent sampling over three
// candidate pools.
type Sampler struct {
	source  CandidateSource
	metrics metrics.Metrics
	now     func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	mu     sync.Mutex
	recent map[string][]string
}

var _ OpponentSampler = (*Sampler)(nil)

type Option func(*Sampler)

// WithRand replaces the random source.
func WithRand(r *rand.Rand) Option {
	return func(s *Sampler) { s.rng = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Sampler) { s.now = now }
}

// New creates a Sampler reading candidates from source.
func New(source CandidateSource, m metrics.Metrics, opts ...Option) *Sampler {
	s := &Sampler{
		source:  source,
		metrics: m,
		now:     time.Now,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		recent:  make(map[string][]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sample returns an opponent for req. Pools are tried in order and the first
// one holding a candidate outside the requester's own characters and recent
// opponents decides. When recency filtering empties every pool, the
// restriction is relaxed: first to the immediately preceding opponent only,
// then dropped.
func (s *Sampler) Sample(ctx context.Context, req Request) (*character.Character, error) {
	r := s.float64()
	pools := []struct {
		id   int
		load func() ([]character.Character, error)
	}{
		{PoolRandFrom, func() ([]character.Character, error) { return s.source.ListByRandFrom(ctx, r, RandWindow) }},
		{PoolRandWrap, func() ([]character.Character, error) { return s.source.ListByRand(ctx, RandWindow) }},
		{PoolRank, func() ([]character.Character, error) { return s.source.ListByRankDesc(ctx, RankWindow) }},
	}

	recent, previous := s.history(req)

	type relaxed struct {
		pool       int
		candidates []character.Character
	}
	var notPrevious, anyEligible *relaxed
	var lastErr error
	for _, pool := range pools {
		candidates, err := pool.load()
		if err != nil {
			log.Warn("Failed to load opponent pool", "pool", pool.id, "error", err)
			lastErr = err
			continue
		}
		eligible := s.excludeOwn(candidates, req)
		if len(eligible) == 0 {
			continue
		}
		if fresh := exclude(eligible, recent); len(fresh) > 0 {
			return s.choose(req, pool.id, fresh), nil
		}
		if cs := exclude(eligible, previous); notPrevious == nil && len(cs) > 0 {
			notPrevious = &relaxed{pool.id, cs}
		}
		if anyEligible == nil {
			anyEligible = &relaxed{pool.id, eligible}
		}
	}
	for _, fallback := range []*relaxed{notPrevious, anyEligible} {
		if fallback != nil {
			return s.choose(req, fallback.pool, fallback.candidates), nil
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("failed to load opponent candidates: %w", lastErr)
	}
	return nil, ErrNoOpponentAvailable
}

func (s *Sampler) choose(req Request, pool int, cs []character.Character) *character.Character {
	pick := s.pick(cs)
	s.remember(req.CharacterID, pick.ID)
	s.metrics.IncOpponentSampled(pool)
	log.Debug("Sampled opponent", "requester", req.CharacterID, "opponent", pick.ID, "pool", pool)
	return &pick
}

func (s *Sampler) excludeOwn(cs []character.Character, req Request) []character.Character {
	out := make([]character.Character, 0, len(cs))
	for _, c := range cs {
		if c.ID == req.CharacterID || (req.UserID != "" && c.UserID == req.UserID) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// history returns every opponent to avoid for req and, as a subset, the
// opponents of the immediately preceding battle.
func (s *Sampler) history(req Request) (recent, previous []string) {
	s.mu.Lock()
	recent = slices.Clone(s.recent[req.CharacterID])
	s.mu.Unlock()
	if n := len(recent); n > 0 {
		previous = append(previous, recent[n-1])
	}
	if req.LastOpponentID != "" {
		recent = append(recent, req.LastOpponentID)
		previous = append(previous, req.LastOpponentID)
	}
	return recent, previous
}

func exclude(cs []character.Character, ids []string) []character.Character {
	if len(ids) == 0 {
		return cs
	}
	out := make([]character.Character, 0, len(cs))
	for _, c := range cs {
		if !slices.Contains(ids, c.ID) {
			out = append(out, c)
		}
	}
	return out
}

// pick samples up to SampleSize candidates and returns the stalest one,
// with jitter breaking near-ties.
func (s *Sampler) pick(cs []character.Character) character.Character {
	now := s.now()

	s.rngMu.Lock()
	order := s.rng.Perm(len(cs))
	if len(order) > SampleSize {
		order = order[:SampleSize]
	}
	jitters := make([]time.Duration, len(order))
	for i := range jitters {
		jitters[i] = time.Duration(s.rng.Int64N(int64(MaxJitter)))
	}
	s.rngMu.Unlock()

	best, bestScore := order[0], time.Duration(math.MinInt64)
	for i, idx := range order {
		score := staleness(cs[idx], now) + jitters[i]
		if score > bestScore {
			best, bestScore = idx, score
		}
	}
	return cs[best]
}

func staleness(c character.Character, now time.Time) time.Duration {
	if c.NeverBattled() {
		return neverBattled
	}
	return max(0, now.Sub(c.LastBattleAt))
}

// remember records opponentID as recently faced by characterID.
func (s *Sampler) remember(characterID, opponentID string) {
	if characterID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.recent[characterID]; !ok && len(s.recent) >= maxTrackedUsers {
		for k := range s.recent {
			delete(s.recent, k)
			break
		}
	}
	h := append(s.recent[characterID], opponentID)
	if len(h) > RecentHistory {
		h = h[len(h)-RecentHistory:]
	}
	s.recent[characterID] = h
}

// Recent returns the in-process opponent history of characterID, oldest first.
func (s *Sampler) Recent(characterID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.recent[characterID])
}

func (s *Sampler) float64() float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64()
}
