package scoring

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoints(t *testing.T) {
	assert.Equal(t, 20, Points(Win))
	assert.Equal(t, -15, Points(Loss))
	assert.Equal(t, 0, Points(Draw))
}

func TestWeekKey(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"first monday of 2024", time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), "2024-W01"},
		{"week eleven", time.Date(2024, 3, 13, 8, 0, 0, 0, time.UTC), "2024-W11"},
		{"early january belongs to previous iso year", time.Date(2021, 1, 2, 0, 0, 0, 0, time.UTC), "2020-W53"},
		{"late december belongs to next iso year", time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC), "2025-W01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WeekKey(tt.at))
		})
	}
}

func TestApply_RequesterWinOpponentLoss(t *testing.T) {
	now := time.Date(2024, 3, 13, 8, 0, 0, 0, time.UTC)
	player := Stats{Rank: 1000}
	opponent := Stats{Rank: 1000}

	p := Apply(player, Requester, Win, Points(Win), now)
	o := Apply(opponent, Opponent, Win, Points(Win), now)

	assert.Equal(t, 1020, p.Rank)
	assert.Equal(t, 980, o.Rank)
	assert.Equal(t, 1, p.Wins)
	assert.Equal(t, 1, o.Losses)
	assert.Equal(t, 100.0, p.WinRate)
	assert.Equal(t, 0.0, o.WinRate)
	assert.Equal(t, 20, p.WeeklyPoints)
	assert.Equal(t, -20, o.WeeklyPoints)
}

func TestApply_WeeklyReset(t *testing.T) {
	now := time.Date(2024, 3, 13, 8, 0, 0, 0, time.UTC)
	prev := Stats{
		Rank:               1100,
		Wins:               3,
		TotalBattles:       3,
		WeeklyKey:          "2024-W10",
		WeeklyWins:         3,
		WeeklyPoints:       60,
		WeeklyTotalBattles: 3,
	}

	next := Apply(prev, Requester, Win, Points(Win), now)
	assert.Equal(t, "2024-W11", next.WeeklyKey)
	assert.Equal(t, 1, next.WeeklyWins)
	assert.Equal(t, 1, next.WeeklyTotalBattles)
	assert.Equal(t, 20, next.WeeklyPoints)
	assert.Equal(t, 4, next.Wins, "lifetime counters are never reset")

	again := Apply(next, Requester, Loss, Points(Loss), now.Add(time.Hour))
	assert.Equal(t, "2024-W11", again.WeeklyKey)
	assert.Equal(t, 1, again.WeeklyWins)
	assert.Equal(t, 1, again.WeeklyLosses)
	assert.Equal(t, 2, again.WeeklyTotalBattles)
	assert.Equal(t, 5, again.WeeklyPoints)
	assert.Equal(t, 50.0, again.WeeklyWinRate)
}

func TestApply_RankFloor(t *testing.T) {
	now := time.Now()
	low := Stats{Rank: 5, WeeklyKey: WeekKey(now), WeeklyPoints: -100}

	next := Apply(low, Requester, Loss, Points(Loss), now)
	assert.Equal(t, MinRank, next.Rank)
	assert.Equal(t, -115, next.WeeklyPoints, "weekly points are not floored")

	opp := Apply(Stats{Rank: 1}, Opponent, Win, Points(Win), now)
	assert.Equal(t, MinRank, opp.Rank)
}

func TestApply_MissingRankStartsAtInitial(t *testing.T) {
	next := Apply(Stats{}, Requester, Draw, Points(Draw), time.Now())
	assert.Equal(t, InitialRank, next.Rank)
	assert.Equal(t, 1, next.Draws)
}

func TestApply_InvariantsHoldForRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := Stats{Rank: InitialRank}
	b := Stats{Rank: InitialRank}

	for i := 0; i < 2000; i++ {
		outcome := Outcomes[rng.IntN(len(Outcomes))]
		delta := Points(outcome)
		now := start.Add(time.Duration(i) * 37 * time.Minute)

		// The requester and opponent deltas cancel out before flooring.
		assert.Zero(t, delta+(-delta))

		nextA := Apply(a, Requester, outcome, delta, now)
		nextB := Apply(b, Opponent, outcome, delta, now)

		for _, s := range []Stats{nextA, nextB} {
			require.Equal(t, s.TotalBattles, s.Wins+s.Losses+s.Draws)
			require.GreaterOrEqual(t, s.Rank, MinRank)
			require.InDelta(t, WinRate(s.Wins, s.TotalBattles), s.WinRate, 1e-9)
			require.Equal(t, s.WeeklyTotalBattles, s.WeeklyWins+s.WeeklyLosses+s.WeeklyDraws)
		}
		// Flooring only ever raises a rank.
		require.GreaterOrEqual(t, nextA.Rank, a.Rank+delta)
		require.GreaterOrEqual(t, nextB.Rank, b.Rank-delta)

		a, b = nextA, nextB
	}
}
