package scoring

import (
	"fmt"
	"time"
)

// Valid reports whether o is one of win, loss or draw.
func (o Outcome) Valid() bool {
	switch o {
	case Win, Loss, Draw:
		return true
	}
	return false
}

// Invert returns the same result seen from the other participant.
func (o Outcome) Invert() Outcome {
	switch o {
	case Win:
		return Loss
	case Loss:
		return Win
	}
	return o
}

// Points returns the fixed rank delta awarded to the requester for o.
// The value never depends on the rank gap between the participants.
func Points(o Outcome) int {
	switch o {
	case Win:
		return WinPoints
	case Loss:
		return LossPoints
	}
	return DrawPoints
}

// WinRate returns 100*wins/total, or 0 when no battle was fought.
func WinRate(wins, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(wins) / float64(total) * 100
}

// WeekKey returns the ISO week identifier of t in UTC, e.g. "2024-W07".
func WeekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// Apply returns the stats of one participant after a battle.
//
// outcome and delta are expressed from the requester's perspective; the
// opponent side receives the inverted outcome and -delta. Rank is floored at
// MinRank, weekly points are not. Weekly counters start from zero whenever the
// stored week key differs from the week of now.
func Apply(prev Stats, side Side, outcome Outcome, delta int, now time.Time) Stats {
	next := prev
	own, signed := outcome, delta
	if side == Opponent {
		own, signed = outcome.Invert(), -delta
	}

	switch own {
	case Win:
		next.Wins++
	case Loss:
		next.Losses++
	case Draw:
		next.Draws++
	}
	next.TotalBattles++
	next.WinRate = WinRate(next.Wins, next.TotalBattles)

	rank := prev.Rank
	if rank <= 0 {
		rank = InitialRank
	}
	next.Rank = max(MinRank, rank+signed)

	week := WeekKey(now)
	if prev.WeeklyKey != week {
		next.WeeklyPoints = 0
		next.WeeklyWins = 0
		next.WeeklyLosses = 0
		next.WeeklyDraws = 0
		next.WeeklyTotalBattles = 0
		next.WeeklyWinRate = 0
	}
	next.WeeklyKey = week
	next.WeeklyPoints += signed
	switch own {
	case Win:
		next.WeeklyWins++
	case Loss:
		next.WeeklyLosses++
	case Draw:
		next.WeeklyDraws++
	}
	next.WeeklyTotalBattles++
	next.WeeklyWinRate = WinRate(next.WeeklyWins, next.WeeklyTotalBattles)

	return next
}
