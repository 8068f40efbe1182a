package scoring

// Outcome is a battle result seen from one participant's side.
type Outcome string

const (
	Win  Outcome = "win"
	Loss Outcome = "loss"
	Draw Outcome = "draw"
)

// Outcomes lists every valid outcome, used for uniform random fallbacks.
var Outcomes = []Outcome{Win, Loss, Draw}

// Side identifies which participant a stats update is applied to.
type Side int

const (
	Requester Side = iota
	Opponent
)

const (
	InitialRank = 1000
	MinRank     = 1

	WinPoints  = 20
	LossPoints = -15
	DrawPoints = 0
)

// Stats is the mutable scoring snapshot of a character: lifetime counters,
// rank and the lazily reset weekly aggregates.
type Stats struct {
	Rank         int     `json:"rank"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	Draws        int     `json:"draws"`
	TotalBattles int     `json:"totalBattles"`
	WinRate      float64 `json:"winRate"`

	WeeklyKey          string  `json:"weeklyKey,omitempty"`
	WeeklyPoints       int     `json:"weeklyPoints"`
	WeeklyWins         int     `json:"weeklyWins"`
	WeeklyLosses       int     `json:"weeklyLosses"`
	WeeklyDraws        int     `json:"weeklyDraws"`
	WeeklyTotalBattles int     `json:"weeklyTotalBattles"`
	WeeklyWinRate      float64 `json:"weeklyWinRate"`
}
