package notifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/sketch-arena/internal/character"
	"github.com/mauv0809/sketch-arena/internal/report"
)

var _ Notifier = Disabled{}

// Disabled logs notifications instead of sending them. It is used when no
// Slack token is configured.
type Disabled struct{}

func (Disabled) SendReportNotification(_ context.Context, r *report.Report, _ bool) error {
	log.Info("Report filed (notifications disabled)", "id", r.ID, "targetType", r.TargetType, "targetId", r.TargetID, "reason", r.Reason)
	return nil
}

func (Disabled) SendWeeklyLeaderboard(_ context.Context, weekKey string, chars []character.Character, _ bool) error {
	log.Info("Weekly leaderboard (notifications disabled)", "week", weekKey, "entries", len(chars))
	return nil
}

func (Disabled) FormatLeaderboardResponse(chars []character.Character) (any, error) {
	return textResponse("Leaderboard", chars, func(c character.Character) string {
		return fmt.Sprintf("%s (%d)", c.Name, c.Rank)
	}), nil
}

func (Disabled) FormatWeeklyLeaderboardResponse(weekKey string, chars []character.Character) (any, error) {
	return textResponse("Weekly leaderboard "+weekKey, chars, func(c character.Character) string {
		return fmt.Sprintf("%s (%+d)", c.Name, c.WeeklyPoints)
	}), nil
}

func textResponse(title string, chars []character.Character, line func(character.Character) string) map[string]string {
	var b strings.Builder
	b.WriteString(title)
	for i, c := range chars {
		fmt.Fprintf(&b, "\n%d. %s", i+1, line(c))
	}
	return map[string]string{"text": b.String()}
}
