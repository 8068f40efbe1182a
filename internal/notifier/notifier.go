package notifier

import (
	"context"

	"github.com/mauv0809/sketch-arena/internal/character"
	"github.com/mauv0809/sketch-arena/internal/report"
)

// Notifier defines a high-level interface for sending notifications about arena events.
// This decouples the rest of the application from the specific notification provider (e.g., Slack).
type Notifier interface {
	// For moderation
	SendReportNotification(ctx context.Context, r *report.Report, dryRun bool) error
	// For the scheduled weekly announcement
	SendWeeklyLeaderboard(ctx context.Context, weekKey string, chars []character.Character, dryRun bool) error

	// For formatting responses for slash commands
	FormatLeaderboardResponse(chars []character.Character) (any, error)
	FormatWeeklyLeaderboardResponse(weekKey string, chars []character.Character) (any, error)
}
