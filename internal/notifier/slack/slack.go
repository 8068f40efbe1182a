package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/sketch-arena/internal/character"
	"github.com/mauv0809/sketch-arena/internal/metrics"
	"github.com/mauv0809/sketch-arena/internal/notifier"
	"github.com/mauv0809/sketch-arena/internal/report"
	"github.com/slack-go/slack"
)

// slackClient is an interface that contains the methods from the slack.Client that we use.
// This allows for easy mocking in tests.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

var _ notifier.Notifier = &Notifier{}

const sendTimeout = 10 * time.Second

// Notifier handles sending notifications to Slack.
type Notifier struct {
	api       slackClient
	channelID string
	metrics   metrics.Metrics
}

// NewNotifier creates a new Notifier posting to channelID.
func NewNotifier(token, channelID string, metrics metrics.Metrics) *Notifier {
	return NewNotifierWithAPI(slack.New(token), channelID, metrics)
}

// NewNotifierWithAPI creates a new Notifier with a specific slack.Client instance.
// Useful for tests that need to intercept API calls.
func NewNotifierWithAPI(api slackClient, channelID string, metrics metrics.Metrics) *Notifier {
	return &Notifier{
		api:       api,
		channelID: channelID,
		metrics:   metrics,
	}
}

func (s *Notifier) sendMessage(ctx context.Context, message slack.Message, dryRun bool) (string, string, error) {
	if dryRun {
		jsonMsg, _ := json.MarshalIndent(message, "", "  ")
		log.Info("[Dry Run] Would send Slack message", "channel", s.channelID, "message", string(jsonMsg))
		return "dry-run-ts", "dry-run-thread-ts", nil
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	channelID, timestamp, err := s.api.PostMessageContext(
		ctx,
		s.channelID,
		slack.MsgOptionBlocks(message.Blocks.BlockSet...),
		slack.MsgOptionText(message.Text, false),
	)
	if err != nil {
		s.metrics.IncSlackNotifFailed()
		log.Error("Failed to send Slack message", "error", err, "channel", s.channelID)
		return "", "", fmt.Errorf("failed to post message: %w", err)
	}

	s.metrics.IncSlackNotifSent()
	log.Info("Successfully sent Slack message", "channel", channelID, "timestamp", timestamp)
	return channelID, timestamp, nil
}

func (s *Notifier) SendReportNotification(ctx context.Context, r *report.Report, dryRun bool) error {
	_, _, err := s.sendMessage(ctx, s.formatReport(r), dryRun)
	return err
}

func (s *Notifier) SendWeeklyLeaderboard(ctx context.Context, weekKey string, chars []character.Character, dryRun bool) error {
	_, _, err := s.sendMessage(ctx, s.formatWeeklyLeaderboard(weekKey, chars), dryRun)
	return err
}

func (s *Notifier) FormatLeaderboardResponse(chars []character.Character) (any, error) {
	return s.formatLeaderboard(chars), nil
}

func (s *Notifier) FormatWeeklyLeaderboardResponse(weekKey string, chars []character.Character) (any, error) {
	return s.formatWeeklyLeaderboard(weekKey, chars), nil
}

// formatReport creates the moderation message for a filed report.
func (s *Notifier) formatReport(r *report.Report) slack.Message {
	blocks := make([]slack.Block, 0, 6)

	headerText := slack.NewTextBlockObject("plain_text", "🚩 New report: "+string(r.TargetType), true, false)
	blocks = append(blocks, slack.NewHeaderBlock(headerText))

	reporter := "anonymous"
	if !r.ReporterIsAnonymous && r.ReporterID != "" {
		reporter = r.ReporterID
	}
	fields := []*slack.TextBlockObject{
		slack.NewTextBlockObject("mrkdwn", "*Target:*\n`"+r.TargetID+"`", false, false),
		slack.NewTextBlockObject("mrkdwn", "*Reporter:*\n"+reporter, false, false),
	}
	if r.TargetName != "" {
		fields = append(fields, slack.NewTextBlockObject("mrkdwn", "*Name:*\n"+r.TargetName, false, false))
	}
	if r.TargetUserID != "" {
		fields = append(fields, slack.NewTextBlockObject("mrkdwn", "*Owner:*\n`"+r.TargetUserID+"`", false, false))
	}
	blocks = append(blocks, slack.NewSectionBlock(nil, fields, nil))

	reasonText := fmt.Sprintf("*Reason:* %s", r.Reason)
	if r.Details != "" {
		reasonText += "\n> " + r.Details
	}
	blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("mrkdwn", reasonText, false, false), nil, nil))

	if r.TargetImageRef != "" && isPublicURL(r.TargetImageRef) {
		blocks = append(blocks, slack.NewImageBlock(r.TargetImageRef, "reported drawing", "", nil))
	}

	contextText := fmt.Sprintf("Report %s · %s", orDash(r.ID), r.CreatedAt.UTC().Format(time.RFC3339))
	blocks = append(blocks, slack.NewContextBlock("", slack.NewTextBlockObject("plain_text", contextText, true, false)))

	msg := slack.NewBlockMessage(blocks...)
	msg.Text = fmt.Sprintf("New report on %s %s: %s", r.TargetType, r.TargetID, r.Reason)
	return msg
}

// formatLeaderboard creates a Slack message to display the overall ranking.
func (s *Notifier) formatLeaderboard(chars []character.Character) slack.Message {
	blocks := make([]slack.Block, 0, len(chars)+1)

	headerText := slack.NewTextBlockObject("plain_text", "🏆 Arena Leaderboard 🏆", true, false)
	blocks = append(blocks, slack.NewHeaderBlock(headerText))

	if len(chars) == 0 {
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", "No characters yet. Go draw something!", true, false), nil, nil))
		return slack.NewBlockMessage(blocks...)
	}

	for i, c := range chars {
		text := fmt.Sprintf("%d. %s %s\n> *Rank*: %d | *Record*: %d-%d-%d | *Win rate*: %.0f%%",
			i+1, medal(i+1), c.Name, c.Rank, c.Wins, c.Losses, c.Draws, c.WinRate)
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("mrkdwn", text, false, false), nil, nil))
	}
	return slack.NewBlockMessage(blocks...)
}

// formatWeeklyLeaderboard creates a Slack message for one ISO week.
func (s *Notifier) formatWeeklyLeaderboard(weekKey string, chars []character.Character) slack.Message {
	blocks := make([]slack.Block, 0, len(chars)+1)

	headerText := slack.NewTextBlockObject("plain_text", "📅 Weekly Leaderboard "+weekKey, true, false)
	blocks = append(blocks, slack.NewHeaderBlock(headerText))

	if len(chars) == 0 {
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", "No battles this week.", true, false), nil, nil))
		return slack.NewBlockMessage(blocks...)
	}

	for i, c := range chars {
		text := fmt.Sprintf("%d. %s %s\n> *Points*: %+d | *Record*: %d-%d-%d",
			i+1, medal(i+1), c.Name, c.WeeklyPoints, c.WeeklyWins, c.WeeklyLosses, c.WeeklyDraws)
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("mrkdwn", text, false, false), nil, nil))
	}
	msg := slack.NewBlockMessage(blocks...)
	msg.Text = "Weekly leaderboard " + weekKey
	return msg
}

func medal(place int) string {
	switch place {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	}
	return ""
}

func isPublicURL(ref string) bool {
	return strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "http://")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
