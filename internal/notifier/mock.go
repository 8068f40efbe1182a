package notifier

import (
	"context"
	"sync"

	"github.com/mauv0809/sketch-arena/internal/character"
	"github.com/mauv0809/sketch-arena/internal/report"
)

var _ Notifier = (*Mock)(nil)

// Mock is a mock implementation of the Notifier interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu sync.Mutex

	// Spies
	SendReportNotificationFunc func(r *report.Report, dryRun bool) error
	SendWeeklyLeaderboardFunc  func(weekKey string, chars []character.Character, dryRun bool) error

	// Call records
	SendReportNotificationCalls []*report.Report
	SendWeeklyLeaderboardCalls  []WeeklyLeaderboardCall
	FormatLeaderboardCalls      [][]character.Character
	FormatWeeklyCalls           []WeeklyLeaderboardCall
}

// WeeklyLeaderboardCall holds the arguments of a weekly leaderboard call.
type WeeklyLeaderboardCall struct {
	WeekKey string
	Chars   []character.Character
	DryRun  bool
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{}
}

// Reset clears all call records.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendReportNotificationCalls = nil
	m.SendWeeklyLeaderboardCalls = nil
	m.FormatLeaderboardCalls = nil
	m.FormatWeeklyCalls = nil
}

func (m *Mock) SendReportNotification(_ context.Context, r *report.Report, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendReportNotificationCalls = append(m.SendReportNotificationCalls, r)
	if m.SendReportNotificationFunc != nil {
		return m.SendReportNotificationFunc(r, dryRun)
	}
	return nil
}

func (m *Mock) SendWeeklyLeaderboard(_ context.Context, weekKey string, chars []character.Character, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendWeeklyLeaderboardCalls = append(m.SendWeeklyLeaderboardCalls, WeeklyLeaderboardCall{WeekKey: weekKey, Chars: chars, DryRun: dryRun})
	if m.SendWeeklyLeaderboardFunc != nil {
		return m.SendWeeklyLeaderboardFunc(weekKey, chars, dryRun)
	}
	return nil
}

func (m *Mock) FormatLeaderboardResponse(chars []character.Character) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FormatLeaderboardCalls = append(m.FormatLeaderboardCalls, chars)
	return map[string]any{"text": "leaderboard", "count": len(chars)}, nil
}

func (m *Mock) FormatWeeklyLeaderboardResponse(weekKey string, chars []character.Character) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FormatWeeklyCalls = append(m.FormatWeeklyCalls, WeeklyLeaderboardCall{WeekKey: weekKey, Chars: chars})
	return map[string]any{"text": "weekly " + weekKey, "count": len(chars)}, nil
}

// ReportsSent returns a copy of the report notification calls.
func (m *Mock) ReportsSent() []*report.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*report.Report(nil), m.SendReportNotificationCalls...)
}

// WeeklySent returns a copy of the weekly leaderboard calls.
func (m *Mock) WeeklySent() []WeeklyLeaderboardCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]WeeklyLeaderboardCall(nil), m.SendWeeklyLeaderboardCalls...)
}
