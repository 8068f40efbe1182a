package report

import "context"

// ReportStore persists reports.
type ReportStore interface {
	Insert(ctx context.Context, r *Report) error
	ListPending(ctx context.Context, limit int) ([]Report, error)
}

// Notifier announces filed reports to moderators.
// This keeps the report package decoupled from the main notifier interface.
type Notifier interface {
	SendReportNotification(ctx context.Context, r *Report, dryRun bool) error
}
