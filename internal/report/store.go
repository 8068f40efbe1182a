package report

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mauv0809/sketch-arena/internal/character"
)

// New creates a ReportStore.
func New(db *sql.DB) ReportStore {
	return &store{
		db: db,
	}
}

func (s *store) Insert(ctx context.Context, r *Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (id, target_type, target_id, reason, details, reporter_id, reporter_is_anonymous,
			target_name, target_user_id, target_image_ref, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.TargetType, r.TargetID, r.Reason, r.Details, r.ReporterID, r.ReporterIsAnonymous,
		r.TargetName, r.TargetUserID, r.TargetImageRef, r.Status, character.ToMillis(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert report %s: %w", r.ID, err)
	}
	return nil
}

// ListPending returns the oldest pending reports first.
func (s *store) ListPending(ctx context.Context, limit int) ([]Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, target_type, target_id, reason, details, reporter_id, reporter_is_anonymous,
			target_name, target_user_id, target_image_ref, status, created_at
		FROM reports
		WHERE status = ?
		ORDER BY created_at ASC
		LIMIT ?
	`, StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var out []Report
	for rows.Next() {
		var r Report
		var created int64
		if err := rows.Scan(&r.ID, &r.TargetType, &r.TargetID, &r.Reason, &r.Details, &r.ReporterID,
			&r.ReporterIsAnonymous, &r.TargetName, &r.TargetUserID, &r.TargetImageRef, &r.Status, &created); err != nil {
			return nil, err
		}
		r.CreatedAt = character.FromMillis(created)
		out = append(out, r)
	}
	return out, rows.Err()
}
