package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mauv0809/sketch-arena/internal/character"
	"github.com/mauv0809/sketch-arena/internal/metrics"
	"github.com/mauv0809/sketch-arena/internal/pubsub"
)

// Service ingests moderation reports.
type Service struct {
	store        ReportStore
	characters   character.CharacterStore
	notifier     Notifier
	pubsub       pubsub.PubSubClient
	metrics      metrics.Metrics
	metricsStore metrics.MetricsStore
	now          func() time.Time
}

func NewService(store ReportStore, characters character.CharacterStore, n Notifier, pubsubClient pubsub.PubSubClient, m metrics.Metrics, ms metrics.MetricsStore) *Service {
	return &Service{
		store:        store,
		characters:   characters,
		notifier:     n,
		pubsub:       pubsubClient,
		metrics:      m,
		metricsStore: ms,
		now:          time.Now,
	}
}

// File validates, normalizes and stores a report. Storage failures are not
// errors: the result then has Persisted=false and no id.
func (s *Service) File(ctx context.Context, in Input, dryRun bool) (*Result, error) {
	in.TargetType = TargetType(strings.ToLower(strings.TrimSpace(string(in.TargetType))))
	in.TargetID = strings.TrimSpace(in.TargetID)
	in.Reason = strings.TrimSpace(in.Reason)
	switch {
	case !in.TargetType.Valid():
		return nil, fmt.Errorf("%w: targetType must be character, battle or user", ErrValidation)
	case in.TargetID == "":
		return nil, fmt.Errorf("%w: targetId is required", ErrValidation)
	case in.Reason == "":
		return nil, fmt.Errorf("%w: reason is required", ErrValidation)
	}

	r := &Report{
		ID:                  "rep-" + uuid.NewString(),
		TargetType:          in.TargetType,
		TargetID:            in.TargetID,
		Reason:              truncate(in.Reason, MaxReasonRunes),
		Details:             truncate(strings.TrimSpace(in.Details), MaxDetailsRunes),
		ReporterID:          in.ReporterID,
		ReporterIsAnonymous: in.ReporterIsAnonymous || in.ReporterID == "",
		Status:              StatusPending,
		CreatedAt:           s.now().UTC().Truncate(time.Millisecond),
	}
	if r.TargetType == TargetCharacter {
		s.enrich(ctx, r)
	}

	res := &Result{Success: true}
	if err := s.store.Insert(ctx, r); err != nil {
		log.Warn("Report not persisted", "error", err, "target", r.TargetID)
	} else {
		res.Persisted = true
		res.ID = r.ID
		s.metricsStore.Increment(metrics.KeyReportsFiled)
	}
	s.metrics.IncReportsFiled(res.Persisted)

	s.announce(ctx, r, dryRun)
	return res, nil
}

// enrich snapshots the reported character. A missing character is not an error.
func (s *Service) enrich(ctx context.Context, r *Report) {
	c, err := s.characters.Get(ctx, r.TargetID)
	if err != nil {
		log.Debug("Report target not enriched", "target", r.TargetID, "error", err)
		return
	}
	r.TargetName = c.Name
	r.TargetUserID = c.UserID
	r.TargetImageRef = c.ImageRef
}

// announce publishes the report-filed event. Moderators are notified
// directly when the event cannot be published; otherwise the push handler
// does it.
func (s *Service) announce(ctx context.Context, r *Report, dryRun bool) {
	err := s.pubsub.SendMessage(ctx, pubsub.EventReportFiled, r)
	if err == nil {
		return
	}
	log.Debug("Report event not published, notifying directly", "error", err)
	if err := s.notifier.SendReportNotification(ctx, r, dryRun); err != nil {
		log.Warn("Failed to notify moderators", "error", err, "report", r.ID)
	}
}

// Pending lists reports awaiting moderation.
func (s *Service) Pending(ctx context.Context, limit int) ([]Report, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListPending(ctx, limit)
}

// Notify sends r to moderators. Push handlers call it for events delivered
// through pubsub.
func (s *Service) Notify(ctx context.Context, r *Report, dryRun bool) error {
	return s.notifier.SendReportNotification(ctx, r, dryRun)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
