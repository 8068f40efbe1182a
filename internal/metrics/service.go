package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ Metrics = (*Service)(nil)

// NewMetricsHandler returns an http.Handler for the given Gatherer.
// If no gatherer is provided, it uses the default one.
func NewMetricsHandler(gatherer ...prometheus.Gatherer) http.Handler {
	gath := prometheus.DefaultGatherer
	if len(gatherer) > 0 {
		gath = gatherer[0]
	}
	return promhttp.HandlerFor(gath, promhttp.HandlerOpts{})
}

// NewService creates and registers the Prometheus metrics.
// If no registerer is provided, it uses the default Prometheus registerer.
func NewService(registerer ...prometheus.Registerer) *Service {
	reg := prometheus.DefaultRegisterer
	if len(registerer) > 0 {
		reg = registerer[0]
	}

	s := &Service{
		BattlesResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_battles_resolved_total",
			Help: "Battles judged, by requester outcome.",
		}, []string{"outcome"}),
		JudgeFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_judge_fallbacks_total",
			Help: "Verdicts produced without a usable model answer, by reason.",
		}, []string{"reason"}),
		JudgeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arena_judge_duration_seconds",
			Help:    "Time spent obtaining a verdict, including model fallbacks.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		}),
		Persistence: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_battle_persistence_total",
			Help: "Battle outcomes by the persistence path that stored them.",
		}, []string{"path"}),
		CooldownRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_cooldown_rejected_total",
			Help: "Battle attempts rejected by the cooldown guard, by layer.",
		}, []string{"layer"}),
		OpponentSampled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_opponent_sampled_total",
			Help: "Opponents picked by the sampler, by candidate pool.",
		}, []string{"pool"}),
		ReportsFiled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_reports_filed_total",
			Help: "Moderation reports received, by whether they were stored.",
		}, []string{"persisted"}),
		SlackNotifSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arena_slack_notifications_sent_total",
			Help: "The total number of Slack notifications successfully sent.",
		}),
		SlackNotifFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arena_slack_notifications_failed_total",
			Help: "The total number of Slack notifications that failed to send.",
		}),
		StartupTimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arena_startup_duration_seconds",
			Help: "The duration of the application startup in seconds.",
		}),
	}

	reg.MustRegister(
		s.BattlesResolved,
		s.JudgeFallbacks,
		s.JudgeDuration,
		s.Persistence,
		s.CooldownRejected,
		s.OpponentSampled,
		s.ReportsFiled,
		s.SlackNotifSent,
		s.SlackNotifFailed,
		s.StartupTimeSeconds,
	)

	return s
}

func (s *Service) IncBattlesResolved(outcome string) {
	s.BattlesResolved.WithLabelValues(outcome).Inc()
}

func (s *Service) IncJudgeFallback(reason string) {
	s.JudgeFallbacks.WithLabelValues(reason).Inc()
}

func (s *Service) ObserveJudgeDuration(seconds float64) {
	s.JudgeDuration.Observe(seconds)
}

func (s *Service) IncPersistence(path string) {
	s.Persistence.WithLabelValues(path).Inc()
}

func (s *Service) IncCooldownRejected(layer string) {
	s.CooldownRejected.WithLabelValues(layer).Inc()
}

func (s *Service) IncOpponentSampled(pool int) {
	s.OpponentSampled.WithLabelValues(strconv.Itoa(pool)).Inc()
}

func (s *Service) IncReportsFiled(persisted bool) {
	s.ReportsFiled.WithLabelValues(strconv.FormatBool(persisted)).Inc()
}

func (s *Service) IncSlackNotifSent() {
	s.SlackNotifSent.Inc()
}

func (s *Service) IncSlackNotifFailed() {
	s.SlackNotifFailed.Inc()
}

func (s *Service) SetStartupTime(duration float64) {
	s.StartupTimeSeconds.Set(duration)
}
