package metrics

import "github.com/prometheus/client_golang/prometheus"

// Service holds all the Prometheus metrics for the application.
type Service struct {
	BattlesResolved    *prometheus.CounterVec
	JudgeFallbacks     *prometheus.CounterVec
	JudgeDuration      prometheus.Histogram
	Persistence        *prometheus.CounterVec
	CooldownRejected   *prometheus.CounterVec
	OpponentSampled    *prometheus.CounterVec
	ReportsFiled       *prometheus.CounterVec
	SlackNotifSent     prometheus.Counter
	SlackNotifFailed   prometheus.Counter
	StartupTimeSeconds prometheus.Gauge
}
