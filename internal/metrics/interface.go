package metrics

// Metrics defines the interface for collecting application metrics.
// This decouples the application from the specific metrics implementation (e.g., Prometheus).
type Metrics interface {
	IncBattlesResolved(outcome string)
	IncJudgeFallback(reason string)
	ObserveJudgeDuration(seconds float64)
	IncPersistence(path string)
	IncCooldownRejected(layer string)
	IncOpponentSampled(pool int)
	IncReportsFiled(persisted bool)
	IncSlackNotifSent()
	IncSlackNotifFailed()
	SetStartupTime(duration float64)
}

// MetricsStore keeps lifetime counters in the database so they survive restarts.
type MetricsStore interface {
	Increment(key string)
	GetAll() (map[string]int, error)
}

// Persistence path labels.
const (
	PathPrivileged = "privileged"
	PathFallback   = "fallback"
	PathNone       = "none"
)

// Cooldown layer labels.
const (
	LayerMemory = "memory"
	LayerStore  = "store"
)

// Keys written to the MetricsStore.
const (
	KeyBattlesResolved = "battles_resolved"
	KeyJudgeFallbacks  = "judge_fallbacks"
	KeyReportsFiled    = "reports_filed"
)
