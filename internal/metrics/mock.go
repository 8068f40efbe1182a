package metrics

import "sync"

var _ Metrics = (*Mock)(nil)

// Mock is a mock implementation of the Metrics interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu               sync.Mutex
	battlesResolved  map[string]int
	judgeFallbacks   map[string]int
	judgeDurations   []float64
	persistence      map[string]int
	cooldownRejected map[string]int
	opponentSampled  map[int]int
	reportsFiled     map[bool]int
	slackNotifSent   int
	slackNotifFailed int
	startupTime      float64
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{
		battlesResolved:  make(map[string]int),
		judgeFallbacks:   make(map[string]int),
		judgeDurations:   make([]float64, 0),
		persistence:      make(map[string]int),
		cooldownRejected: make(map[string]int),
		opponentSampled:  make(map[int]int),
		reportsFiled:     make(map[bool]int),
	}
}

func (m *Mock) IncBattlesResolved(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.battlesResolved[outcome]++
}

func (m *Mock) IncJudgeFallback(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.judgeFallbacks[reason]++
}

func (m *Mock) ObserveJudgeDuration(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.judgeDurations = append(m.judgeDurations, seconds)
}

func (m *Mock) IncPersistence(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persistence[path]++
}

func (m *Mock) IncCooldownRejected(layer string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cooldownRejected[layer]++
}

func (m *Mock) IncOpponentSampled(pool int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opponentSampled[pool]++
}

func (m *Mock) IncReportsFiled(persisted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reportsFiled[persisted]++
}

func (m *Mock) IncSlackNotifSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slackNotifSent++
}

func (m *Mock) IncSlackNotifFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slackNotifFailed++
}

func (m *Mock) SetStartupTime(duration float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startupTime = duration
}

// BattlesResolved returns how often IncBattlesResolved was called with outcome.
func (m *Mock) BattlesResolved(outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.battlesResolved[outcome]
}

// JudgeFallbacks returns how often IncJudgeFallback was called with reason.
func (m *Mock) JudgeFallbacks(reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.judgeFallbacks[reason]
}

// JudgeDurations returns a copy of every observed judge duration.
func (m *Mock) JudgeDurations() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.judgeDurations...)
}

// Persistence returns how often IncPersistence was called with path.
func (m *Mock) Persistence(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persistence[path]
}

// CooldownRejected returns how often IncCooldownRejected was called with layer.
func (m *Mock) CooldownRejected(layer string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cooldownRejected[layer]
}

// OpponentSampled returns how often IncOpponentSampled was called with pool.
func (m *Mock) OpponentSampled(pool int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opponentSampled[pool]
}

// ReportsFiled returns how often IncReportsFiled was called with persisted.
func (m *Mock) ReportsFiled(persisted bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reportsFiled[persisted]
}

// SlackNotifSent returns the number of times IncSlackNotifSent was called.
func (m *Mock) SlackNotifSent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slackNotifSent
}

// SlackNotifFailed returns the number of times IncSlackNotifFailed was called.
func (m *Mock) SlackNotifFailed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slackNotifFailed
}

// StartupTime returns the last value passed to SetStartupTime.
func (m *Mock) StartupTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startupTime
}
