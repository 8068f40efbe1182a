package cooldown

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/sketch-arena/internal/character"
	"github.com/mauv0809/sketch-arena/internal/metrics"
)

// DefaultWindow is the minimum spacing between two battles of one character.
const DefaultWindow = 15 * time.Second

// Error is returned when a character is still cooling down.
type Error struct {
	Remaining time.Duration
}

func (e *Error) Error() string {
	return fmt.Sprintf("character is cooling down, retry in %ds", e.RetryAfterSeconds())
}

// RetryAfterSeconds returns the remaining wait rounded up to whole seconds.
func (e *Error) RetryAfterSeconds() int {
	return int(math.Ceil(e.Remaining.Seconds()))
}

// LastBattleReader exposes the persisted battle timestamp of a character.
type LastBattleReader interface {
	LastBattleAt(ctx context.Context, id string) (time.Time, error)
}

// Guard enforces the battle cooldown. A process-local map of attempt times
// rejects bursts without touching storage; the persisted lastBattleAt is
// consulted for everything that passes it.
type Guard struct {
	window  time.Duration
	reader  LastBattleReader
	metrics metrics.Metrics
	now     func() time.Time

	mu       sync.Mutex
	attempts map[string]time.Time
}

// Option configures a Guard.
type Option func(*Guard)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// New creates a Guard. A non-positive window falls back to DefaultWindow.
func New(window time.Duration, reader LastBattleReader, m metrics.Metrics, opts ...Option) *Guard {
	if window <= 0 {
		window = DefaultWindow
	}
	g := &Guard{
		window:   window,
		reader:   reader,
		metrics:  m,
		now:      time.Now,
		attempts: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Acquire admits one battle attempt for id or returns *Error with the
// remaining wait. Admitted attempts are recorded in memory.
func (g *Guard) Acquire(ctx context.Context, id string) error {
	now := g.now()

	g.mu.Lock()
	if last, ok := g.attempts[id]; ok {
		if remaining := last.Add(g.window).Sub(now); remaining > 0 {
			g.mu.Unlock()
			g.metrics.IncCooldownRejected(metrics.LayerMemory)
			return &Error{Remaining: remaining}
		}
		delete(g.attempts, id)
	}
	g.attempts[id] = now
	g.mu.Unlock()

	last, err := g.reader.LastBattleAt(ctx, id)
	if err != nil {
		if errors.Is(err, character.ErrNotFound) {
			g.Release(id)
			return err
		}
		// The battle transaction re-checks lastBattleAt, so a failed read
		// only loses the early rejection.
		log.Warn("Cooldown lookup failed, admitting attempt", "character", id, "error", err)
		return nil
	}
	if last.IsZero() {
		return nil
	}
	if remaining := last.Add(g.window).Sub(now); remaining > 0 {
		g.mu.Lock()
		g.attempts[id] = last
		g.mu.Unlock()
		g.metrics.IncCooldownRejected(metrics.LayerStore)
		return &Error{Remaining: remaining}
	}
	return nil
}

// Release forgets the in-memory attempt of id, used when no battle took place.
func (g *Guard) Release(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.attempts, id)
}

// Sweep evicts every attempt older than the window and returns how many
// entries were removed.
func (g *Guard) Sweep() int {
	cutoff := g.now().Add(-g.window)

	g.mu.Lock()
	defer g.mu.Unlock()
	removed := 0
	for id, at := range g.attempts {
		if !at.After(cutoff) {
			delete(g.attempts, id)
			removed++
		}
	}
	return removed
}

// Run sweeps once per window until ctx is done.
func (g *Guard) Run(ctx context.Context) {
	ticker := time.NewTicker(g.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := g.Sweep(); n > 0 {
				log.Debug("Swept cooldown entries", "removed", n)
			}
		}
	}
}

// Len returns the number of tracked attempts.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.attempts)
}
