package judge

import (
	"errors"
	"fmt"
	"time"

	"github.com/mauv0809/sketch-arena/internal/imageresolver"
	"github.com/mauv0809/sketch-arena/internal/scoring"
)

// ErrUnavailable means no model produced an answer. It never leaves the
// package; Judge turns it into a random verdict.
var ErrUnavailable = errors.New("judge unavailable")

// MaxReasoningRunes bounds the verdict text shown to players.
const MaxReasoningRunes = 100

// Fallback reasons reported with a Verdict.
const (
	FallbackNoAPIKey      = "no_api_key"
	FallbackUnavailable   = "unavailable"
	FallbackUnparseable   = "unparseable"
	FallbackInvalidResult = "invalid_result"
)

// Contender is one side of a battle as presented to the model.
type Contender struct {
	Name        string
	Description string
	Image       *imageresolver.Image
}

// Verdict is the reconciled judgment from the requester's perspective.
type Verdict struct {
	Result       scoring.Outcome
	Reasoning    string
	PointsChange int
	// Model is the model id that answered, empty for random verdicts.
	Model string
	// Fallback names why the verdict was not taken from a model answer.
	Fallback string
}

// Config configures a Client.
type Config struct {
	APIKey      string
	BaseURL     string
	Models      []string
	CallTimeout time.Duration
	Language    string
}

// callError is a failed generateContent or models call.
type callError struct {
	model  string
	status int // 0 for transport failures
	body   string
	err    error
}

func (e *callError) Error() string {
	if e.status == 0 {
		return fmt.Sprintf("gemini %s: %v", e.model, e.err)
	}
	return fmt.Sprintf("gemini %s: http %d: %s", e.model, e.status, e.body)
}

func (e *callError) Unwrap() error { return e.err }

// modelMissing reports whether discovering other models may help.
func (e *callError) modelMissing() bool {
	return e.status == 0 || e.status == 404
}
