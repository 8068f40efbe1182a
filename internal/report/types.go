package report

import (
	"database/sql"
	"errors"
	"sync"
	"time"
)

// ErrValidation marks malformed reports.
var ErrValidation = errors.New("invalid report")

const (
	MaxReasonRunes  = 120
	MaxDetailsRunes = 1000

	StatusPending = "pending"
)

// TargetType is what a report points at.
type TargetType string

const (
	TargetCharacter TargetType = "character"
	TargetBattle    TargetType = "battle"
	TargetUser      TargetType = "user"
)

func (t TargetType) Valid() bool {
	switch t {
	case TargetCharacter, TargetBattle, TargetUser:
		return true
	}
	return false
}

// store handles report persistence.
type store struct {
	db *sql.DB
	mu sync.Mutex
}

// Report is a moderation report. Character targets carry a snapshot of the
// character taken when the report was filed.
type Report struct {
	ID                  string     `json:"id" msgpack:"id"`
	TargetType          TargetType `json:"targetType" msgpack:"targetType"`
	TargetID            string     `json:"targetId" msgpack:"targetId"`
	Reason              string     `json:"reason" msgpack:"reason"`
	Details             string     `json:"details,omitempty" msgpack:"details"`
	ReporterID          string     `json:"reporterId,omitempty" msgpack:"reporterId"`
	ReporterIsAnonymous bool       `json:"reporterIsAnonymous" msgpack:"reporterIsAnonymous"`
	TargetName          string     `json:"targetName,omitempty" msgpack:"targetName"`
	TargetUserID        string     `json:"targetUserId,omitempty" msgpack:"targetUserId"`
	TargetImageRef      string     `json:"targetImageUrl,omitempty" msgpack:"targetImageUrl"`
	Status              string     `json:"status" msgpack:"status"`
	CreatedAt           time.Time  `json:"createdAt" msgpack:"createdAt"`
}

// Input is a report as submitted by a client.
type Input struct {
	TargetType          TargetType `json:"targetType"`
	TargetID            string     `json:"targetId"`
	Reason              string     `json:"reason"`
	Details             string     `json:"details,omitempty"`
	ReporterID          string     `json:"reporterId,omitempty"`
	ReporterIsAnonymous bool       `json:"reporterIsAnonymous,omitempty"`
}

// Result tells the client whether the report was stored.
type Result struct {
	Success   bool   `json:"success"`
	Persisted bool   `json:"persisted"`
	ID        string `json:"id,omitempty"`
}
