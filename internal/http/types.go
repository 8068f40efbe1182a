package http

import (
	"context"
	"net/http"

	"github.com/mauv0809/sketch-arena/internal/battle"
	"github.com/mauv0809/sketch-arena/internal/character"
	"github.com/mauv0809/sketch-arena/internal/config"
	"github.com/mauv0809/sketch-arena/internal/metrics"
	"github.com/mauv0809/sketch-arena/internal/notifier"
	"github.com/mauv0809/sketch-arena/internal/pubsub"
	"github.com/mauv0809/sketch-arena/internal/report"
)

const (
	defaultRankingsLimit = 100
	maxRankingsLimit     = 100
	defaultWeeklyLimit   = 100
	maxWeeklyLimit       = 200
	slackLeaderboardSize = 10
)

// BattleService is the part of battle.Service the handlers use.
type BattleService interface {
	Resolve(ctx context.Context, req battle.Request) (*battle.Result, error)
	MatchFor(ctx context.Context, userID, characterID string) (*character.Character, error)
	History(ctx context.Context, characterID string, limit int) ([]battle.Record, error)
}

// ReportService is the part of report.Service the handlers use.
type ReportService interface {
	File(ctx context.Context, in report.Input, dryRun bool) (*report.Result, error)
	Pending(ctx context.Context, limit int) ([]report.Report, error)
	Notify(ctx context.Context, r *report.Report, dryRun bool) error
}

type Server struct {
	Characters     character.CharacterStore
	Battles        BattleService
	Reports        ReportService
	Notifier       notifier.Notifier
	Metrics        metrics.Metrics
	MetricsHandler http.Handler
	MetricsStore   metrics.MetricsStore
	Cfg            config.Config
	Router         *http.ServeMux

	pubsub  pubsub.PubSubClient
	handler http.Handler
}

type errorResponse struct {
	Success           bool   `json:"success"`
	Error             string `json:"error"`
	RetryAfterSeconds int    `json:"retryAfterSeconds,omitempty"`
}

type battleResponse struct {
	Success         bool                 `json:"success"`
	Result          string               `json:"result"`
	Reasoning       string               `json:"reasoning"`
	PointsChange    int                  `json:"pointsChange"`
	Persisted       bool                 `json:"persisted"`
	PersistedVia    string               `json:"persistedVia,omitempty"`
	BattleID        string               `json:"battleId,omitempty"`
	UpdatedPlayer   *character.Character `json:"updatedPlayer,omitempty"`
	UpdatedOpponent *character.Character `json:"updatedOpponent,omitempty"`
	Opponent        *character.Character `json:"opponent,omitempty"`
}

type matchRequest struct {
	UserID      string `json:"userId"`
	CharacterID string `json:"characterId"`
}

type matchResponse struct {
	Success  bool                 `json:"success"`
	Opponent *character.Character `json:"opponent"`
}

type rankingsResponse struct {
	Success    bool                  `json:"success"`
	Characters []character.Character `json:"characters"`
	Count      int                   `json:"count"`
	Offset     int                   `json:"offset"`
	Limit      int                   `json:"limit"`
}

// weeklyEntry presents weekly aggregates under the overall field names.
type weeklyEntry struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	UserID       string  `json:"userId"`
	ImageRef     string  `json:"imageUrl,omitempty"`
	Rank         int     `json:"rank"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	Draws        int     `json:"draws"`
	WinRate      float64 `json:"winRate"`
	TotalBattles int     `json:"totalBattles"`
}

type weeklyResponse struct {
	Success    bool          `json:"success"`
	WeekKey    string        `json:"weekKey"`
	Characters []weeklyEntry `json:"characters"`
}

type charactersResponse struct {
	Success    bool                  `json:"success"`
	Characters []character.Character `json:"characters"`
	Count      int                   `json:"count"`
}

type historyResponse struct {
	Success bool            `json:"success"`
	Battles []battle.Record `json:"battles"`
}

type statsResponse struct {
	Success  bool           `json:"success"`
	Counters map[string]int `json:"counters"`
}

type pendingReportsResponse struct {
	Success bool            `json:"success"`
	Reports []report.Report `json:"reports"`
}

// pushMessage is the envelope of a Pub/Sub push delivery.
type pushMessage struct {
	Subscription string `json:"subscription"`
	Message      struct {
		Data       string            `json:"data"`
		Attributes map[string]string `json:"attributes"`
		MessageID  string            `json:"messageId"`
	} `json:"message"`
}
