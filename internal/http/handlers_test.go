package http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/mauv0809/sketch-arena/internal/battle"
	"github.com/mauv0809/sketch-arena/internal/character"
	"github.com/mauv0809/sketch-arena/internal/config"
	"github.com/mauv0809/sketch-arena/internal/cooldown"
	"github.com/mauv0809/sketch-arena/internal/database"
	"github.com/mauv0809/sketch-arena/internal/imageresolver"
	"github.com/mauv0809/sketch-arena/internal/judge"
	"github.com/mauv0809/sketch-arena/internal/matchmaking"
	"github.com/mauv0809/sketch-arena/internal/metrics"
	"github.com/mauv0809/sketch-arena/internal/notifier"
	"github.com/mauv0809/sketch-arena/internal/pubsub"
	"github.com/mauv0809/sketch-arena/internal/report"
	"github.com/mauv0809/sketch-arena/internal/scoring"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSlackSigningSecret = "test-signing-secret"

type testServer struct {
	*Server
	characters character.CharacterStore
	notifier   *notifier.Mock
	pubsub     *pubsub.MockPubSubClient
	metrics    *metrics.Service
}

// setupTestServer wires the real services on an in-memory database. The
// judge has no API key and always falls back to a win.
func setupTestServer(t *testing.T, cfg config.Config, chars ...character.Character) *testServer {
	t.Helper()

	db, err := database.InitDB(":memory:", "", "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	characters := character.New(db)
	for i := range chars {
		require.NoError(t, characters.Create(context.Background(), &chars[i]))
	}

	reg := prometheus.NewRegistry()
	metricsSvc := metrics.NewService(reg)
	metricsStore := metrics.New(db)
	pubsubClient := pubsub.NewMock()
	mockNotifier := notifier.NewMock()

	if cfg.Battle.Cooldown == 0 {
		cfg.Battle = config.BattleConfig{Cooldown: 15 * time.Second, PrivilegedWrites: true, FallbackWrites: true}
	}
	if cfg.CORS.AllowedOrigins == nil {
		cfg.CORS.AllowedOrigins = []string{"*"}
	}

	battles := battle.NewService(
		characters,
		battle.New(db),
		cooldown.New(cfg.Battle.Cooldown, characters, metricsSvc),
		matchmaking.New(characters, metricsSvc),
		imageresolver.New(time.Second, ""),
		judge.New(judge.Config{}, metricsSvc, judge.WithIntN(func(int) int { return 0 })),
		pubsubClient,
		metricsSvc,
		metricsStore,
		cfg.Battle,
	)
	reports := report.NewService(report.New(db), characters, mockNotifier, pubsubClient, metricsSvc, metricsStore)

	server := NewServer(characters, battles, reports, mockNotifier, pubsubClient, metricsSvc, metrics.NewMetricsHandler(reg), metricsStore, cfg)
	return &testServer{Server: server, characters: characters, notifier: mockNotifier, pubsub: pubsubClient, metrics: metricsSvc}
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealthCheckHandler(t *testing.T) {
	server := setupTestServer(t, config.Config{})

	rr := do(t, server, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rr.Code, "handler returned wrong status code")
	assert.Equal(t, "OK!", rr.Body.String(), "handler returned unexpected body")
	assert.NotEmpty(t, rr.Header().Get(requestIDHeader))
}

func TestRequestID_Propagated(t *testing.T) {
	server := setupTestServer(t, config.Config{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)
	assert.Equal(t, "req-42", rr.Header().Get(requestIDHeader))
}

func TestCORS_Preflight(t *testing.T) {
	server := setupTestServer(t, config.Config{CORS: config.CORSConfig{AllowedOrigins: []string{"https://arena.example"}}})

	req := httptest.NewRequest(http.MethodOptions, "/api/battle", nil)
	req.Header.Set("Origin", "https://arena.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	assert.Equal(t, "https://arena.example", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestBattleHandler_ResolvesAndPersists(t *testing.T) {
	server := setupTestServer(t, config.Config{},
		character.Character{ID: "p", UserID: "u1", Name: "Knight"},
		character.Character{ID: "o", UserID: "u2", Name: "Apple"},
	)

	rr := do(t, server, http.MethodPost, "/api/battle", battle.Request{
		Player:   battle.Participant{ID: "p"},
		Opponent: battle.Participant{ID: "o"},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	resp := decode[battleResponse](t, rr)
	assert.True(t, resp.Success)
	assert.Equal(t, string(scoring.Win), resp.Result)
	assert.Equal(t, 20, resp.PointsChange)
	assert.True(t, resp.Persisted)
	assert.Equal(t, string(battle.ViaPrivileged), resp.PersistedVia)
	assert.NotEmpty(t, resp.BattleID)
	require.NotNil(t, resp.UpdatedPlayer)
	require.NotNil(t, resp.UpdatedOpponent)
	assert.Equal(t, 1020, resp.UpdatedPlayer.Rank)
	assert.Equal(t, 980, resp.UpdatedOpponent.Rank)

	stored, err := server.characters.Get(context.Background(), "o")
	require.NoError(t, err)
	assert.Equal(t, 980, stored.Rank)
}

func TestBattleHandler_SamplesOpponentWhenMissing(t *testing.T) {
	server := setupTestServer(t, config.Config{},
		character.Character{ID: "p", UserID: "u1"},
		character.Character{ID: "o", UserID: "u2"},
	)

	rr := do(t, server, http.MethodPost, "/api/battle", map[string]any{"player": map[string]string{"id": "p"}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[battleResponse](t, rr)
	require.NotNil(t, resp.Opponent)
	assert.Equal(t, "o", resp.Opponent.ID)
}

func TestBattleHandler_Errors(t *testing.T) {
	server := setupTestServer(t, config.Config{},
		character.Character{ID: "p", UserID: "u1"},
		character.Character{ID: "mine", UserID: "u1"},
	)

	t.Run("invalid json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/battle", strings.NewReader("{"))
		rr := httptest.NewRecorder()
		server.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("missing player", func(t *testing.T) {
		rr := do(t, server, http.MethodPost, "/api/battle", battle.Request{Opponent: battle.Participant{ID: "p"}})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("self battle", func(t *testing.T) {
		rr := do(t, server, http.MethodPost, "/api/battle", battle.Request{Player: battle.Participant{ID: "p"}, Opponent: battle.Participant{ID: "p"}})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown player", func(t *testing.T) {
		rr := do(t, server, http.MethodPost, "/api/battle", battle.Request{Player: battle.Participant{ID: "ghost"}, Opponent: battle.Participant{ID: "p"}})
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestBattleHandler_NoOpponent(t *testing.T) {
	server := setupTestServer(t, config.Config{}, character.Character{ID: "p", UserID: "u1"})

	rr := do(t, server, http.MethodPost, "/api/battle", battle.Request{Player: battle.Participant{ID: "p"}})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, decode[errorResponse](t, rr).Error, "No opponent")
}

func TestBattleHandler_Cooldown(t *testing.T) {
	server := setupTestServer(t, config.Config{},
		character.Character{ID: "p", UserID: "u1"},
		character.Character{ID: "o", UserID: "u2"},
	)
	req := battle.Request{Player: battle.Participant{ID: "p"}, Opponent: battle.Participant{ID: "o"}}

	first := do(t, server, http.MethodPost, "/api/battle", req)
	require.Equal(t, http.StatusOK, first.Code)

	second := do(t, server, http.MethodPost, "/api/battle", req)
	require.Equal(t, http.StatusTooManyRequests, second.Code)

	resp := decode[errorResponse](t, second)
	assert.Greater(t, resp.RetryAfterSeconds, 0)
	assert.LessOrEqual(t, resp.RetryAfterSeconds, 15)
	assert.Equal(t, strconv.Itoa(resp.RetryAfterSeconds), second.Header().Get("Retry-After"))
}

func TestMatchHandler(t *testing.T) {
	server := setupTestServer(t, config.Config{},
		character.Character{ID: "p", UserID: "u1"},
		character.Character{ID: "other", UserID: "u2"},
	)

	rr := do(t, server, http.MethodPost, "/api/battle/match", matchRequest{UserID: "u1", CharacterID: "p"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[matchResponse](t, rr)
	require.NotNil(t, resp.Opponent)
	assert.Equal(t, "other", resp.Opponent.ID)

	rr = do(t, server, http.MethodPost, "/api/battle/match", matchRequest{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestReportHandler(t *testing.T) {
	server := setupTestServer(t, config.Config{}, character.Character{ID: "c1", UserID: "owner", Name: "Dragon"})

	rr := do(t, server, http.MethodPost, "/api/report", report.Input{TargetType: report.TargetCharacter, TargetID: "c1", Reason: "spam"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[report.Result](t, rr)
	assert.True(t, resp.Success)
	assert.True(t, resp.Persisted)
	assert.NotEmpty(t, resp.ID)

	sent := server.pubsub.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, pubsub.EventReportFiled, sent[0].Topic)

	pending := do(t, server, http.MethodGet, "/api/reports/pending", nil)
	require.Equal(t, http.StatusOK, pending.Code)
	list := decode[pendingReportsResponse](t, pending)
	require.Len(t, list.Reports, 1)
	assert.Equal(t, "Dragon", list.Reports[0].TargetName)

	bad := do(t, server, http.MethodPost, "/api/report", report.Input{TargetType: "planet", TargetID: "x", Reason: "r"})
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestRankingsHandler(t *testing.T) {
	var chars []character.Character
	for i := range 5 {
		chars = append(chars, character.Character{ID: fmt.Sprintf("c%d", i), UserID: "u", Stats: scoring.Stats{Rank: 1000 + i*10}})
	}
	server := setupTestServer(t, config.Config{}, chars...)

	rr := do(t, server, http.MethodGet, "/api/rankings?limit=2&offset=1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[rankingsResponse](t, rr)
	require.Len(t, resp.Characters, 2)
	assert.Equal(t, "c3", resp.Characters[0].ID)
	assert.Equal(t, "c2", resp.Characters[1].ID)
	assert.Equal(t, 2, resp.Limit)
	assert.Equal(t, 1, resp.Offset)

	capped := decode[rankingsResponse](t, do(t, server, http.MethodGet, "/api/rankings?limit=1000", nil))
	assert.Equal(t, maxRankingsLimit, capped.Limit)
	assert.Len(t, capped.Characters, 5)
}

func TestWeeklyRankingsHandler(t *testing.T) {
	week := scoring.WeekKey(time.Now())
	server := setupTestServer(t, config.Config{},
		character.Character{ID: "a", UserID: "u", Stats: scoring.Stats{WeeklyKey: week, WeeklyPoints: 20, WeeklyWins: 1, WeeklyTotalBattles: 1}},
		character.Character{ID: "b", UserID: "u", Stats: scoring.Stats{WeeklyKey: week, WeeklyPoints: 40, WeeklyWins: 2, WeeklyTotalBattles: 2}},
		character.Character{ID: "old", UserID: "u", Stats: scoring.Stats{WeeklyKey: "2000-W01", WeeklyPoints: 400}},
	)

	rr := do(t, server, http.MethodGet, "/api/rankings/weekly", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[weeklyResponse](t, rr)
	assert.Equal(t, week, resp.WeekKey)
	require.Len(t, resp.Characters, 2)
	assert.Equal(t, "b", resp.Characters[0].ID)
	assert.Equal(t, 40, resp.Characters[0].Rank)
	assert.Equal(t, 2, resp.Characters[0].Wins)
}

func TestWeeklyRankingsHandler_StoreFailureYieldsEmptyList(t *testing.T) {
	server := setupTestServer(t, config.Config{})
	failing := character.NewMock()
	failing.ListFunc = func(context.Context) ([]character.Character, error) { return nil, errors.New("db down") }
	server.Characters = failing

	rr := do(t, server, http.MethodGet, "/api/rankings/weekly", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"characters":[]`)
}

func TestUserCharactersAndHistory(t *testing.T) {
	server := setupTestServer(t, config.Config{},
		character.Character{ID: "p", UserID: "u1"},
		character.Character{ID: "o", UserID: "u2"},
	)
	require.Equal(t, http.StatusOK, do(t, server, http.MethodPost, "/api/battle",
		battle.Request{Player: battle.Participant{ID: "p"}, Opponent: battle.Participant{ID: "o"}}).Code)

	chars := decode[charactersResponse](t, do(t, server, http.MethodGet, "/api/characters?userId=u1", nil))
	require.Equal(t, 1, chars.Count)
	assert.Equal(t, 1, chars.Characters[0].Wins)

	assert.Equal(t, http.StatusBadRequest, do(t, server, http.MethodGet, "/api/characters", nil).Code)

	history := decode[historyResponse](t, do(t, server, http.MethodGet, "/api/characters/o/battles", nil))
	require.Len(t, history.Battles, 1)
	assert.Equal(t, "p", history.Battles[0].CharacterID)

	stats := decode[statsResponse](t, do(t, server, http.MethodGet, "/api/stats", nil))
	assert.Equal(t, 1, stats.Counters[metrics.KeyBattlesResolved])
}

func pushBody(t *testing.T, data any) map[string]any {
	t.Helper()
	raw, err := pubsub.Encode(data)
	require.NoError(t, err)
	return map[string]any{
		"subscription": "projects/p/subscriptions/report-filed-push",
		"message":      map[string]any{"data": base64.StdEncoding.EncodeToString(raw), "messageId": "1"},
	}
}

func TestReportFiledHandler(t *testing.T) {
	server := setupTestServer(t, config.Config{})

	rr := do(t, server, http.MethodPost, "/pubsub/report-filed?dry_run=true", pushBody(t, report.Report{ID: "rep-1", TargetType: report.TargetUser, TargetID: "u9", Reason: "spam"}))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())

	sent := server.notifier.ReportsSent()
	require.Len(t, sent, 1)
	assert.Equal(t, "rep-1", sent[0].ID)
	assert.Equal(t, "u9", sent[0].TargetID)

	rr = do(t, server, http.MethodPost, "/pubsub/report-filed", map[string]any{"message": map[string]string{"data": "%%%"}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestWeeklyLeaderboardHandler(t *testing.T) {
	server := setupTestServer(t, config.Config{},
		character.Character{ID: "a", UserID: "u", Stats: scoring.Stats{WeeklyKey: "2024-W11", WeeklyPoints: 20}},
	)

	rr := do(t, server, http.MethodPost, "/scheduled/weekly-leaderboard?week=2024-W11&dry_run=true", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	calls := server.notifier.WeeklySent()
	require.Len(t, calls, 1)
	assert.Equal(t, "2024-W11", calls[0].WeekKey)
	assert.True(t, calls[0].DryRun)
	require.Len(t, calls[0].Chars, 1)
}

// createSlackCommandRequest creates a signed Slack slash command request.
func createSlackCommandRequest(t *testing.T, target string, form url.Values, signingSecret string) *http.Request {
	t.Helper()
	body := form.Encode()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	req.Header.Set("X-Slack-Request-Timestamp", timestamp)

	h := hmac.New(sha256.New, []byte(signingSecret))
	h.Write([]byte("v0:" + timestamp + ":" + body))
	req.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(h.Sum(nil)))
	return req
}

func TestLeaderboardCommandHandler(t *testing.T) {
	cfg := config.Config{Slack: config.SlackConfig{SigningSecret: testSlackSigningSecret}}
	server := setupTestServer(t, cfg, character.Character{ID: "a", UserID: "u", Name: "Dragon"})

	t.Run("signed", func(t *testing.T) {
		rr := httptest.NewRecorder()
		server.ServeHTTP(rr, createSlackCommandRequest(t, "/slack/command/leaderboard", url.Values{"command": {"/leaderboard"}}, testSlackSigningSecret))
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Contains(t, rr.Body.String(), "leaderboard")
	})

	t.Run("bad signature", func(t *testing.T) {
		rr := httptest.NewRecorder()
		server.ServeHTTP(rr, createSlackCommandRequest(t, "/slack/command/leaderboard", url.Values{"command": {"/leaderboard"}}, "wrong"))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("weekly", func(t *testing.T) {
		rr := httptest.NewRecorder()
		server.ServeHTTP(rr, createSlackCommandRequest(t, "/slack/command/weekly", url.Values{"command": {"/weekly"}}, testSlackSigningSecret))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), scoring.WeekKey(time.Now()))
	})

}

func TestMetricsEndpoint(t *testing.T) {
	server := setupTestServer(t, config.Config{})
	server.metrics.SetStartupTime(2)

	rr := do(t, server, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "arena_startup_duration_seconds 2")
}
