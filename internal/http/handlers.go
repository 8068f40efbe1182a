package http

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/sketch-arena/internal/battle"
	"github.com/mauv0809/sketch-arena/internal/character"
	"github.com/mauv0809/sketch-arena/internal/cooldown"
	"github.com/mauv0809/sketch-arena/internal/matchmaking"
	"github.com/mauv0809/sketch-arena/internal/report"
	"github.com/mauv0809/sketch-arena/internal/scoring"
)

const maxBodyBytes = 1 << 20

func (s *Server) HealthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug("Received health check request")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK!")
	}
}

// BattleHandler resolves one battle.
func (s *Server) BattleHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req battle.Request
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Missing player/opponent info")
			return
		}

		res, err := s.Battles.Resolve(r.Context(), req)
		if err != nil {
			s.writeBattleError(w, err, req.Player.ID)
			return
		}

		resp := battleResponse{
			Success:         true,
			Result:          string(res.Outcome),
			Reasoning:       res.Reasoning,
			PointsChange:    res.PointsChange,
			Persisted:       res.Persisted,
			PersistedVia:    string(res.PersistedVia),
			UpdatedPlayer:   res.UpdatedPlayer,
			UpdatedOpponent: res.UpdatedOpponent,
			Opponent:        res.Opponent,
		}
		if res.Record != nil {
			resp.BattleID = res.Record.ID
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) writeBattleError(w http.ResponseWriter, err error, playerID string) {
	var cooling *cooldown.Error
	switch {
	case errors.As(err, &cooling):
		retry := cooling.RetryAfterSeconds()
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		writeJSON(w, http.StatusTooManyRequests, errorResponse{
			Error:             fmt.Sprintf("Cooldown in progress. Retry in %d seconds.", retry),
			RetryAfterSeconds: retry,
		})
	case errors.Is(err, battle.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, matchmaking.ErrNoOpponentAvailable):
		writeError(w, http.StatusNotFound, "No opponent is available right now. Try again later.")
	case errors.Is(err, character.ErrNotFound):
		writeError(w, http.StatusNotFound, "Character not found")
	default:
		log.Error("Battle failed", "error", err, "player", playerID)
		writeError(w, http.StatusInternalServerError, "Failed to process battle")
	}
}

// MatchHandler samples an opponent without fighting.
func (s *Server) MatchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req matchRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		opponent, err := s.Battles.MatchFor(r.Context(), req.UserID, req.CharacterID)
		if err != nil {
			s.writeBattleError(w, err, req.CharacterID)
			return
		}
		writeJSON(w, http.StatusOK, matchResponse{Success: true, Opponent: opponent})
	}
}

// ReportHandler files a moderation report.
func (s *Server) ReportHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in report.Input
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request")
			return
		}
		res, err := s.Reports.File(r.Context(), in, isDryRunFromContext(r))
		if err != nil {
			if errors.Is(err, report.ErrValidation) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			log.Error("Failed to file report", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to file report")
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) PendingReportsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := queryInt(r, "limit", 50)
		reports, err := s.Reports.Pending(r.Context(), limit)
		if err != nil {
			log.Error("Failed to list pending reports", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to list reports")
			return
		}
		if reports == nil {
			reports = []report.Report{}
		}
		writeJSON(w, http.StatusOK, pendingReportsResponse{Success: true, Reports: reports})
	}
}

// RankingsHandler serves characters ordered by rank, highest first.
func (s *Server) RankingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := queryInt(r, "limit", defaultRankingsLimit)
		limit = clamp(limit, 1, maxRankingsLimit)
		offset, _ := queryInt(r, "offset", 0)
		offset = max(offset, 0)

		chars, err := s.Characters.TopByRank(r.Context(), limit, offset)
		if err != nil {
			log.Error("Failed to fetch rankings", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to fetch rankings")
			return
		}
		if chars == nil {
			chars = []character.Character{}
		}
		writeJSON(w, http.StatusOK, rankingsResponse{
			Success:    true,
			Characters: chars,
			Count:      len(chars),
			Offset:     offset,
			Limit:      limit,
		})
	}
}

// WeeklyRankingsHandler serves the current ISO week's leaderboard. Store
// failures yield an empty list.
func (s *Server) WeeklyRankingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := queryInt(r, "limit", defaultWeeklyLimit)
		limit = clamp(limit, 1, maxWeeklyLimit)
		weekKey := scoring.WeekKey(time.Now())

		entries := []weeklyEntry{}
		chars, err := s.Characters.TopWeekly(r.Context(), weekKey, limit)
		if err != nil {
			log.Warn("Weekly rankings unavailable", "error", err, "week", weekKey)
		}
		for _, c := range chars {
			entries = append(entries, weeklyEntry{
				ID:           c.ID,
				Name:         c.Name,
				UserID:       c.UserID,
				ImageRef:     c.ImageRef,
				Rank:         c.WeeklyPoints,
				Wins:         c.WeeklyWins,
				Losses:       c.WeeklyLosses,
				Draws:        c.WeeklyDraws,
				WinRate:      c.WeeklyWinRate,
				TotalBattles: c.WeeklyTotalBattles,
			})
		}
		writeJSON(w, http.StatusOK, weeklyResponse{Success: true, WeekKey: weekKey, Characters: entries})
	}
}

// UserCharactersHandler lists the characters of ?userId.
func (s *Server) UserCharactersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("userId")
		if userID == "" {
			writeError(w, http.StatusBadRequest, "Missing userId")
			return
		}
		chars, err := s.Characters.ListByUser(r.Context(), userID)
		if err != nil {
			log.Error("Failed to fetch user characters", "error", err, "user", userID)
			writeError(w, http.StatusInternalServerError, "Failed to fetch characters")
			return
		}
		if chars == nil {
			chars = []character.Character{}
		}
		writeJSON(w, http.StatusOK, charactersResponse{Success: true, Characters: chars, Count: len(chars)})
	}
}

func (s *Server) HistoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		limit, _ := queryInt(r, "limit", 20)
		records, err := s.Battles.History(r.Context(), id, limit)
		if err != nil {
			log.Error("Failed to fetch battle history", "error", err, "character", id)
			writeError(w, http.StatusInternalServerError, "Failed to fetch battles")
			return
		}
		if records == nil {
			records = []battle.Record{}
		}
		writeJSON(w, http.StatusOK, historyResponse{Success: true, Battles: records})
	}
}

// StatsHandler exposes the persisted counters.
func (s *Server) StatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counters, err := s.MetricsStore.GetAll()
		if err != nil {
			log.Error("Failed to read counters", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to read stats")
			return
		}
		writeJSON(w, http.StatusOK, statsResponse{Success: true, Counters: counters})
	}
}

// ReportFiledHandler is the push endpoint of the report-filed subscription.
func (s *Server) ReportFiledHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawData, ok := readPushMessage(w, r)
		if !ok {
			return
		}
		var rep report.Report
		if err := s.pubsub.ProcessMessage(rawData, &rep); err != nil {
			// Acknowledge: redelivery cannot fix a malformed payload.
			log.Error("Dropping undecodable report event", "error", err)
			w.Write([]byte("OK"))
			return
		}
		if err := s.Reports.Notify(r.Context(), &rep, isDryRunFromContext(r)); err != nil {
			log.Error("Failed to notify moderators", "error", err, "report", rep.ID)
			http.Error(w, "Failed to notify", http.StatusInternalServerError)
			return
		}
		w.Write([]byte("OK"))
	}
}

// WeeklyLeaderboardHandler posts the current week's top characters to Slack.
// It is triggered by a scheduler.
func (s *Server) WeeklyLeaderboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		weekKey := r.URL.Query().Get("week")
		if weekKey == "" {
			weekKey = scoring.WeekKey(time.Now())
		}
		chars, err := s.Characters.TopWeekly(r.Context(), weekKey, slackLeaderboardSize)
		if err != nil {
			log.Error("Failed to fetch weekly leaderboard", "error", err, "week", weekKey)
			http.Error(w, "Failed to fetch leaderboard", http.StatusInternalServerError)
			return
		}
		if err := s.Notifier.SendWeeklyLeaderboard(r.Context(), weekKey, chars, isDryRunFromContext(r)); err != nil {
			log.Error("Failed to send weekly leaderboard", "error", err)
			http.Error(w, "Failed to send leaderboard", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "Weekly leaderboard %s sent.", weekKey)
	}
}

// LeaderboardCommandHandler returns a handler for the /leaderboard Slack command.
func (s *Server) LeaderboardCommandHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chars, err := s.Characters.TopByRank(r.Context(), slackLeaderboardSize, 0)
		if err != nil {
			http.Error(w, "Failed to get rankings", http.StatusInternalServerError)
			log.Error("Failed to get rankings from store", "error", err)
			return
		}
		msg, err := s.Notifier.FormatLeaderboardResponse(chars)
		if err != nil {
			http.Error(w, "Failed to format leaderboard", http.StatusInternalServerError)
			log.Error("Failed to format leaderboard", "error", err)
			return
		}
		writeJSON(w, http.StatusOK, msg)
	}
}

// WeeklyLeaderboardCommandHandler returns a handler for the /weekly Slack command.
func (s *Server) WeeklyLeaderboardCommandHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		weekKey := scoring.WeekKey(time.Now())
		chars, err := s.Characters.TopWeekly(r.Context(), weekKey, slackLeaderboardSize)
		if err != nil {
			http.Error(w, "Failed to get weekly rankings", http.StatusInternalServerError)
			log.Error("Failed to get weekly rankings from store", "error", err)
			return
		}
		msg, err := s.Notifier.FormatWeeklyLeaderboardResponse(weekKey, chars)
		if err != nil {
			http.Error(w, "Failed to format leaderboard", http.StatusInternalServerError)
			log.Error("Failed to format weekly leaderboard", "error", err)
			return
		}
		writeJSON(w, http.StatusOK, msg)
	}
}

// readPushMessage unwraps a Pub/Sub push envelope. It writes the error
// response itself and reports false on failure.
func readPushMessage(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		log.Error("Failed to read request body", "error", err)
		http.Error(w, "Failed to read request body", http.StatusInternalServerError)
		return nil, false
	}
	log.Debug("Received push message", "body", string(bodyBytes))

	var msg pushMessage
	if err := json.Unmarshal(bodyBytes, &msg); err != nil {
		log.Error("Failed to unmarshal wrapper JSON", "error", err)
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return nil, false
	}
	rawData, err := base64.StdEncoding.DecodeString(msg.Message.Data)
	if err != nil {
		log.Error("Failed to decode base64 data", "error", err)
		http.Error(w, "Invalid base64 data", http.StatusBadRequest)
		return nil, false
	}
	return rawData, true
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to encode response to JSON", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func queryInt(r *http.Request, key string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback, false
	}
	return n, true
}

func clamp(n, lo, hi int) int {
	return min(max(n, lo), hi)
}
