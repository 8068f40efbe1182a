package http

import (
	"net/http"

	"github.com/mauv0809/sketch-arena/internal/character"
	"github.com/mauv0809/sketch-arena/internal/config"
	"github.com/mauv0809/sketch-arena/internal/metrics"
	"github.com/mauv0809/sketch-arena/internal/notifier"
	"github.com/mauv0809/sketch-arena/internal/pubsub"
	"github.com/rs/cors"
)

func NewServer(
	characters character.CharacterStore,
	battles BattleService,
	reports ReportService,
	notifier notifier.Notifier,
	pubsubClient pubsub.PubSubClient,
	metricsSvc metrics.Metrics,
	metricsHandler http.Handler,
	metricsStore metrics.MetricsStore,
	cfg config.Config,
) *Server {
	server := &Server{
		Characters:     characters,
		Battles:        battles,
		Reports:        reports,
		Notifier:       notifier,
		Metrics:        metricsSvc,
		MetricsHandler: metricsHandler,
		MetricsStore:   metricsStore,
		Cfg:            cfg,
		Router:         http.NewServeMux(),
		pubsub:         pubsubClient,
	}

	server.routes()
	server.handler = cors.New(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", requestIDHeader},
		ExposedHeaders: []string{"Retry-After", requestIDHeader},
		MaxAge:         600,
	}).Handler(Chain(server.Router, requestIDMiddleware))
	return server
}

func (s *Server) routes() {
	// All handlers are wrapped with middleware using the Chain helper.
	// e.g. Chain(s.MyHandler(), paramsMiddleware, authMiddleware)
	s.Router.Handle("GET /metrics", s.MetricsHandler)
	s.Router.Handle("GET /health", Chain(s.HealthCheckHandler(), paramsMiddleware))

	s.Router.Handle("POST /api/battle", Chain(s.BattleHandler(), paramsMiddleware))
	s.Router.Handle("POST /api/battle/match", Chain(s.MatchHandler(), paramsMiddleware))
	s.Router.Handle("POST /api/report", Chain(s.ReportHandler(), paramsMiddleware))
	s.Router.Handle("GET /api/reports/pending", Chain(s.PendingReportsHandler(), paramsMiddleware))
	s.Router.Handle("GET /api/rankings", Chain(s.RankingsHandler(), paramsMiddleware))
	s.Router.Handle("GET /api/rankings/weekly", Chain(s.WeeklyRankingsHandler(), paramsMiddleware))
	s.Router.Handle("GET /api/characters", Chain(s.UserCharactersHandler(), paramsMiddleware))
	s.Router.Handle("GET /api/characters/{id}/battles", Chain(s.HistoryHandler(), paramsMiddleware))
	s.Router.Handle("GET /api/stats", Chain(s.StatsHandler(), paramsMiddleware))

	s.Router.Handle("POST /pubsub/report-filed", Chain(s.ReportFiledHandler(), paramsMiddleware))
	s.Router.Handle("POST /scheduled/weekly-leaderboard", Chain(s.WeeklyLeaderboardHandler(), paramsMiddleware))
	s.Router.Handle("POST /slack/command/leaderboard", Chain(s.LeaderboardCommandHandler(), paramsMiddleware, s.slackVerifyMiddleware))
	s.Router.Handle("POST /slack/command/weekly", Chain(s.WeeklyLeaderboardCommandHandler(), paramsMiddleware, s.slackVerifyMiddleware))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
