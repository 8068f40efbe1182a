package battle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/sketch-arena/internal/character"
	"github.com/mauv0809/sketch-arena/internal/config"
	"github.com/mauv0809/sketch-arena/internal/cooldown"
	"github.com/mauv0809/sketch-arena/internal/imageresolver"
	"github.com/mauv0809/sketch-arena/internal/judge"
	"github.com/mauv0809/sketch-arena/internal/matchmaking"
	"github.com/mauv0809/sketch-arena/internal/metrics"
	"github.com/mauv0809/sketch-arena/internal/pubsub"
	"golang.org/x/sync/errgroup"
)

// Service resolves battles: cooldown, opponent selection, judging and
// persistence.
type Service struct {
	characters   character.CharacterStore
	store        BattleStore
	cooldown     CooldownGuard
	sampler      matchmaking.OpponentSampler
	images       ImageResolver
	judge        Judge
	pubsub       pubsub.PubSubClient
	metrics      metrics.Metrics
	metricsStore metrics.MetricsStore
	cfg          config.BattleConfig
	now          func() time.Time
}

// NewService wires a battle Service.
func NewService(
	characters character.CharacterStore,
	store BattleStore,
	cooldown CooldownGuard,
	sampler matchmaking.OpponentSampler,
	images ImageResolver,
	j Judge,
	pubsubClient pubsub.PubSubClient,
	metricsSvc metrics.Metrics,
	metricsStore metrics.MetricsStore,
	cfg config.BattleConfig,
) *Service {
	return &Service{
		characters:   characters,
		store:        store,
		cooldown:     cooldown,
		sampler:      sampler,
		images:       images,
		judge:        j,
		pubsub:       pubsubClient,
		metrics:      metricsSvc,
		metricsStore: metricsStore,
		cfg:          cfg,
		now:          time.Now,
	}
}

// Resolve runs one battle for req.Player.
//
// Errors: ErrValidation, *cooldown.Error, character.ErrNotFound and
// matchmaking.ErrNoOpponentAvailable are returned to the caller. A battle
// stored concurrently by another instance inside the cooldown window is
// discarded with ErrConflict wrapping *cooldown.Error. Other storage failures
// are not returned: the battle is still reported with Persisted=false.
func (s *Service) Resolve(ctx context.Context, req Request) (*Result, error) {
	if req.Player.ID == "" {
		return nil, fmt.Errorf("%w: player id is required", ErrValidation)
	}
	if req.Opponent.ID != "" && req.Opponent.ID == req.Player.ID {
		return nil, fmt.Errorf("%w: a character cannot fight itself", ErrValidation)
	}

	if err := s.cooldown.Acquire(ctx, req.Player.ID); err != nil {
		return nil, err
	}

	player, opponent, err := s.contenders(ctx, req)
	if err != nil {
		s.cooldown.Release(req.Player.ID)
		return nil, err
	}

	playerImg, opponentImg := s.resolveImages(ctx,
		firstNonEmpty(req.Player.ImageRef, player.ImageRef),
		firstNonEmpty(opponent.ImageRef, req.Opponent.ImageRef),
	)

	verdict := s.judge.Judge(ctx,
		judge.Contender{Name: player.Name, Description: player.Description, Image: playerImg},
		judge.Contender{Name: opponent.Name, Description: opponent.Description, Image: opponentImg},
	)
	s.metrics.IncBattlesResolved(string(verdict.Result))
	s.metricsStore.Increment(metrics.KeyBattlesResolved)
	if verdict.Fallback != "" {
		s.metricsStore.Increment(metrics.KeyJudgeFallbacks)
	}

	res := &Result{
		Outcome:      verdict.Result,
		Reasoning:    verdict.Reasoning,
		PointsChange: verdict.PointsChange,
		Opponent:     opponent,
	}

	in := Input{
		PlayerID:     player.ID,
		OpponentID:   opponent.ID,
		Result:       verdict.Result,
		Reasoning:    verdict.Reasoning,
		PointsChange: verdict.PointsChange,
		Now:          s.now(),
		Cooldown:     s.cfg.Cooldown,
	}
	if err := s.persist(ctx, in, res); err != nil {
		return nil, err
	}

	s.publish(ctx, res, player.ID)
	return res, nil
}

// contenders loads the requester and picks or loads the opponent.
func (s *Service) contenders(ctx context.Context, req Request) (*character.Character, *character.Character, error) {
	player, err := s.characters.Get(ctx, req.Player.ID)
	if err != nil {
		return nil, nil, err
	}
	if req.Opponent.ID != "" {
		opponent, err := s.characters.Get(ctx, req.Opponent.ID)
		if err != nil {
			return nil, nil, err
		}
		return player, opponent, nil
	}
	opponent, err := s.Match(ctx, player)
	if err != nil {
		return nil, nil, err
	}
	return player, opponent, nil
}

// Match samples an opponent for player without fighting.
func (s *Service) Match(ctx context.Context, player *character.Character) (*character.Character, error) {
	return s.sampler.Sample(ctx, matchmaking.Request{
		UserID:         player.UserID,
		CharacterID:    player.ID,
		LastOpponentID: player.LastOpponentID,
	})
}

// MatchFor samples an opponent for the character with characterID owned by
// userID. An unknown character is matched by user id alone.
func (s *Service) MatchFor(ctx context.Context, userID, characterID string) (*character.Character, error) {
	if userID == "" && characterID == "" {
		return nil, fmt.Errorf("%w: userId or characterId is required", ErrValidation)
	}
	player := &character.Character{ID: characterID, UserID: userID}
	if characterID != "" {
		stored, err := s.characters.Get(ctx, characterID)
		switch {
		case err == nil:
			player = stored
		case !errors.Is(err, character.ErrNotFound):
			return nil, err
		}
	}
	if userID != "" {
		player.UserID = userID
	}
	return s.Match(ctx, player)
}

func (s *Service) resolveImages(ctx context.Context, playerRef, opponentRef string) (*imageresolver.Image, *imageresolver.Image) {
	var playerImg, opponentImg *imageresolver.Image
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		playerImg = s.images.ResolveOrNil(gctx, playerRef)
		return nil
	})
	g.Go(func() error {
		opponentImg = s.images.ResolveOrNil(gctx, opponentRef)
		return nil
	})
	_ = g.Wait()
	return playerImg, opponentImg
}

// persist tries the privileged path, then the fallback path. Only
// character.ErrNotFound and cooldown conflicts are returned; every other
// failure is logged.
func (s *Service) persist(ctx context.Context, in Input, res *Result) error {
	var err error
	if s.cfg.PrivilegedWrites {
		var applied *Applied
		applied, err = s.store.ApplyPrivileged(ctx, in)
		if err == nil {
			res.Persisted = true
			res.PersistedVia = ViaPrivileged
			res.Record = &applied.Record
			res.UpdatedPlayer = applied.Player
			res.UpdatedOpponent = applied.Opponent
			s.metrics.IncPersistence(metrics.PathPrivileged)
			return nil
		}
		if errors.Is(err, character.ErrNotFound) {
			return err
		}
		if s.discarded(err, in.PlayerID) {
			return err
		}
	} else {
		err = ErrPersistenceUnavailable
	}
	log.Warn("Privileged battle write failed", "error", err, "player", in.PlayerID, "opponent", in.OpponentID)

	if !s.cfg.FallbackWrites {
		s.metrics.IncPersistence(metrics.PathNone)
		return nil
	}
	applied, err := s.store.ApplyFallback(ctx, in)
	if s.discarded(err, in.PlayerID) {
		return err
	}
	if err != nil {
		log.Error("Fallback battle write failed", "error", err, "player", in.PlayerID)
		s.metrics.IncPersistence(metrics.PathNone)
		return nil
	}
	res.PersistedVia = ViaFallback
	res.Record = &applied.Record
	res.UpdatedPlayer = applied.Player
	s.metrics.IncPersistence(metrics.PathFallback)
	return nil
}

// discarded reports whether err rejected the write because the requester
// already fought inside its cooldown window.
func (s *Service) discarded(err error, playerID string) bool {
	var cooling *cooldown.Error
	if !errors.As(err, &cooling) {
		return false
	}
	log.Warn("Discarding battle inside cooldown", "player", playerID, "retry_after", cooling.RetryAfterSeconds())
	s.metrics.IncPersistence(metrics.PathNone)
	return true
}

// ResolvedEvent is published on the battle-resolved topic.
type ResolvedEvent struct {
	PlayerID     string       `msgpack:"playerId"`
	OpponentID   string       `msgpack:"opponentId"`
	Result       string       `msgpack:"result"`
	PointsChange int          `msgpack:"pointsChange"`
	Persisted    bool         `msgpack:"persisted"`
	Record       *Record      `msgpack:"record,omitempty"`
	At           time.Time    `msgpack:"at"`
	Via          PersistedVia `msgpack:"via"`
}

func (s *Service) publish(ctx context.Context, res *Result, playerID string) {
	event := ResolvedEvent{
		PlayerID:     playerID,
		OpponentID:   res.Opponent.ID,
		Result:       string(res.Outcome),
		PointsChange: res.PointsChange,
		Persisted:    res.Persisted,
		Record:       res.Record,
		At:           s.now().UTC(),
		Via:          res.PersistedVia,
	}
	err := s.pubsub.SendMessage(ctx, pubsub.EventBattleResolved, event)
	switch {
	case errors.Is(err, pubsub.ErrDisabled):
	case err != nil:
		log.Warn("Failed to publish battle event", "error", err, "player", playerID)
	}
}

// History returns the latest battles of characterID.
func (s *Service) History(ctx context.Context, characterID string, limit int) ([]Record, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.ListByCharacter(ctx, characterID, limit)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
