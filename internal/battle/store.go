package battle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mauv0809/sketch-arena/internal/character"
	"github.com/mauv0809/sketch-arena/internal/cooldown"
	"github.com/mauv0809/sketch-arena/internal/scoring"
)

// New creates a BattleStore on db.
func New(db *sql.DB) BattleStore {
	return &store{
		db: db,
	}
}

// ApplyPrivileged reconciles both characters and appends the battle record
// in one transaction. The requester is rejected with ErrConflict when its
// stored lastBattleAt falls inside in.Cooldown, and each character update is
// guarded by the lastBattleAt value read in the same transaction.
func (s *store) ApplyPrivileged(ctx context.Context, in Input) (*Applied, error) {
	if in.PlayerID == in.OpponentID {
		return nil, fmt.Errorf("%w: a character cannot fight itself", ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	in.Now = in.Now.UTC().Truncate(time.Millisecond)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", ErrPersistenceUnavailable, err)
	}
	defer tx.Rollback()

	player, err := getTx(ctx, tx, in.PlayerID)
	if err != nil {
		return nil, err
	}
	if err := checkCooldown(player, in); err != nil {
		return nil, err
	}
	opponent, err := getTx(ctx, tx, in.OpponentID)
	if err != nil {
		return nil, err
	}

	nextPlayer := *player
	nextPlayer.Stats = scoring.Apply(player.Stats, scoring.Requester, in.Result, in.PointsChange, in.Now)
	nextPlayer.Rand = rand.Float64()
	nextPlayer.LastBattleAt = in.Now
	nextPlayer.LastOpponentID = opponent.ID
	nextPlayer.UpdatedAt = in.Now

	nextOpponent := *opponent
	nextOpponent.Stats = scoring.Apply(opponent.Stats, scoring.Opponent, in.Result, in.PointsChange, in.Now)
	nextOpponent.LastBattleAt = in.Now
	nextOpponent.LastOpponentID = player.ID
	nextOpponent.UpdatedAt = in.Now

	if err := casUpdate(ctx, tx, &nextPlayer, player.LastBattleAt); err != nil {
		return nil, err
	}
	if err := casUpdate(ctx, tx, &nextOpponent, opponent.LastBattleAt); err != nil {
		return nil, err
	}

	rec := newRecord(in, ViaPrivileged, player.Rank, nextPlayer.Rank, opponent.Rank, nextOpponent.Rank)
	if err := insertRecord(ctx, tx, rec); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrPersistenceUnavailable, err)
	}

	log.Debug("Stored battle", "id", rec.ID, "via", rec.PersistedVia, "player", player.ID, "opponent", opponent.ID)
	return &Applied{Player: &nextPlayer, Opponent: &nextOpponent, Record: rec}, nil
}

// ApplyFallback updates only the requester and appends the record. The
// opponent row is read for its rank but never written. The cooldown re-check
// matches ApplyPrivileged.
func (s *store) ApplyFallback(ctx context.Context, in Input) (*Applied, error) {
	if in.PlayerID == in.OpponentID {
		return nil, fmt.Errorf("%w: a character cannot fight itself", ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	in.Now = in.Now.UTC().Truncate(time.Millisecond)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin fallback: %w", err)
	}
	defer tx.Rollback()

	player, err := getTx(ctx, tx, in.PlayerID)
	if err != nil {
		return nil, err
	}
	if err := checkCooldown(player, in); err != nil {
		return nil, err
	}
	opponent, err := getTx(ctx, tx, in.OpponentID)
	if err != nil {
		return nil, err
	}

	nextPlayer := *player
	nextPlayer.Stats = scoring.Apply(player.Stats, scoring.Requester, in.Result, in.PointsChange, in.Now)
	nextPlayer.Rand = rand.Float64()
	nextPlayer.LastBattleAt = in.Now
	nextPlayer.LastOpponentID = opponent.ID
	nextPlayer.UpdatedAt = in.Now

	if err := casUpdate(ctx, tx, &nextPlayer, player.LastBattleAt); err != nil {
		return nil, err
	}
	rec := newRecord(in, ViaFallback, player.Rank, nextPlayer.Rank, opponent.Rank, opponent.Rank)
	if err := insertRecord(ctx, tx, rec); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit fallback: %w", err)
	}

	log.Debug("Stored battle", "id", rec.ID, "via", rec.PersistedVia, "player", player.ID, "opponent", opponent.ID)
	return &Applied{Player: &nextPlayer, Record: rec}, nil
}

// ListByCharacter returns the latest battles a character took part in, on
// either side.
func (s *store) ListByCharacter(ctx context.Context, characterID string, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, character_id, opponent_id, result, reasoning, points_change,
			character_rank_before, character_rank_after, opponent_rank_before, opponent_rank_after,
			persisted_via, created_at
		FROM battles
		WHERE character_id = ? OR opponent_id = ?
		ORDER BY created_at DESC, id ASC
		LIMIT ?
	`, characterID, characterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list battles: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var created int64
		if err := rows.Scan(&r.ID, &r.CharacterID, &r.OpponentID, &r.Result, &r.Reasoning, &r.PointsChange,
			&r.CharacterRankBefore, &r.CharacterRankAfter, &r.OpponentRankBefore, &r.OpponentRankAfter,
			&r.PersistedVia, &created); err != nil {
			return nil, err
		}
		r.CreatedAt = character.FromMillis(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

func getTx(ctx context.Context, tx *sql.Tx, id string) (*character.Character, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+character.Columns+` FROM characters WHERE id = ?`, id)
	c, err := character.Scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", character.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrPersistenceUnavailable, id, err)
	}
	return c, nil
}

// checkCooldown rejects a battle of c that started inside the cooldown of the
// battle already stored for it.
func checkCooldown(c *character.Character, in Input) error {
	if in.Cooldown <= 0 || c.NeverBattled() {
		return nil
	}
	if remaining := c.LastBattleAt.Add(in.Cooldown).Sub(in.Now); remaining > 0 {
		return fmt.Errorf("%w: %s: %w", ErrConflict, c.ID, &cooldown.Error{Remaining: remaining})
	}
	return nil
}

// casUpdate writes c only if its stored last_battle_at still equals prev.
func casUpdate(ctx context.Context, tx *sql.Tx, c *character.Character, prev time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE characters SET
			rank = ?, wins = ?, losses = ?, draws = ?, total_battles = ?, win_rate = ?,
			rand = ?, last_battle_at = ?, last_opponent_id = ?,
			weekly_key = ?, weekly_points = ?, weekly_wins = ?, weekly_losses = ?, weekly_draws = ?,
			weekly_total_battles = ?, weekly_win_rate = ?, updated_at = ?
		WHERE id = ? AND last_battle_at = ?
	`,
		c.Rank, c.Wins, c.Losses, c.Draws, c.TotalBattles, c.WinRate,
		c.Rand, character.ToMillis(c.LastBattleAt), c.LastOpponentID,
		c.WeeklyKey, c.WeeklyPoints, c.WeeklyWins, c.WeeklyLosses, c.WeeklyDraws,
		c.WeeklyTotalBattles, c.WeeklyWinRate, character.ToMillis(c.UpdatedAt),
		c.ID, character.ToMillis(prev),
	)
	if err != nil {
		return fmt.Errorf("%w: update %s: %v", ErrPersistenceUnavailable, c.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: update %s: %v", ErrPersistenceUnavailable, c.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrConflict, c.ID)
	}
	return nil
}

func newRecord(in Input, via PersistedVia, playerBefore, playerAfter, opponentBefore, opponentAfter int) Record {
	return Record{
		ID:                  "battle-" + uuid.NewString(),
		CharacterID:         in.PlayerID,
		OpponentID:          in.OpponentID,
		Result:              in.Result,
		Reasoning:           in.Reasoning,
		PointsChange:        in.PointsChange,
		CharacterRankBefore: playerBefore,
		CharacterRankAfter:  playerAfter,
		OpponentRankBefore:  opponentBefore,
		OpponentRankAfter:   opponentAfter,
		PersistedVia:        via,
		CreatedAt:           in.Now,
	}
}

func insertRecord(ctx context.Context, tx *sql.Tx, r Record) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO battles (id, character_id, opponent_id, result, reasoning, points_change,
			character_rank_before, character_rank_after, opponent_rank_before, opponent_rank_after,
			persisted_via, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.CharacterID, r.OpponentID, r.Result, r.Reasoning, r.PointsChange,
		r.CharacterRankBefore, r.CharacterRankAfter, r.OpponentRankBefore, r.OpponentRankAfter,
		r.PersistedVia, character.ToMillis(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("%w: insert battle: %v", ErrPersistenceUnavailable, err)
	}
	return nil
}
