package character

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mauv0809/sketch-arena/internal/scoring"
)

// Columns is the select list matching Scan.
const Columns = `id, user_id, name, description, image_ref, rank, wins, losses, draws, total_battles, win_rate,
	rand, last_battle_at, last_opponent_id, weekly_key, weekly_points, weekly_wins, weekly_losses, weekly_draws,
	weekly_total_battles, weekly_win_rate, created_at, updated_at`

// New creates a new CharacterStore.
func New(db *sql.DB) CharacterStore {
	return &store{
		db: db,
	}
}

// Create inserts c, filling in the id, timestamps, rank and random key when unset.
func (s *store) Create(ctx context.Context, c *Character) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if c.ID == "" {
		c.ID = "char-" + uuid.NewString()
	}
	if c.Rank <= 0 {
		c.Rank = scoring.InitialRank
	}
	if c.Rand == 0 {
		c.Rand = rand.Float64()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	c.WinRate = scoring.WinRate(c.Wins, c.TotalBattles)
	c.WeeklyWinRate = scoring.WinRate(c.WeeklyWins, c.WeeklyTotalBattles)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO characters (`+Columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID, c.UserID, c.Name, c.Description, c.ImageRef,
		c.Rank, c.Wins, c.Losses, c.Draws, c.TotalBattles, c.WinRate,
		c.Rand, ToMillis(c.LastBattleAt), c.LastOpponentID,
		c.WeeklyKey, c.WeeklyPoints, c.WeeklyWins, c.WeeklyLosses, c.WeeklyDraws, c.WeeklyTotalBattles, c.WeeklyWinRate,
		ToMillis(c.CreatedAt), ToMillis(c.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert character %s: %w", c.ID, err)
	}
	log.Debug("Created character", "id", c.ID, "user", c.UserID)
	return nil
}

// Get returns the character with id, or ErrNotFound.
func (s *store) Get(ctx context.Context, id string) (*Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+Columns+` FROM characters WHERE id = ?`, id)
	c, err := Scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load character %s: %w", id, err)
	}
	return c, nil
}

// LastBattleAt returns the persisted time of the character's last battle,
// the zero time when it never fought.
func (s *store) LastBattleAt(ctx context.Context, id string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var millis int64
	err := s.db.QueryRowContext(ctx, `SELECT last_battle_at FROM characters WHERE id = ?`, id).Scan(&millis)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read last battle of %s: %w", id, err)
	}
	return FromMillis(millis), nil
}

// ListByRandFrom returns up to limit characters with rand >= r, in rand order.
func (s *store) ListByRandFrom(ctx context.Context, r float64, limit int) ([]Character, error) {
	return s.list(ctx, `SELECT `+Columns+` FROM characters WHERE rand >= ? ORDER BY rand ASC LIMIT ?`, r, limit)
}

// ListByRand returns the first limit characters in rand order.
func (s *store) ListByRand(ctx context.Context, limit int) ([]Character, error) {
	return s.list(ctx, `SELECT `+Columns+` FROM characters ORDER BY rand ASC LIMIT ?`, limit)
}

// ListByRankDesc returns the limit highest ranked characters.
func (s *store) ListByRankDesc(ctx context.Context, limit int) ([]Character, error) {
	return s.TopByRank(ctx, limit, 0)
}

func (s *store) TopByRank(ctx context.Context, limit, offset int) ([]Character, error) {
	return s.list(ctx, `SELECT `+Columns+` FROM characters ORDER BY rank DESC, id ASC LIMIT ? OFFSET ?`, limit, offset)
}

// TopWeekly returns characters active in weekKey ordered by weekly points.
func (s *store) TopWeekly(ctx context.Context, weekKey string, limit int) ([]Character, error) {
	return s.list(ctx, `
		SELECT `+Columns+` FROM characters
		WHERE weekly_key = ?
		ORDER BY weekly_points DESC, weekly_wins DESC, id ASC
		LIMIT ?
	`, weekKey, limit)
}

func (s *store) ListByUser(ctx context.Context, userID string) ([]Character, error) {
	return s.list(ctx, `SELECT `+Columns+` FROM characters WHERE user_id = ? ORDER BY created_at DESC`, userID)
}

func (s *store) list(ctx context.Context, query string, args ...any) ([]Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query characters: %w", err)
	}
	defer rows.Close()

	var out []Character
	for rows.Next() {
		c, err := Scan(rows)
		if err != nil {
			log.Error("Failed to scan character row", "error", err)
			continue
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Scan reads one row selected with Columns.
func Scan(scanner interface{ Scan(...any) error }) (*Character, error) {
	var c Character
	var lastBattle, created, updated int64
	err := scanner.Scan(
		&c.ID, &c.UserID, &c.Name, &c.Description, &c.ImageRef,
		&c.Rank, &c.Wins, &c.Losses, &c.Draws, &c.TotalBattles, &c.WinRate,
		&c.Rand, &lastBattle, &c.LastOpponentID,
		&c.WeeklyKey, &c.WeeklyPoints, &c.WeeklyWins, &c.WeeklyLosses, &c.WeeklyDraws,
		&c.WeeklyTotalBattles, &c.WeeklyWinRate, &created, &updated,
	)
	if err != nil {
		return nil, err
	}
	c.LastBattleAt = FromMillis(lastBattle)
	c.CreatedAt = FromMillis(created)
	c.UpdatedAt = FromMillis(updated)
	return &c, nil
}

// ToMillis converts t to unix milliseconds, 0 for the zero time.
func ToMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FromMillis is the inverse of ToMillis.
func FromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
