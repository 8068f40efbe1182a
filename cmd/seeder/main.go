package main

import (
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/mauv0809/sketch-arena/internal/character"
	"github.com/mauv0809/sketch-arena/internal/database"
	"github.com/mauv0809/sketch-arena/internal/scoring"
)

const (
	defaultCount = 200
	batchSize    = 50
	columnCount  = 23
)

var (
	adjectives = []string{"Angry", "Sleepy", "Flying", "Tiny", "Giant", "Spicy", "Shiny", "Grumpy"}
	nouns      = []string{"Dragon", "Cat", "Robot", "Apple", "Knight", "Cactus", "Octopus", "Toaster"}
)

// Simplified config loading for the script
func loadConfig() map[string]string {
	err := godotenv.Load()
	if err != nil {
		log.Warn("No .env file found, reading from environment variables")
	}

	config := map[string]string{
		"TURSO_PRIMARY_URL": os.Getenv("TURSO_PRIMARY_URL"),
		"TURSO_AUTH_TOKEN":  os.Getenv("TURSO_AUTH_TOKEN"),
		"SEED_CHARACTERS":   os.Getenv("SEED_CHARACTERS"),
	}
	if value, ok := os.LookupEnv("DB_NAME"); ok {
		config["DB_NAME"] = value
	} else {
		log.Fatalf("Error: Required environment variable %s is not set.", "DB_NAME")
	}
	return config
}

func main() {
	log.Info("Starting database seeder...")
	cfg := loadConfig()

	count := defaultCount
	if raw := cfg["SEED_CHARACTERS"]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			log.Fatalf("Invalid SEED_CHARACTERS %q", raw)
		}
		count = n
	}

	db, err := database.InitDB(cfg["DB_NAME"], cfg["TURSO_PRIMARY_URL"], cfg["TURSO_AUTH_TOKEN"])
	if err != nil {
		log.Fatalf("Failed to initialize database: %s", err)
	}
	defer db.Close()

	log.Info("Preparing to insert demo characters...", "total", count, "batch_size", batchSize)
	startTime := time.Now()
	now := time.Now().UTC()
	weekKey := scoring.WeekKey(now)

	tx, err := db.Begin()
	if err != nil {
		log.Fatalf("Failed to begin transaction: %s", err)
	}

	valueStrings := make([]string, 0, batchSize)
	valueArgs := make([]any, 0, batchSize*columnCount)
	placeholders := "(" + strings.TrimSuffix(strings.Repeat("?, ", columnCount), ", ") + ")"

	for i := range count {
		c := demoCharacter(i, now, weekKey)
		valueStrings = append(valueStrings, placeholders)
		valueArgs = append(valueArgs,
			c.ID, c.UserID, c.Name, c.Description, c.ImageRef,
			c.Rank, c.Wins, c.Losses, c.Draws, c.TotalBattles, c.WinRate,
			c.Rand, character.ToMillis(c.LastBattleAt), c.LastOpponentID,
			c.WeeklyKey, c.WeeklyPoints, c.WeeklyWins, c.WeeklyLosses, c.WeeklyDraws, c.WeeklyTotalBattles, c.WeeklyWinRate,
			character.ToMillis(c.CreatedAt), character.ToMillis(c.UpdatedAt),
		)

		if (i+1)%batchSize == 0 || (i+1) == count {
			stmt := fmt.Sprintf(`INSERT INTO characters (%s) VALUES %s;`, character.Columns, strings.Join(valueStrings, ","))
			if _, err := tx.Exec(stmt, valueArgs...); err != nil {
				tx.Rollback()
				log.Fatalf("Failed to execute batch insert: %s", err)
			}

			// Reset for the next batch
			valueStrings = make([]string, 0, batchSize)
			valueArgs = make([]any, 0, batchSize*columnCount)
			log.Info("Inserted batch", "completed", i+1, "total", count)
		}
	}

	if err := tx.Commit(); err != nil {
		log.Fatalf("Failed to commit transaction: %s", err)
	}
	log.Info("Successfully inserted demo characters.", "duration", time.Since(startTime))
}

// demoCharacter builds a character with a plausible battle history. About a
// third never battled and half have played this week.
func demoCharacter(i int, now time.Time, weekKey string) character.Character {
	name := adjectives[rand.IntN(len(adjectives))] + " " + nouns[rand.IntN(len(nouns))]
	c := character.Character{
		ID:          "char-" + uuid.NewString(),
		UserID:      fmt.Sprintf("seed-user-%d", i%40),
		Name:        name,
		Description: "A seeded " + strings.ToLower(name),
		ImageRef:    fmt.Sprintf("characters/seed-user-%d/%d.png", i%40, i),
		Rand:        rand.Float64(),
		CreatedAt:   now.Add(-time.Duration(rand.IntN(90*24)) * time.Hour),
		UpdatedAt:   now,
	}
	c.Rank = scoring.InitialRank

	if rand.IntN(3) == 0 {
		return c
	}
	battles := 1 + rand.IntN(40)
	for range battles {
		outcome := scoring.Outcomes[rand.IntN(len(scoring.Outcomes))]
		switch outcome {
		case scoring.Win:
			c.Wins++
		case scoring.Loss:
			c.Losses++
		default:
			c.Draws++
		}
		c.Rank = max(c.Rank+scoring.Points(outcome), scoring.MinRank)
	}
	c.TotalBattles = battles
	c.WinRate = scoring.WinRate(c.Wins, c.TotalBattles)
	c.LastBattleAt = now.Add(-time.Duration(rand.IntN(14*24*60)) * time.Minute)

	if rand.IntN(2) == 0 {
		c.WeeklyKey = weekKey
		c.WeeklyWins = rand.IntN(5)
		c.WeeklyLosses = rand.IntN(5)
		c.WeeklyTotalBattles = c.WeeklyWins + c.WeeklyLosses
		c.WeeklyPoints = c.WeeklyWins*scoring.WinPoints + c.WeeklyLosses*scoring.LossPoints
		c.WeeklyWinRate = scoring.WinRate(c.WeeklyWins, c.WeeklyTotalBattles)
	}
	return c
}
