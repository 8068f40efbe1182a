package config

import "time"

// Config holds all configuration for the application.
type Config struct {
	DBName    string
	Port      string
	Turso     TursoConfig
	Judge     JudgeConfig
	Images    ImageConfig
	Battle    BattleConfig
	Slack     SlackConfig
	ProjectID string
	CORS      CORSConfig
}

type TursoConfig struct {
	PrimaryURL string
	AuthToken  string
}

// JudgeConfig configures the Gemini judge transport.
type JudgeConfig struct {
	APIKey      string
	BaseURL     string
	Models      []string
	CallTimeout time.Duration
	Language    string
}

type ImageConfig struct {
	FetchTimeout  time.Duration
	StorageBucket string
}

// BattleConfig toggles the persistence paths and sets the cooldown window.
type BattleConfig struct {
	Cooldown         time.Duration
	PrivilegedWrites bool
	FallbackWrites   bool
}

type SlackConfig struct {
	Token         string
	SigningSecret string

	// ChannelID receives moderation reports and the weekly leaderboard.
	ChannelID string
}

type CORSConfig struct {
	AllowedOrigins []string
}
