package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultJudgeLanguage = "Korean"
)

// DefaultGeminiModels is the model priority list used when GEMINI_MODELS is unset.
var DefaultGeminiModels = []string{
	"models/gemini-1.5-flash",
	"models/gemini-1.5-flash-002",
	"models/gemini-1.5-flash-8b",
	"models/gemini-1.0-pro-vision",
	"models/gemini-pro-vision",
}

// Load reads configuration from environment variables and .env file.
func Load() Config {
	err := godotenv.Load()
	if err != nil {
		log.Info("No .env file found, reading from environment variables")
	}

	// Required variables abort startup when missing.
	getEnv := func(key string) string {
		if value, ok := os.LookupEnv(key); ok {
			return value
		}
		log.Fatalf("Error: Required environment variable %s is not set.", key)
		return ""
	}

	return Config{
		DBName: getEnv("DB_NAME"),
		Port:   getEnv("PORT"),
		Turso: TursoConfig{
			PrimaryURL: os.Getenv("TURSO_PRIMARY_URL"),
			AuthToken:  os.Getenv("TURSO_AUTH_TOKEN"),
		},
		Judge: JudgeConfig{
			APIKey:      os.Getenv("GEMINI_API_KEY"),
			BaseURL:     getEnvDefault("GEMINI_BASE_URL", DefaultGeminiBaseURL),
			Models:      getList("GEMINI_MODELS", DefaultGeminiModels),
			CallTimeout: getDuration("JUDGE_CALL_TIMEOUT", 20*time.Second),
			Language:    getEnvDefault("JUDGE_LANGUAGE", DefaultJudgeLanguage),
		},
		Images: ImageConfig{
			FetchTimeout:  getDuration("IMAGE_FETCH_TIMEOUT", 10*time.Second),
			StorageBucket: os.Getenv("STORAGE_BUCKET"),
		},
		Battle: BattleConfig{
			Cooldown:         getDuration("BATTLE_COOLDOWN", 15*time.Second),
			PrivilegedWrites: getBool("PRIVILEGED_WRITES", true),
			FallbackWrites:   getBool("FALLBACK_WRITES", true),
		},
		Slack: SlackConfig{
			Token:         os.Getenv("SLACK_BOT_TOKEN"),
			SigningSecret: os.Getenv("SLACK_SIGNING_SECRET"),
			ChannelID:     os.Getenv("SLACK_CHANNEL_ID"),
		},
		ProjectID: os.Getenv("GCP_PROJECT"),
		CORS: CORSConfig{
			AllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
	}
}

func getEnvDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Warn("Invalid duration, using default", "key", key, "value", raw, "default", fallback)
		return fallback
	}
	return d
}

func getBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		log.Warn("Invalid boolean, using default", "key", key, "value", raw, "default", fallback)
		return fallback
	}
	return b
}

func getList(key string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
