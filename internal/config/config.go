package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// StoreConfig selects the snapshot backend: postgres when DATABASE_URL is
// set, JSON files under DataDir otherwise.
type StoreConfig struct {
	DataDir     string
	DatabaseURL string
}

type APIConfig struct {
	Addr          string
	Store         StoreConfig
	AdminToken    string
	RouletteDelay time.Duration
	SessionIdle   time.Duration
	LeaderboardN  int
}

type BotConfig struct {
	DiscordToken  string
	CommandPrefix string
	AdminRoleID   string
	Store         StoreConfig
	RouletteDelay time.Duration
}

type CLIConfig struct {
	APIBaseURL string
	ActorID    string
	AdminToken string
}

func LoadAPIFromEnv() (APIConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("HUSTLED_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:          addr,
		Store:         loadStoreFromEnv(),
		AdminToken:    strings.TrimSpace(os.Getenv("HUSTLED_ADMIN_TOKEN")),
		RouletteDelay: envDurationDefault("HUSTLED_ROULETTE_DELAY", 30*time.Second),
		SessionIdle:   envDurationDefault("HUSTLED_SESSION_IDLE", 5*time.Minute),
		LeaderboardN:  envIntDefault("HUSTLED_LEADERBOARD_N", 10),
	}
	return cfg, nil
}

func LoadBotFromEnv() (BotConfig, error) {
	cfg := BotConfig{
		DiscordToken:  strings.TrimSpace(os.Getenv("DISCORD_TOKEN")),
		CommandPrefix: envDefault("HUSTLED_COMMAND_PREFIX", "!"),
		AdminRoleID:   strings.TrimSpace(os.Getenv("HUSTLED_ADMIN_ROLE_ID")),
		Store:         loadStoreFromEnv(),
		RouletteDelay: envDurationDefault("HUSTLED_ROULETTE_DELAY", 30*time.Second),
	}
	if cfg.DiscordToken == "" {
		return cfg, fmt.Errorf("DISCORD_TOKEN is required")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("HUSTLED_API_BASE_URL", "http://localhost:8080"), "/"),
		ActorID:    envDefault("HUSTLED_ACTOR_ID", "operator"),
		AdminToken: strings.TrimSpace(os.Getenv("HUSTLED_ADMIN_TOKEN")),
	}
}

func loadStoreFromEnv() StoreConfig {
	return StoreConfig{
		DataDir:     envDefault("HUSTLED_DATA_DIR", "data"),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
