package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EmbeddingProviderOpenAI = "openai"
	EmbeddingProviderHash   = "hash"
)

type Config struct {
	Discord      DiscordConfig
	Database     DatabaseConfig
	OpenAI       OpenAIConfig
	Embedding    EmbeddingConfig
	Redis        RedisConfig
	Watch2Gether Watch2GetherConfig
	Search       SearchConfig
	Feed         FeedConfig
	Log          LogConfig
}

type DiscordConfig struct {
	Token string
	// GuildID registers commands for a single guild (instant) instead of
	// globally (up to an hour to propagate).
	GuildID string
}

type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
}

type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	EmbeddingModel string
	ChatModel      string
}

type EmbeddingConfig struct {
	Provider   string // openai or hash
	Dimensions int
}

type RedisConfig struct {
	URL      string // empty disables the embedding cache
	CacheTTL time.Duration
}

type Watch2GetherConfig struct {
	APIKey      string // empty disables room creation through the API
	APIURL      string
	RoomBaseURL string
}

type SearchConfig struct {
	MinSimilarity float64
	ListLimit     int
}

type FeedConfig struct {
	Addr      string // empty disables the activity feed server
	JWTSecret string
}

type LogConfig struct {
	Level string
}

// Load reads .env (if any) and the process environment into a Config and
// validates it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Discord: DiscordConfig{
			Token:   getEnv("DISCORD_TOKEN", ""),
			GuildID: getEnv("DISCORD_GUILD_ID", ""),
		},
		Database: DatabaseConfig{
			URL:          getEnv("DATABASE_URL", ""),
			MaxOpenConns: getEnvInt("DATABASE_MAX_OPEN_CONNS", 10),
		},
		OpenAI: OpenAIConfig{
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			BaseURL:        getEnv("OPENAI_BASE_URL", ""),
			EmbeddingModel: getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			ChatModel:      getEnv("OPENAI_CHAT_MODEL", "gpt-5-mini"),
		},
		Embedding: EmbeddingConfig{
			Provider:   strings.ToLower(getEnv("EMBEDDING_PROVIDER", EmbeddingProviderOpenAI)),
			Dimensions: getEnvInt("EMBEDDING_DIMENSION", 1536),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			CacheTTL: getEnvDuration("EMBEDDING_CACHE_TTL", 24*time.Hour),
		},
		Watch2Gether: Watch2GetherConfig{
			APIKey:      getEnv("WATCH2GETHER_API_KEY", ""),
			APIURL:      getEnv("WATCH2GETHER_API_URL", "https://api.w2g.tv"),
			RoomBaseURL: getEnv("WATCH2GETHER_ROOM_URL", "https://w2g.tv"),
		},
		Search: SearchConfig{
			MinSimilarity: getEnvFloat("MIN_SIMILARITY", 0.1),
			ListLimit:     getEnvInt("MY_CONTENT_LIMIT", 50),
		},
		Feed: FeedConfig{
			Addr:      getEnv("FEED_ADDR", ""),
			JWTSecret: getEnv("FEED_JWT_SECRET", ""),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if len(c.Discord.Token) < 50 {
		errs = append(errs, errors.New("DISCORD_TOKEN appears to be invalid"))
	}
	if c.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}

	switch c.Embedding.Provider {
	case EmbeddingProviderOpenAI:
		if !strings.HasPrefix(c.OpenAI.APIKey, "sk-") {
			errs = append(errs, errors.New("OPENAI_API_KEY must start with 'sk-'"))
		}
	case EmbeddingProviderHash:
	default:
		errs = append(errs, fmt.Errorf("unknown EMBEDDING_PROVIDER %q", c.Embedding.Provider))
	}
	if c.Embedding.Dimensions <= 0 {
		errs = append(errs, errors.New("EMBEDDING_DIMENSION must be positive"))
	}

	if c.Search.ListLimit < 1 {
		errs = append(errs, errors.New("MY_CONTENT_LIMIT must be positive"))
	}
	if c.Search.MinSimilarity < 0 || c.Search.MinSimilarity >= 1 {
		errs = append(errs, errors.New("MIN_SIMILARITY must be in [0, 1)"))
	}
	if c.Feed.Addr != "" && c.Feed.JWTSecret == "" {
		errs = append(errs, errors.New("FEED_JWT_SECRET is required when FEED_ADDR is set"))
	}

	return errors.Join(errs...)
}

// AskEnabled reports whether /ask has an OpenAI key to talk to.
func (c *Config) AskEnabled() bool {
	return strings.HasPrefix(c.OpenAI.APIKey, "sk-")
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	f, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return d
}
