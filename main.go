package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"discordbot/config"
	"discordbot/config/database"
	"discordbot/internal/assistant"
	"discordbot/internal/bot"
	contentrepo "discordbot/internal/content/repository"
	contentservice "discordbot/internal/content/service"
	"discordbot/internal/embedding"
	roomrepo "discordbot/internal/room/repository"
	roomservice "discordbot/internal/room/service"
	"discordbot/internal/watch2gether"
	"discordbot/pkg/logger"
	"discordbot/router"
	"discordbot/socket"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "discordbot",
		Usage: "Discord bot with semantic notes and shared Watch2gether rooms",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: runBot,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Connect to Discord and serve slash commands",
				Action: runBot,
			},
			{
				Name:   "migrate",
				Usage:  "Create the pgvector extension, tables and indexes",
				Action: migrate,
			},
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration, builds the logger and connects to Postgres.
func setup(ctx context.Context, c *cli.Command) (*config.Config, *zap.SugaredLogger, *sql.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	log := logger.Init(cfg.Log.Level).Sugar()

	db, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.MaxOpenConns, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, db, nil
}

func migrate(ctx context.Context, c *cli.Command) error {
	cfg, log, db, err := setup(ctx, c)
	if err != nil {
		return err
	}
	defer db.Close()
	defer log.Sync()

	if err := database.Migrate(ctx, db, cfg.Embedding.Dimensions); err != nil {
		return err
	}
	log.Infof("Schema ready (embedding dimension %d)", cfg.Embedding.Dimensions)
	return nil
}

func runBot(ctx context.Context, c *cli.Command) error {
	cfg, log, db, err := setup(ctx, c)
	if err != nil {
		return err
	}
	defer db.Close()
	defer log.Sync()

	if err := database.Migrate(ctx, db, cfg.Embedding.Dimensions); err != nil {
		return err
	}

	embedder, err := newEmbedder(cfg, log)
	if err != nil {
		return err
	}

	rooms := roomrepo.NewRoomRepository(db, log)
	content := contentservice.NewContentService(
		contentrepo.NewContentRepository(db, log),
		embedder,
		contentservice.Options{MinSimilarity: cfg.Search.MinSimilarity, ListLimit: cfg.Search.ListLimit},
		log,
	)

	w2g := watch2gether.NewClient(cfg.Watch2Gether.APIKey, cfg.Watch2Gether.APIURL, cfg.Watch2Gether.RoomBaseURL, log)
	var creator roomservice.Creator
	if cfg.Watch2Gether.APIKey != "" {
		creator = w2g
	} else {
		log.Warn("WATCH2GETHER_API_KEY not set, /watch only accepts a supplied url")
	}
	watch := roomservice.NewRoomService(rooms, creator, log).WithChecker(w2g)

	var asker bot.Asker
	if cfg.AskEnabled() {
		asker = assistant.New(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.ChatModel, log)
	}

	// The activity feed is optional; without it events go nowhere.
	var feed *http.Server
	if cfg.Feed.Addr != "" {
		hub := socket.NewHub(rooms, log)
		go hub.Run(ctx)
		content.WithNotifier(hub)
		watch.WithNotifier(hub)

		feed = &http.Server{
			Addr:              cfg.Feed.Addr,
			Handler:           router.Setup(db, hub, cfg.Feed.JWTSecret, log),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Infof("Activity feed listening on %s", cfg.Feed.Addr)
			if err := feed.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("Activity feed stopped: %v", err)
			}
		}()
	}

	b, err := bot.New(cfg.Discord.Token, cfg.Discord.GuildID, content, watch, asker, log)
	if err != nil {
		return fmt.Errorf("create discord session: %w", err)
	}
	runErr := b.Run(ctx)

	if feed != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := feed.Shutdown(shutdownCtx); err != nil {
			log.Warnf("Activity feed shutdown: %v", err)
		}
	}
	return runErr
}

// newEmbedder picks the provider and puts the Redis cache in front of it
// when REDIS_URL is set.
func newEmbedder(cfg *config.Config, log *zap.SugaredLogger) (contentservice.Embedder, error) {
	var base embedding.Embedder
	switch cfg.Embedding.Provider {
	case config.EmbeddingProviderHash:
		base = embedding.NewHash(cfg.Embedding.Dimensions)
	default:
		base = embedding.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.EmbeddingModel, cfg.Embedding.Dimensions, log)
	}

	if cfg.Redis.URL == "" {
		return base, nil
	}
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	log.Infof("Caching embeddings in Redis for %s", cfg.Redis.CacheTTL)
	return embedding.NewCache(base, redis.NewClient(opts), cfg.Redis.CacheTTL, log), nil
}
