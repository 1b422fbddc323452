package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/sleetbot/warden/automod"
	"github.com/sleetbot/warden/automod/cachestore"
	"github.com/sleetbot/warden/automod/consumer"
	"github.com/sleetbot/warden/automod/dehoist"
	"github.com/sleetbot/warden/automod/modlog"
	"github.com/sleetbot/warden/automod/platform"
	"github.com/sleetbot/warden/automod/rules"
	"github.com/sleetbot/warden/automod/setstore"
	"github.com/sleetbot/warden/automod/store"

	"github.com/bwmarrin/discordgo"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

type Server struct {
	logger   *slog.Logger
	session  *discordgo.Session
	platform *platform.Discord
	engine   *automod.Engine
	consumer *consumer.GatewayConsumer
	admin    *AdminAPI
	rdb      *redis.Client
}

type Config struct {
	DiscordToken    string
	RedisURL        string
	SetsFileJSON    string
	SlackWebhookURL string
	AdminToken      string
	SilenceWindow   time.Duration
	WhisperHold     time.Duration
	// nickname edits per second
	DehoistRateLimit float64
	Logger           *slog.Logger
}

func NewServer(db *gorm.DB, config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	if config.DiscordToken == "" {
		return nil, fmt.Errorf("a discord bot token is required")
	}

	configStore, err := store.NewGormConfigStore(logger, db)
	if err != nil {
		return nil, err
	}

	sets := setstore.NewMemSetStore()
	if config.SetsFileJSON != "" {
		if err := sets.LoadFromFileJSON(config.SetsFileJSON); err != nil {
			return nil, fmt.Errorf("initializing in-process setstore: %v", err)
		} else {
			logger.Info("loaded set config from JSON", "path", config.SetsFileJSON)
		}
	}

	var cache cachestore.CacheStore
	var rdb *redis.Client
	if config.RedisURL != "" {
		opt, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis URL: %v", err)
		}
		rdb = redis.NewClient(opt)
		// check redis connection
		_, err = rdb.Ping(context.TODO()).Result()
		if err != nil {
			return nil, fmt.Errorf("redis ping failed: %v", err)
		}
		cache = cachestore.NewRedisCacheStoreFromClient(rdb, 10*time.Minute, cachestore.DefaultTTLs)
	} else {
		cache = cachestore.NewMemCacheStore(5_000, 10*time.Minute, cachestore.DefaultTTLs)
	}

	session, err := discordgo.New("Bot " + config.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent
	// bot ID is filled in once the gateway session is open
	plat := platform.NewDiscord(logger, session, "")

	factory := rules.NewFactory(logger)
	factory.Sets = sets
	factory.Invites = &rules.CachedInviteResolver{Inner: plat, Cache: cache}

	registry := automod.NewRuleRegistry(logger, configStore, factory.Build)
	silence := automod.NewSilenceCounter(config.SilenceWindow)

	sinks := modlog.Multi{&modlog.ChannelModLog{Sender: plat, Settings: registry}}
	if config.SlackWebhookURL != "" {
		sinks = append(sinks, &modlog.SlackModLog{WebhookURL: config.SlackWebhookURL})
	}

	dispatcher := automod.NewDispatcher(logger, plat, sinks, silence)
	dispatcher.WhisperHold = config.WhisperHold

	eng := &automod.Engine{
		Logger:     logger,
		Registry:   registry,
		Dispatcher: dispatcher,
		Platform:   plat,
		Cache:      cache,
		Silence:    silence,
	}

	limit := rate.Limit(config.DehoistRateLimit)
	if config.DehoistRateLimit <= 0 {
		limit = rate.Inf
	}
	dh := dehoist.NewDehoister(logger, plat, limit, 1)

	admin := NewAdminAPI(logger, eng, config.AdminToken)
	admin.Dehoister = dh
	admin.Members = plat

	return &Server{
		logger:   logger,
		session:  session,
		platform: plat,
		engine:   eng,
		consumer: consumer.NewGatewayConsumer(logger, eng, dh),
		admin:    admin,
		rdb:      rdb,
	}, nil
}

// Serves metrics and the admin API until the listener fails.
func (s *Server) RunMetrics(listen string) error {
	e := s.admin.Echo()
	s.logger.Info("starting metrics and admin endpoint", "bind", listen)
	err := e.Start(listen)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Periodically drops idle per-subject rule state.
func (s *Server) RunPrune(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.engine.Registry.Prune()
		}
	}
}

func (s *Server) Run(ctx context.Context) error {
	if err := s.engine.Registry.Warm(ctx); err != nil {
		return fmt.Errorf("loading automod configuration: %w", err)
	}

	s.consumer.Register(s.session)
	if err := s.session.Open(); err != nil {
		return fmt.Errorf("opening discord gateway session: %w", err)
	}
	defer s.session.Close()
	if s.session.State != nil && s.session.State.User != nil {
		s.platform.BotID = s.session.State.User.ID
	}
	s.logger.Info("connected to discord gateway", "bot", s.platform.BotID)

	go s.RunPrune(ctx, time.Minute)

	err := s.consumer.Run(ctx)
	if s.rdb != nil {
		s.rdb.Close()
	}
	return err
}
