package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sleetbot/warden/automod/store"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "warden",
		Usage:   "discord automod daemon and admin tool",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			Value:   "info",
			EnvVars: []string{"WARDEN_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "admin-host",
			Usage:   "method, hostname, and port of a running warden daemon's admin API",
			Value:   "http://localhost:3989",
			EnvVars: []string{"WARDEN_ADMIN_HOST"},
		},
		&cli.StringFlag{
			Name:    "admin-token",
			Usage:   "bearer token for the admin API (empty disables auth)",
			EnvVars: []string{"WARDEN_ADMIN_TOKEN"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
		rulesCmd,
		settingsCmd,
		silenceCmd,
		whisperCmd,
		dehoistCmd,
	}

	return app.Run(args)
}

func configLogger(cctx *cli.Context) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cctx.String("log-level")) {
	case "error":
		level = slog.LevelError
	case "warn":
		level = slog.LevelWarn
	case "debug":
		level = slog.LevelDebug
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the automod service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Value:   "sqlite://data/warden/automod.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
			Value:   40,
		},
		&cli.StringFlag{
			Name:     "discord-token",
			Usage:    "discord bot token",
			Required: true,
			EnvVars:  []string{"WARDEN_DISCORD_TOKEN", "DISCORD_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL for the shared cache (in-process cache if empty)",
			EnvVars: []string{"WARDEN_REDIS_URL", "REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics and admin APIs",
			Value:   ":3989",
			EnvVars: []string{"WARDEN_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "slack-webhook-url",
			Usage:   "also mirror mod log entries to this slack webhook",
			EnvVars: []string{"SLACK_WEBHOOK_URL"},
		},
		&cli.StringFlag{
			Name:    "sets-json-path",
			Usage:   "file path of JSON file containing named phrase sets",
			EnvVars: []string{"WARDEN_SETS_JSON_PATH"},
		},
		&cli.DurationFlag{
			Name:    "silence-window",
			Usage:   "how long a silence trigger suppresses announcements in a channel",
			Value:   3 * time.Second,
			EnvVars: []string{"WARDEN_SILENCE_WINDOW"},
		},
		&cli.DurationFlag{
			Name:    "whisper-hold",
			Usage:   "how long whisper punishments restrict a member (zero holds until restored)",
			Value:   5 * time.Second,
			EnvVars: []string{"WARDEN_WHISPER_HOLD"},
		},
		&cli.Float64Flag{
			Name:    "dehoist-rate-limit",
			Usage:   "max nickname edits per second (zero for unlimited)",
			Value:   2,
			EnvVars: []string{"WARDEN_DEHOIST_RATE_LIMIT"},
		},
	},
	Action: func(cctx *cli.Context) error {
		logger := configLogger(cctx)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		db, err := store.SetupDatabase(cctx.String("database-url"), cctx.Int("max-db-connections"))
		if err != nil {
			return err
		}

		srv, err := NewServer(
			db,
			Config{
				DiscordToken:     cctx.String("discord-token"),
				RedisURL:         cctx.String("redis-url"),
				SetsFileJSON:     cctx.String("sets-json-path"),
				SlackWebhookURL:  cctx.String("slack-webhook-url"),
				AdminToken:       cctx.String("admin-token"),
				SilenceWindow:    cctx.Duration("silence-window"),
				WhisperHold:      cctx.Duration("whisper-hold"),
				DehoistRateLimit: cctx.Float64("dehoist-rate-limit"),
				Logger:           logger,
			},
		)
		if err != nil {
			return err
		}

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("failed to run automod service: %w", err)
		}
		return nil
	},
}
