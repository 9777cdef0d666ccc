// Package main runs the dice roller service. It wires configuration, the
// optional history sinks, and every enabled transport into one lifecycle.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/diceroller/internal/config"
	"github.com/cory-johannsen/diceroller/internal/dice"
	"github.com/cory-johannsen/diceroller/internal/events"
	"github.com/cory-johannsen/diceroller/internal/frontend/discord"
	"github.com/cory-johannsen/diceroller/internal/frontend/slack"
	"github.com/cory-johannsen/diceroller/internal/frontend/telegram"
	"github.com/cory-johannsen/diceroller/internal/frontend/telnet"
	"github.com/cory-johannsen/diceroller/internal/observability"
	"github.com/cory-johannsen/diceroller/internal/preset"
	"github.com/cory-johannsen/diceroller/internal/roller"
	"github.com/cory-johannsen/diceroller/internal/server"
	"github.com/cory-johannsen/diceroller/internal/storage/postgres"
)

const healthTimeout = 2 * time.Second

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	src, err := dice.NewSource(cfg.Dice.Source, cfg.Dice.Seed)
	if err != nil {
		logger.Fatal("selecting dice source", zap.Error(err))
	}
	logger.Info("starting dice roller",
		zap.String("source", cfg.Dice.Source),
	)

	var opts []roller.Option
	if cfg.Presets.Path != "" {
		presets, err := preset.Load(cfg.Presets.Path)
		if err != nil {
			logger.Fatal("loading presets", zap.Error(err))
		}
		logger.Info("presets loaded",
			zap.String("path", cfg.Presets.Path),
			zap.Strings("names", presets.Names()),
		)
		opts = append(opts, roller.WithPresets(presets))
	}

	lifecycle := server.NewLifecycle(logger)

	var health func(context.Context) error
	if cfg.Database.Enabled {
		dbStart := time.Now()
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		defer pool.Close()
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Int("port", cfg.Database.Port),
			zap.String("database", cfg.Database.Name),
			zap.Duration("elapsed", time.Since(dbStart)),
		)

		opts = append(opts, roller.WithRecorder(postgres.NewRollRepository(pool.DB())))
		health = func(ctx context.Context) error { return pool.Health(ctx, healthTimeout) }
	}

	if cfg.NATS.Enabled {
		natsLogger := observability.Component(logger, "nats")
		natsURL := cfg.NATS.ClientURL()
		if cfg.NATS.Embedded {
			ns, err := events.NewEmbeddedServer(cfg.NATS, natsLogger)
			if err != nil {
				logger.Fatal("configuring embedded nats server", zap.Error(err))
			}
			if err := ns.Start(); err != nil {
				logger.Fatal("starting embedded nats server", zap.Error(err))
			}
			lifecycle.Add(ns)
			natsURL = ns.ClientURL()
		}
		pub, err := events.Dial(natsURL, cfg.NATS.Subject, cfg.NATS.ConnectTimeout, natsLogger)
		if err != nil {
			logger.Fatal("connecting to nats", zap.Error(err))
		}
		defer pub.Close()
		logger.Info("publishing roll events",
			zap.String("url", natsURL),
			zap.String("subject", events.WatchSubject(cfg.NATS.Subject)),
		)
		opts = append(opts, roller.WithRecorder(pub))
	}

	svc := roller.NewService(
		dice.NewLoggedRoller(src, observability.Component(logger, "dice")),
		observability.Component(logger, "roller"),
		opts...,
	)

	if cfg.HTTP.Enabled {
		verifier := slack.NewVerifier(cfg.Slack.SigningSecret, cfg.Slack.MaxSkew)
		if !verifier.Enabled() {
			logger.Warn("slack signing secret not set; requests are not verified")
		}
		httpLogger := observability.Component(logger, "http")
		lifecycle.Add(slack.NewServer(cfg.HTTP, slack.NewHandler(svc, verifier, health, httpLogger), httpLogger))
	}

	if cfg.Discord.Enabled {
		bot, err := discord.NewBot(cfg.Discord, svc, observability.Component(logger, "discord"))
		if err != nil {
			logger.Fatal("creating discord bot", zap.Error(err))
		}
		lifecycle.Add(bot)
	}

	if cfg.Telegram.Enabled {
		bot, err := telegram.NewBot(ctx, cfg.Telegram, svc, observability.Component(logger, "telegram"))
		if err != nil {
			logger.Fatal("creating telegram bot", zap.Error(err))
		}
		lifecycle.Add(bot)
	}

	if cfg.Telnet.Enabled {
		telnetLogger := observability.Component(logger, "telnet")
		lifecycle.Add(telnet.NewAcceptor(cfg.Telnet, telnet.NewRollHandler(svc, cfg.Telnet.Width, telnetLogger), telnetLogger))
	}

	if !cfg.HTTP.Enabled && !cfg.Discord.Enabled && !cfg.Telegram.Enabled && !cfg.Telnet.Enabled {
		logger.Fatal("no transports enabled; enable at least one of http, discord, telegram, telnet")
	}

	logger.Info("dice roller initialized", zap.Duration("startup", time.Since(start)))

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("service exited with error", zap.Error(err))
	}
}
