// Copyright 2024-2026 Aiku AI

// Command discussion-bridge mirrors conversations between a GitHub
// Discussions category and a Discord forum channel. Each discussion gets
// exactly one counterpart thread and vice versa; message sequences are kept
// in lockstep by GitHub webhooks and Discord gateway events, with a full
// reconciliation pass at startup.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/aiku/discussion-bridge/pkg/bridge"
	"github.com/aiku/discussion-bridge/pkg/discord"
	"github.com/aiku/discussion-bridge/pkg/github"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func run(ctx context.Context, cmd *cli.Command) error {
	log := newLogger(cmd.String("log-level"))
	log.Info().Str("tag", Tag).Str("commit", Commit).Str("build_time", BuildTime).Msg("Starting discussion-bridge")

	cfg, err := bridge.LoadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	if cmd.Bool("dry-run") {
		cfg.DryRun = true
	}
	if err := cfg.PostProcess(); err != nil {
		return fmt.Errorf("failed to post-process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	forum := github.NewClient(cfg.GitHub.Token, cfg.GitHub.Owner, cfg.GitHub.Repo, log)
	chat := discord.NewClient(cfg.Discord.Token, cfg.Discord.GuildID, log)

	// Category resolution is fatal: a missing repository, disabled
	// discussions, or an absent category means nothing can be mirrored.
	categoryID, err := forum.Resolve(ctx, cfg.GitHub.Category)
	if err != nil {
		return fmt.Errorf("startup resolution failed: %w", err)
	}

	b := bridge.New(cfg, forum, chat, categoryID, log)

	if err := b.SyncAll(ctx); err != nil {
		return fmt.Errorf("startup reconciliation failed: %w", err)
	}

	gw := discord.NewGateway(cfg.Discord.Token, b.HandleGatewayEvent, log)
	srv := b.NewServer()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("Starting webhook server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("webhook server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return gw.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("Shutdown complete")
	return nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	var log zerolog.Logger
	if os.Getenv("BRIDGE_PRETTY_LOG") != "" {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(lvl).With().Timestamp().Logger()
}

func main() {
	cmd := &cli.Command{
		Name:   "discussion-bridge",
		Usage:  "Mirror a GitHub Discussions category and a Discord forum channel in lockstep",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   "config.yaml",
				Sources: cli.EnvVars("BRIDGE_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (trace, debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("BRIDGE_LOG_LEVEL"),
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Perform all reads but log would-be writes instead of issuing them",
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log := zerolog.New(os.Stderr)
		log.Error().Err(err).Msg("Fatal error")
		os.Exit(1)
	}
}
