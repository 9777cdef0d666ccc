package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cory-johannsen/diceroller/internal/config"
	"github.com/cory-johannsen/diceroller/internal/dice"
	"github.com/cory-johannsen/diceroller/internal/events"
	"github.com/cory-johannsen/diceroller/internal/observability"
	"github.com/cory-johannsen/diceroller/internal/preset"
	"github.com/cory-johannsen/diceroller/internal/roller"
	"github.com/cory-johannsen/diceroller/internal/storage/postgres"
)

func newRootCmd(out io.Writer) *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:           "diceroll",
		Short:         "Roll dice notation such as \"Attack: d20 +5 adv\"",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log each roll to stderr")

	rootCmd.AddCommand(newRollCmd(&verbose), newHistoryCmd(), newWatchCmd(&verbose))
	return rootCmd
}

func newRollCmd(verbose *bool) *cobra.Command {
	var (
		seed        uint64
		presetsPath string
	)

	cmd := &cobra.Command{
		Use:   "roll [notation...]",
		Short: "Roll one or more comma-separated requests",
		Example: `  diceroll roll "Attack: d20 +5 adv, Damage: 2d10 + 1d6 +8"
  diceroll roll --seed 42 4dF`,
		RunE: func(cmd *cobra.Command, args []string) error {
			src := dice.NewCryptoSource()
			if cmd.Flags().Changed("seed") {
				src = dice.NewSeededSource(seed)
			}

			logger := zap.NewNop()
			if *verbose {
				var err error
				logger, err = observability.NewLogger(config.LoggingConfig{Level: "debug", Format: "console", Output: "stderr"})
				if err != nil {
					return fmt.Errorf("initializing logger: %w", err)
				}
				defer logger.Sync()
			}

			var opts []roller.Option
			if presetsPath != "" {
				presets, err := preset.Load(presetsPath)
				if err != nil {
					return err
				}
				opts = append(opts, roller.WithPresets(presets))
			}

			svc := roller.NewService(dice.NewLoggedRoller(src, logger), logger, opts...)
			for _, line := range svc.Roll(cmd.Context(), roller.Request{
				Frontend: "cli",
				Text:     strings.Join(args, " "),
			}) {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Replay rolls from a fixed seed")
	cmd.Flags().StringVar(&presetsPath, "presets", "", "Path to a presets YAML file")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var (
		configPath string
		userID     string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List a user's most recent rolls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			pool, err := postgres.NewPool(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			records, err := postgres.NewRollRepository(pool.DB()).Recent(ctx, userID, limit)
			if err != nil {
				return err
			}
			return writeHistory(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "configs/dev.yaml", "Path to configuration file")
	cmd.Flags().StringVar(&userID, "user", "", "User ID whose rolls to list")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of rolls to list (1-100)")
	return cmd
}

func newWatchCmd(verbose *bool) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream rolls from every transport as they happen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if !cfg.NATS.Enabled {
				return fmt.Errorf("nats is not enabled in %s", configPath)
			}

			logger := zap.NewNop()
			if *verbose {
				logger, err = observability.NewLogger(config.LoggingConfig{Level: "debug", Format: "console", Output: "stderr"})
				if err != nil {
					return fmt.Errorf("initializing logger: %w", err)
				}
				defer logger.Sync()
			}

			conn, err := events.Connect(cfg.NATS.ClientURL(), cfg.NATS.ConnectTimeout, logger)
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var mu sync.Mutex
			out := cmd.OutOrStdout()
			return events.Watch(ctx, conn, cfg.NATS.Subject, func(e events.RollEvent) {
				mu.Lock()
				defer mu.Unlock()
				writeEvent(out, e)
			}, logger)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "configs/dev.yaml", "Path to configuration file")
	return cmd
}

func writeEvent(out io.Writer, e events.RollEvent) {
	who := e.UserID
	if who == "" {
		who = "-"
	}
	fmt.Fprintf(out, "%s %-8s %s: %s\n", e.CreatedAt.Local().Format(time.TimeOnly), e.Frontend, who, e.Line)
}

func writeHistory(out io.Writer, records []roller.Record) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(out, "no rolls recorded")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tFRONTEND\tTYPE\tTOTAL\tRESULT")
	for _, r := range records {
		total := fmt.Sprint(r.Total)
		if r.Failed {
			total = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.CreatedAt.Local().Format(time.DateTime), r.Frontend, r.RollType, total, r.Line)
	}
	return tw.Flush()
}
