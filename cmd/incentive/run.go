package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/iwell/incentive-engine/internal/engine"
	"github.com/iwell/incentive-engine/internal/model"
	"github.com/iwell/incentive-engine/internal/storage"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compute incentive points for a scorer",
		Long: `Run the scoring pipeline for one scorer: load its config document,
resolve the computation windows, aggregate transactions per RM, apply the
slab tables, and write the leaderboard and audit rows.

Reruns are idempotent; frozen months are never touched.`,
		RunE: runScoring,
	}

	cmd.Flags().String("scorer", "", "scorer to run (sip, lumpsum, insurance)")
	cmd.Flags().String("as-of", "", "run as of this date, YYYY-MM-DD (default: today)")
	cmd.Flags().String("month", "", "score a single month, YYYY-MM (overrides the config's range mode)")
	cmd.Flags().String("target-rm", "", "restrict to one RM id")
	cmd.Flags().Bool("dry-run", false, "compute and log without persisting")
	cmd.Flags().Duration("lock-ttl", engine.DefaultLockTTL, "run lock lease duration")
	_ = cmd.MarkFlagRequired("scorer")

	return cmd
}

func runScoring(cmd *cobra.Command, _ []string) error {
	scorer, _ := cmd.Flags().GetString("scorer")
	asOfFlag, _ := cmd.Flags().GetString("as-of")
	month, _ := cmd.Flags().GetString("month")
	targetRM, _ := cmd.Flags().GetString("target-rm")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	lockTTL, _ := cmd.Flags().GetDuration("lock-ttl")

	if !model.KnownScorer(scorer) {
		return fmt.Errorf("unknown scorer %q (want sip, lumpsum, or insurance)", scorer)
	}

	asOf := time.Now()
	if asOfFlag != "" {
		parsed, err := time.Parse("2006-01-02", asOfFlag)
		if err != nil {
			return fmt.Errorf("invalid --as-of date %q: %w", asOfFlag, err)
		}
		asOf = parsed
	}

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var bar *progressbar.ProgressBar
	progress := func(done, total int) {
		if bar == nil || bar.GetMax() != total {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("Scoring RMs..."),
			)
		}
		_ = bar.Set(done)
	}

	eng := engine.New(store, storage.NewRunLocker(store), slog.Default())
	result, err := eng.Run(ctx, scorer, asOf, engine.Options{
		DryRun:   dryRun,
		TargetRM: targetRM,
		Month:    month,
		LockTTL:  lockTTL,
		Progress: progress,
	})
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return err
	}

	slog.Info("Run summary",
		"scorer", result.Scorer,
		"config_hash", result.ConfigHash,
		"windows", result.Windows,
		"processed", result.Processed,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"duration", result.Duration.Round(time.Millisecond))
	if result.Failed > 0 {
		slog.Warn("Some RMs failed to score", "rm_ids", result.FailedRMs)
	}
	return nil
}
