package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/opinio/internal/cli"
	"horse.fit/opinio/internal/config"
	"horse.fit/opinio/internal/logging"
)

func runMatch(args []string) int {
	fs := flag.NewFlagSet("match", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	limit := fs.Int("limit", 500, "Maximum number of unmatched reviews to process")
	timeout := fs.Duration("timeout", 30*time.Minute, "Overall run timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *limit <= 0 {
		fmt.Fprintln(os.Stderr, "--limit must be positive")
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rt, err := buildRuntime(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("match setup failed")
		fmt.Fprintf(os.Stderr, "Match setup failed: %v\n", err)
		return 1
	}
	defer rt.close()

	reviewIDs, err := rt.pool.ListUnmatchedReviewIDs(ctx, *limit)
	if err != nil {
		logger.Error().Err(err).Msg("list unmatched reviews failed")
		fmt.Fprintf(os.Stderr, "Match failed: %v\n", err)
		return 1
	}

	var failed int
	for _, reviewID := range reviewIDs {
		if err := rt.enricher.RunEventMatch(ctx, reviewID); err != nil {
			failed++
			logger.Warn().Err(err).Int64("review_id", reviewID).Msg("event match failed")
		}
	}

	logger.Info().
		Int("processed", len(reviewIDs)).
		Int("failed", failed).
		Msg("event match backfill finished")
	fmt.Printf("ok: %d reviews processed, %d failed\n", len(reviewIDs), failed)
	if failed > 0 {
		return 1
	}
	return 0
}
