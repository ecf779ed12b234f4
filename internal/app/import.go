package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/opinio/internal/cli"
	"horse.fit/opinio/internal/config"
	"horse.fit/opinio/internal/logging"
	"horse.fit/opinio/internal/source"
)

func runImport(args []string) int {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	institutionID := fs.Int64("institution", 0, "Institution identifier (required)")
	sourceTag := fs.String("source", "", "Source to ingest: maps, social, scrape or messaging (required)")
	timeout := fs.Duration("timeout", 30*time.Minute, "Overall run timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *institutionID <= 0 {
		fmt.Fprintln(os.Stderr, "--institution must be a positive identifier")
		return 2
	}
	if !source.KnownTag(*sourceTag) {
		fmt.Fprintf(os.Stderr, "--source must be one of maps, social, scrape, messaging (got %q)\n", *sourceTag)
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
		logger.Error().Err(err).Msg("import setup failed")
		fmt.Fprintf(os.Stderr, "Import setup failed: %v\n", err)
		return 1
	}
	defer rt.close()

	result, err := rt.coordinator.Run(ctx, *institutionID, *sourceTag)
	if err != nil {
		logger.Error().
			Err(err).
			Int64("institution_id", *institutionID).
			Str("source", *sourceTag).
			Msg("import run failed")
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		return 1
	}

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode result: %v\n", err)
		return 1
	}
	fmt.Println(string(encoded))
	return 0
}
