package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/workdeck/workdeck-server/internal/audit"
	"github.com/workdeck/workdeck-server/internal/backfill"
	"github.com/workdeck/workdeck-server/internal/config"
	"github.com/workdeck/workdeck-server/internal/storage"
)

func main() {
	// Command line flags
	var (
		configFile   string
		dryRun       bool
		targetTenant string
		actor        string
	)
	flag.StringVar(&configFile, "config", "config/server.yml", "Configuration file path")
	flag.BoolVar(&dryRun, "dry-run", true, "Report counts without assigning rows")
	flag.StringVar(&targetTenant, "target-tenant", "", "Target tenant slug or id (default: the canonical default tenant)")
	flag.StringVar(&actor, "actor", "backfill-cli", "Actor recorded in the audit log")
	flag.Parse()

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Connect to database
	store, err := storage.NewPostgresStore(cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer store.Close()

	runner := backfill.NewRunner(store, audit.NewPublisher(nil), log.Logger)

	report, err := runner.Run(context.Background(), backfill.Options{
		DryRun:       dryRun,
		TargetTenant: targetTenant,
		Actor:        actor,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Backfill failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Fatal().Err(err).Msg("Failed to encode report")
	}

	if report.RemainingOrphans == 0 && !report.DryRun {
		log.Info().Msg("No orphans remain; strict enforcement can be enabled")
	}
}
