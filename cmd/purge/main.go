package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/workdeck/workdeck-server/internal/audit"
	"github.com/workdeck/workdeck-server/internal/config"
	"github.com/workdeck/workdeck-server/internal/purge"
	"github.com/workdeck/workdeck-server/internal/storage"
)

func main() {
	// Command line flags
	var (
		configFile string
		actor      string
	)
	flag.StringVar(&configFile, "config", "config/server.yml", "Configuration file path")
	flag.StringVar(&actor, "actor", "purge-cli", "Actor recorded in the audit log")
	flag.Parse()

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Gates come before any database access
	if err := purge.CheckGates(os.Getenv, cfg.Server.IsProduction()); err != nil {
		log.Fatal().Err(err).Msg("Purge refused")
	}

	// Connect to database
	store, err := storage.NewPostgresStore(cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer store.Close()

	runner := purge.NewRunner(store, audit.NewPublisher(nil), log.Logger)
	report := runner.Run(context.Background(), actor)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Fatal().Err(err).Msg("Failed to encode report")
	}
}
