// File: cmd/migrate/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"telegram-premium-delivery/internal/config"
	"telegram-premium-delivery/internal/infra/db/postgres/migrations"
	"telegram-premium-delivery/internal/infra/logging"
)

const usage = `usage: migrate [-config config.yaml] [-dsn URL] <command> [args]

commands: up, up-by-one, up-to VERSION, down, down-to VERSION, redo, reset, status, version`

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	dsn := flag.String("dsn", "", "database url, overrides the config")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Read(*cfgPath, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if *dsn != "" {
		cfg.Database.URL = *dsn
	}
	logger := logging.New(cfg.Log, false)
	if cfg.Database.URL == "" {
		logger.Fatal().Msg("database.url is required (config, DATABASE_URL or -dsn)")
	}

	db, err := migrations.Open(cfg.Database.URL)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := migrations.Run(ctx, db, args[0], args[1:]...); err != nil {
		logger.Error().Err(err).Str("command", args[0]).Msg("migration failed")
		db.Close()
		os.Exit(1)
	}
	logger.Info().Str("command", args[0]).Msg("migration done")
}
