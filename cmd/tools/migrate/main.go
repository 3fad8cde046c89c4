package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/noah-isme/vaxcart-api/internal/db"
)

func main() {
	steps := flag.Int("steps", 1, "migrations to roll back with down")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: migrate [-steps n] up|down|version\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("component", "migrate").Logger()
	_ = godotenv.Load()
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		logger.Fatal().Msg("DATABASE_URL is required")
	}

	m, err := db.NewMigrator(databaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("init migrator")
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			logger.Error().AnErr("source", srcErr).AnErr("database", dbErr).Msg("close migrator")
		}
	}()

	switch flag.Arg(0) {
	case "up":
		err = db.Up(m)
	case "down":
		err = db.Down(m, *steps)
	case "version":
		var (
			v     uint
			dirty bool
		)
		v, dirty, err = m.Version()
		if err == nil {
			logger.Info().Uint("version", v).Bool("dirty", dirty).Msg("schema version")
			return
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal().Err(err).Str("cmd", flag.Arg(0)).Msg("migration failed")
	}
	logger.Info().Str("cmd", flag.Arg(0)).Msg("migration complete")
}
