package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/audreyd114/B438-Checkers/archive"
	"github.com/audreyd114/B438-Checkers/config"
	"github.com/audreyd114/B438-Checkers/server"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	initializeLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	var store archive.Store
	if cfg.RedisURL != "" {
		store, err = archive.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis archive")
		}
		log.Info().Msg("Using Redis result archive")
	} else {
		store = archive.NewMemoryStore()
	}
	defer store.Close()

	if cfg.ProbeAddr != "" {
		pc, err := server.StartProbe(cfg.ProbeAddr)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.ProbeAddr).Msg("Failed to start UDP probe")
		}
		defer pc.Close()
	}

	log.Info().Msg("Starting checkers server")
	if err := server.New(cfg, store).Start(); err != nil {
		log.Fatal().Err(err).Msg("Server exited")
	}
}

func initializeLogger() {
	loggingEnabled := os.Getenv("LOGGING")
	if loggingEnabled != "true" {
		log.Logger = log.Output(os.Stdout)
	} else {
		runLogFile, err := os.OpenFile(
			"checkers.log",
			os.O_APPEND|os.O_CREATE|os.O_WRONLY,
			0664,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open log file")
		}
		multi := zerolog.MultiLevelWriter(runLogFile, os.Stdout)
		log.Logger = zerolog.New(multi).With().Timestamp().Logger()
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}
