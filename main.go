package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Chious/fm-hangman-game/internal/catalog"
	"github.com/Chious/fm-hangman-game/internal/config"
	"github.com/Chious/fm-hangman-game/internal/daily"
	"github.com/Chious/fm-hangman-game/internal/httpserver"
	"github.com/Chious/fm-hangman-game/internal/stats"
	"github.com/Chious/fm-hangman-game/internal/store"
)

func main() {
	cfg := config.Load()
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if !cfg.Production {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.CatalogFile).Msg("failed to load phrase catalog")
	}
	nc, np := cat.Stats()
	log.Info().Int("categories", nc).Int("phrases", np).Msg("catalog loaded")

	db, err := stats.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open database")
	}
	defer db.Close()

	sessions := store.NewMemoryStore()
	janitor, err := store.StartJanitor(sessions, cfg.SweepSchedule, cfg.SessionTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to schedule session sweeps")
	}
	defer janitor.Stop()

	srv := httpserver.New(cfg, httpserver.Deps{
		Catalog:  cat,
		Sessions: sessions,
		Stats:    stats.NewStore(db, log.Logger),
		Daily:    daily.NewStore(db),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("port", cfg.Port).Msg("starting hangman server")
	if err := srv.Start(ctx, ":"+cfg.Port); err != nil {
		log.Error().Err(err).Msg("server exited")
		return
	}
	log.Info().Msg("server stopped")
}
