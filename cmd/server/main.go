package main

import (
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"social/internal/blob"
	"social/internal/config"
	"social/internal/handlers"
	"social/internal/notify"
	"social/internal/rates"
	"social/internal/rewards"
	"social/internal/server"
	"social/internal/session"
	"social/internal/store"
)

func main() {
	cfg := config.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.PrettyLog {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		log.Fatal().Err(err).Msg("data dir")
	}

	db, err := blob.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open blob db")
	}
	defer db.Close()

	st := store.New()
	if err := blob.LoadInto(db, st); err != nil {
		log.Fatal().Err(err).Msg("load snapshots")
	}

	if err := rates.Ensure(cfg.RatesPath); err != nil {
		log.Fatal().Err(err).Msg("rates file")
	}

	beacon, err := notify.NewBeacon(cfg.MulticastAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("multicast beacon")
	}
	defer beacon.Close()

	notifier := notify.NewDispatcher(beacon, log.With().Str("component", "notify").Logger())
	sessions := session.NewManager()
	disp := handlers.New(st, sessions, notifier, rates.Provider(cfg.RatesPath),
		log.With().Str("component", "dispatch").Logger())

	srv, err := server.Start(cfg.ListenAddr, disp, sessions, notifier,
		log.With().Str("component", "server").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("start server")
	}

	engine := rewards.NewEngine(st, cfg.AuthorShare, log.With().Str("component", "rewards").Logger())
	sweeper := rewards.StartSweeper(engine, notifier, cfg.RewardInterval,
		log.With().Str("component", "rewards").Logger())
	persister := blob.StartPersister(db, st, cfg.PersistInterval,
		log.With().Str("component", "persist").Logger())

	// admin mux: registration boundary + metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/register", handlers.Register(st, log.With().Str("component", "register").Logger()))
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(cfg.AdminAddr, handlers.WithRecover(mux, log.Logger)); err != nil {
			log.Error().Err(err).Msg("admin mux stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	// two-phase drain: stop the periodic tasks (the persister runs one
	// final flush), then drop the connections, then seal the store
	if err := sweeper.Stop(); err != nil {
		log.Error().Err(err).Msg("sweeper stop")
	}
	if err := persister.Stop(); err != nil {
		log.Error().Err(err).Msg("persister stop")
	}
	if err := srv.Shutdown(); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	st.Close()
	log.Info().Msg("bye")
}
