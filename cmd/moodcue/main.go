package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/moodcue/moodcue/internal/api"
	"github.com/moodcue/moodcue/internal/catalog"
	"github.com/moodcue/moodcue/internal/config"
	"github.com/moodcue/moodcue/internal/db"
	"github.com/moodcue/moodcue/internal/embedding"
	"github.com/moodcue/moodcue/internal/mcp"
	"github.com/moodcue/moodcue/internal/prefs"
	"github.com/moodcue/moodcue/internal/recommend"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("failed to load config")
	}

	log := newLogger(cfg.Logging)

	store, err := db.NewStore(cfg.Database.Path, log)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("failed to open database")
	}
	defer store.Close()

	embedder := embedding.NewClient(cfg.Embedding.URL, cfg.Embedding.Model)
	engine := recommend.NewEngine(store, embedder, log)
	tracker := prefs.NewTracker(store, embedder, log)

	if cfg.Catalog.Seed {
		// Seeding needs the embedding backend; a cold backend should not
		// keep the service from starting.
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		if err := catalog.Load(ctx, store, embedder, log); err != nil {
			log.Warn().Err(err).Msg("catalog seeding failed, continuing without seed data")
		}
		cancel()
	}

	mcpSrv := mcp.NewServer(engine, tracker, log)

	if cfg.MCP.Stdio {
		log.Info().Msg("starting MCP server on stdio")
		if err := mcpSrv.Serve(); err != nil {
			log.Fatal().Err(err).Msg("MCP server error")
		}
		return
	}

	srv := api.NewServer(engine, tracker, store, cfg.Server.Port, cfg.Embedding.Model, log)
	srv.AddMCPServer(mcpSrv.GetMCPServer())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("shutdown error")
		}
	}
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if cfg.Format == "json" {
		log = zerolog.New(os.Stderr)
	} else {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	return log.Level(level).With().Timestamp().Logger()
}
