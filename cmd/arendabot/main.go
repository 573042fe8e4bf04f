package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/arendabot/arendabot/internal/boundary"
	"github.com/arendabot/arendabot/internal/config"
	"github.com/arendabot/arendabot/internal/dispatch"
	"github.com/arendabot/arendabot/internal/event"
	"github.com/arendabot/arendabot/internal/logsink"
	"github.com/arendabot/arendabot/internal/model"
	"github.com/arendabot/arendabot/internal/repository"
	"github.com/arendabot/arendabot/internal/server"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("could not load configuration")
	}
	level, _ := zerolog.ParseLevel(cfg.Log.Level)
	logger = logger.Level(level)

	recent := logsink.NewRecent(0)
	sink, err := logsink.Open(logsink.Options{
		Path:          cfg.Log.Path,
		FlushInterval: cfg.Log.FlushInterval,
		MaxSize:       cfg.Log.MaxSize,
		MaxBackups:    cfg.Log.MaxBackups,
		Compress:      cfg.Log.Compress,
		OnRecord:      recent.Add,
		Log:           &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("could not open log sink")
	}
	defer sink.Close()

	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatal().Err(err).Msg("could not create database directory")
		}
	}
	db, err := sql.Open("sqlite", cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("could not open database")
	}
	// Concurrent pool connections make the embedded driver return busy errors.
	db.SetMaxOpenConns(1)
	defer db.Close()

	subscribers, err := repository.NewSubscriberRepository(db)
	if err != nil {
		logger.Fatal().Err(err).Msg("could not prepare subscriber repository")
	}

	guard := boundary.New(sink)
	started := time.Now()
	status := func(ctx context.Context) (dispatch.Status, error) {
		n, err := subscribers.Count(ctx)
		if err != nil {
			return dispatch.Status{}, err
		}
		bs, ss := guard.Stats(), sink.Stats()
		return dispatch.Status{
			Env:          cfg.Primary.Env,
			Uptime:       dispatch.Uptime(started),
			Handled:      bs.Succeeded + bs.Recovered,
			Recovered:    bs.Recovered,
			Subscribers:  n,
			LogRecords:   ss.Records,
			LogBytes:     ss.Bytes,
			LogRotations: ss.Rotations,
		}, nil
	}

	registry := event.NewRegistry()
	registry.Command("start", dispatch.StartCommand(subscribers))
	registry.Command("stop", dispatch.StopCommand(subscribers))
	registry.Command("ping", dispatch.PingCommand())
	registry.Command("help", dispatch.HelpCommand())
	registry.Command("status", dispatch.StatusCommand(status))
	registry.Kind(model.EventTick, dispatch.DigestTick())
	registry.Fallback(dispatch.Fallback())

	dispatcher := dispatch.NewDispatcher(registry, guard, logger)
	scheduler := dispatch.NewScheduler(cfg.Scheduler, dispatcher, subscribers, dispatch.NewLogResponder(logger), logger)
	srv := server.New(cfg, dispatcher, recent, status)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recordLifecycle(logger, sink, model.LogRecord{
		Level:   model.LevelInfo,
		Source:  "lifecycle",
		Message: "bot started",
		Context: map[string]string{"env": cfg.Primary.Env, "addr": cfg.Server.Address()},
	})

	if err := scheduler.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("could not start scheduler")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(gctx) })
	logger.Info().Str("addr", cfg.Server.Address()).Str("env", cfg.Primary.Env).Msg("bot ready")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-gctx.Done():
	}
	cancel()

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
	}
	scheduler.Stop()

	recordLifecycle(logger, sink, model.LogRecord{Level: model.LevelInfo, Source: "lifecycle", Message: "bot stopped"})
	logger.Info().Msg("bot stopped")
}

// recordLifecycle appends a start/stop marker to the sink and reports a
// failed append on the console, where the rest of the process diagnostics go.
func recordLifecycle(log zerolog.Logger, sink *logsink.Sink, rec model.LogRecord) {
	if err := sink.Append(rec); err != nil {
		log.Error().Err(err).Str("record", rec.Message).Msg("could not append lifecycle record")
	}
}
