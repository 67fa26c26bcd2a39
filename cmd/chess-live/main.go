package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/chess-live/internal/api"
	"github.com/park285/chess-live/internal/archive"
	"github.com/park285/chess-live/internal/broadcast"
	appcfg "github.com/park285/chess-live/internal/config"
	"github.com/park285/chess-live/internal/game"
	"github.com/park285/chess-live/internal/obslog"
	"github.com/park285/chess-live/internal/proposal"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if cfg.LogLevel != "" {
		os.Setenv("LOG_LEVEL", cfg.LogLevel)
	}
	if cfg.LogFormat != "" {
		os.Setenv("LOG_FORMAT", cfg.LogFormat)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis url error", zap.Error(err))
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("redis unreachable", zap.Error(err))
	}

	games := game.NewStore(rdb)
	bus := broadcast.NewBus(rdb)
	gameMgr := game.NewManager(games, bus)
	proposalMgr := proposal.NewManager(rdb, games)

	if cfg.DatabaseURL != "" {
		repo, err := archive.NewRepository(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("archive init error", zap.Error(err))
		}
		defer repo.Close()
		gameMgr.AttachArchiver(repo)
		logger.Info("archive attached")
	} else {
		logger.Warn("DATABASE_URL not set, finished games will not be archived")
	}

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.NewServer(gameMgr, proposalMgr, bus).Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr))
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
