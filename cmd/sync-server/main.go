package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/kapu/shogi-sync-server/internal/archive"
	appcfg "github.com/kapu/shogi-sync-server/internal/config"
	"github.com/kapu/shogi-sync-server/internal/httpapi"
	"github.com/kapu/shogi-sync-server/internal/msgcat"
	"github.com/kapu/shogi-sync-server/internal/obslog"
	"github.com/kapu/shogi-sync-server/internal/registry"
	"github.com/kapu/shogi-sync-server/internal/room"
	"github.com/kapu/shogi-sync-server/internal/roomstore"
	"github.com/kapu/shogi-sync-server/internal/router"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer obslog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := roomstore.New(cfg.RedisURL,
		roomstore.WithTTL(cfg.RoomTTL()),
		roomstore.WithOpTimeout(cfg.StoreTimeout()),
	)
	defer store.Close()

	cat, err := msgcat.New(cfg.MsgOverrideDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	var repo archive.Repository
	if cfg.DatabaseURL != "" {
		repo, err = archive.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			// archiving is best-effort; the service runs without it
			obslog.L().Warn("archive disabled", zap.Error(err))
			repo = nil
		} else {
			defer repo.Close()
		}
	}

	reg := registry.New()
	rooms := room.NewManager(room.Limits{
		History: cfg.HistoryLimit,
		Chat:    cfg.ChatLimit,
		Moves:   cfg.MoveLimit,
	})
	rt := router.New(store, rooms, reg, cat, repo)

	srv := httpapi.New(cfg.ListenAddr, store, reg, rooms, rt)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
	obslog.L().Info("shutdown complete")
}
