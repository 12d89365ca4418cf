package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"centavo.app/internal/docstore"
	"centavo.app/internal/docstore/pg"
	"centavo.app/internal/gateway"
	"centavo.app/internal/httpapi"
	"centavo.app/internal/identity"
	"centavo.app/internal/localstore"
	"centavo.app/internal/obs"
	"centavo.app/internal/tracker"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	_ = godotenv.Load()
	obs.SetupLogging()
	obs.Init()
	obs.InitBuildInfo(version, commit)

	addr := os.Getenv("CENTAVO_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	// Document store: Postgres when a DSN is configured, in-memory otherwise.
	var (
		store docstore.Store
		db    *sql.DB
	)
	if dsn := os.Getenv("CENTAVO_PG_DSN"); dsn != "" {
		pgStore, err := pg.Open(dsn)
		if err != nil {
			slog.Error("open postgres store", "err", err)
			os.Exit(1)
		}
		store = pgStore
		db = pgStore.DB()
	} else {
		slog.Warn("CENTAVO_PG_DSN not set, using in-memory document store")
		store = docstore.NewInMemory()
	}

	localPath := os.Getenv("CENTAVO_LOCALSTORE_PATH")
	if localPath == "" {
		localPath = "data/localstore.db"
	}
	local, err := localstore.OpenSqlite(localPath)
	if err != nil {
		slog.Error("open local store", "path", localPath, "err", err)
		os.Exit(1)
	}

	stream := identity.NewStream()
	idsvc := identity.NewService(store, stream)
	gw := gateway.New(store)
	trackers := tracker.NewRegistry(gw, local)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go trackers.Run(ctx, stream)

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, idsvc, gw, trackers)

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	slog.Info("starting centavo-api", "version", version, "addr", srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("listen", "err", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	slog.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	if db != nil {
		_ = db.Close()
	}
	_ = local.Close()
	slog.Info("stopped")
}
