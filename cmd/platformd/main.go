// platformd is the local development backend: identity provider, auth
// service, OneRoster rostering and QTI content endpoints in one process.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/timeback/rosterdash/internal/config"
	"github.com/timeback/rosterdash/internal/platform/api"
	"github.com/timeback/rosterdash/internal/platform/authsvc"
	"github.com/timeback/rosterdash/internal/platform/db"
	"github.com/timeback/rosterdash/internal/platform/storage"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		logger.Error("open database", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer dbh.Close()

	blobs, err := storage.NewFSStore(cfg.BlobBasePath, cfg.PublicURL, cfg.AuthSecret)
	if err != nil {
		logger.Error("open blob store", "path", cfg.BlobBasePath, "error", err)
		os.Exit(1)
	}

	tokens := authsvc.NewTokenService(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLSec)*time.Second)
	srv := api.NewServer(dbh, tokens, blobs, logger)

	httpSrv := &http.Server{
		Addr:              cfg.PlatformAddr,
		Handler:           srv.Routes(cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("platformd listening", "addr", cfg.PlatformAddr, "driver", cfg.DBDriver)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}
