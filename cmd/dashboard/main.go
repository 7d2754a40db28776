// The dashboard binary serves the roster and assessment UI. It talks to the
// backend auth service, the identity provider, the rostering API and the
// assessment content service, all configured from the environment.
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

	"github.com/timeback/rosterdash/internal/assessment"
	"github.com/timeback/rosterdash/internal/auth/events"
	"github.com/timeback/rosterdash/internal/auth/gateway"
	"github.com/timeback/rosterdash/internal/auth/idp"
	"github.com/timeback/rosterdash/internal/auth/sso"
	"github.com/timeback/rosterdash/internal/auth/token"
	"github.com/timeback/rosterdash/internal/config"
	"github.com/timeback/rosterdash/internal/roster"
	"github.com/timeback/rosterdash/internal/web"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	var store token.Store
	if cfg.TokenFile != "" {
		fs, err := token.NewFileStore(cfg.TokenFile)
		if err != nil {
			logger.Error("open token file", "path", cfg.TokenFile, "error", err)
			os.Exit(1)
		}
		store = fs
	} else {
		store = token.NewMemStore()
	}

	bus := events.NewBroadcaster()
	idpc := idp.New(cfg.IDPEndpoint, cfg.IDPClientID, cfg.SeedPassword,
		idp.WithLogger(logger), idp.WithDefaultName(cfg.IDPDefaultName))
	gw := gateway.New(store, idpc, bus, gateway.WithLogger(logger))

	srv := web.NewServer(web.Options{
		SSO:          sso.New(cfg.SSOBaseURL, gw, store),
		IDP:          idpc,
		Roster:       roster.New(cfg.RosterBaseURL, gw),
		Assessment:   assessment.New(cfg.QTIBaseURL, gw, assessment.WithLogger(logger)),
		Store:        store,
		Bus:          bus,
		CookieSecret: cfg.CookieSecret,
		CookieName:   cfg.CookieName,
		Logger:       logger,
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("dashboard listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode)
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
