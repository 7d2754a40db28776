// seed populates the platformd database and blob store with a sample
// district, accounts sharing the configured password, and one assessment.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/timeback/rosterdash/internal/config"
	"github.com/timeback/rosterdash/internal/platform/db"
	"github.com/timeback/rosterdash/internal/platform/seed"
	"github.com/timeback/rosterdash/internal/platform/storage"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx := context.Background()
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

	if err := seed.Run(ctx, dbh, blobs, cfg.SeedPassword); err != nil {
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}
	logger.Info("seed complete", "login", "any seeded email", "password", cfg.SeedPassword)
}
