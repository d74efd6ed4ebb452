package main

import (
	"errors"
	"flag"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/openacre/land-exchange-backend/internal/infrastructure/config"
)

func main() {
	var (
		action  = flag.String("action", "up", "Migration action: up, down, version, force")
		steps   = flag.Int("steps", 0, "Number of migrations to apply (0 = all)")
		version = flag.Int("version", -1, "Target version for the force action")
		dir     = flag.String("dir", "migrations", "Migrations directory")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	m, err := migrate.New("file://"+*dir, cfg.Database.URL)
	if err != nil {
		slog.Error("failed to initialize migrator", "error", err)
		os.Exit(1)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			slog.Warn("migrator close", "source_error", srcErr, "db_error", dbErr)
		}
	}()

	switch *action {
	case "up":
		if *steps > 0 {
			err = m.Steps(*steps)
		} else {
			err = m.Up()
		}
	case "down":
		if *steps > 0 {
			err = m.Steps(-*steps)
		} else {
			err = m.Steps(-1)
		}
	case "version":
		v, dirty, verr := m.Version()
		if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			slog.Error("failed to read version", "error", verr)
			os.Exit(1)
		}
		slog.Info("schema version", "version", v, "dirty", dirty)
		return
	case "force":
		if *version < 0 {
			slog.Error("force requires -version")
			os.Exit(1)
		}
		err = m.Force(*version)
	default:
		slog.Error("unknown action", "action", *action)
		os.Exit(1)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		slog.Info("no pending migrations")
		return
	}
	if err != nil {
		slog.Error("migration failed", "action", *action, "error", err)
		os.Exit(1)
	}
	slog.Info("migration complete", "action", *action)
}
