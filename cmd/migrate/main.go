package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/hydrofarm-backend/pkg/config"
	"github.com/angelmondragon/hydrofarm-backend/pkg/db"
	"github.com/angelmondragon/hydrofarm-backend/pkg/logger"
	"github.com/angelmondragon/hydrofarm-backend/pkg/migrate"
)

// migrate runs goose against the embedded migrations unless -dir points at a
// directory on disk. create and validate never touch the database.
func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "up|down|status|version|create|validate")
	dir := flag.String("dir", "", "migrations directory on disk (default: embedded)")
	name := flag.String("name", "", "migration name for -cmd=create")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fail(context.Background(), logg, "load config", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
		"dir": displayDir(*dir),
	})

	switch *cmd {
	case "create":
		if *name == "" {
			fail(ctx, logg, "create", fmt.Errorf("missing -name"))
		}
		target := *dir
		if target == "" {
			target = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(target, *name, time.Now().UTC())
		if err != nil {
			fail(ctx, logg, "create", err)
		}
		logg.Info(logg.WithField(ctx, "path", path), "migration created")
		return
	case "validate":
		if *dir == "" {
			err = migrate.ValidateFS(migrate.EmbeddedSource().FS, ".")
		} else {
			err = migrate.ValidateDir(*dir)
		}
		if err != nil {
			fail(ctx, logg, "validate", err)
		}
		logg.Info(ctx, "migrations valid")
		return
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		fail(ctx, logg, "connect database", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()
	sqlDB, err := dbClient.SQL()
	if err != nil {
		fail(ctx, logg, "sql handle", err)
	}

	src := migrate.EmbeddedSource()
	if *dir != "" {
		src = migrate.DirSource(*dir)
	}
	runner, err := migrate.NewRunner(sqlDB, src)
	if err != nil {
		fail(ctx, logg, *cmd, err)
	}
	steps, err := runner.Exec(ctx, *cmd, *version)
	if err != nil {
		fail(ctx, logg, *cmd, err)
	}
	for _, step := range steps {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"version": step.Version,
			"path":    step.Path,
			"state":   step.State,
		}), "migrate.step")
	}
	logg.Info(logg.WithField(ctx, "steps", len(steps)), "migrate.done")
}

func displayDir(dir string) string {
	if dir == "" {
		return "embedded"
	}
	return dir
}

func fail(ctx context.Context, logg *logger.Logger, step string, err error) {
	logg.Error(ctx, fmt.Sprintf("migrate %s failed", step), err)
	os.Exit(1)
}
