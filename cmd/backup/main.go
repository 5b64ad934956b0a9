// Command backup writes a dated copy of the database next to it and purges
// copies older than the configured retention.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/angas/gasquota/config"
	"github.com/angas/gasquota/database"
	"github.com/angas/gasquota/logging"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	logger := slog.New(logging.NewConsoleHandler(os.Stdout, slog.LevelDebug))
	slog.SetDefault(logger)

	if err := run(logger, *configPath); err != nil {
		logger.Error("backup failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger, configPath string) error {
	cnfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := database.New(ctx, cnfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetLogger(logger.With("module", "database"))

	if err := db.Backup(ctx); err != nil {
		return err
	}
	if err := db.PurgeBackups(ctx, cnfg.Database.GetBackupRetentionDays()); err != nil {
		return err
	}

	logger.Info("backup done", slog.String("dir", db.BackupDir()))
	return nil
}
