package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/angas/gasquota/billing"
	"github.com/angas/gasquota/config"
	"github.com/angas/gasquota/database"
	"github.com/angas/gasquota/dates"
	"github.com/angas/gasquota/logging"
	"github.com/angas/gasquota/meter"
	"github.com/angas/gasquota/task"
	"github.com/angas/gasquota/www"
)

var Version = "?.?.?"

func main() {
	defer func() {
		if err := recover(); err != nil {
			exitWithError(slog.Default(), fmt.Errorf("application panicked: %v", err))
		} else {
			slog.Default().Info("application is shutting down...")
		}
	}()

	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cnfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := dates.SetGuiTimezone(cnfg.Gui.GetTimezone()); err != nil {
		panic(fmt.Sprintf("failed to set GUI timezone: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consoleHandler := logging.NewConsoleHandler(os.Stdout, cnfg.Logging.GetConsoleLevel())
	slog.New(consoleHandler).Debug("gasquota is starting...", slog.String("version", Version))

	db, err := database.New(ctx, cnfg.Database.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to connect to database: %v", err))
	}
	defer db.Close()

	logger := slog.New(logging.NewMultiHandler(
		consoleHandler,
		logging.NewSQLiteHandler(db, cnfg.Logging.GetDbLevel(), cnfg.Logging.GetDbAttrsFormat())))
	slog.SetDefault(logger)

	// Now we can use the logger to log database operations into the database itself
	db.SetLogger(logger.With("module", "database"))

	svc := billing.NewService(
		logger.With("module", "billing"),
		db,
		cnfg.Tariff.Tariff(),
		cnfg.Tariff.Anchor())

	server, err := www.StartServer(svc, db, cnfg.Api, Version)
	if err != nil {
		panic(fmt.Sprintf("failed to start web server: %v", err))
	}
	svc.OnChange = func() { server.BroadcastQuota(context.Background()) }

	tasks := task.NewTasks(db, svc, server.PublishQuota, cnfg)
	if isDevMode() {
		logger.Info("dev mode, skipping task scheduling")
	} else {
		tasks.Run()
		defer tasks.Stop()
	}
	// Sets the remaining quota gauge before the first scheduled run
	go tasks.QuotaTask()

	if cnfg.Mqtt.Enabled {
		sub := meter.NewSubscriber(cnfg.Mqtt, svc)
		if err := sub.Connect(); err != nil {
			panic(fmt.Sprintf("meter connection error: %v", err))
		}
		defer sub.Disconnect()
	} else {
		logger.Info("mqtt disabled, readings are only accepted from the web")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-ctx.Done():
		case sig := <-sigCh:
			logger.Info("received signal", slog.Any("signal", sig))
			cancel()
		}
	}()

	server.Run(ctx)
}

func isDevMode() bool {
	return strings.EqualFold(os.Getenv("APP_ENV"), "development")
}

func exitWithError(logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("application shutting down with error", slog.Any("error", err))
	}

	time.Sleep(2 * time.Second)
	os.Exit(1)
}
